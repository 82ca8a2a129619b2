package plugin

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Option configures a Host.
type Option func(*Host)

// WithFs sets the filesystem LoadDir reads from.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	host, err := plugin.NewHost(ctx, plugin.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(h *Host) {
		h.fs = fs
	}
}

// WithLogger sets the logger for load and call failures.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithMemoryLimitPages caps guest memory in 64KiB pages.
// 0 keeps the wazero default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(h *Host) {
		h.memoryLimitPages = pages
	}
}

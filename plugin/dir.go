package plugin

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/wippyai/calc/errors"
)

const (
	wasmExt = ".wasm"
	witExt  = ".wit"
)

// IsPluginFile reports whether path is a plugin module or signature file.
func IsPluginFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == wasmExt || ext == witExt
}

// LoadDir loads every name.wasm in dir together with its name.wit.
// Plugins previously loaded from dir whose files are gone are unloaded.
// The directory loads as a whole: if any plugin fails, the error is returned
// and the plugins loaded before stay as they were.
// The returned modules are sorted by name.
func (h *Host) LoadDir(ctx context.Context, dir string) ([]*Module, error) {
	entries, err := afero.ReadDir(h.fs, dir)
	if err != nil {
		return nil, errors.Load("read plugin directory "+dir, err)
	}

	var srcs []source
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != wasmExt {
			continue
		}
		src, err := h.readSource(dir, strings.TrimSuffix(entry.Name(), wasmExt))
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}
	return h.loadAll(ctx, srcs, dir, true)
}

func (h *Host) readSource(dir, name string) (source, error) {
	wasmPath := filepath.Join(dir, name+wasmExt)
	witPath := filepath.Join(dir, name+witExt)

	exists, err := afero.Exists(h.fs, witPath)
	if err != nil {
		return source{}, errors.Load("stat "+witPath, err)
	}
	if !exists {
		return source{}, errors.NotFound(errors.PhasePlugin, "signature file", witPath)
	}

	wasm, err := afero.ReadFile(h.fs, wasmPath)
	if err != nil {
		return source{}, errors.Load("read "+wasmPath, err)
	}
	witText, err := afero.ReadFile(h.fs, witPath)
	if err != nil {
		return source{}, errors.Load("read "+witPath, err)
	}
	return source{name: name, dir: dir, wasm: wasm, wit: string(witText)}, nil
}

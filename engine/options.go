package engine

import (
	"go.uber.org/zap"
)

// Option configures an Engine.
type Option func(*config)

type config struct {
	logger *zap.Logger
	funcs  []namedFunc
	digits int
}

type namedFunc struct {
	fn   Func
	name string
}

// WithFractionDigits sets how many fractional digits results keep before
// trailing zeros are stripped. Valid values are 0 through MaxFractionDigits.
//
// Example:
//
//	e, err := engine.New(engine.WithFractionDigits(10))
func WithFractionDigits(n int) Option {
	return func(c *config) {
		c.digits = n
	}
}

// WithLogger sets the logger used for transition tracing.
// Without it the engine uses the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithFunc registers an extension function at construction time.
func WithFunc(name string, fn Func) Option {
	return func(c *config) {
		c.funcs = append(c.funcs, namedFunc{name: name, fn: fn})
	}
}

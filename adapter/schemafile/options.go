package schemafile

import (
	"io/fs"

	"go.uber.org/zap"
)

// WithFS makes LoadFile read names from fsys instead of the operating system.
func WithFS(fsys fs.FS) Option {
	return func(l *Loader) {
		l.fsys = fsys
	}
}

// WithLogger sets the loader logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = log
	}
}

// Option configures loader behavior through the functional options pattern.
type Option func(*Loader)

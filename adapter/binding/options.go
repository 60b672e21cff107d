package binding

import "go.uber.org/zap"

// WithLogger sets the logger used to report implicit object creation.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binder) {
		b.logger = l
	}
}

// Option configures binder behavior through the functional options pattern.
type Option func(*Binder)

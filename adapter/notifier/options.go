package notifier

import "go.uber.org/zap"

// WithLogger sets the logger used by the dispatcher and by the default
// failure handler.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithFailureHandler sets the function receiving the errors returned by
// tasks and the panics they raise, wrapped in [domain.ErrCallback].
func WithFailureHandler(h func(error)) Option {
	return func(d *Dispatcher) {
		d.onFailure = h
	}
}

// Option configures dispatcher behavior through the functional options
// pattern.
type Option func(*Dispatcher)

package memengine

import (
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// WithIDGenerator sets the generator of object keys.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(e *Engine) {
		e.idGenerator = g
	}
}

// WithComparer sets the comparer used by primary key indexes and set
// membership.
func WithComparer(c domain.Comparer) Option {
	return func(e *Engine) {
		e.comparer = c
	}
}

// WithLogger sets the logger of the engine and every session it opens.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Option configures engine behavior through the functional options pattern.
type Option func(*Engine)

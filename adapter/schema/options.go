package schema

import (
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// WithLegacyArrayProperties enables the deprecated form where an object's
// properties are declared as a list of named entries.
func WithLegacyArrayProperties(l bool) Option {
	return func(n *Normalizer) {
		n.legacyArrays = l
	}
}

// WithDecoder sets the decoder used to read raw map declarations.
func WithDecoder(d domain.Decoder) Option {
	return func(n *Normalizer) {
		n.decoder = d
	}
}

// WithLogger sets the logger used to report deprecated declarations.
func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// Option configures normalizer behavior through the functional options
// pattern.
type Option func(*Normalizer)

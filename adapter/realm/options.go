package realm

import (
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// WithEngine sets the storage engine the realm opens its session on.
func WithEngine(e domain.Engine) Option {
	return func(r *Realm) {
		r.engine = e
	}
}

// WithSchema adds object schema declarations. Each one is a
// [domain.ObjectDeclaration], a [domain.Schemer] or a map[string]any.
func WithSchema(declarations ...any) Option {
	return func(r *Realm) {
		r.declarations = append(r.declarations, declarations...)
	}
}

// WithSchemaFile adds the declarations read from a YAML or JSON schema file.
// They follow the declarations given with [WithSchema].
func WithSchemaFile(name string) Option {
	return func(r *Realm) {
		r.schemaFiles = append(r.schemaFiles, name)
	}
}

// WithLegacyArrayProperties accepts the deprecated array-of-properties form
// of object declarations.
func WithLegacyArrayProperties(l bool) Option {
	return func(r *Realm) {
		r.legacyArrays = l
	}
}

// WithLogger sets the logger shared by the realm and the components it
// builds.
func WithLogger(l *zap.Logger) Option {
	return func(r *Realm) {
		r.logger = l
	}
}

// WithDispatcher sets where collection listeners run.
func WithDispatcher(s domain.Scheduler) Option {
	return func(r *Realm) {
		r.scheduler = s
	}
}

// WithMarshallerFactory sets the function building the marshallers of
// collection adapters and property reads.
func WithMarshallerFactory(f domain.MarshallerFactory) Option {
	return func(r *Realm) {
		r.marshallers = f
	}
}

// Option configures realm behavior through the functional options pattern.
type Option func(*Realm)

// Package gerealm provides an object database binding for golang: schema
// declarations are normalized into a canonical schema, objects are stored in
// a pluggable storage engine and their list, dictionary and set properties are
// exposed through change-notifying adapters.
//
// The basic usage starts with declaring the schema and calling [Open]:
//
//	r, err := gerealm.Open(ctx, gerealm.WithSchema(gerealm.ObjectDeclaration{
//		Name:       "Person",
//		PrimaryKey: "name",
//		Properties: gerealm.PropertyDeclarations{
//			{Name: "name", Declaration: "string"},
//			{Name: "friends", Declaration: "Person[]"},
//		},
//	}))
//
// Every modification happens inside [Realm.Write].
package gerealm

import (
	"context"

	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/notifier"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/realm"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

var (
	// ErrTransactionState is returned when objects or collections are
	// modified outside of [Realm.Write].
	ErrTransactionState = domain.ErrTransactionState
	// ErrInvalidInstance is returned when a collection or object is used
	// after its owner was deleted or the realm closed.
	ErrInvalidInstance = domain.ErrInvalidInstance
	// ErrSessionClosed is returned when a closed realm is used.
	ErrSessionClosed = domain.ErrSessionClosed
	// ErrNotInTransaction is returned by the engine when committing or
	// cancelling without a write transaction.
	ErrNotInTransaction = domain.ErrNotInTransaction
	// ErrObjectNotFound is returned when a link or object type does not
	// resolve.
	ErrObjectNotFound = domain.ErrObjectNotFound
	// ErrScanBeforeNext is returned when calling [Results.Scan] before
	// [Results.Next].
	ErrScanBeforeNext = domain.ErrScanBeforeNext
	// ErrResultsClosed is returned when closed [Results] are used.
	ErrResultsClosed = domain.ErrResultsClosed
)

// ErrSchema is returned when a schema declaration is rejected.
type ErrSchema = domain.ErrSchema

// ErrConstructor is returned when a [Schemer] cannot declare a schema. It
// matches [ErrSchema] with errors.As.
type ErrConstructor = domain.ErrConstructor

// ErrEngine wraps every failure raised by the storage engine.
type ErrEngine = domain.ErrEngine

// ErrIndexOutOfRange is returned for list positions outside of the list.
type ErrIndexOutOfRange = domain.ErrIndexOutOfRange

// ErrDuplicatePrimaryKey is returned when creating an object with a primary
// key already in use.
type ErrDuplicatePrimaryKey = domain.ErrDuplicatePrimaryKey

// ErrValueType is returned when a value does not fit the property it is
// written to.
type ErrValueType = domain.ErrValueType

// ErrCallback is reported to the dispatcher failure handler when a listener
// panics.
type ErrCallback = domain.ErrCallback

// Open normalizes the declared schema and opens a realm on it. Options:
//
// - [WithSchema]: adds object schema declarations.
//
// - [WithSchemaFile]: adds the declarations of a YAML or JSON file.
//
// - [WithLegacyArrayProperties]: accepts the deprecated array-of-properties
// form.
//
// - [WithEngine]: sets the storage engine. Defaults to an in-memory engine.
//
// - [WithLogger]: sets the zap logger.
//
// - [WithDispatcher]: sets where collection listeners run.
//
// - [WithMarshallerFactory]: sets how values are converted for collections.
func Open(ctx context.Context, options ...Option) (Realm, error) {
	r, err := realm.Open(ctx, options...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Realm is an open database bound to a canonical schema. Reads are allowed at
// any time; modifications require a write transaction, entered through
// [Realm.Write]. A realm has a single writer: while a write transaction is
// active, only the goroutine running it may modify objects or collections.
type Realm interface {
	// Schema returns the canonical schema.
	Schema() []ObjectSchema

	// IsInTransaction reports whether a write transaction is active.
	IsInTransaction() bool

	// Write runs fn in a write transaction, committing it when fn returns
	// nil. Errors and panics cancel it. Write does not queue: calling it
	// while a transaction is active, nested or from another goroutine,
	// returns [ErrTransactionState].
	Write(ctx context.Context, fn func() error) error

	// Create creates an object from a map or struct. Linked objects given
	// as maps or structs are matched by primary key or created. Properties
	// missing from value get their declared default.
	Create(objectType string, value any) (Object, error)

	// Update writes the properties present in value to obj.
	Update(obj Object, value any) error

	// Delete removes obj and the embedded objects it owns.
	Delete(obj Object) error

	// ObjectForPrimaryKey looks up an object by primary key.
	ObjectForPrimaryKey(objectType string, primaryKey any) (Object, bool, error)

	// Objects returns a snapshot of the objects of objectType.
	Objects(ctx context.Context, objectType string, options ...ResultsOption) (Results, error)

	// Get returns the value of a non-collection property of obj.
	Get(obj Object, property string) (any, error)

	// List returns the adapter of a list property.
	List(obj Object, property string) (List, error)

	// Dictionary returns the adapter of a dictionary property.
	Dictionary(obj Object, property string) (Dictionary, error)

	// Set returns the adapter of a set property.
	Set(obj Object, property string) (Set, error)

	// Close closes the realm and the adapters it returned.
	Close() error
}

// Object is a handle to a stored object.
type Object = domain.Object

// Link is the stored form of a reference to an object.
type Link = domain.Link

// List is the adapter of a list property.
type List = domain.List

// Dictionary is the adapter of a dictionary property.
type Dictionary = domain.Dictionary

// Set is the adapter of a set property.
type Set = domain.Set

// Results is a snapshot of the objects of one type.
type Results = domain.Results

// ChangeSet describes what a committed transaction changed in a collection.
type ChangeSet = domain.ChangeSet

// Listener receives collection change sets.
type Listener = domain.Listener

// ObjectSchema is the canonical schema of an object type.
type ObjectSchema = domain.ObjectSchema

// PropertySchema is the canonical schema of a property.
type PropertySchema = domain.PropertySchema

// ObjectDeclaration declares an object schema.
type ObjectDeclaration = domain.ObjectDeclaration

// PropertyDeclarations is the ordered mapping of property names to their
// declarations.
type PropertyDeclarations = domain.PropertyDeclarations

// PropertyDeclaration is the explicit form of a property declaration.
type PropertyDeclaration = domain.PropertyDeclaration

// Schemer is implemented by types declaring their own object schema.
type Schemer = domain.Schemer

// Engine opens storage sessions.
type Engine = domain.Engine

// Scheduler runs collection listeners.
type Scheduler = domain.Scheduler

// Marshaller converts values between host and stored form.
type Marshaller = domain.Marshaller

// MarshallerFactory builds the marshaller of a property.
type MarshallerFactory = domain.MarshallerFactory

// ResultsOption configures [Results].
type ResultsOption = domain.ResultsOption

// Option configures realm behavior through the functional options pattern.
type Option = realm.Option

// WithSchema adds object schema declarations: [ObjectDeclaration] values,
// [Schemer] implementations or maps.
func WithSchema(declarations ...any) Option {
	return realm.WithSchema(declarations...)
}

// WithSchemaFile adds the declarations of a YAML or JSON schema file.
func WithSchemaFile(name string) Option {
	return realm.WithSchemaFile(name)
}

// WithLegacyArrayProperties accepts the deprecated array-of-properties form.
func WithLegacyArrayProperties(l bool) Option {
	return realm.WithLegacyArrayProperties(l)
}

// WithEngine sets the storage engine.
func WithEngine(e Engine) Option {
	return realm.WithEngine(e)
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return realm.WithLogger(l)
}

// WithDispatcher sets where collection listeners run.
func WithDispatcher(s Scheduler) Option {
	return realm.WithDispatcher(s)
}

// WithMarshallerFactory sets how values are converted for collections and
// property reads.
func WithMarshallerFactory(f MarshallerFactory) Option {
	return realm.WithMarshallerFactory(f)
}

// Dispatcher runs collection listeners in order on a background goroutine.
type Dispatcher = notifier.Dispatcher

// NewDispatcher returns a [Dispatcher] logging listener failures with l.
// Realms share a process-wide dispatcher unless [WithDispatcher] is used.
func NewDispatcher(l *zap.Logger) *Dispatcher {
	return notifier.NewDispatcher(notifier.WithLogger(l))
}

// WithResultsDecoder sets the decoder [Results.Scan] uses.
func WithResultsDecoder(d domain.Decoder) ResultsOption {
	return domain.WithResultsDecoder(d)
}

// Bool returns a pointer to b, for [PropertyDeclaration] literals.
func Bool(b bool) *bool {
	return domain.Bool(b)
}

// Package domain contains the schema model, error types and the interfaces
// that separate gerealm from the storage engine it binds to.
//
// The engine side of the boundary is made of [Engine], [Session], [Object] and
// the native collection handles ([ListHandle], [DictionaryHandle] and
// [SetHandle]). Everything above it (schema normalization, marshalling and the
// collection adapters) only talks to the engine through these interfaces.
package domain

import (
	"context"
	"iter"
)

// ObjectKey identifies an object inside a session. Keys are never reused.
type ObjectKey string

// Link is the engine-native representation of a reference to an object.
type Link struct {
	ObjectType string
	Key        ObjectKey
}

// ChangeSet describes the modifications a committed write transaction made to
// a collection. Positional fields are used by lists and sets, key fields by
// dictionaries.
type ChangeSet struct {
	Insertions    []int
	Modifications []int
	Deletions     []int
	InsertedKeys  []string
	ModifiedKeys  []string
	DeletedKeys   []string
	// Invalidated is set when the collection owner was deleted. No further
	// notifications follow.
	Invalidated bool
}

// Empty reports whether the change set carries no change at all.
func (c ChangeSet) Empty() bool {
	return len(c.Insertions)+len(c.Modifications)+len(c.Deletions)+
		len(c.InsertedKeys)+len(c.ModifiedKeys)+len(c.DeletedKeys) == 0 &&
		!c.Invalidated
}

// ChangeCallback is registered in the engine and called synchronously during
// notification delivery.
type ChangeCallback func(ChangeSet)

// Listener receives collection notifications on the adapter side. Errors
// returned by a listener never reach the engine.
type Listener func(ChangeSet) error

// Engine opens sessions on a canonical schema.
type Engine interface {
	// Open validates the schema against engine rules and opens a session
	// bound to it.
	Open(ctx context.Context, schema []ObjectSchema) (Session, error)
}

// Session is an open database handle. Reads are allowed while the session is
// valid; writes require an active write transaction.
type Session interface {
	// Schema returns the schema the session was opened with.
	Schema() []ObjectSchema
	// ObjectSchema looks up a single object schema by name.
	ObjectSchema(name string) (ObjectSchema, bool)
	// IsValid reports whether the session is still open.
	IsValid() bool
	// IsInTransaction reports whether a write transaction is active.
	IsInTransaction() bool
	// BeginWrite starts a write transaction. It blocks while another
	// transaction is active, until it ends or ctx is done.
	BeginWrite(ctx context.Context) error
	// CommitWrite makes the transaction changes visible and delivers change
	// notifications.
	CommitWrite(ctx context.Context) error
	// CancelWrite discards the transaction changes.
	CancelWrite() error
	// Create inserts a new top-level object. primaryKey is ignored for
	// object types without a primary key.
	Create(objectType string, primaryKey any) (Object, error)
	// Object resolves a link. Missing objects resolve to an invalid handle.
	Object(link Link) Object
	// FindByPrimaryKey looks up an object by its primary key value.
	FindByPrimaryKey(objectType string, primaryKey any) (Object, bool, error)
	// Delete removes an object and every embedded object it owns.
	Delete(obj Object) error
	// Objects returns a snapshot of all objects of the given type.
	Objects(objectType string) ([]Object, error)
	// Close invalidates the session and every handle obtained from it.
	Close() error
}

// Object is a handle to a stored object.
type Object interface {
	Key() ObjectKey
	ObjectType() string
	Link() Link
	IsValid() bool
	// Get returns the native value of a non-collection property.
	Get(property string) (any, error)
	// Set stores a native value in a non-collection property.
	Set(property string, value any) error
	// SetEmbedded replaces the embedded object stored in property with a
	// new empty one, returning it.
	SetEmbedded(property string) (Object, error)
	ListHandle(property string) (ListHandle, error)
	DictionaryHandle(property string) (DictionaryHandle, error)
	SetHandle(property string) (SetHandle, error)
}

// CollectionHandle holds what every native collection handle provides.
type CollectionHandle interface {
	// IsValid reports whether the collection owner still exists and the
	// session is open.
	IsValid() bool
	Size() (int, error)
	// AddChangeCallback registers cb for delivery after each commit that
	// changes the collection. The returned function unregisters it.
	AddChangeCallback(cb ChangeCallback) (func(), error)
}

// ListHandle is a native ordered collection.
type ListHandle interface {
	CollectionHandle
	Get(index int) (any, error)
	Set(index int, value any) error
	Insert(index int, value any) error
	Remove(index int) error
	// InsertEmbedded inserts a new empty embedded object at index.
	InsertEmbedded(index int) (Object, error)
	// SetEmbedded replaces the element at index with a new empty embedded
	// object.
	SetEmbedded(index int) (Object, error)
	Snapshot() ([]any, error)
}

// DictionaryHandle is a native string-keyed collection.
type DictionaryHandle interface {
	CollectionHandle
	TryGet(key string) (any, bool, error)
	Insert(key string, value any) error
	// InsertEmbedded stores a new empty embedded object under key.
	InsertEmbedded(key string) (Object, error)
	// TryErase removes key, reporting whether it existed.
	TryErase(key string) (bool, error)
	KeysSnapshot() ([]string, error)
	ValuesSnapshot() ([]any, error)
	// EntriesSnapshot returns keys and their values read together, so both
	// slices have the same length.
	EntriesSnapshot() ([]string, []any, error)
}

// SetHandle is a native collection of distinct values.
type SetHandle interface {
	CollectionHandle
	Get(index int) (any, error)
	// Insert adds value, reporting whether it was not present yet.
	Insert(value any) (bool, error)
	// Remove removes value, reporting whether it was present.
	Remove(value any) (bool, error)
	// Find returns the position of value, or -1.
	Find(value any) (int, error)
	Snapshot() ([]any, error)
}

// EmbeddedFactory allocates an embedded object slot at the position the
// caller is writing to.
type EmbeddedFactory func() (Object, error)

// Marshaller converts values between their host representation and the
// engine-native representation for one property.
type Marshaller interface {
	// ToBinding converts a host value. When the property holds embedded
	// objects, factory is called to allocate the object, which is then
	// populated from value and the returned native value is nil.
	ToBinding(value any, factory EmbeddedFactory) (any, error)
	// FromBinding converts a native value back to its host representation.
	FromBinding(native any) any
}

// LookupMarshaller is implemented by marshallers that can convert a value
// for a membership test without side effects.
type LookupMarshaller interface {
	Marshaller
	// Lookup converts value like ToBinding but never creates objects.
	// found is false when value describes an object that does not exist.
	Lookup(value any) (native any, found bool, err error)
}

// MarshallerFactory builds a [Marshaller] for a property of a session schema.
type MarshallerFactory = func(Session, PropertySchema) Marshaller

// Scheduler runs tasks outside of the caller's stack. Task errors are reported
// through the scheduler's own failure channel.
type Scheduler interface {
	Schedule(task func() error)
}

// SchemaNormalizer turns raw declarations into canonical schemas.
type SchemaNormalizer interface {
	// Property normalizes one property declaration.
	Property(name string, declaration any) (PropertySchema, error)
	// Object normalizes one object schema declaration.
	Object(declaration any) (ObjectSchema, error)
	// Realm normalizes a list of object schema declarations.
	Realm(declarations ...any) ([]ObjectSchema, error)
}

// Decoder converts between different data representations.
type Decoder interface {
	// Decode converts from one data format to another.
	Decode(any, any) error
}

// Comparer provides ordering for primary-key values.
type Comparer interface {
	// Compare returns -1, 0, or 1 based on the comparison of two values.
	Compare(any, any) (int, error)
	// Comparable returns true if two values can be compared.
	Comparable(any, any) bool
}

// IDGenerator generates object keys.
type IDGenerator interface {
	// GenerateID returns a new unique identifier.
	GenerateID() (string, error)
}

// Observable is implemented by the collection adapters. Listeners run on the
// adapter scheduler after each commit that changes the collection.
type Observable interface {
	// IsValid reports whether the underlying handle is still usable.
	IsValid() bool
	// AddListener registers fn. The returned function removes it.
	AddListener(fn Listener) func()
	// RemoveAllListeners removes every registered listener.
	RemoveAllListeners()
	// Close removes every listener and detaches from the engine.
	Close() error
}

// List is the value-oriented view of a list property.
type List interface {
	Observable
	Len() (int, error)
	Get(index int) (any, error)
	Set(index int, value any) error
	// Push appends items in argument order.
	Push(items ...any) error
	// Unshift prepends items, keeping their argument order.
	Unshift(items ...any) error
	// Pop removes and returns the last element. ok is false when the list
	// is empty.
	Pop() (value any, ok bool, err error)
	// Shift removes and returns the first element. ok is false when the
	// list is empty.
	Shift() (value any, ok bool, err error)
	// Splice removes deleteCount elements from start and inserts items in
	// their place, returning the removed elements. A negative start counts
	// from the end.
	Splice(start, deleteCount int, items ...any) ([]any, error)
	// SpliceToEnd removes every element from start on.
	SpliceToEnd(start int) ([]any, error)
	// Values returns a sequence over a snapshot of the list.
	Values() (iter.Seq2[int, any], error)
	Snapshot() ([]any, error)
}

// Dictionary is the value-oriented view of a dictionary property.
type Dictionary interface {
	Observable
	Len() (int, error)
	// Get returns the value stored under key. ok is false when the key is
	// absent.
	Get(key string) (value any, ok bool, err error)
	Set(key string, value any) error
	// Remove erases key. Absent keys are ignored.
	Remove(key string) error
	Has(key string) (bool, error)
	// Keys, Values and Entries return sequences over a snapshot taken at
	// call time.
	Keys() (iter.Seq[string], error)
	Values() (iter.Seq[any], error)
	Entries() (iter.Seq2[string, any], error)
}

// Set is the value-oriented view of a set property.
type Set interface {
	Observable
	Len() (int, error)
	// Add inserts value, reporting whether it was not present yet.
	Add(value any) (bool, error)
	// Delete removes value, reporting whether it was present.
	Delete(value any) (bool, error)
	Has(value any) (bool, error)
	Values() (iter.Seq[any], error)
	Snapshot() ([]any, error)
}

// Results is a read-only snapshot of the objects of one type.
type Results interface {
	Len() int
	Get(index int) (any, error)
	// Next advances to the next object, returning false when there is none
	// or the results were closed.
	Next() bool
	// Scan decodes the current object into target.
	Scan(ctx context.Context, target any) error
	Err() error
	Close() error
}

// Package realm wires the schema normalizer, the storage engine and the
// collection adapters into a single database handle.
package realm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/binding"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/dictionary"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/list"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/memengine"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/notifier"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/results"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/schema"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/schemafile"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/set"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Realm is an open database bound to a canonical schema.
type Realm struct {
	engine       domain.Engine
	declarations []any
	schemaFiles  []string
	legacyArrays bool
	logger       *zap.Logger
	scheduler    domain.Scheduler
	marshallers  domain.MarshallerFactory

	session domain.Session
	binder  *binding.Binder
	// writing is set while a Write call owns the write transaction.
	writing atomic.Bool

	mu       sync.Mutex
	adapters []domain.Observable
	closed   bool
}

// Open normalizes the declared schema and opens a session on it.
func Open(ctx context.Context, options ...Option) (*Realm, error) {
	r := Realm{
		logger:      zap.NewNop(),
		marshallers: binding.NewMarshaller,
	}
	for _, option := range options {
		option(&r)
	}
	if r.engine == nil {
		r.engine = memengine.NewEngine(memengine.WithLogger(r.logger))
	}
	if r.scheduler == nil {
		r.scheduler = notifier.Default()
	}

	loader := schemafile.NewLoader(schemafile.WithLogger(r.logger))
	for _, name := range r.schemaFiles {
		decls, err := loader.LoadFile(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, d := range decls {
			r.declarations = append(r.declarations, d)
		}
	}

	normalizer := schema.NewNormalizer(
		schema.WithLegacyArrayProperties(r.legacyArrays),
		schema.WithLogger(r.logger),
	)
	schemas, err := normalizer.Realm(r.declarations...)
	if err != nil {
		return nil, err
	}

	if r.session, err = r.engine.Open(ctx, schemas); err != nil {
		return nil, err
	}
	r.binder = binding.NewBinder(r.session, binding.WithLogger(r.logger))
	r.logger.Debug("realm opened", zap.Int("objectTypes", len(schemas)))
	return &r, nil
}

// Schema returns the canonical schema the realm was opened with.
func (r *Realm) Schema() []domain.ObjectSchema {
	return r.session.Schema()
}

// IsInTransaction reports whether a write transaction is active.
func (r *Realm) IsInTransaction() bool {
	return r.session.IsInTransaction()
}

// Write runs fn inside a write transaction. The transaction is committed when
// fn returns nil and cancelled when it returns an error or panics.
//
// A realm has a single writer: while fn runs, only the goroutine running it
// may modify objects or collections. Write does not queue. Calling it while
// another Write is active, from fn itself or from another goroutine, fails
// with [domain.ErrTransactionState].
func (r *Realm) Write(ctx context.Context, fn func() error) error {
	if !r.writing.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: already in a write transaction", domain.ErrTransactionState)
	}
	defer r.writing.Store(false)

	if err := r.session.BeginWrite(ctx); err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := r.session.CancelWrite(); err != nil {
			r.logger.Error("cannot cancel write transaction", zap.Error(err))
			return
		}
		r.logger.Debug("write transaction cancelled")
	}()

	if err := fn(); err != nil {
		return err
	}
	if err := r.session.CommitWrite(ctx); err != nil {
		return err
	}
	committed = true
	r.logger.Debug("write transaction committed")
	return nil
}

// Create creates an object of objectType from value, a map or a struct.
// Missing properties get their declared default.
func (r *Realm) Create(objectType string, value any) (domain.Object, error) {
	if !r.session.IsInTransaction() {
		return nil, domain.ErrTransactionState
	}
	return r.binder.Create(objectType, value)
}

// Update writes the properties present in value to obj.
func (r *Realm) Update(obj domain.Object, value any) error {
	if !r.session.IsInTransaction() {
		return domain.ErrTransactionState
	}
	return r.binder.Populate(obj, value)
}

// Delete removes obj and the embedded objects it owns.
func (r *Realm) Delete(obj domain.Object) error {
	if !r.session.IsInTransaction() {
		return domain.ErrTransactionState
	}
	return r.session.Delete(obj)
}

// ObjectForPrimaryKey looks up an object by primary key. The key is converted
// like any value written to the primary key property.
func (r *Realm) ObjectForPrimaryKey(objectType string, primaryKey any) (domain.Object, bool, error) {
	s, ok := r.session.ObjectSchema(objectType)
	if !ok {
		return nil, false, domain.ErrSchema{ObjectType: objectType, Message: "object type is not in the schema"}
	}
	p, ok := s.Property(s.PrimaryKey)
	if !ok {
		return nil, false, domain.ErrSchema{ObjectType: objectType, Message: "object type has no primary key"}
	}
	native, err := r.marshallers(r.session, p).ToBinding(primaryKey, nil)
	if err != nil {
		return nil, false, err
	}
	return r.session.FindByPrimaryKey(objectType, native)
}

// Objects returns a snapshot of the objects of objectType.
func (r *Realm) Objects(ctx context.Context, objectType string, options ...domain.ResultsOption) (domain.Results, error) {
	return results.NewResults(ctx, r.session, objectType, options...)
}

// Get returns the host value of a non-collection property.
func (r *Realm) Get(obj domain.Object, property string) (any, error) {
	p, err := r.property(obj, property)
	if err != nil {
		return nil, err
	}
	native, err := obj.Get(property)
	if err != nil {
		return nil, err
	}
	return r.marshallers(r.session, p).FromBinding(native), nil
}

// List returns the adapter of a list property of obj.
func (r *Realm) List(obj domain.Object, property string) (domain.List, error) {
	p, err := r.collection(obj, property, domain.TypeList)
	if err != nil {
		return nil, err
	}
	h, err := obj.ListHandle(property)
	if err != nil {
		return nil, err
	}
	l, err := list.NewList(r.session, h, p, r.collectionOptions(p)...)
	if err != nil {
		return nil, err
	}
	r.track(l)
	return l, nil
}

// Dictionary returns the adapter of a dictionary property of obj.
func (r *Realm) Dictionary(obj domain.Object, property string) (domain.Dictionary, error) {
	p, err := r.collection(obj, property, domain.TypeDictionary)
	if err != nil {
		return nil, err
	}
	h, err := obj.DictionaryHandle(property)
	if err != nil {
		return nil, err
	}
	d, err := dictionary.NewDictionary(r.session, h, p, r.collectionOptions(p)...)
	if err != nil {
		return nil, err
	}
	r.track(d)
	return d, nil
}

// Set returns the adapter of a set property of obj.
func (r *Realm) Set(obj domain.Object, property string) (domain.Set, error) {
	p, err := r.collection(obj, property, domain.TypeSet)
	if err != nil {
		return nil, err
	}
	h, err := obj.SetHandle(property)
	if err != nil {
		return nil, err
	}
	s, err := set.NewSet(r.session, h, p, r.collectionOptions(p)...)
	if err != nil {
		return nil, err
	}
	r.track(s)
	return s, nil
}

// Close closes every adapter the realm returned and the session. Calling it
// again is a no-op.
func (r *Realm) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	adapters := r.adapters
	r.adapters = nil
	r.mu.Unlock()

	for _, a := range adapters {
		if err := a.Close(); err != nil {
			return err
		}
	}
	r.logger.Debug("realm closed")
	return r.session.Close()
}

func (r *Realm) track(a domain.Observable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
}

func (r *Realm) collectionOptions(p domain.PropertySchema) []domain.CollectionOption {
	return []domain.CollectionOption{
		domain.WithCollectionMarshaller(r.marshallers(r.session, p)),
		domain.WithCollectionScheduler(r.scheduler),
	}
}

func (r *Realm) property(obj domain.Object, property string) (domain.PropertySchema, error) {
	if obj == nil || !obj.IsValid() {
		return domain.PropertySchema{}, domain.ErrInvalidInstance
	}
	s, ok := r.session.ObjectSchema(obj.ObjectType())
	if !ok {
		return domain.PropertySchema{}, domain.ErrSchema{ObjectType: obj.ObjectType(), Message: "object type is not in the schema"}
	}
	p, ok := s.Property(property)
	if !ok {
		return domain.PropertySchema{}, domain.ErrSchema{ObjectType: obj.ObjectType(), Property: property, Message: "property is not in the schema"}
	}
	return p, nil
}

func (r *Realm) collection(obj domain.Object, property string, typ domain.PropertyType) (domain.PropertySchema, error) {
	p, err := r.property(obj, property)
	if err != nil {
		return p, err
	}
	if p.Type != typ {
		return p, domain.ErrSchema{
			ObjectType: obj.ObjectType(),
			Property:   property,
			Message:    fmt.Sprintf("property is a %s, not a %s", p.Type, typ),
		}
	}
	return p, nil
}

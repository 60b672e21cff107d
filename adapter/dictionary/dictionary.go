// Package dictionary contains the default [domain.Dictionary] implementation.
package dictionary

import (
	"iter"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/binding"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/notifier"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Dictionary implements [domain.Dictionary].
type Dictionary struct {
	session    domain.Session
	handle     domain.DictionaryHandle
	marshaller domain.Marshaller
	listeners  *notifier.Listeners
	isEmbedded bool
}

// NewDictionary returns a new implementation of [domain.Dictionary] over
// handle, whose values follow property.
func NewDictionary(session domain.Session, handle domain.DictionaryHandle, property domain.PropertySchema, options ...domain.CollectionOption) (domain.Dictionary, error) {
	if handle == nil || !handle.IsValid() {
		return nil, domain.ErrInvalidInstance
	}

	opts := domain.CollectionOptions{
		Marshaller: binding.NewMarshaller(session, property),
		Scheduler:  notifier.Default(),
	}
	for _, option := range options {
		option(&opts)
	}

	listeners, err := notifier.Listen(handle, opts.Scheduler)
	if err != nil {
		return nil, err
	}

	d := Dictionary{
		session:    session,
		handle:     handle,
		marshaller: opts.Marshaller,
		listeners:  listeners,
	}
	if el := property.Element(); el.Type == domain.TypeObject {
		schema, ok := session.ObjectSchema(el.ObjectType)
		d.isEmbedded = ok && schema.Embedded
	}
	return &d, nil
}

// IsValid implements [domain.Dictionary].
func (d *Dictionary) IsValid() bool { return d.handle.IsValid() }

// AddListener implements [domain.Dictionary].
func (d *Dictionary) AddListener(fn domain.Listener) func() { return d.listeners.Add(fn) }

// RemoveAllListeners implements [domain.Dictionary].
func (d *Dictionary) RemoveAllListeners() { d.listeners.RemoveAll() }

// Close implements [domain.Dictionary].
func (d *Dictionary) Close() error {
	d.listeners.Close()
	return nil
}

// Len implements [domain.Dictionary].
func (d *Dictionary) Len() (int, error) {
	return d.handle.Size()
}

// Get implements [domain.Dictionary].
func (d *Dictionary) Get(key string) (any, bool, error) {
	native, ok, err := d.handle.TryGet(key)
	if err != nil || !ok {
		return nil, false, err
	}
	return d.marshaller.FromBinding(native), true, nil
}

// Has implements [domain.Dictionary].
func (d *Dictionary) Has(key string) (bool, error) {
	_, ok, err := d.handle.TryGet(key)
	return ok, err
}

// Set implements [domain.Dictionary].
func (d *Dictionary) Set(key string, value any) error {
	if !d.session.IsInTransaction() {
		return domain.ErrTransactionState
	}

	allocated := false
	var factory domain.EmbeddedFactory
	if d.isEmbedded {
		factory = func() (domain.Object, error) {
			allocated = true
			return d.handle.InsertEmbedded(key)
		}
	}
	native, err := d.marshaller.ToBinding(value, factory)
	if err != nil || allocated {
		return err
	}
	return d.handle.Insert(key, native)
}

// Remove implements [domain.Dictionary].
func (d *Dictionary) Remove(key string) error {
	if !d.session.IsInTransaction() {
		return domain.ErrTransactionState
	}
	_, err := d.handle.TryErase(key)
	return err
}

// Keys implements [domain.Dictionary].
func (d *Dictionary) Keys() (iter.Seq[string], error) {
	keys, err := d.handle.KeysSnapshot()
	if err != nil {
		return nil, err
	}
	return func(yield func(string) bool) {
		for _, k := range keys {
			if !yield(k) {
				return
			}
		}
	}, nil
}

// Values implements [domain.Dictionary].
func (d *Dictionary) Values() (iter.Seq[any], error) {
	values, err := d.handle.ValuesSnapshot()
	if err != nil {
		return nil, err
	}
	return func(yield func(any) bool) {
		for _, v := range values {
			if !yield(d.marshaller.FromBinding(v)) {
				return
			}
		}
	}, nil
}

// Entries implements [domain.Dictionary].
func (d *Dictionary) Entries() (iter.Seq2[string, any], error) {
	keys, values, err := d.handle.EntriesSnapshot()
	if err != nil {
		return nil, err
	}
	return func(yield func(string, any) bool) {
		for i, k := range keys {
			if !yield(k, d.marshaller.FromBinding(values[i])) {
				return
			}
		}
	}, nil
}

// Package set contains the default [domain.Set] implementation.
package set

import (
	"iter"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/binding"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/notifier"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Set implements [domain.Set]. Elements keep their insertion order.
type Set struct {
	session    domain.Session
	handle     domain.SetHandle
	marshaller domain.Marshaller
	listeners  *notifier.Listeners
}

// NewSet returns a new implementation of [domain.Set] over handle, whose
// elements follow property.
func NewSet(session domain.Session, handle domain.SetHandle, property domain.PropertySchema, options ...domain.CollectionOption) (domain.Set, error) {
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
	return &Set{
		session:    session,
		handle:     handle,
		marshaller: opts.Marshaller,
		listeners:  listeners,
	}, nil
}

// IsValid implements [domain.Set].
func (s *Set) IsValid() bool { return s.handle.IsValid() }

// AddListener implements [domain.Set].
func (s *Set) AddListener(fn domain.Listener) func() { return s.listeners.Add(fn) }

// RemoveAllListeners implements [domain.Set].
func (s *Set) RemoveAllListeners() { s.listeners.RemoveAll() }

// Close implements [domain.Set].
func (s *Set) Close() error {
	s.listeners.Close()
	return nil
}

// Len implements [domain.Set].
func (s *Set) Len() (int, error) {
	return s.handle.Size()
}

// Add implements [domain.Set].
func (s *Set) Add(value any) (bool, error) {
	if !s.session.IsInTransaction() {
		return false, domain.ErrTransactionState
	}
	native, err := s.marshaller.ToBinding(value, nil)
	if err != nil {
		return false, err
	}
	return s.handle.Insert(native)
}

// Delete implements [domain.Set].
func (s *Set) Delete(value any) (bool, error) {
	if !s.session.IsInTransaction() {
		return false, domain.ErrTransactionState
	}
	native, found, err := s.lookupValue(value)
	if err != nil || !found {
		return false, err
	}
	return s.handle.Remove(native)
}

// Has implements [domain.Set].
func (s *Set) Has(value any) (bool, error) {
	native, found, err := s.lookupValue(value)
	if err != nil || !found {
		return false, err
	}
	i, err := s.handle.Find(native)
	return i >= 0, err
}

// Values implements [domain.Set].
func (s *Set) Values() (iter.Seq[any], error) {
	natives, err := s.handle.Snapshot()
	if err != nil {
		return nil, err
	}
	return func(yield func(any) bool) {
		for _, native := range natives {
			if !yield(s.marshaller.FromBinding(native)) {
				return
			}
		}
	}, nil
}

// Snapshot implements [domain.Set].
func (s *Set) Snapshot() ([]any, error) {
	natives, err := s.handle.Snapshot()
	if err != nil {
		return nil, err
	}
	res := make([]any, len(natives))
	for i, native := range natives {
		res[i] = s.marshaller.FromBinding(native)
	}
	return res, nil
}

// lookupValue converts value for a membership test without creating objects.
// found is false when value describes an object that does not exist.
func (s *Set) lookupValue(value any) (native any, found bool, err error) {
	if obj, ok := value.(domain.Object); ok {
		return obj.Link(), true, nil
	}
	if m, ok := s.marshaller.(domain.LookupMarshaller); ok {
		return m.Lookup(value)
	}
	native, err = s.marshaller.ToBinding(value, nil)
	return native, err == nil, err
}

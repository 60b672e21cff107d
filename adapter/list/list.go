// Package list contains the default [domain.List] implementation.
package list

import (
	"iter"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/binding"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/notifier"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// List implements [domain.List].
type List struct {
	session    domain.Session
	handle     domain.ListHandle
	marshaller domain.Marshaller
	listeners  *notifier.Listeners
	isEmbedded bool
}

// NewList returns a new implementation of [domain.List] over handle, whose
// elements follow property.
func NewList(session domain.Session, handle domain.ListHandle, property domain.PropertySchema, options ...domain.CollectionOption) (domain.List, error) {
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

	el := property.Element()
	l := List{
		session:    session,
		handle:     handle,
		marshaller: opts.Marshaller,
		listeners:  listeners,
	}
	if el.Type == domain.TypeObject {
		schema, ok := session.ObjectSchema(el.ObjectType)
		l.isEmbedded = ok && schema.Embedded
	}
	return &l, nil
}

// IsValid implements [domain.List].
func (l *List) IsValid() bool {
	return l.handle.IsValid()
}

// AddListener implements [domain.List].
func (l *List) AddListener(fn domain.Listener) func() {
	return l.listeners.Add(fn)
}

// RemoveAllListeners implements [domain.List].
func (l *List) RemoveAllListeners() {
	l.listeners.RemoveAll()
}

// Close implements [domain.List].
func (l *List) Close() error {
	l.listeners.Close()
	return nil
}

// Len implements [domain.List].
func (l *List) Len() (int, error) {
	return l.handle.Size()
}

// Get implements [domain.List].
func (l *List) Get(index int) (any, error) {
	native, err := l.handle.Get(index)
	if err != nil {
		return nil, err
	}
	return l.marshaller.FromBinding(native), nil
}

// Set implements [domain.List].
func (l *List) Set(index int, value any) error {
	if !l.session.IsInTransaction() {
		return domain.ErrTransactionState
	}
	return l.write(value, func() (domain.Object, error) {
		return l.handle.SetEmbedded(index)
	}, func(native any) error {
		return l.handle.Set(index, native)
	})
}

// Push implements [domain.List].
func (l *List) Push(items ...any) error {
	if !l.session.IsInTransaction() {
		return domain.ErrTransactionState
	}
	size, err := l.handle.Size()
	if err != nil {
		return err
	}
	return l.insert(size, items)
}

// Unshift implements [domain.List].
func (l *List) Unshift(items ...any) error {
	if !l.session.IsInTransaction() {
		return domain.ErrTransactionState
	}
	return l.insert(0, items)
}

// Pop implements [domain.List].
func (l *List) Pop() (any, bool, error) {
	if !l.session.IsInTransaction() {
		return nil, false, domain.ErrTransactionState
	}
	size, err := l.handle.Size()
	if err != nil || size == 0 {
		return nil, false, err
	}
	return l.take(size - 1)
}

// Shift implements [domain.List].
func (l *List) Shift() (any, bool, error) {
	if !l.session.IsInTransaction() {
		return nil, false, domain.ErrTransactionState
	}
	size, err := l.handle.Size()
	if err != nil || size == 0 {
		return nil, false, err
	}
	return l.take(0)
}

// Splice implements [domain.List]. start is clamped to [0, Len] after
// negative values are counted from the end, and deleteCount to the elements
// available after start.
func (l *List) Splice(start, deleteCount int, items ...any) ([]any, error) {
	if !l.session.IsInTransaction() {
		return nil, domain.ErrTransactionState
	}
	size, err := l.handle.Size()
	if err != nil {
		return nil, err
	}
	return l.splice(size, start, deleteCount, items)
}

// SpliceToEnd implements [domain.List].
func (l *List) SpliceToEnd(start int) ([]any, error) {
	if !l.session.IsInTransaction() {
		return nil, domain.ErrTransactionState
	}
	size, err := l.handle.Size()
	if err != nil {
		return nil, err
	}
	return l.splice(size, start, size, nil)
}

// Values implements [domain.List].
func (l *List) Values() (iter.Seq2[int, any], error) {
	natives, err := l.handle.Snapshot()
	if err != nil {
		return nil, err
	}
	return func(yield func(int, any) bool) {
		for i, native := range natives {
			if !yield(i, l.marshaller.FromBinding(native)) {
				return
			}
		}
	}, nil
}

// Snapshot implements [domain.List].
func (l *List) Snapshot() ([]any, error) {
	natives, err := l.handle.Snapshot()
	if err != nil {
		return nil, err
	}
	res := make([]any, len(natives))
	for i, native := range natives {
		res[i] = l.marshaller.FromBinding(native)
	}
	return res, nil
}

func (l *List) splice(size, start, deleteCount int, items []any) ([]any, error) {
	if start < 0 {
		start = max(size+start, 0)
	}
	start = min(start, size)
	deleteCount = min(max(deleteCount, 0), size-start)

	removed := make([]any, deleteCount)
	for i := range deleteCount {
		native, err := l.handle.Get(start + i)
		if err != nil {
			return nil, err
		}
		removed[i] = l.marshaller.FromBinding(native)
	}
	for i := start + deleteCount - 1; i >= start; i-- {
		if err := l.handle.Remove(i); err != nil {
			return nil, err
		}
	}
	if err := l.insert(start, items); err != nil {
		return nil, err
	}
	return removed, nil
}

// take removes the element at index, returning its host value.
func (l *List) take(index int) (any, bool, error) {
	native, err := l.handle.Get(index)
	if err != nil {
		return nil, false, err
	}
	value := l.marshaller.FromBinding(native)
	if err := l.handle.Remove(index); err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (l *List) insert(start int, items []any) error {
	for i, item := range items {
		index := start + i
		err := l.write(item, func() (domain.Object, error) {
			return l.handle.InsertEmbedded(index)
		}, func(native any) error {
			return l.handle.Insert(index, native)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// write converts value and stores it with store. Embedded values are written
// into the slot allocated by slot instead.
func (l *List) write(value any, slot domain.EmbeddedFactory, store func(any) error) error {
	allocated := false
	factory := func() (domain.Object, error) {
		allocated = true
		return slot()
	}
	if !l.isEmbedded {
		factory = nil
	}
	native, err := l.marshaller.ToBinding(value, factory)
	if err != nil || allocated {
		return err
	}
	return store(native)
}

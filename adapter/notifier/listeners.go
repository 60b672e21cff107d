package notifier

import (
	"slices"
	"sync"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Listeners fans the change sets of one collection handle out to the
// listeners registered on an adapter. The engine callback is registered once,
// and each listener runs as its own task on the scheduler.
type Listeners struct {
	mu        sync.Mutex
	scheduler domain.Scheduler
	entries   []entry
	nextID    int
	remove    func()
}

type entry struct {
	id int
	fn domain.Listener
}

// Listen registers the fan-out callback on handle.
func Listen(handle domain.CollectionHandle, scheduler domain.Scheduler) (*Listeners, error) {
	l := Listeners{scheduler: scheduler}
	remove, err := handle.AddChangeCallback(l.deliver)
	if err != nil {
		return nil, err
	}
	l.remove = remove
	return &l, nil
}

// Add registers fn and returns a function removing it.
func (l *Listeners) Add(fn domain.Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, entry{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.entries = slices.DeleteFunc(l.entries, func(e entry) bool { return e.id == id })
	}
}

// RemoveAll removes every listener.
func (l *Listeners) RemoveAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Close removes every listener and unregisters the engine callback.
func (l *Listeners) Close() {
	l.RemoveAll()
	l.mu.Lock()
	remove := l.remove
	l.remove = nil
	l.mu.Unlock()
	if remove != nil {
		remove()
	}
}

func (l *Listeners) deliver(cs domain.ChangeSet) {
	l.mu.Lock()
	current := slices.Clone(l.entries)
	l.mu.Unlock()
	for _, e := range current {
		fn := e.fn
		l.scheduler.Schedule(func() error { return fn(cs) })
	}
}

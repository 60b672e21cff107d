// Package ctxsync contains synchronization primitives whose blocking
// operations can be abandoned through a context.
package ctxsync

import (
	"context"
)

// Mutex is a mutual exclusion lock. Unlike [sync.Mutex], it may be unlocked
// by a goroutine other than the one that locked it, and waiting for it can
// be cancelled. The zero value is not usable; call [NewMutex].
type Mutex struct {
	token chan struct{}
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{token: make(chan struct{}, 1)}
}

// Lock locks m, waiting until it is unlocked or ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	// a done context never takes the lock, even if it is free
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.token <- struct{}{}:
		return nil
	}
}

// TryLock locks m if it is unlocked and reports whether it did.
func (m *Mutex) TryLock() bool {
	select {
	case m.token <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock unlocks m. It panics if m is not locked.
func (m *Mutex) Unlock() {
	select {
	case <-m.token:
	default:
		panic("ctxsync: unlock of unlocked mutex")
	}
}

// Package notifier contains the default [domain.Scheduler] implementation.
//
// Collection adapters receive engine change callbacks while the engine is
// delivering notifications. They hand the listeners to a [Dispatcher], which
// runs them later on its own goroutine, in scheduling order, so a failing
// listener never unwinds through the engine.
package notifier

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Dispatcher implements [domain.Scheduler] with an unbounded FIFO queue
// consumed by a single goroutine.
type Dispatcher struct {
	mu        sync.Mutex
	queue     []func() error
	wake      chan struct{}
	stopChan  chan struct{}
	closed    bool
	wg        sync.WaitGroup
	logger    *zap.Logger
	onFailure func(error)
}

// NewDispatcher starts a new dispatcher. It must be closed to stop its
// goroutine.
func NewDispatcher(options ...Option) *Dispatcher {
	d := Dispatcher{
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(&d)
	}
	if d.onFailure == nil {
		d.onFailure = d.logFailure
	}

	d.wg.Add(1)
	go d.worker()
	return &d
}

var shared = sync.OnceValue(func() *Dispatcher { return NewDispatcher() })

// Default returns the process-wide dispatcher used when no other is given.
// It is never closed.
func Default() *Dispatcher {
	return shared()
}

// Schedule implements [domain.Scheduler]. Tasks scheduled after Close are
// dropped.
func (d *Dispatcher) Schedule(task func() error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("task scheduled on closed dispatcher")
		return
	}
	d.queue = append(d.queue, task)
	d.mu.Unlock()
	d.signal()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every task scheduled before the call has run.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return domain.ErrDispatcherClosed
	}
	d.queue = append(d.queue, func() error {
		close(done)
		return nil
	})
	d.mu.Unlock()
	d.signal()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, runs the ones already queued and waits for
// the worker to exit. Calling it again is a no-op.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()
	return nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopChan:
			d.drain()
			return
		case <-d.wake:
			d.drain()
		}
	}
}

// drain runs queued tasks until the queue is empty.
func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		task := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if err := d.run(task); err != nil {
			d.onFailure(err)
		}
	}
}

func (d *Dispatcher) run(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.ErrCallback{Value: r}
		}
	}()
	return task()
}

func (d *Dispatcher) logFailure(err error) {
	d.logger.Error("notification listener failed", zap.Error(err))
}

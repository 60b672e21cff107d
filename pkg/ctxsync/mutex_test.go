package ctxsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MutexTestSuite struct {
	suite.Suite
	ctx context.Context
	mu  *Mutex
}

func (s *MutexTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.mu = NewMutex()
}

// Concurrent holders must never overlap.
func (s *MutexTestSuite) TestExclusion() {
	const workers = 200
	n := 0

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.mu.Lock(s.ctx))
			defer s.mu.Unlock()
			n++
		}()
	}
	wg.Wait()

	s.Equal(workers, n)
}

func (s *MutexTestSuite) TestUnlockFromAnotherGoroutine() {
	s.Require().NoError(s.mu.Lock(s.ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.mu.Unlock()
	}()
	<-done

	s.True(s.mu.TryLock())
}

func (s *MutexTestSuite) TestContext() {
	s.Require().NoError(s.mu.Lock(s.ctx))

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Millisecond)
	defer cancel()
	s.ErrorIs(s.mu.Lock(ctx), context.DeadlineExceeded)

	s.mu.Unlock()
	s.ErrorIs(s.mu.Lock(ctx), context.DeadlineExceeded)
	s.True(s.mu.TryLock())
}

func (s *MutexTestSuite) TestTryLock() {
	s.True(s.mu.TryLock())
	s.False(s.mu.TryLock())
	s.mu.Unlock()
	s.True(s.mu.TryLock())
}

func (s *MutexTestSuite) TestUnlockUnlocked() {
	s.PanicsWithValue("ctxsync: unlock of unlocked mutex", s.mu.Unlock)
}

func TestMutexTestSuite(t *testing.T) {
	suite.Run(t, new(MutexTestSuite))
}

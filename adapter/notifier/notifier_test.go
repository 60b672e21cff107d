package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

type NotifierTestSuite struct {
	suite.Suite
	ctx      context.Context
	mu       sync.Mutex
	failures []error
	d        *Dispatcher
}

func (s *NotifierTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.failures = nil
	s.d = NewDispatcher(WithFailureHandler(func(err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.failures = append(s.failures, err)
	}))
}

func (s *NotifierTestSuite) TearDownTest() {
	s.NoError(s.d.Close())
}

func (s *NotifierTestSuite) TestOrder() {
	var got []int
	for i := range 100 {
		s.d.Schedule(func() error {
			got = append(got, i)
			return nil
		})
	}
	s.Require().NoError(s.d.Flush(s.ctx))
	s.Len(got, 100)
	for i, v := range got {
		s.Equal(i, v)
	}
	s.Empty(s.failures)
}

func (s *NotifierTestSuite) TestFailuresAreDeferred() {
	errFoo := errors.New("foo")
	ran := false
	s.d.Schedule(func() error { return errFoo })
	s.d.Schedule(func() error { panic("boom") })
	s.d.Schedule(func() error {
		ran = true
		return nil
	})
	s.Require().NoError(s.d.Flush(s.ctx))

	s.True(ran)
	s.Require().Len(s.failures, 2)
	s.ErrorIs(s.failures[0], errFoo)
	var cbErr domain.ErrCallback
	s.Require().ErrorAs(s.failures[1], &cbErr)
	s.Equal("boom", cbErr.Value)
}

func (s *NotifierTestSuite) TestScheduleDoesNotBlock() {
	release := make(chan struct{})
	s.d.Schedule(func() error {
		<-release
		return nil
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 1000 {
			s.d.Schedule(func() error { return nil })
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("schedule blocked on a busy dispatcher")
	}

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Millisecond)
	defer cancel()
	s.ErrorIs(s.d.Flush(ctx), context.DeadlineExceeded)

	close(release)
	s.NoError(s.d.Flush(s.ctx))
}

func (s *NotifierTestSuite) TestClose() {
	ran := 0
	for range 10 {
		s.d.Schedule(func() error {
			ran++
			return nil
		})
	}
	s.NoError(s.d.Close())
	s.Equal(10, ran)

	s.d.Schedule(func() error {
		ran++
		return nil
	})
	s.ErrorIs(s.d.Flush(s.ctx), domain.ErrDispatcherClosed)
	s.Equal(10, ran)
	s.NoError(s.d.Close())
}

func (s *NotifierTestSuite) TestDefaultFailureHandlerLogs() {
	core, logs := observer.New(zap.ErrorLevel)
	d := NewDispatcher(WithLogger(zap.New(core)))
	defer d.Close()

	d.Schedule(func() error { panic("boom") })
	s.Require().NoError(d.Flush(s.ctx))
	s.Equal(1, logs.FilterMessage("notification listener failed").Len())
}

func (s *NotifierTestSuite) TestDefault() {
	s.Same(Default(), Default())
	ran := false
	Default().Schedule(func() error {
		ran = true
		return nil
	})
	s.NoError(Default().Flush(s.ctx))
	s.True(ran)
}

func TestNotifierTestSuite(t *testing.T) {
	suite.Run(t, new(NotifierTestSuite))
}

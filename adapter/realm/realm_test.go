package realm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/notifier"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

type engineMock struct{ mock.Mock }

func (m *engineMock) Open(ctx context.Context, schema []domain.ObjectSchema) (domain.Session, error) {
	call := m.Called(ctx, schema)
	s, _ := call.Get(0).(domain.Session)
	return s, call.Error(1)
}

type person struct {
	Name     string
	Age      int
	Nickname string `gerealm:"nickname,omitempty"`
}

func declarations() []any {
	return []any{
		domain.ObjectDeclaration{
			Name:       "Person",
			PrimaryKey: "name",
			Properties: domain.PropertyDeclarations{
				{Name: "name", Declaration: "string"},
				{Name: "age", Declaration: "int?"},
				{Name: "nickname", Declaration: domain.PropertyDeclaration{Type: "string", Default: "none"}},
				{Name: "friends", Declaration: "Person[]"},
				{Name: "tags", Declaration: "string<>"},
				{Name: "labels", Declaration: "{}"},
				{Name: "address", Declaration: "Address"},
			},
		},
		map[string]any{
			"name":     "Address",
			"embedded": true,
			"properties": map[string]any{
				"street": "string",
			},
		},
	}
}

type RealmTestSuite struct {
	suite.Suite
	ctx        context.Context
	dispatcher *notifier.Dispatcher
	r          *Realm
}

func (s *RealmTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.dispatcher = notifier.NewDispatcher()
	var err error
	s.r, err = Open(s.ctx, WithSchema(declarations()...), WithDispatcher(s.dispatcher))
	s.Require().NoError(err)
}

func (s *RealmTestSuite) TearDownTest() {
	s.NoError(s.r.Close())
	s.NoError(s.dispatcher.Close())
}

func (s *RealmTestSuite) create(value any) domain.Object {
	var obj domain.Object
	s.Require().NoError(s.r.Write(s.ctx, func() error {
		var err error
		obj, err = s.r.Create("Person", value)
		return err
	}))
	return obj
}

func (s *RealmTestSuite) TestSchema() {
	schemas := s.r.Schema()
	s.Require().Len(schemas, 2)
	s.Equal("Person", schemas[0].Name)
	s.Equal([]string{"name", "age", "nickname", "friends", "tags", "labels", "address"}, schemas[0].PropertyNames())
	s.True(schemas[1].Embedded)
}

func (s *RealmTestSuite) TestOpenErrors() {
	_, err := Open(s.ctx, WithSchema(map[string]any{"name": "A", "properties": map[string]any{"x": "int[][]"}}))
	s.ErrorAs(err, new(domain.ErrSchema))

	_, err = Open(s.ctx, WithSchema(map[string]any{"name": "A", "properties": map[string]any{"x": "Missing"}}))
	s.ErrorAs(err, new(domain.ErrSchema))

	legacy := domain.ObjectDeclaration{
		Name:         "A",
		PropertyList: []domain.PropertyDeclaration{{Name: "x", Type: "int"}},
	}
	_, err = Open(s.ctx, WithSchema(legacy))
	s.ErrorAs(err, new(domain.ErrSchema))
	r, err := Open(s.ctx, WithSchema(legacy), WithLegacyArrayProperties(true))
	s.Require().NoError(err)
	s.NoError(r.Close())

	errEngine := errors.New("engine")
	e := new(engineMock)
	e.On("Open", mock.Anything, mock.Anything).Return(nil, errEngine)
	_, err = Open(s.ctx, WithEngine(e), WithSchema(declarations()...))
	s.ErrorIs(err, errEngine)
	e.AssertExpectations(s.T())

	_, err = Open(s.ctx, WithSchemaFile(filepath.Join(s.T().TempDir(), "missing.yaml")))
	s.ErrorIs(err, os.ErrNotExist)
}

func (s *RealmTestSuite) TestSchemaFile() {
	name := filepath.Join(s.T().TempDir(), "schema.yaml")
	s.Require().NoError(os.WriteFile(name, []byte("- name: Dog\n  properties:\n    name: string\n"), 0o600))

	r, err := Open(s.ctx, WithSchemaFile(name), WithSchema(declarations()...))
	s.Require().NoError(err)
	defer r.Close()
	s.Len(r.Schema(), 3)
	s.Equal("Dog", r.Schema()[2].Name)
}

func (s *RealmTestSuite) TestCreateAndRead() {
	john := s.create(person{Name: "John", Age: 30})

	age, err := s.r.Get(john, "age")
	s.NoError(err)
	s.Equal(int64(30), age)
	nickname, err := s.r.Get(john, "nickname")
	s.NoError(err)
	s.Equal("none", nickname)

	found, ok, err := s.r.ObjectForPrimaryKey("Person", "John")
	s.NoError(err)
	s.True(ok)
	s.Equal(john.Key(), found.Key())

	_, ok, err = s.r.ObjectForPrimaryKey("Person", "Nobody")
	s.NoError(err)
	s.False(ok)
	_, _, err = s.r.ObjectForPrimaryKey("Person", 1)
	s.ErrorAs(err, new(domain.ErrValueType))
	_, _, err = s.r.ObjectForPrimaryKey("Address", "x")
	s.ErrorAs(err, new(domain.ErrSchema))
	_, _, err = s.r.ObjectForPrimaryKey("Nope", "x")
	s.ErrorAs(err, new(domain.ErrSchema))

	_, err = s.r.Get(john, "nope")
	s.ErrorAs(err, new(domain.ErrSchema))

	res, err := s.r.Objects(s.ctx, "Person")
	s.Require().NoError(err)
	s.True(res.Next())
	var p person
	s.NoError(res.Scan(s.ctx, &p))
	s.Equal(person{Name: "John", Age: 30, Nickname: "none"}, p)
}

func (s *RealmTestSuite) TestOutsideTransaction() {
	_, err := s.r.Create("Person", person{Name: "John"})
	s.ErrorIs(err, domain.ErrTransactionState)

	john := s.create(person{Name: "John"})
	s.ErrorIs(s.r.Update(john, map[string]any{"age": 1}), domain.ErrTransactionState)
	s.ErrorIs(s.r.Delete(john), domain.ErrTransactionState)
	s.False(s.r.IsInTransaction())
}

func (s *RealmTestSuite) TestWriteRollsBack() {
	john := s.create(person{Name: "John", Age: 1})

	errStop := errors.New("stop")
	err := s.r.Write(s.ctx, func() error {
		s.True(s.r.IsInTransaction())
		s.NoError(s.r.Update(john, map[string]any{"age": 2}))
		return errStop
	})
	s.ErrorIs(err, errStop)

	s.Panics(func() {
		_ = s.r.Write(s.ctx, func() error {
			s.NoError(s.r.Update(john, map[string]any{"age": 3}))
			panic("boom")
		})
	})
	s.False(s.r.IsInTransaction())

	age, err := s.r.Get(john, "age")
	s.NoError(err)
	s.Equal(int64(1), age)

	s.NoError(s.r.Write(s.ctx, func() error {
		return s.r.Delete(john)
	}))
	s.False(john.IsValid())
	_, err = s.r.Get(john, "age")
	s.ErrorIs(err, domain.ErrInvalidInstance)
}

func (s *RealmTestSuite) TestNestedWriteFailsFast() {
	john := s.create(person{Name: "John", Age: 1})

	done := make(chan error, 1)
	go func() {
		done <- s.r.Write(context.Background(), func() error {
			err := s.r.Write(context.Background(), func() error { return nil })
			s.ErrorIs(err, domain.ErrTransactionState)
			s.True(s.r.IsInTransaction())
			return s.r.Update(john, map[string]any{"age": 2})
		})
	}()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("nested write did not return")
	}

	age, err := s.r.Get(john, "age")
	s.NoError(err)
	s.Equal(int64(2), age)
}

func (s *RealmTestSuite) TestSingleWriter() {
	s.create(person{Name: "John", Age: 0})
	john, _, err := s.r.ObjectForPrimaryKey("Person", "John")
	s.Require().NoError(err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int64
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.r.Write(s.ctx, func() error {
				age, err := s.r.Get(john, "age")
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				return s.r.Update(john, map[string]any{"age": age.(int64) + 1})
			})
			if err != nil {
				s.ErrorIs(err, domain.ErrTransactionState)
				return
			}
			mu.Lock()
			committed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Positive(committed)
	age, err := s.r.Get(john, "age")
	s.NoError(err)
	s.Equal(committed, age)
	s.False(s.r.IsInTransaction())

	// the writer slot is released once Write returns
	s.NoError(s.r.Write(s.ctx, func() error { return nil }))
}

func (s *RealmTestSuite) TestCollections() {
	john := s.create(map[string]any{"name": "John", "tags": []string{"a"}})

	friends, err := s.r.List(john, "friends")
	s.Require().NoError(err)
	tags, err := s.r.Set(john, "tags")
	s.Require().NoError(err)
	labels, err := s.r.Dictionary(john, "labels")
	s.Require().NoError(err)

	var changes []domain.ChangeSet
	friends.AddListener(func(cs domain.ChangeSet) error {
		changes = append(changes, cs)
		return nil
	})

	s.NoError(s.r.Write(s.ctx, func() error {
		if err := friends.Push(map[string]any{"name": "Mary"}); err != nil {
			return err
		}
		if _, err := tags.Add("b"); err != nil {
			return err
		}
		return labels.Set("k", 1)
	}))
	s.Require().NoError(s.dispatcher.Flush(s.ctx))
	s.Equal([]domain.ChangeSet{{Insertions: []int{0}}}, changes)

	n, err := friends.Len()
	s.NoError(err)
	s.Equal(1, n)
	n, err = tags.Len()
	s.NoError(err)
	s.Equal(2, n)
	v, ok, err := labels.Get("k")
	s.NoError(err)
	s.True(ok)
	s.Equal(int64(1), v)

	_, err = s.r.List(john, "tags")
	s.ErrorContains(err, "not a list")
	_, err = s.r.Dictionary(john, "friends")
	s.ErrorContains(err, "not a dictionary")
	_, err = s.r.Set(john, "labels")
	s.ErrorContains(err, "not a set")
	_, err = s.r.List(nil, "friends")
	s.ErrorIs(err, domain.ErrInvalidInstance)
}

func (s *RealmTestSuite) TestEmbedded() {
	john := s.create(map[string]any{"name": "John", "address": map[string]any{"street": "Main"}})
	address, err := s.r.Get(john, "address")
	s.Require().NoError(err)
	street, err := address.(domain.Object).Get("street")
	s.NoError(err)
	s.Equal("Main", street)
}

func (s *RealmTestSuite) TestCloseAndLogging() {
	core, logs := observer.New(zap.DebugLevel)
	r, err := Open(s.ctx, WithSchema(declarations()...), WithLogger(zap.New(core)), WithDispatcher(s.dispatcher))
	s.Require().NoError(err)

	s.Require().NoError(r.Write(s.ctx, func() error {
		_, err := r.Create("Person", person{Name: "John"})
		return err
	}))
	_ = r.Write(s.ctx, func() error { return errors.New("stop") })

	s.NoError(r.Close())
	s.NoError(r.Close())
	s.ErrorIs(r.Write(s.ctx, func() error { return nil }), domain.ErrSessionClosed)

	s.Equal(1, logs.FilterMessage("realm opened").Len())
	s.Equal(1, logs.FilterMessage("write transaction committed").Len())
	s.Equal(1, logs.FilterMessage("write transaction cancelled").Len())
	s.Equal(1, logs.FilterMessage("realm closed").Len())
}

func TestRealmTestSuite(t *testing.T) {
	suite.Run(t, new(RealmTestSuite))
}

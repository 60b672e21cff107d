package memengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

type CollectionsTestSuite struct {
	suite.Suite
	ctx  context.Context
	s    *Session
	john domain.Object
}

func (s *CollectionsTestSuite) SetupTest() {
	s.ctx = context.Background()
	sess, err := NewEngine().Open(s.ctx, testSchema())
	s.Require().NoError(err)
	s.s = sess.(*Session)

	s.write(func() {
		s.john, err = s.s.Create("Person", "John")
		s.Require().NoError(err)
	})
}

func (s *CollectionsTestSuite) write(fn func()) {
	s.Require().NoError(s.s.BeginWrite(s.ctx))
	fn()
	s.Require().NoError(s.s.CommitWrite(s.ctx))
}

// record registers a callback storing every change set it receives.
func (s *CollectionsTestSuite) record(h domain.CollectionHandle) (*[]domain.ChangeSet, func()) {
	var changes []domain.ChangeSet
	remove, err := h.AddChangeCallback(func(cs domain.ChangeSet) {
		changes = append(changes, cs)
	})
	s.Require().NoError(err)
	return &changes, remove
}

func (s *CollectionsTestSuite) TestList() {
	scores, err := s.john.ListHandle("scores")
	s.Require().NoError(err)
	s.True(scores.IsValid())

	s.write(func() {
		for i, v := range []int64{1, 2, 3} {
			s.NoError(scores.Insert(i, v))
		}
	})

	size, err := scores.Size()
	s.NoError(err)
	s.Equal(3, size)
	v, err := scores.Get(1)
	s.NoError(err)
	s.Equal(int64(2), v)

	_, err = scores.Get(3)
	s.ErrorAs(err, &domain.ErrIndexOutOfRange{})
	s.ErrorIs(scores.Insert(0, int64(0)), domain.ErrNotInTransaction)

	s.write(func() {
		s.ErrorAs(scores.Insert(5, int64(0)), new(domain.ErrIndexOutOfRange))
		s.ErrorAs(scores.Insert(0, "x"), new(domain.ErrValueType))
		s.ErrorAs(scores.Set(0, nil), new(domain.ErrValueType))
		_, err := scores.InsertEmbedded(0)
		s.ErrorContains(err, "not embedded objects")
	})

	snap, err := scores.Snapshot()
	s.NoError(err)
	s.Equal([]any{int64(1), int64(2), int64(3)}, snap)
}

func (s *CollectionsTestSuite) TestListChanges() {
	scores, err := s.john.ListHandle("scores")
	s.Require().NoError(err)
	s.write(func() {
		for i, v := range []int64{0, 1, 2, 3, 4} {
			s.NoError(scores.Insert(i, v))
		}
	})

	changes, remove := s.record(scores)

	s.write(func() {
		s.NoError(scores.Remove(1))           // 0 2 3 4
		s.NoError(scores.Set(1, int64(20)))   // 0 20 3 4
		s.NoError(scores.Insert(0, int64(9))) // 9 0 20 3 4
		s.NoError(scores.Insert(5, int64(8))) // 9 0 20 3 4 8
		s.NoError(scores.Remove(4))           // 9 0 20 3 8
	})
	s.Equal([]domain.ChangeSet{{
		Deletions:     []int{1, 4},
		Insertions:    []int{0, 4},
		Modifications: []int{2},
	}}, *changes)

	// cancelled transactions notify nothing
	s.Require().NoError(s.s.BeginWrite(s.ctx))
	s.NoError(scores.Remove(0))
	s.NoError(s.s.CancelWrite())

	// transactions not touching the list notify nothing
	s.write(func() {
		s.NoError(s.john.Set("age", int64(3)))
	})
	s.Len(*changes, 1)

	remove()
	s.write(func() {
		s.NoError(scores.Remove(0))
	})
	s.Len(*changes, 1)
}

func (s *CollectionsTestSuite) TestEmbeddedList() {
	var pet domain.Object
	s.write(func() {
		var err error
		pet, err = s.s.Create("Pet", nil)
		s.Require().NoError(err)
	})
	addresses, err := pet.ListHandle("addresses")
	s.Require().NoError(err)

	var first, second domain.Object
	s.write(func() {
		first, err = addresses.InsertEmbedded(0)
		s.Require().NoError(err)
		s.NoError(first.Set("street", "First"))
		second, err = addresses.InsertEmbedded(1)
		s.Require().NoError(err)

		s.ErrorContains(addresses.Insert(0, first.Link()), "embedded slot")

		replaced, err := addresses.SetEmbedded(1)
		s.NoError(err)
		s.False(second.IsValid())
		second = replaced

		s.NoError(addresses.Remove(0))
		s.False(first.IsValid())
	})

	snap, err := addresses.Snapshot()
	s.NoError(err)
	s.Equal([]any{second.Link()}, snap)
}

func (s *CollectionsTestSuite) TestDictionary() {
	pets, err := s.john.DictionaryHandle("pets")
	s.Require().NoError(err)

	var rex, tom domain.Object
	s.write(func() {
		rex, err = s.s.Create("Pet", nil)
		s.Require().NoError(err)
		tom, err = s.s.Create("Pet", nil)
		s.Require().NoError(err)
		s.NoError(pets.Insert("b", rex.Link()))
		s.NoError(pets.Insert("a", tom.Link()))
		s.NoError(pets.Insert("c", nil))
		s.ErrorAs(pets.Insert("d", s.john.Link()), new(domain.ErrValueType))
	})

	keys, err := pets.KeysSnapshot()
	s.NoError(err)
	s.Equal([]string{"b", "a", "c"}, keys)
	values, err := pets.ValuesSnapshot()
	s.NoError(err)
	s.Equal([]any{rex.Link(), tom.Link(), nil}, values)

	v, ok, err := pets.TryGet("a")
	s.NoError(err)
	s.True(ok)
	s.Equal(tom.Link(), v)
	_, ok, err = pets.TryGet("z")
	s.NoError(err)
	s.False(ok)

	changes, _ := s.record(pets)
	s.write(func() {
		existed, err := pets.TryErase("z")
		s.NoError(err)
		s.False(existed)

		existed, err = pets.TryErase("b")
		s.NoError(err)
		s.True(existed)
		s.NoError(pets.Insert("a", rex.Link()))
		s.NoError(pets.Insert("d", nil))
		// inserted and erased in the same transaction
		s.NoError(pets.Insert("e", nil))
		_, err = pets.TryErase("e")
		s.NoError(err)
	})
	s.Equal([]domain.ChangeSet{{
		DeletedKeys:  []string{"b"},
		ModifiedKeys: []string{"a"},
		InsertedKeys: []string{"d"},
	}}, *changes)

	keys, err = pets.KeysSnapshot()
	s.NoError(err)
	s.Equal([]string{"a", "c", "d"}, keys)
	keys, values, err = pets.EntriesSnapshot()
	s.NoError(err)
	s.Equal([]string{"a", "c", "d"}, keys)
	s.Equal([]any{rex.Link(), nil, nil}, values)

	// deleting a linked object clears the value and reports a modification
	s.write(func() {
		s.NoError(s.s.Delete(rex))
	})
	v, ok, err = pets.TryGet("a")
	s.NoError(err)
	s.True(ok)
	s.Nil(v)
	s.Equal(domain.ChangeSet{ModifiedKeys: []string{"a"}}, (*changes)[1])
}

func (s *CollectionsTestSuite) TestEmbeddedDictionary() {
	var pet domain.Object
	s.write(func() {
		var err error
		pet, err = s.s.Create("Pet", nil)
		s.Require().NoError(err)
	})
	places, err := pet.DictionaryHandle("places")
	s.Require().NoError(err)

	s.write(func() {
		home, err := places.InsertEmbedded("home")
		s.Require().NoError(err)
		s.NoError(home.Set("street", "Main"))

		work, err := places.InsertEmbedded("home")
		s.Require().NoError(err)
		s.False(home.IsValid())
		s.True(work.IsValid())

		_, err = places.TryErase("home")
		s.NoError(err)
		s.False(work.IsValid())
	})
}

func (s *CollectionsTestSuite) TestSet() {
	tags, err := s.john.SetHandle("tags")
	s.Require().NoError(err)
	changes, _ := s.record(tags)

	s.write(func() {
		for _, tag := range []string{"a", "b", "a", "c"} {
			_, err := tags.Insert(tag)
			s.NoError(err)
		}
		added, err := tags.Insert("b")
		s.NoError(err)
		s.False(added)
		_, err = tags.Insert(1)
		s.ErrorAs(err, new(domain.ErrValueType))
	})

	snap, err := tags.Snapshot()
	s.NoError(err)
	s.Equal([]any{"a", "b", "c"}, snap)
	i, err := tags.Find("c")
	s.NoError(err)
	s.Equal(2, i)
	i, err = tags.Find("z")
	s.NoError(err)
	s.Equal(-1, i)

	s.write(func() {
		removed, err := tags.Remove("a")
		s.NoError(err)
		s.True(removed)
		removed, err = tags.Remove("a")
		s.NoError(err)
		s.False(removed)
	})
	v, err := tags.Get(0)
	s.NoError(err)
	s.Equal("b", v)

	s.Equal([]domain.ChangeSet{
		{Insertions: []int{0, 1, 2}},
		{Deletions: []int{0}},
	}, *changes)
}

func (s *CollectionsTestSuite) TestHandleErrors() {
	_, err := s.john.ListHandle("tags")
	s.ErrorContains(err, "is not a list")
	_, err = s.john.SetHandle("scores")
	s.ErrorContains(err, "is not a set")
	_, err = s.john.DictionaryHandle("nope")
	s.ErrorAs(err, new(domain.ErrSchema))
	_, err = s.john.Get("scores")
	s.ErrorContains(err, "collection handle")
}

func (s *CollectionsTestSuite) TestInvalidation() {
	scores, err := s.john.ListHandle("scores")
	s.Require().NoError(err)
	changes, _ := s.record(scores)

	s.write(func() {
		s.NoError(scores.Insert(0, int64(1)))
		s.NoError(s.s.Delete(s.john))
	})
	s.Equal([]domain.ChangeSet{{Invalidated: true}}, *changes)

	s.False(scores.IsValid())
	_, err = scores.Size()
	s.ErrorIs(err, domain.ErrInvalidInstance)
	_, err = scores.AddChangeCallback(func(domain.ChangeSet) {})
	s.ErrorIs(err, domain.ErrInvalidInstance)
	_, err = s.john.ListHandle("scores")
	s.ErrorIs(err, domain.ErrObjectNotFound)
}

func TestCollectionsTestSuite(t *testing.T) {
	suite.Run(t, new(CollectionsTestSuite))
}

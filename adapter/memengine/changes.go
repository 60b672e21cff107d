package memengine

import (
	"maps"
	"slices"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// address identifies a collection property of one object.
type address struct {
	link     domain.Link
	property string
}

// origin tracks where an element of a positional collection came from.
// Elements inserted during the transaction have old == -1.
type origin struct {
	old      int
	modified bool
}

// journal records the changes made to one collection during a write
// transaction. Positional collections use tags and deleted, dictionaries use
// oldKeys and touched.
type journal struct {
	tags    []origin
	deleted []int

	oldKeys map[string]bool
	touched []string

	invalidated bool
}

// positional returns the journal of a list or set with size elements before
// the first change.
func (s *Session) positional(addr address, size int) *journal {
	if j, ok := s.journals[addr]; ok {
		return j
	}
	j := &journal{tags: make([]origin, size)}
	for i := range j.tags {
		j.tags[i].old = i
	}
	s.journals[addr] = j
	s.journalOrder = append(s.journalOrder, addr)
	return j
}

// keyed returns the journal of a dictionary whose keys were keys before the
// first change.
func (s *Session) keyed(addr address, keys []string) *journal {
	if j, ok := s.journals[addr]; ok {
		return j
	}
	j := &journal{oldKeys: make(map[string]bool, len(keys))}
	for _, k := range keys {
		j.oldKeys[k] = true
	}
	s.journals[addr] = j
	s.journalOrder = append(s.journalOrder, addr)
	return j
}

// invalidate marks the collection at addr as gone with its owner.
func (s *Session) invalidate(addr address) {
	j, ok := s.journals[addr]
	if !ok {
		j = &journal{}
		s.journals[addr] = j
		s.journalOrder = append(s.journalOrder, addr)
	}
	j.invalidated = true
}

func (j *journal) insert(i int) {
	j.tags = slices.Insert(j.tags, i, origin{old: -1})
}

func (j *journal) remove(i int) {
	if old := j.tags[i].old; old >= 0 {
		j.deleted = append(j.deleted, old)
	}
	j.tags = slices.Delete(j.tags, i, i+1)
}

func (j *journal) modify(i int) {
	j.tags[i].modified = true
}

func (j *journal) touch(key string) {
	if !slices.Contains(j.touched, key) {
		j.touched = append(j.touched, key)
	}
}

// changeSet builds the change set reported for the journal. current holds
// the dictionary keys present at commit time.
func (j *journal) changeSet(current map[string]any) domain.ChangeSet {
	if j.invalidated {
		return domain.ChangeSet{Invalidated: true}
	}

	var cs domain.ChangeSet
	if j.oldKeys != nil {
		for _, k := range j.touched {
			_, now := current[k]
			switch before := j.oldKeys[k]; {
			case before && now:
				cs.ModifiedKeys = append(cs.ModifiedKeys, k)
			case before:
				cs.DeletedKeys = append(cs.DeletedKeys, k)
			case now:
				cs.InsertedKeys = append(cs.InsertedKeys, k)
			}
		}
		return cs
	}

	cs.Deletions = slices.Sorted(slices.Values(j.deleted))
	for i, tag := range j.tags {
		switch {
		case tag.old < 0:
			cs.Insertions = append(cs.Insertions, i)
		case tag.modified:
			cs.Modifications = append(cs.Modifications, i)
		}
	}
	return cs
}

// delivery is a change set waiting to be handed to a callback once the
// session lock is released.
type delivery struct {
	callback domain.ChangeCallback
	changes  domain.ChangeSet
}

// collectDeliveries turns the journals of the ending transaction into
// deliveries and resets them. Callbacks of invalidated collections are
// dropped after their last delivery.
func (s *Session) collectDeliveries() []delivery {
	var res []delivery
	for _, addr := range s.journalOrder {
		callbacks := s.callbacks[addr]
		if len(callbacks) == 0 {
			continue
		}
		j := s.journals[addr]

		var current map[string]any
		if rec := s.record(addr.link); rec != nil {
			if d := rec.dicts[addr.property]; d != nil {
				current = d.values
			}
		}
		cs := j.changeSet(current)
		if cs.Empty() {
			continue
		}
		for _, id := range slices.Sorted(maps.Keys(callbacks)) {
			res = append(res, delivery{callback: callbacks[id], changes: cs})
		}
		if cs.Invalidated {
			delete(s.callbacks, addr)
		}
	}
	s.resetJournals()
	return res
}

func (s *Session) resetJournals() {
	s.journals = make(map[address]*journal)
	s.journalOrder = nil
}

// addCallback registers cb for the collection at addr.
func (s *Session) addCallback(addr address, cb domain.ChangeCallback) func() {
	s.nextCallback++
	id := s.nextCallback
	if s.callbacks[addr] == nil {
		s.callbacks[addr] = make(map[int]domain.ChangeCallback)
	}
	s.callbacks[addr][id] = cb
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.callbacks[addr], id)
		if len(s.callbacks[addr]) == 0 {
			delete(s.callbacks, addr)
		}
	}
}

package memengine

import (
	"slices"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// handle holds what list, dictionary and set handles share.
type handle struct {
	s       *Session
	addr    address
	element domain.PropertySchema
}

// IsValid implements [domain.CollectionHandle].
func (h *handle) IsValid() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.record(h.addr.link) != nil
}

// AddChangeCallback implements [domain.CollectionHandle].
func (h *handle) AddChangeCallback(cb domain.ChangeCallback) (func(), error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if _, err := h.resolve("add change callback", false); err != nil {
		return nil, err
	}
	return h.s.addCallback(h.addr, cb), nil
}

// resolve returns the owner record. Callers hold the lock.
func (h *handle) resolve(op string, write bool) (*record, error) {
	check := h.s.checkRead
	if write {
		check = h.s.checkWrite
	}
	if err := check(op); err != nil {
		return nil, err
	}
	rec := h.s.record(h.addr.link)
	if rec == nil {
		return nil, domain.ErrEngine{Op: op, Err: domain.ErrInvalidInstance}
	}
	return rec, nil
}

func (h *handle) checkIndex(op string, index, size int) error {
	if index < 0 || index >= size {
		return domain.ErrEngine{Op: op, Err: domain.ErrIndexOutOfRange{Index: index, Size: size}}
	}
	return nil
}

// embedded reports whether elements are embedded objects. Callers hold the
// lock.
func (h *handle) embedded() bool {
	if h.element.Type != domain.TypeObject {
		return false
	}
	return h.s.tables[h.element.ObjectType].schema.Embedded
}

// checkElement validates a value written directly into the collection.
// Embedded elements are only written through the embedded slot calls.
func (h *handle) checkElement(op string, v any) (any, error) {
	if h.embedded() {
		return nil, domain.ErrEngine{Op: op, Err: domain.ErrSchema{
			ObjectType: h.addr.link.ObjectType,
			Property:   h.addr.property,
			Message:    "embedded objects must be inserted through an embedded slot",
		}}
	}
	v, err := h.s.checkValue(h.element, v)
	if err != nil {
		return nil, domain.ErrEngine{Op: op, Err: err}
	}
	return v, nil
}

// list implements [domain.ListHandle].
type list struct {
	handle
}

func (l *list) Size() (int, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, err := l.resolve("size", false)
	if err != nil {
		return 0, err
	}
	return len(rec.lists[l.addr.property]), nil
}

func (l *list) Get(index int) (any, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, err := l.resolve("get", false)
	if err != nil {
		return nil, err
	}
	values := rec.lists[l.addr.property]
	if err := l.checkIndex("get", index, len(values)); err != nil {
		return nil, err
	}
	return values[index], nil
}

func (l *list) Set(index int, value any) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, err := l.resolve("set", true)
	if err != nil {
		return err
	}
	values := rec.lists[l.addr.property]
	if err := l.checkIndex("set", index, len(values)); err != nil {
		return err
	}
	v, err := l.checkElement("set", value)
	if err != nil {
		return err
	}
	l.s.positional(l.addr, len(values)).modify(index)
	values[index] = v
	return nil
}

func (l *list) Insert(index int, value any) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, err := l.resolve("insert", true)
	if err != nil {
		return err
	}
	v, err := l.checkElement("insert", value)
	if err != nil {
		return err
	}
	return l.insert(rec, "insert", index, v)
}

// insert stores v at index, which may be equal to the list size. Callers
// hold the lock.
func (l *list) insert(rec *record, op string, index int, v any) error {
	values := rec.lists[l.addr.property]
	if err := l.checkIndex(op, index, len(values)+1); err != nil {
		return err
	}
	l.s.positional(l.addr, len(values)).insert(index)
	rec.lists[l.addr.property] = slices.Insert(values, index, v)
	return nil
}

func (l *list) Remove(index int) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, err := l.resolve("remove", true)
	if err != nil {
		return err
	}
	values := rec.lists[l.addr.property]
	if err := l.checkIndex("remove", index, len(values)); err != nil {
		return err
	}
	old := values[index]
	l.s.positional(l.addr, len(values)).remove(index)
	rec.lists[l.addr.property] = slices.Delete(values, index, index+1)
	l.s.replaceOwned(old)
	return nil
}

func (l *list) InsertEmbedded(index int) (domain.Object, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, err := l.resolve("insert embedded", true)
	if err != nil {
		return nil, err
	}
	if !l.embedded() {
		return nil, l.notEmbedded("insert embedded")
	}
	if err := l.checkIndex("insert embedded", index, len(rec.lists[l.addr.property])+1); err != nil {
		return nil, err
	}
	child, err := l.s.newEmbedded(l.element.ObjectType)
	if err != nil {
		return nil, domain.ErrEngine{Op: "insert embedded", Err: err}
	}
	return child, l.insert(rec, "insert embedded", index, child.link)
}

func (l *list) SetEmbedded(index int) (domain.Object, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, err := l.resolve("set embedded", true)
	if err != nil {
		return nil, err
	}
	if !l.embedded() {
		return nil, l.notEmbedded("set embedded")
	}
	values := rec.lists[l.addr.property]
	if err := l.checkIndex("set embedded", index, len(values)); err != nil {
		return nil, err
	}
	child, err := l.s.newEmbedded(l.element.ObjectType)
	if err != nil {
		return nil, domain.ErrEngine{Op: "set embedded", Err: err}
	}
	l.s.positional(l.addr, len(values)).modify(index)
	old := values[index]
	values[index] = child.link
	l.s.replaceOwned(old)
	return child, nil
}

func (l *list) notEmbedded(op string) error {
	return domain.ErrEngine{Op: op, Err: domain.ErrSchema{
		ObjectType: l.addr.link.ObjectType,
		Property:   l.addr.property,
		Message:    "elements are not embedded objects",
	}}
}

func (l *list) Snapshot() ([]any, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, err := l.resolve("snapshot", false)
	if err != nil {
		return nil, err
	}
	return cloneValues(rec.lists[l.addr.property]), nil
}

// dictionaryHandle implements [domain.DictionaryHandle].
type dictionaryHandle struct {
	handle
}

func (d *dictionaryHandle) Size() (int, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	rec, err := d.resolve("size", false)
	if err != nil {
		return 0, err
	}
	return len(rec.dicts[d.addr.property].keys), nil
}

func (d *dictionaryHandle) TryGet(key string) (any, bool, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	rec, err := d.resolve("get", false)
	if err != nil {
		return nil, false, err
	}
	v, ok := rec.dicts[d.addr.property].values[key]
	return v, ok, nil
}

func (d *dictionaryHandle) Insert(key string, value any) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	rec, err := d.resolve("insert", true)
	if err != nil {
		return err
	}
	v, err := d.checkElement("insert", value)
	if err != nil {
		return err
	}
	d.store(rec, key, v)
	return nil
}

// store sets key to v, keeping the position of existing keys. Callers hold
// the lock.
func (d *dictionaryHandle) store(rec *record, key string, v any) {
	dict := rec.dicts[d.addr.property]
	d.s.keyed(d.addr, dict.keys).touch(key)
	old, exists := dict.values[key]
	if !exists {
		dict.keys = append(dict.keys, key)
	}
	dict.values[key] = v
	if exists {
		d.s.replaceOwned(old)
	}
}

func (d *dictionaryHandle) InsertEmbedded(key string) (domain.Object, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	rec, err := d.resolve("insert embedded", true)
	if err != nil {
		return nil, err
	}
	if !d.embedded() {
		return nil, domain.ErrEngine{Op: "insert embedded", Err: domain.ErrSchema{
			ObjectType: d.addr.link.ObjectType,
			Property:   d.addr.property,
			Message:    "values are not embedded objects",
		}}
	}
	child, err := d.s.newEmbedded(d.element.ObjectType)
	if err != nil {
		return nil, domain.ErrEngine{Op: "insert embedded", Err: err}
	}
	d.store(rec, key, child.link)
	return child, nil
}

func (d *dictionaryHandle) TryErase(key string) (bool, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	rec, err := d.resolve("erase", true)
	if err != nil {
		return false, err
	}
	dict := rec.dicts[d.addr.property]
	old, ok := dict.values[key]
	if !ok {
		return false, nil
	}
	d.s.keyed(d.addr, dict.keys).touch(key)
	delete(dict.values, key)
	dict.keys = slices.DeleteFunc(dict.keys, func(k string) bool { return k == key })
	d.s.replaceOwned(old)
	return true, nil
}

func (d *dictionaryHandle) KeysSnapshot() ([]string, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	rec, err := d.resolve("keys", false)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.dicts[d.addr.property].keys), nil
}

func (d *dictionaryHandle) ValuesSnapshot() ([]any, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	rec, err := d.resolve("values", false)
	if err != nil {
		return nil, err
	}
	return rec.dicts[d.addr.property].ordered(), nil
}

func (d *dictionaryHandle) EntriesSnapshot() ([]string, []any, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	rec, err := d.resolve("entries", false)
	if err != nil {
		return nil, nil, err
	}
	dict := rec.dicts[d.addr.property]
	return slices.Clone(dict.keys), dict.ordered(), nil
}

// ordered returns the values in key order. Callers hold the lock.
func (dict *dictionary) ordered() []any {
	res := make([]any, len(dict.keys))
	for i, k := range dict.keys {
		res[i] = dict.values[k]
	}
	return res
}

// set implements [domain.SetHandle]. Elements keep insertion order.
type set struct {
	handle
}

func (st *set) Size() (int, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	rec, err := st.resolve("size", false)
	if err != nil {
		return 0, err
	}
	return len(rec.sets[st.addr.property]), nil
}

func (st *set) Get(index int) (any, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	rec, err := st.resolve("get", false)
	if err != nil {
		return nil, err
	}
	values := rec.sets[st.addr.property]
	if err := st.checkIndex("get", index, len(values)); err != nil {
		return nil, err
	}
	return values[index], nil
}

// find returns the position of v or -1. Callers hold the lock.
func (st *set) find(values []any, v any) (int, error) {
	for i, el := range values {
		if !st.s.comparer.Comparable(el, v) {
			continue
		}
		comp, err := st.s.comparer.Compare(el, v)
		if err != nil {
			return -1, err
		}
		if comp == 0 {
			return i, nil
		}
	}
	return -1, nil
}

func (st *set) Insert(value any) (bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	rec, err := st.resolve("insert", true)
	if err != nil {
		return false, err
	}
	v, err := st.checkElement("insert", value)
	if err != nil {
		return false, err
	}
	values := rec.sets[st.addr.property]
	i, err := st.find(values, v)
	if err != nil {
		return false, domain.ErrEngine{Op: "insert", Err: err}
	}
	if i >= 0 {
		return false, nil
	}
	st.s.positional(st.addr, len(values)).insert(len(values))
	rec.sets[st.addr.property] = append(values, v)
	return true, nil
}

func (st *set) Remove(value any) (bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	rec, err := st.resolve("remove", true)
	if err != nil {
		return false, err
	}
	values := rec.sets[st.addr.property]
	i, err := st.find(values, value)
	if err != nil {
		return false, domain.ErrEngine{Op: "remove", Err: err}
	}
	if i < 0 {
		return false, nil
	}
	st.s.positional(st.addr, len(values)).remove(i)
	rec.sets[st.addr.property] = slices.Delete(values, i, i+1)
	return true, nil
}

func (st *set) Find(value any) (int, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	rec, err := st.resolve("find", false)
	if err != nil {
		return -1, err
	}
	i, err := st.find(rec.sets[st.addr.property], value)
	if err != nil {
		return -1, domain.ErrEngine{Op: "find", Err: err}
	}
	return i, nil
}

func (st *set) Snapshot() ([]any, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	rec, err := st.resolve("snapshot", false)
	if err != nil {
		return nil, err
	}
	return cloneValues(rec.sets[st.addr.property]), nil
}

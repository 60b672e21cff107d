package memengine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
	"github.com/vinicius-lino-figueiredo/gerealm/pkg/ctxsync"
)

// record holds the state of one object. Object values are stored as
// [domain.Link].
type record struct {
	fields map[string]any
	lists  map[string][]any
	sets   map[string][]any
	dicts  map[string]*dictionary
}

// dictionary keeps keys in insertion order.
type dictionary struct {
	keys   []string
	values map[string]any
}

// table holds every object of one type.
type table struct {
	schema  domain.ObjectSchema
	objects map[domain.ObjectKey]*record
	order   []domain.ObjectKey
	// nil when the type has no primary key
	primaryKey *primaryKeyIndex
}

// Session implements [domain.Session].
type Session struct {
	mu sync.Mutex
	// writeLock is held while a write transaction is active.
	writeLock *ctxsync.Mutex

	schema []domain.ObjectSchema
	tables map[string]*table
	closed bool
	inTx   bool
	backup map[string]*table

	journals     map[address]*journal
	journalOrder []address
	callbacks    map[address]map[int]domain.ChangeCallback
	nextCallback int

	idGenerator domain.IDGenerator
	comparer    domain.Comparer
	logger      *zap.Logger
}

func newSession(e *Engine, schema []domain.ObjectSchema) *Session {
	s := &Session{
		writeLock:   ctxsync.NewMutex(),
		schema:      slices.Clone(schema),
		tables:      make(map[string]*table, len(schema)),
		journals:    make(map[address]*journal),
		callbacks:   make(map[address]map[int]domain.ChangeCallback),
		idGenerator: e.idGenerator,
		comparer:    e.comparer,
		logger:      e.logger,
	}
	for _, obj := range schema {
		t := &table{
			schema:  obj,
			objects: make(map[domain.ObjectKey]*record),
		}
		if obj.PrimaryKey != "" {
			t.primaryKey = newPrimaryKeyIndex(obj.Name, s.comparer)
		}
		s.tables[obj.Name] = t
	}
	return s
}

// Schema implements [domain.Session].
func (s *Session) Schema() []domain.ObjectSchema {
	return slices.Clone(s.schema)
}

// ObjectSchema implements [domain.Session].
func (s *Session) ObjectSchema(name string) (domain.ObjectSchema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return domain.ObjectSchema{}, false
	}
	return t.schema, true
}

// IsValid implements [domain.Session].
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// IsInTransaction implements [domain.Session].
func (s *Session) IsInTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx
}

// BeginWrite implements [domain.Session].
func (s *Session) BeginWrite(ctx context.Context) error {
	if err := s.writeLock.Lock(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.writeLock.Unlock()
		return domain.ErrEngine{Op: "begin write", Err: domain.ErrSessionClosed}
	}
	s.inTx = true
	s.backup = cloneTables(s.tables)
	s.logger.Debug("write transaction started")
	return nil
}

// CommitWrite implements [domain.Session]. Change callbacks run after the
// session lock is released, in registration order.
func (s *Session) CommitWrite(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if err := s.checkWrite("commit write"); err != nil {
		s.mu.Unlock()
		return err
	}
	deliveries := s.collectDeliveries()
	s.inTx = false
	s.backup = nil
	s.logger.Debug("write transaction committed", zap.Int("notifications", len(deliveries)))
	s.mu.Unlock()
	s.writeLock.Unlock()

	for _, d := range deliveries {
		d.callback(d.changes)
	}
	return nil
}

// CancelWrite implements [domain.Session].
func (s *Session) CancelWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWrite("cancel write"); err != nil {
		return err
	}
	s.rollback()
	return nil
}

// rollback restores the state saved when the transaction started. Callers
// hold the lock and the transaction.
func (s *Session) rollback() {
	s.tables = s.backup
	for _, t := range s.tables {
		if t.primaryKey != nil {
			if err := t.primaryKey.reset(t); err != nil {
				panic(fmt.Errorf("rebuilding %s primary key index: %w", t.schema.Name, err))
			}
		}
	}
	s.backup = nil
	s.inTx = false
	s.resetJournals()
	s.logger.Debug("write transaction cancelled")
	s.writeLock.Unlock()
}

// checkWrite fails unless the session is open and in a write transaction.
func (s *Session) checkWrite(op string) error {
	if s.closed {
		return domain.ErrEngine{Op: op, Err: domain.ErrSessionClosed}
	}
	if !s.inTx {
		return domain.ErrEngine{Op: op, Err: domain.ErrNotInTransaction}
	}
	return nil
}

// checkRead fails if the session is closed.
func (s *Session) checkRead(op string) error {
	if s.closed {
		return domain.ErrEngine{Op: op, Err: domain.ErrSessionClosed}
	}
	return nil
}

// Create implements [domain.Session].
func (s *Session) Create(objectType string, primaryKey any) (domain.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWrite("create"); err != nil {
		return nil, err
	}
	t, ok := s.tables[objectType]
	if !ok {
		return nil, domain.ErrEngine{Op: "create", Err: fmt.Errorf("%w: unknown object type %q", domain.ErrObjectNotFound, objectType)}
	}
	if t.schema.Embedded {
		return nil, domain.ErrEngine{Op: "create", Err: domain.ErrSchema{
			ObjectType: objectType,
			Message:    "embedded objects cannot be created directly",
		}}
	}

	key, err := s.newRecord(t)
	if err != nil {
		return nil, domain.ErrEngine{Op: "create", Err: err}
	}
	if t.primaryKey != nil {
		if err := s.setPrimaryKey(t, key, primaryKey); err != nil {
			s.dropRecord(t, key)
			return nil, domain.ErrEngine{Op: "create", Err: err}
		}
	}
	return &object{s: s, link: domain.Link{ObjectType: objectType, Key: key}}, nil
}

func (s *Session) setPrimaryKey(t *table, key domain.ObjectKey, value any) error {
	pk, _ := t.schema.Property(t.schema.PrimaryKey)
	v, err := s.checkValue(pk, value)
	if err != nil {
		return err
	}
	if err := t.primaryKey.insert(v, key); err != nil {
		return err
	}
	t.objects[key].fields[pk.Name] = v
	return nil
}

// newRecord adds an object of t holding the zero value of every property.
func (s *Session) newRecord(t *table) (domain.ObjectKey, error) {
	id, err := s.idGenerator.GenerateID()
	if err != nil {
		return "", err
	}
	key := domain.ObjectKey(id)
	if t.objects[key] != nil {
		return "", fmt.Errorf("generated object key %q is already in use", key)
	}

	rec := &record{
		fields: make(map[string]any),
		lists:  make(map[string][]any),
		sets:   make(map[string][]any),
		dicts:  make(map[string]*dictionary),
	}
	for _, p := range t.schema.Properties {
		switch p.Type {
		case domain.TypeList:
			rec.lists[p.Name] = []any{}
		case domain.TypeSet:
			rec.sets[p.Name] = []any{}
		case domain.TypeDictionary:
			rec.dicts[p.Name] = &dictionary{values: make(map[string]any)}
		default:
			rec.fields[p.Name] = zero(p)
		}
	}
	t.objects[key] = rec
	t.order = append(t.order, key)
	return key, nil
}

// dropRecord removes the object without any cascade.
func (s *Session) dropRecord(t *table, key domain.ObjectKey) {
	delete(t.objects, key)
	if i := slices.Index(t.order, key); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
}

// Object implements [domain.Session].
func (s *Session) Object(link domain.Link) domain.Object {
	return &object{s: s, link: link}
}

// FindByPrimaryKey implements [domain.Session].
func (s *Session) FindByPrimaryKey(objectType string, primaryKey any) (domain.Object, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRead("find"); err != nil {
		return nil, false, err
	}
	t, ok := s.tables[objectType]
	if !ok {
		return nil, false, domain.ErrEngine{Op: "find", Err: fmt.Errorf("%w: unknown object type %q", domain.ErrObjectNotFound, objectType)}
	}
	if t.primaryKey == nil {
		return nil, false, domain.ErrEngine{Op: "find", Err: domain.ErrSchema{
			ObjectType: objectType,
			Message:    "object type has no primary key",
		}}
	}
	pk, _ := t.schema.Property(t.schema.PrimaryKey)
	v, err := s.checkValue(pk, primaryKey)
	if err != nil {
		return nil, false, domain.ErrEngine{Op: "find", Err: err}
	}
	key, found, err := t.primaryKey.find(v)
	if err != nil {
		return nil, false, domain.ErrEngine{Op: "find", Err: err}
	}
	if !found {
		return nil, false, nil
	}
	return &object{s: s, link: domain.Link{ObjectType: objectType, Key: key}}, true, nil
}

// Delete implements [domain.Session].
func (s *Session) Delete(obj domain.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWrite("delete"); err != nil {
		return err
	}
	link := obj.Link()
	if s.record(link) == nil {
		return domain.ErrEngine{Op: "delete", Err: domain.ErrObjectNotFound}
	}
	if t := s.tables[link.ObjectType]; t.schema.Embedded {
		return domain.ErrEngine{Op: "delete", Err: domain.ErrSchema{
			ObjectType: link.ObjectType,
			Message:    "embedded objects are deleted through their owner",
		}}
	}
	s.deleteRecord(link)
	return nil
}

// Objects implements [domain.Session].
func (s *Session) Objects(objectType string) ([]domain.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRead("objects"); err != nil {
		return nil, err
	}
	t, ok := s.tables[objectType]
	if !ok {
		return nil, domain.ErrEngine{Op: "objects", Err: fmt.Errorf("%w: unknown object type %q", domain.ErrObjectNotFound, objectType)}
	}
	switch {
	case t.schema.Asymmetric:
		return nil, domain.ErrEngine{Op: "objects", Err: domain.ErrSchema{
			ObjectType: objectType,
			Message:    "asymmetric objects cannot be queried",
		}}
	case t.schema.Embedded:
		return nil, domain.ErrEngine{Op: "objects", Err: domain.ErrSchema{
			ObjectType: objectType,
			Message:    "embedded objects cannot be queried directly",
		}}
	}

	res := make([]domain.Object, len(t.order))
	for i, key := range t.order {
		res[i] = &object{s: s, link: domain.Link{ObjectType: objectType, Key: key}}
	}
	return res, nil
}

// Close implements [domain.Session]. An active write transaction is
// cancelled.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.inTx {
		s.rollback()
	}
	s.closed = true
	s.callbacks = make(map[address]map[int]domain.ChangeCallback)
	s.logger.Debug("session closed")
	return nil
}

// record returns the live record behind link, or nil. Callers hold the lock.
func (s *Session) record(link domain.Link) *record {
	if s.closed {
		return nil
	}
	t, ok := s.tables[link.ObjectType]
	if !ok {
		return nil
	}
	return t.objects[link.Key]
}

// deleteRecord removes the object at link, the embedded objects it owns and
// every link pointing to it.
func (s *Session) deleteRecord(link domain.Link) {
	t := s.tables[link.ObjectType]
	rec := t.objects[link.Key]
	if rec == nil {
		return
	}
	if t.primaryKey != nil {
		// the index always holds the keys of live objects
		_ = t.primaryKey.remove(rec.fields[t.schema.PrimaryKey], link.Key)
	}
	s.dropRecord(t, link.Key)

	for _, p := range t.schema.Properties {
		if p.Type.IsCollection() {
			s.invalidate(address{link: link, property: p.Name})
		}
		for _, child := range s.ownedLinks(rec, p) {
			s.deleteRecord(child)
		}
	}
	s.unlink(link)
}

// ownedLinks returns the embedded objects rec holds in property p.
func (s *Session) ownedLinks(rec *record, p domain.PropertySchema) []domain.Link {
	el := p.Element()
	if el.Type != domain.TypeObject || !s.tables[el.ObjectType].schema.Embedded {
		return nil
	}
	var values []any
	switch p.Type {
	case domain.TypeList:
		values = rec.lists[p.Name]
	case domain.TypeDictionary:
		values = slices.Collect(maps.Values(rec.dicts[p.Name].values))
	default:
		values = []any{rec.fields[p.Name]}
	}
	var res []domain.Link
	for _, v := range values {
		if l, ok := v.(domain.Link); ok {
			res = append(res, l)
		}
	}
	return res
}

// unlink clears every reference to target. Fields and dictionary values are
// set to nil, list and set elements are removed.
func (s *Session) unlink(target domain.Link) {
	for _, t := range s.tables {
		for _, key := range t.order {
			rec := t.objects[key]
			owner := domain.Link{ObjectType: t.schema.Name, Key: key}
			for _, p := range t.schema.Properties {
				el := p.Element()
				if el.Type != domain.TypeMixed && el.ObjectType != target.ObjectType {
					continue
				}
				s.unlinkProperty(owner, rec, p, target)
			}
		}
	}
}

func (s *Session) unlinkProperty(owner domain.Link, rec *record, p domain.PropertySchema, target domain.Link) {
	addr := address{link: owner, property: p.Name}
	switch p.Type {
	case domain.TypeList, domain.TypeSet:
		values := rec.lists
		if p.Type == domain.TypeSet {
			values = rec.sets
		}
		for i := len(values[p.Name]) - 1; i >= 0; i-- {
			if values[p.Name][i] == target {
				s.positional(addr, len(values[p.Name])).remove(i)
				values[p.Name] = slices.Delete(values[p.Name], i, i+1)
			}
		}
	case domain.TypeDictionary:
		d := rec.dicts[p.Name]
		for _, k := range d.keys {
			if d.values[k] == target {
				s.keyed(addr, d.keys).touch(k)
				d.values[k] = nil
			}
		}
	default:
		if rec.fields[p.Name] == target {
			rec.fields[p.Name] = nil
		}
	}
}

func cloneTables(tables map[string]*table) map[string]*table {
	res := make(map[string]*table, len(tables))
	for name, t := range tables {
		c := &table{
			schema:  t.schema,
			objects: make(map[domain.ObjectKey]*record, len(t.objects)),
			order:   slices.Clone(t.order),
		}
		if t.primaryKey != nil {
			c.primaryKey = &primaryKeyIndex{
				objectType: t.primaryKey.objectType,
				comparer:   t.primaryKey.comparer,
			}
		}
		for key, rec := range t.objects {
			c.objects[key] = rec.clone()
		}
		res[name] = c
	}
	return res
}

func (r *record) clone() *record {
	c := &record{
		fields: maps.Clone(r.fields),
		lists:  make(map[string][]any, len(r.lists)),
		sets:   make(map[string][]any, len(r.sets)),
		dicts:  make(map[string]*dictionary, len(r.dicts)),
	}
	for name, l := range r.lists {
		c.lists[name] = cloneValues(l)
	}
	for name, l := range r.sets {
		c.sets[name] = cloneValues(l)
	}
	for name, d := range r.dicts {
		c.dicts[name] = &dictionary{keys: slices.Clone(d.keys), values: maps.Clone(d.values)}
	}
	return c
}

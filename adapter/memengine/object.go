package memengine

import (
	"fmt"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// object implements [domain.Object]. It resolves its record on every call.
type object struct {
	s    *Session
	link domain.Link
}

func (o *object) Key() domain.ObjectKey { return o.link.Key }

func (o *object) ObjectType() string { return o.link.ObjectType }

func (o *object) Link() domain.Link { return o.link }

func (o *object) IsValid() bool {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return o.s.record(o.link) != nil
}

// property resolves the record and the schema of a non-collection property.
// Callers hold the lock.
func (o *object) property(op, name string) (*record, domain.PropertySchema, error) {
	if err := o.s.checkRead(op); err != nil {
		return nil, domain.PropertySchema{}, err
	}
	rec := o.s.record(o.link)
	if rec == nil {
		return nil, domain.PropertySchema{}, domain.ErrEngine{Op: op, Err: domain.ErrObjectNotFound}
	}
	p, ok := o.s.tables[o.link.ObjectType].schema.Property(name)
	if !ok {
		return nil, p, domain.ErrEngine{Op: op, Err: domain.ErrSchema{
			ObjectType: o.link.ObjectType,
			Property:   name,
			Message:    "property does not exist",
		}}
	}
	return rec, p, nil
}

func (o *object) Get(property string) (any, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	rec, p, err := o.property("get", property)
	if err != nil {
		return nil, err
	}
	if p.Type.IsCollection() {
		return nil, domain.ErrEngine{Op: "get", Err: o.collectionError(p)}
	}
	return rec.fields[p.Name], nil
}

func (o *object) Set(property string, value any) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if err := o.s.checkWrite("set"); err != nil {
		return err
	}
	rec, p, err := o.property("set", property)
	if err != nil {
		return err
	}
	if p.Type.IsCollection() {
		return domain.ErrEngine{Op: "set", Err: o.collectionError(p)}
	}
	if p.Name == o.s.tables[o.link.ObjectType].schema.PrimaryKey {
		return domain.ErrEngine{Op: "set", Err: domain.ErrSchema{
			ObjectType: o.link.ObjectType,
			Property:   p.Name,
			Message:    "primary keys cannot be changed",
		}}
	}
	v, err := o.s.checkValue(p, value)
	if err != nil {
		return domain.ErrEngine{Op: "set", Err: err}
	}
	o.s.replaceOwned(rec.fields[p.Name])
	rec.fields[p.Name] = v
	return nil
}

func (o *object) SetEmbedded(property string) (domain.Object, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if err := o.s.checkWrite("set embedded"); err != nil {
		return nil, err
	}
	rec, p, err := o.property("set embedded", property)
	if err != nil {
		return nil, err
	}
	if p.Type != domain.TypeObject || !o.s.tables[p.ObjectType].schema.Embedded {
		return nil, domain.ErrEngine{Op: "set embedded", Err: domain.ErrSchema{
			ObjectType: o.link.ObjectType,
			Property:   p.Name,
			Message:    "property does not hold an embedded object",
		}}
	}
	child, err := o.s.newEmbedded(p.ObjectType)
	if err != nil {
		return nil, domain.ErrEngine{Op: "set embedded", Err: err}
	}
	o.s.replaceOwned(rec.fields[p.Name])
	rec.fields[p.Name] = child.link
	return child, nil
}

func (o *object) collectionError(p domain.PropertySchema) error {
	return domain.ErrSchema{
		ObjectType: o.link.ObjectType,
		Property:   p.Name,
		Message:    fmt.Sprintf("property is a %s, use its collection handle", p.Type),
	}
}

// collection returns the address of a collection property of type typ.
func (o *object) collection(typ domain.PropertyType, property string) (address, domain.PropertySchema, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	op := string(typ)
	if err := o.s.checkRead(op); err != nil {
		return address{}, domain.PropertySchema{}, err
	}
	if o.s.record(o.link) == nil {
		return address{}, domain.PropertySchema{}, domain.ErrEngine{Op: op, Err: domain.ErrObjectNotFound}
	}
	p, ok := o.s.tables[o.link.ObjectType].schema.Property(property)
	if !ok || p.Type != typ {
		return address{}, p, domain.ErrEngine{Op: op, Err: domain.ErrSchema{
			ObjectType: o.link.ObjectType,
			Property:   property,
			Message:    fmt.Sprintf("property is not a %s", typ),
		}}
	}
	return address{link: o.link, property: p.Name}, p.Element(), nil
}

func (o *object) ListHandle(property string) (domain.ListHandle, error) {
	addr, el, err := o.collection(domain.TypeList, property)
	if err != nil {
		return nil, err
	}
	return &list{handle: handle{s: o.s, addr: addr, element: el}}, nil
}

func (o *object) DictionaryHandle(property string) (domain.DictionaryHandle, error) {
	addr, el, err := o.collection(domain.TypeDictionary, property)
	if err != nil {
		return nil, err
	}
	return &dictionaryHandle{handle: handle{s: o.s, addr: addr, element: el}}, nil
}

func (o *object) SetHandle(property string) (domain.SetHandle, error) {
	addr, el, err := o.collection(domain.TypeSet, property)
	if err != nil {
		return nil, err
	}
	return &set{handle: handle{s: o.s, addr: addr, element: el}}, nil
}

// newEmbedded creates an embedded object. Callers must store its link in the
// owner right away.
func (s *Session) newEmbedded(objectType string) (*object, error) {
	key, err := s.newRecord(s.tables[objectType])
	if err != nil {
		return nil, err
	}
	return &object{s: s, link: domain.Link{ObjectType: objectType, Key: key}}, nil
}

// replaceOwned deletes old when it is an embedded object about to lose its
// owner.
func (s *Session) replaceOwned(old any) {
	link, ok := old.(domain.Link)
	if !ok {
		return
	}
	if t, ok := s.tables[link.ObjectType]; ok && t.schema.Embedded {
		s.deleteRecord(link)
	}
}

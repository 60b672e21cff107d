package binding

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-reflect"
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Create creates a top-level object of objectType from value, a map or a
// struct. Properties missing from value get their declared default.
func (b *Binder) Create(objectType string, value any) (domain.Object, error) {
	schema, ok := b.session.ObjectSchema(objectType)
	if !ok {
		return nil, domain.ErrSchema{ObjectType: objectType, Message: "object type is not in the schema"}
	}
	fields, err := b.fields(value)
	if err != nil {
		return nil, domain.ErrValueType{Expected: objectType, Got: value}
	}

	var pk any
	if schema.PrimaryKey != "" {
		p, _ := schema.Property(schema.PrimaryKey)
		raw, found := lookup(fields, p)
		if !found {
			raw = p.Default
		}
		if pk, err = b.native(p, raw); err != nil {
			return nil, err
		}
	}

	obj, err := b.session.Create(objectType, pk)
	if err != nil {
		return nil, err
	}
	if err := b.populate(obj, fields, true); err != nil {
		return nil, err
	}
	return obj, nil
}

// Populate writes the properties present in value, a map or a struct, to obj.
// The primary key is never written.
func (b *Binder) Populate(obj domain.Object, value any) error {
	return b.populate(obj, value, false)
}

// upsert returns the object of objectType with the primary key found in value,
// creating it when there is none.
func (b *Binder) upsert(objectType string, value any) (domain.Object, error) {
	obj, found, err := b.find(objectType, value)
	if err != nil {
		return nil, err
	}
	if found {
		return obj, nil
	}
	b.logger.Debug("creating linked object", zap.String("objectType", objectType))
	return b.Create(objectType, value)
}

// find returns the object of objectType with the primary key found in value.
// Types without a primary key never match.
func (b *Binder) find(objectType string, value any) (domain.Object, bool, error) {
	schema, ok := b.session.ObjectSchema(objectType)
	if !ok {
		return nil, false, domain.ErrSchema{ObjectType: objectType, Message: "object type is not in the schema"}
	}
	if schema.PrimaryKey == "" {
		return nil, false, nil
	}
	fields, err := b.fields(value)
	if err != nil {
		return nil, false, domain.ErrValueType{Expected: objectType, Got: value}
	}
	p, _ := schema.Property(schema.PrimaryKey)
	raw, found := lookup(fields, p)
	if !found {
		return nil, false, nil
	}
	pk, err := b.native(p, raw)
	if err != nil {
		return nil, false, err
	}
	return b.session.FindByPrimaryKey(objectType, pk)
}

func (b *Binder) populate(obj domain.Object, value any, creating bool) error {
	schema, ok := b.session.ObjectSchema(obj.ObjectType())
	if !ok {
		return domain.ErrSchema{ObjectType: obj.ObjectType(), Message: "object type is not in the schema"}
	}
	fields, err := b.fields(value)
	if err != nil {
		return domain.ErrValueType{Expected: obj.ObjectType(), Got: value}
	}

	for _, p := range schema.Properties {
		if p.Name == schema.PrimaryKey {
			continue
		}
		v, found := lookup(fields, p)
		if !found {
			if !creating || p.Default == nil {
				continue
			}
			v = p.Default
		}
		if err := b.set(obj, p, v); err != nil {
			return err
		}
	}
	return nil
}

// set writes v to property p of obj, replacing collection contents.
func (b *Binder) set(obj domain.Object, p domain.PropertySchema, v any) error {
	m := b.Marshaller(p).(*Marshaller)
	switch p.Type {
	case domain.TypeList:
		h, err := obj.ListHandle(p.Name)
		if err != nil {
			return err
		}
		return b.fillList(h, m, v)
	case domain.TypeSet:
		h, err := obj.SetHandle(p.Name)
		if err != nil {
			return err
		}
		return b.fillSet(h, m, v)
	case domain.TypeDictionary:
		h, err := obj.DictionaryHandle(p.Name)
		if err != nil {
			return err
		}
		return b.fillDictionary(h, m, v)
	}

	if m.embedded && v != nil {
		_, err := m.ToBinding(v, func() (domain.Object, error) {
			return obj.SetEmbedded(p.Name)
		})
		return err
	}
	native, err := m.ToBinding(v, nil)
	if err != nil {
		return err
	}
	return obj.Set(p.Name, native)
}

func (b *Binder) fillList(h domain.ListHandle, m *Marshaller, v any) error {
	items, err := elements(m.property, v)
	if err != nil {
		return err
	}
	size, err := h.Size()
	if err != nil {
		return err
	}
	for i := size - 1; i >= 0; i-- {
		if err := h.Remove(i); err != nil {
			return err
		}
	}
	for i, item := range items {
		if m.embedded && item != nil {
			if _, err := m.ToBinding(item, func() (domain.Object, error) { return h.InsertEmbedded(i) }); err != nil {
				return err
			}
			continue
		}
		native, err := m.ToBinding(item, nil)
		if err != nil {
			return err
		}
		if err := h.Insert(i, native); err != nil {
			return err
		}
	}
	return nil
}

func (b *Binder) fillSet(h domain.SetHandle, m *Marshaller, v any) error {
	items, err := elements(m.property, v)
	if err != nil {
		return err
	}
	current, err := h.Snapshot()
	if err != nil {
		return err
	}
	for _, item := range current {
		if _, err := h.Remove(item); err != nil {
			return err
		}
	}
	for _, item := range items {
		native, err := m.ToBinding(item, nil)
		if err != nil {
			return err
		}
		if _, err := h.Insert(native); err != nil {
			return err
		}
	}
	return nil
}

// fillDictionary replaces the dictionary contents. Keys of map values are
// inserted in sorted order.
func (b *Binder) fillDictionary(h domain.DictionaryHandle, m *Marshaller, v any) error {
	entries, err := b.fields(v)
	if err != nil {
		return domain.ErrValueType{Property: m.property.Name, Expected: "a string keyed map", Got: v}
	}
	keys, err := h.KeysSnapshot()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := h.TryErase(k); err != nil {
			return err
		}
	}
	for _, k := range slices.Sorted(maps.Keys(entries)) {
		item := entries[k]
		if m.embedded && item != nil {
			if _, err := m.ToBinding(item, func() (domain.Object, error) { return h.InsertEmbedded(k) }); err != nil {
				return err
			}
			continue
		}
		native, err := m.ToBinding(item, nil)
		if err != nil {
			return err
		}
		if err := h.Insert(k, native); err != nil {
			return err
		}
	}
	return nil
}

// fields returns the properties held by value. Stored objects and links are
// read property by property, so they can be copied into embedded slots.
func (b *Binder) fields(value any) (map[string]any, error) {
	switch v := value.(type) {
	case domain.Link:
		return b.fields(b.session.Object(v))
	case domain.Object:
		return b.objectFields(v)
	}
	return decoder.Fields(value)
}

// Fields returns the properties of obj as host values. Embedded objects are
// returned as nested maps and linked objects as [domain.Object] handles.
func (b *Binder) Fields(obj domain.Object) (map[string]any, error) {
	fields, err := b.objectFields(obj)
	if err != nil {
		return nil, err
	}
	return b.resolve(fields).(map[string]any), nil
}

// resolve replaces the links left in v by their objects.
func (b *Binder) resolve(v any) any {
	switch t := v.(type) {
	case domain.Link:
		return b.session.Object(t)
	case []any:
		for i, item := range t {
			t[i] = b.resolve(item)
		}
	case map[string]any:
		for k, item := range t {
			t[k] = b.resolve(item)
		}
	}
	return v
}

func (b *Binder) objectFields(obj domain.Object) (map[string]any, error) {
	if !obj.IsValid() {
		return nil, domain.ErrInvalidInstance
	}
	schema, ok := b.session.ObjectSchema(obj.ObjectType())
	if !ok {
		return nil, domain.ErrSchema{ObjectType: obj.ObjectType(), Message: "object type is not in the schema"}
	}
	res := make(map[string]any, len(schema.Properties))
	for _, p := range schema.Properties {
		var (
			v   any
			err error
		)
		switch p.Type {
		case domain.TypeList:
			var h domain.ListHandle
			if h, err = obj.ListHandle(p.Name); err == nil {
				v, err = h.Snapshot()
			}
		case domain.TypeSet:
			var h domain.SetHandle
			if h, err = obj.SetHandle(p.Name); err == nil {
				v, err = h.Snapshot()
			}
		case domain.TypeDictionary:
			var h domain.DictionaryHandle
			if h, err = obj.DictionaryHandle(p.Name); err == nil {
				v, err = dictionaryValue(h)
			}
		default:
			v, err = obj.Get(p.Name)
		}
		if err != nil {
			return nil, err
		}
		if res[p.Name], err = b.detach(v); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// detach replaces links to embedded objects in v with their fields, since the
// objects are deleted once their slot is overwritten.
func (b *Binder) detach(v any) (any, error) {
	switch t := v.(type) {
	case domain.Link:
		if schema, ok := b.session.ObjectSchema(t.ObjectType); ok && schema.Embedded {
			return b.fields(t)
		}
	case []any:
		res := make([]any, len(t))
		for i, item := range t {
			var err error
			if res[i], err = b.detach(item); err != nil {
				return nil, err
			}
		}
		return res, nil
	case map[string]any:
		res := make(map[string]any, len(t))
		for k, item := range t {
			var err error
			if res[k], err = b.detach(item); err != nil {
				return nil, err
			}
		}
		return res, nil
	}
	return v, nil
}

func dictionaryValue(h domain.DictionaryHandle) (map[string]any, error) {
	keys, values, err := h.EntriesSnapshot()
	if err != nil {
		return nil, err
	}
	res := make(map[string]any, len(keys))
	for i, k := range keys {
		res[k] = values[i]
	}
	return res, nil
}

// elements returns the items of a slice or array value.
func elements(p domain.PropertySchema, v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueNoEscapeOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, domain.ErrValueType{Property: p.Name, Expected: fmt.Sprintf("a sequence of %s", p.Type), Got: v}
	}
	res := make([]any, rv.Len())
	for i := range res {
		res[i] = rv.Index(i).Interface()
	}
	return res, nil
}

// lookup finds the value of p in fields by name, then by mapped name, then by
// case insensitive name, so untagged struct fields match.
func lookup(fields map[string]any, p domain.PropertySchema) (any, bool) {
	if v, ok := fields[p.Name]; ok {
		return v, true
	}
	if v, ok := fields[p.MapTo]; ok {
		return v, true
	}
	for k, v := range fields {
		if strings.EqualFold(k, p.Name) {
			return v, true
		}
	}
	return nil, false
}

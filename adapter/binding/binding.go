// Package binding contains the default [domain.Marshaller] implementation and
// the object population rules shared by the marshallers and the realm facade.
//
// Host values are converted to the native representation of the property
// they are written to: integers become int64, floats become float32 or
// float64, strings are parsed for objectId, decimal128 and uuid properties,
// and objects are stored as links. Maps and structs written to object
// properties are matched by primary key or created.
package binding

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-reflect"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Binder converts values for the properties of one session.
type Binder struct {
	session domain.Session
	logger  *zap.Logger
}

// NewBinder returns a binder for session.
func NewBinder(session domain.Session, options ...Option) *Binder {
	b := Binder{
		session: session,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(&b)
	}
	return &b
}

// NewMarshaller returns the default [domain.Marshaller] for property. It can
// be used as a [domain.MarshallerFactory].
func NewMarshaller(session domain.Session, property domain.PropertySchema) domain.Marshaller {
	return NewBinder(session).Marshaller(property)
}

// Marshaller returns the marshaller of property. Collection properties are
// marshalled element by element.
func (b *Binder) Marshaller(property domain.PropertySchema) domain.Marshaller {
	el := property.Element()
	m := Marshaller{binder: b, property: el}
	if el.Type == domain.TypeObject {
		if obj, ok := b.session.ObjectSchema(el.ObjectType); ok {
			m.embedded = obj.Embedded
		}
	}
	return &m
}

// Marshaller implements [domain.Marshaller].
type Marshaller struct {
	binder   *Binder
	property domain.PropertySchema
	embedded bool
}

// ToBinding implements [domain.Marshaller].
func (m *Marshaller) ToBinding(value any, factory domain.EmbeddedFactory) (any, error) {
	if value == nil {
		return nil, nil
	}
	if m.embedded {
		if factory == nil {
			return nil, domain.ErrValueType{Property: m.property.Name, Expected: "an embedded object slot", Got: value}
		}
		fields, err := m.binder.fields(value)
		if err != nil {
			return nil, domain.ErrValueType{Property: m.property.Name, Expected: m.property.ObjectType, Got: value}
		}
		obj, err := factory()
		if err != nil {
			return nil, err
		}
		return nil, m.binder.populate(obj, fields, true)
	}
	return m.binder.native(m.property, value)
}

// Lookup implements [domain.LookupMarshaller]. Maps and structs written to
// object properties are matched by primary key only.
func (m *Marshaller) Lookup(value any) (any, bool, error) {
	if value != nil && m.property.Type == domain.TypeObject {
		switch value.(type) {
		case domain.Object, domain.Link:
		default:
			obj, found, err := m.binder.find(m.property.ObjectType, value)
			if err != nil || !found {
				return nil, false, err
			}
			return obj.Link(), true, nil
		}
	}
	native, err := m.binder.native(m.property, value)
	if err != nil {
		return nil, false, err
	}
	return native, true, nil
}

// FromBinding implements [domain.Marshaller].
func (m *Marshaller) FromBinding(native any) any {
	if link, ok := native.(domain.Link); ok {
		return m.binder.session.Object(link)
	}
	return native
}

// native converts value to the native representation of the element schema
// p. Embedded objects are handled by the caller.
func (b *Binder) native(p domain.PropertySchema, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	mismatch := domain.ErrValueType{Property: p.Name, Expected: string(p.Type), Got: value}

	switch p.Type {
	case domain.TypeMixed:
		return b.mixed(value), nil
	case domain.TypeObject:
		mismatch.Expected = p.ObjectType
		return b.link(p, value, mismatch)
	}

	var (
		res any
		err error
	)
	switch p.Type {
	case domain.TypeBool:
		res, err = asBool(value)
	case domain.TypeInt:
		res, err = asInt(value)
	case domain.TypeFloat:
		var f float64
		if f, err = asFloat(value); err == nil {
			res = float32(f)
		}
	case domain.TypeDouble:
		res, err = asFloat(value)
	case domain.TypeDecimal128:
		res, err = asDecimal(value)
	case domain.TypeObjectID:
		res, err = asObjectID(value)
	case domain.TypeString:
		res, err = asString(value)
	case domain.TypeData:
		res, err = asData(value)
	case domain.TypeDate:
		res, err = asDate(value)
	case domain.TypeUUID:
		res, err = asUUID(value)
	default:
		err = errMismatch
	}
	if errors.Is(err, errMismatch) {
		return nil, mismatch
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mismatch, err)
	}
	return res, nil
}

// mixed converts objects to links and integers to int64. Anything else is
// passed through for the engine to accept or reject.
func (b *Binder) mixed(value any) any {
	switch v := value.(type) {
	case domain.Object:
		return v.Link()
	case int64, float64, float32, string, bool:
		return v
	}
	if i, err := asInt(value); err == nil {
		return i
	}
	return value
}

// link resolves an object value. Objects and links are stored by identity,
// other values are matched by primary key or created.
func (b *Binder) link(p domain.PropertySchema, value any, mismatch error) (any, error) {
	switch v := value.(type) {
	case domain.Object:
		if v.ObjectType() != p.ObjectType {
			return nil, mismatch
		}
		return v.Link(), nil
	case domain.Link:
		if v.ObjectType != p.ObjectType {
			return nil, mismatch
		}
		return v, nil
	}

	obj, err := b.upsert(p.ObjectType, value)
	if err != nil {
		return nil, err
	}
	return obj.Link(), nil
}

var errMismatch = errors.New("type mismatch")

func asBool(value any) (any, error) {
	v := reflect.ValueNoEscapeOf(value)
	if v.Kind() != reflect.Bool {
		return nil, errMismatch
	}
	return v.Bool(), nil
}

func asInt(value any) (int64, error) {
	v := reflect.ValueNoEscapeOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	default:
		return 0, errMismatch
	}
}

func asFloat(value any) (float64, error) {
	v := reflect.ValueNoEscapeOf(value)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	}
	i, err := asInt(value)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}

func asDecimal(value any) (any, error) {
	switch v := value.(type) {
	case primitive.Decimal128:
		return v, nil
	case string:
		return primitive.ParseDecimal128(v)
	}
	rv := reflect.ValueNoEscapeOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return primitive.ParseDecimal128(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	}
	i, err := asInt(value)
	if err != nil {
		return nil, err
	}
	return primitive.ParseDecimal128(strconv.FormatInt(i, 10))
}

func asObjectID(value any) (any, error) {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v, nil
	case string:
		return primitive.ObjectIDFromHex(v)
	}
	return nil, errMismatch
}

func asString(value any) (any, error) {
	v := reflect.ValueNoEscapeOf(value)
	if v.Kind() != reflect.String {
		return nil, errMismatch
	}
	return v.String(), nil
}

func asData(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errMismatch
}

func asDate(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	}
	return nil, errMismatch
}

func asUUID(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case string:
		return uuid.Parse(v)
	}
	return nil, errMismatch
}

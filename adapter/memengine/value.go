package memengine

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// zero returns the value a new object holds for p.
func zero(p domain.PropertySchema) any {
	if p.Optional {
		return nil
	}
	switch p.Type {
	case domain.TypeBool:
		return false
	case domain.TypeInt:
		return int64(0)
	case domain.TypeFloat:
		return float32(0)
	case domain.TypeDouble:
		return float64(0)
	case domain.TypeDecimal128:
		return primitive.NewDecimal128(0x3040000000000000, 0)
	case domain.TypeObjectID:
		return primitive.NilObjectID
	case domain.TypeString:
		return ""
	case domain.TypeData:
		return []byte{}
	case domain.TypeDate:
		return time.Time{}
	case domain.TypeUUID:
		return uuid.Nil
	default:
		return nil
	}
}

// native reports whether v is one of the value types stored for primitive
// properties.
func native(v any) bool {
	switch v.(type) {
	case bool, int64, float32, float64, primitive.Decimal128,
		primitive.ObjectID, string, []byte, time.Time, uuid.UUID:
		return true
	}
	return false
}

// checkValue validates v against the element schema p and returns the value
// to store. Callers hold the session lock.
func (s *Session) checkValue(p domain.PropertySchema, v any) (any, error) {
	mismatch := func(expected string) error {
		return domain.ErrValueType{Property: p.Name, Expected: expected, Got: v}
	}

	if v == nil {
		if p.Optional || p.Type == domain.TypeMixed {
			return nil, nil
		}
		return nil, mismatch(string(p.Type))
	}

	ok := false
	switch p.Type {
	case domain.TypeBool:
		_, ok = v.(bool)
	case domain.TypeInt:
		_, ok = v.(int64)
	case domain.TypeFloat:
		_, ok = v.(float32)
	case domain.TypeDouble:
		_, ok = v.(float64)
	case domain.TypeDecimal128:
		_, ok = v.(primitive.Decimal128)
	case domain.TypeObjectID:
		_, ok = v.(primitive.ObjectID)
	case domain.TypeString:
		_, ok = v.(string)
	case domain.TypeDate:
		_, ok = v.(time.Time)
	case domain.TypeUUID:
		_, ok = v.(uuid.UUID)
	case domain.TypeData:
		if b, isBytes := v.([]byte); isBytes {
			return bytes.Clone(b), nil
		}
	case domain.TypeObject:
		link, isLink := v.(domain.Link)
		if !isLink || link.ObjectType != p.ObjectType {
			return nil, mismatch(p.ObjectType)
		}
		return link, s.checkLink(link)
	case domain.TypeMixed:
		if link, isLink := v.(domain.Link); isLink {
			return link, s.checkLink(link)
		}
		if b, isBytes := v.([]byte); isBytes {
			return bytes.Clone(b), nil
		}
		ok = native(v)
	}
	if !ok {
		return nil, mismatch(string(p.Type))
	}
	return v, nil
}

// checkLink rejects links to missing objects and to embedded objects, which
// can only be stored through their owner.
func (s *Session) checkLink(link domain.Link) error {
	t, ok := s.tables[link.ObjectType]
	if !ok || t.objects[link.Key] == nil {
		return domain.ErrObjectNotFound
	}
	if t.schema.Embedded {
		return domain.ErrSchema{
			ObjectType: link.ObjectType,
			Message:    "embedded objects cannot be linked to, they must be created in place",
		}
	}
	return nil
}

func cloneValues(vs []any) []any {
	res := make([]any, len(vs))
	copy(res, vs)
	return res
}

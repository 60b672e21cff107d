package schema

import (
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// ValidateProperty rejects property schemas the engine cannot represent. Each
// error names objectType and the property.
func ValidateProperty(objectType string, p domain.PropertySchema) error {
	fail := func(msg string) error {
		return domain.ErrSchema{ObjectType: objectType, Property: p.Name, Message: msg}
	}

	if p.Type == domain.TypeList && p.ObjectType == string(domain.TypeList) {
		return fail("lists of lists are not supported")
	}
	if p.Type == domain.TypeList && !domain.IsPrimitiveName(p.ObjectType) && p.Optional {
		return fail("lists of objects cannot have optional elements")
	}
	if (p.Type == domain.TypeObject || p.Type.IsCollection()) && p.ObjectType == "" {
		return fail("the object type must not be empty")
	}
	return nil
}

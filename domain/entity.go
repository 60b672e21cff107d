package domain

import (
	"reflect"
	"slices"
)

// PropertyType is one of the closed set of storable property types.
type PropertyType string

// Property types accepted by the storage engine.
const (
	TypeBool       PropertyType = "bool"
	TypeInt        PropertyType = "int"
	TypeFloat      PropertyType = "float"
	TypeDouble     PropertyType = "double"
	TypeDecimal128 PropertyType = "decimal128"
	TypeObjectID   PropertyType = "objectId"
	TypeString     PropertyType = "string"
	TypeData       PropertyType = "data"
	TypeDate       PropertyType = "date"
	TypeMixed      PropertyType = "mixed"
	TypeUUID       PropertyType = "uuid"
	TypeObject     PropertyType = "object"
	TypeList       PropertyType = "list"
	TypeSet        PropertyType = "set"
	TypeDictionary PropertyType = "dictionary"
)

var (
	propertyTypes = []PropertyType{
		TypeBool, TypeInt, TypeFloat, TypeDouble, TypeDecimal128,
		TypeObjectID, TypeString, TypeData, TypeDate, TypeMixed, TypeUUID,
		TypeObject, TypeList, TypeSet, TypeDictionary,
	}
	primitiveTypes = propertyTypes[:11]
)

// PropertyTypes returns every accepted property type, in declaration order.
func PropertyTypes() []PropertyType {
	return slices.Clone(propertyTypes)
}

// LookupPropertyType returns the PropertyType named s, if any.
func LookupPropertyType(s string) (PropertyType, bool) {
	t := PropertyType(s)
	return t, slices.Contains(propertyTypes, t)
}

// IsPrimitive reports whether t holds a single plain value (mixed included),
// as opposed to a link or a collection.
func (t PropertyType) IsPrimitive() bool {
	return slices.Contains(primitiveTypes, t)
}

// IsCollection reports whether t is list, set or dictionary.
func (t PropertyType) IsCollection() bool {
	return t == TypeList || t == TypeSet || t == TypeDictionary
}

// IsPrimitiveName reports whether name is the name of a primitive type. Used
// for objectType values, which name either a primitive or an object schema.
func IsPrimitiveName(name string) bool {
	return PropertyType(name).IsPrimitive()
}

// PropertySchema is the canonical, validated description of one property.
type PropertySchema struct {
	Name string       `json:"name" gerealm:"name"`
	Type PropertyType `json:"type" gerealm:"type"`
	// ObjectType names a primitive type or an object schema. Empty when
	// Type is a primitive.
	ObjectType string `json:"objectType,omitempty" gerealm:"objectType"`
	// Optional tells whether the value (or, for collections, each element)
	// may be nil.
	Optional bool   `json:"optional" gerealm:"optional"`
	Indexed  bool   `json:"indexed" gerealm:"indexed"`
	MapTo    string `json:"mapTo" gerealm:"mapTo"`
	Default  any    `json:"default,omitempty" gerealm:"default"`
}

// Element returns the schema of a single element of a collection property.
// Non-collection properties are returned unchanged.
func (p PropertySchema) Element() PropertySchema {
	if !p.Type.IsCollection() {
		return p
	}
	el := PropertySchema{
		Name:     p.Name,
		Optional: p.Optional,
		MapTo:    p.MapTo,
	}
	if IsPrimitiveName(p.ObjectType) {
		el.Type = PropertyType(p.ObjectType)
	} else {
		el.Type = TypeObject
		el.ObjectType = p.ObjectType
	}
	return el
}

// ObjectSchema is the canonical description of a storable type.
type ObjectSchema struct {
	Name       string           `json:"name"`
	PrimaryKey string           `json:"primaryKey,omitempty"`
	Asymmetric bool             `json:"asymmetric"`
	Embedded   bool             `json:"embedded"`
	Properties []PropertySchema `json:"properties"`
	// Constructor is the type that declared this schema through [Schemer],
	// or nil for plain declarations.
	Constructor reflect.Type `json:"-"`
}

// Property returns the property named name.
func (o ObjectSchema) Property(name string) (PropertySchema, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySchema{}, false
}

// PropertyNames returns the property names in declaration order.
func (o ObjectSchema) PropertyNames() []string {
	names := make([]string, len(o.Properties))
	for n, p := range o.Properties {
		names[n] = p.Name
	}
	return names
}

// PropertyDeclaration is the explicit object form of a property declaration.
// Type may use the shorthand grammar ("int?", "Person[]", ...). Nil pointers
// mean "not declared".
type PropertyDeclaration struct {
	// Name is only read in the legacy array-of-properties form.
	Name       string `gerealm:"name" yaml:"name"`
	Type       string `gerealm:"type" yaml:"type"`
	ObjectType string `gerealm:"objectType" yaml:"objectType"`
	Optional   *bool  `gerealm:"optional" yaml:"optional"`
	Indexed    *bool  `gerealm:"indexed" yaml:"indexed"`
	MapTo      string `gerealm:"mapTo" yaml:"mapTo"`
	Default    any    `gerealm:"default" yaml:"default"`
}

// NamedDeclaration pairs a property name with its raw declaration, which is
// either a shorthand string, a [PropertyDeclaration] or a map[string]any.
type NamedDeclaration struct {
	Name        string
	Declaration any
}

// PropertyDeclarations is the mapping form of an object's properties. It is a
// slice so declaration order is kept.
type PropertyDeclarations []NamedDeclaration

// ObjectDeclaration is the object-like form of an object schema declaration.
// Exactly one of Properties and PropertyList should be set; PropertyList is the
// deprecated array form.
type ObjectDeclaration struct {
	Name         string
	PrimaryKey   string
	Asymmetric   bool
	Embedded     bool
	Properties   PropertyDeclarations
	PropertyList []PropertyDeclaration
}

// Schemer is implemented by types that declare their own object schema. The
// declaring type is recorded as the schema constructor.
type Schemer interface {
	ObjectSchema() ObjectDeclaration
}

// Bool returns a pointer to b. Useful for [PropertyDeclaration] literals.
func Bool(b bool) *bool {
	return &b
}

// Package schema contains the default [domain.SchemaNormalizer]
// implementation.
//
// Normalization turns user declarations (shorthand strings, explicit property
// declarations, raw maps and [domain.Schemer] types) into the canonical schema
// the engine is opened with. Every property is normalized, then validated;
// any failure aborts the object schema it belongs to. Cross-schema checks,
// such as links to undeclared object types, are left to the engine.
package schema

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Normalizer implements [domain.SchemaNormalizer].
type Normalizer struct {
	legacyArrays bool
	decoder      domain.Decoder
	logger       *zap.Logger
}

// NewNormalizer returns a new implementation of [domain.SchemaNormalizer].
func NewNormalizer(options ...Option) domain.SchemaNormalizer {
	n := Normalizer{
		decoder: decoder.NewDecoder(decoder.WithErrorUnused(true)),
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(&n)
	}
	return &n
}

// Realm implements [domain.SchemaNormalizer].
func (n *Normalizer) Realm(declarations ...any) ([]domain.ObjectSchema, error) {
	res := make([]domain.ObjectSchema, len(declarations))
	for i, decl := range declarations {
		obj, err := n.Object(decl)
		if err != nil {
			return nil, err
		}
		res[i] = obj
	}
	return res, nil
}

// Object implements [domain.SchemaNormalizer].
func (n *Normalizer) Object(declaration any) (domain.ObjectSchema, error) {
	switch d := declaration.(type) {
	case domain.Schemer:
		return n.class(d)
	case domain.ObjectDeclaration:
		return n.object(d)
	case *domain.ObjectDeclaration:
		if d == nil {
			return domain.ObjectSchema{}, domain.ErrSchema{Message: "object schema declaration is nil"}
		}
		return n.object(*d)
	case map[string]any:
		decl, err := n.objectDeclaration(d)
		if err != nil {
			return domain.ObjectSchema{}, err
		}
		return n.object(decl)
	default:
		return domain.ObjectSchema{}, domain.ErrSchema{
			Message: fmt.Sprintf("expected an object schema declaration, got %T", declaration),
		}
	}
}

func (n *Normalizer) class(s domain.Schemer) (res domain.ObjectSchema, err error) {
	typ := reflect.TypeOf(s)
	base := typ
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return res, domain.ErrConstructor{
			Type:    typ.String(),
			Message: "expected a struct or a pointer to a struct",
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = domain.ErrConstructor{
				Type:    typ.String(),
				Message: fmt.Sprintf("reading the schema panicked: %v", r),
			}
		}
	}()
	decl := s.ObjectSchema()
	if decl.Name == "" {
		return res, domain.ErrConstructor{
			Type:    typ.String(),
			Message: "the declared schema must have a name",
		}
	}

	if res, err = n.object(decl); err != nil {
		return res, err
	}
	res.Constructor = base
	return res, nil
}

func (n *Normalizer) object(d domain.ObjectDeclaration) (domain.ObjectSchema, error) {
	if d.Name == "" {
		return domain.ObjectSchema{}, domain.ErrSchema{Message: "an object schema must have a name"}
	}

	props := d.Properties
	if d.PropertyList != nil {
		var err error
		if props, err = n.legacyProperties(d); err != nil {
			return domain.ObjectSchema{}, err
		}
	}

	res := domain.ObjectSchema{
		Name:       d.Name,
		PrimaryKey: d.PrimaryKey,
		Asymmetric: d.Asymmetric,
		Embedded:   d.Embedded,
		Properties: make([]domain.PropertySchema, 0, len(props)),
	}
	for _, prop := range props {
		if _, dup := res.Property(prop.Name); dup {
			return domain.ObjectSchema{}, domain.ErrSchema{
				ObjectType: d.Name,
				Property:   prop.Name,
				Message:    "property declared more than once",
			}
		}
		p, err := n.property(prop.Name, prop.Declaration)
		if err != nil {
			return domain.ObjectSchema{}, annotate(err, d.Name, prop.Name)
		}
		if p.Name == d.PrimaryKey {
			p.Indexed = true
		}
		if err := ValidateProperty(d.Name, p); err != nil {
			return domain.ObjectSchema{}, err
		}
		res.Properties = append(res.Properties, p)
	}
	return res, nil
}

func (n *Normalizer) legacyProperties(d domain.ObjectDeclaration) (domain.PropertyDeclarations, error) {
	if !n.legacyArrays {
		return nil, domain.ErrSchema{
			ObjectType: d.Name,
			Message:    "Array of properties are no longer supported. Use an object instead.",
		}
	}
	if d.Properties != nil {
		return nil, domain.ErrSchema{
			ObjectType: d.Name,
			Message:    "properties cannot be declared in both forms",
		}
	}
	n.logger.Warn("array of properties is deprecated", zap.String("objectType", d.Name))

	res := make(domain.PropertyDeclarations, len(d.PropertyList))
	for i, decl := range d.PropertyList {
		if decl.Name == "" {
			return nil, domain.ErrSchema{
				ObjectType: d.Name,
				Message:    fmt.Sprintf("property at position %d has no name", i),
			}
		}
		name := decl.Name
		decl.Name = ""
		res[i] = domain.NamedDeclaration{Name: name, Declaration: decl}
	}
	return res, nil
}

// rawObject is what a map declaration is decoded into before its properties
// are converted.
type rawObject struct {
	Name       string `gerealm:"name"`
	PrimaryKey string `gerealm:"primaryKey"`
	Asymmetric bool   `gerealm:"asymmetric"`
	Embedded   bool   `gerealm:"embedded"`
	Properties any    `gerealm:"properties"`
}

// objectDeclaration reads a map declaration. Go maps are unordered, so
// properties declared through a map are sorted by name.
func (n *Normalizer) objectDeclaration(m map[string]any) (domain.ObjectDeclaration, error) {
	var raw rawObject
	if err := n.decoder.Decode(m, &raw); err != nil {
		name, _ := m["name"].(string)
		return domain.ObjectDeclaration{}, domain.ErrSchema{ObjectType: name, Err: err}
	}
	res := domain.ObjectDeclaration{
		Name:       raw.Name,
		PrimaryKey: raw.PrimaryKey,
		Asymmetric: raw.Asymmetric,
		Embedded:   raw.Embedded,
	}

	switch props := raw.Properties.(type) {
	case nil:
	case domain.PropertyDeclarations:
		res.Properties = props
	case map[string]any:
		res.Properties = make(domain.PropertyDeclarations, 0, len(props))
		for _, k := range slices.Sorted(maps.Keys(props)) {
			res.Properties = append(res.Properties, domain.NamedDeclaration{Name: k, Declaration: props[k]})
		}
	case []any:
		res.PropertyList = make([]domain.PropertyDeclaration, len(props))
		for i, p := range props {
			if err := n.decoder.Decode(p, &res.PropertyList[i]); err != nil {
				return domain.ObjectDeclaration{}, domain.ErrSchema{ObjectType: raw.Name, Err: err}
			}
		}
	case []domain.PropertyDeclaration:
		res.PropertyList = props
	default:
		return domain.ObjectDeclaration{}, domain.ErrSchema{
			ObjectType: raw.Name,
			Message:    fmt.Sprintf("expected properties to be a map or a list, got %T", raw.Properties),
		}
	}
	return res, nil
}

// annotate fills the object type and property of schema errors raised where
// they were not known, and turns any other error into a schema error.
func annotate(err error, objectType, property string) error {
	if errors.As(err, new(domain.ErrConstructor)) {
		return err
	}
	var se domain.ErrSchema
	if !errors.As(err, &se) {
		se = domain.ErrSchema{Err: err}
	}
	if se.ObjectType == "" {
		se.ObjectType = objectType
	}
	if se.Property == "" {
		se.Property = property
	}
	return se
}

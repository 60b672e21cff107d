package schema

import (
	"fmt"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/shorthand"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Property implements [domain.SchemaNormalizer].
func (n *Normalizer) Property(name string, declaration any) (domain.PropertySchema, error) {
	p, err := n.property(name, declaration)
	if err != nil {
		return domain.PropertySchema{}, annotate(err, "", name)
	}
	return p, nil
}

func (n *Normalizer) property(name string, declaration any) (domain.PropertySchema, error) {
	var merged declared

	switch d := declaration.(type) {
	case string:
		parsed, err := shorthand.Parse(d, true)
		if err != nil {
			return domain.PropertySchema{}, err
		}
		merged = fromShorthand(parsed)
	default:
		decl, err := n.propertyDeclaration(declaration)
		if err != nil {
			return domain.PropertySchema{}, err
		}
		if decl.Type == "" {
			return domain.PropertySchema{}, domain.ErrSchema{Message: "a property type must be declared"}
		}
		// an explicit objectType forbids inferring one from a suffix
		parsed, err := shorthand.Parse(decl.Type, decl.ObjectType == "")
		if err != nil {
			return domain.PropertySchema{}, err
		}
		merged = fromShorthand(parsed)
		merged.overlay(decl)
	}

	mixed := merged.typ == domain.TypeMixed || merged.objectType == string(domain.TypeMixed)
	if mixed && merged.optional != nil && !*merged.optional {
		return domain.PropertySchema{}, domain.ErrSchema{Message: "Mixed values should be declared as optional"}
	}

	p := domain.PropertySchema{
		Name:       name,
		Type:       merged.typ,
		ObjectType: merged.objectType,
		Optional:   mixed,
		MapTo:      name,
		Default:    merged.def,
	}
	if merged.optional != nil {
		p.Optional = *merged.optional
	}
	if merged.indexed != nil {
		p.Indexed = *merged.indexed
	}
	if merged.mapTo != "" {
		p.MapTo = merged.mapTo
	}
	return p, nil
}

func (n *Normalizer) propertyDeclaration(declaration any) (domain.PropertyDeclaration, error) {
	switch d := declaration.(type) {
	case domain.PropertyDeclaration:
		return d, nil
	case *domain.PropertyDeclaration:
		if d == nil {
			return domain.PropertyDeclaration{}, domain.ErrSchema{Message: "property declaration is nil"}
		}
		return *d, nil
	case map[string]any:
		var decl domain.PropertyDeclaration
		if err := n.decoder.Decode(d, &decl); err != nil {
			return domain.PropertyDeclaration{}, domain.ErrSchema{Err: err}
		}
		return decl, nil
	default:
		return domain.PropertyDeclaration{}, domain.ErrSchema{
			Message: fmt.Sprintf("expected a type string or a property declaration, got %T", declaration),
		}
	}
}

// declared holds a property while declared and parsed fields are merged.
// Nil and empty fields are unset.
type declared struct {
	typ        domain.PropertyType
	objectType string
	optional   *bool
	indexed    *bool
	mapTo      string
	def        any
}

func fromShorthand(r shorthand.Result) declared {
	return declared{
		typ:        r.Type,
		objectType: r.ObjectType,
		optional:   r.Optional,
	}
}

// overlay sets every field the caller declared, replacing parsed values.
func (d *declared) overlay(decl domain.PropertyDeclaration) {
	if decl.ObjectType != "" {
		d.objectType = decl.ObjectType
	}
	if decl.Optional != nil {
		d.optional = decl.Optional
	}
	if decl.Indexed != nil {
		d.indexed = decl.Indexed
	}
	if decl.MapTo != "" {
		d.mapTo = decl.MapTo
	}
	if decl.Default != nil {
		d.def = decl.Default
	}
}

// Package shorthand parses property type strings such as "string?",
// "Person[]", "int<>" or "mixed{}".
//
// Suffixes are matched in priority order: "[]" (list), "<>" (set), "{}"
// (dictionary) and then "?" (optional). A string without suffix is either the
// name of a primitive type or a reference to another object schema.
package shorthand

import (
	"fmt"
	"strings"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Kind is the variant of a parsed type.
type Kind int

// Parsed type variants.
const (
	KindPrimitive Kind = iota
	KindMixed
	KindObjectRef
	KindList
	KindSet
	KindDictionary
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindMixed:
		return "mixed"
	case KindObjectRef:
		return "object reference"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindDictionary:
		return "dictionary"
	default:
		return "unknown"
	}
}

// Result is a parsed property type. Optional is nil when the shorthand does
// not say anything about optionality.
type Result struct {
	Kind       Kind
	Type       domain.PropertyType
	ObjectType string
	Optional   *bool
}

// IsOptional reports whether Optional is set and true.
func (r Result) IsOptional() bool {
	return r.Optional != nil && *r.Optional
}

const (
	suffixList       = "[]"
	suffixSet        = "<>"
	suffixDictionary = "{}"
	suffixOptional   = "?"
)

// Parse parses a type string. When allowObjectType is false, collection
// suffixes are rejected because the caller already declared the element type
// explicitly.
func Parse(typ string, allowObjectType bool) (Result, error) {
	return parse(typ, allowObjectType, false)
}

func parse(typ string, allowObjectType bool, nested bool) (Result, error) {
	switch {
	case strings.HasSuffix(typ, suffixList):
		if err := checkCollection(typ, allowObjectType, nested); err != nil {
			return Result{}, err
		}
		item, err := parse(strings.TrimSuffix(typ, suffixList), false, true)
		if err != nil {
			return Result{}, err
		}
		if item.Type == domain.TypeList {
			return Result{}, errorf(typ, "lists of lists are not supported")
		}
		if item.Type.IsCollection() {
			return Result{}, errorf(typ, "unexpected nested object type")
		}
		res := Result{Kind: KindList, Type: domain.TypeList}
		if item.Kind == KindObjectRef {
			res.ObjectType = item.ObjectType
			res.Optional = domain.Bool(false)
		} else {
			res.ObjectType = string(item.Type)
			res.Optional = item.Optional
		}
		return res, nil

	case strings.HasSuffix(typ, suffixSet):
		if err := checkCollection(typ, allowObjectType, nested); err != nil {
			return Result{}, err
		}
		prefix := strings.TrimSuffix(typ, suffixSet)
		// no optional default here, unlike dictionaries
		item := Result{Kind: KindMixed, Type: domain.TypeMixed}
		if prefix != "" {
			var err error
			if item, err = parseItem(typ, prefix); err != nil {
				return Result{}, err
			}
		}
		return collectionOf(KindSet, domain.TypeSet, item), nil

	case strings.HasSuffix(typ, suffixDictionary):
		if err := checkCollection(typ, allowObjectType, nested); err != nil {
			return Result{}, err
		}
		prefix := strings.TrimSuffix(typ, suffixDictionary)
		item := Result{Kind: KindMixed, Type: domain.TypeMixed, Optional: domain.Bool(true)}
		if prefix != "" {
			var err error
			if item, err = parseItem(typ, prefix); err != nil {
				return Result{}, err
			}
		}
		return collectionOf(KindDictionary, domain.TypeDictionary, item), nil

	case strings.HasSuffix(typ, suffixOptional):
		res, err := parse(strings.TrimSuffix(typ, suffixOptional), allowObjectType, nested)
		if err != nil {
			return Result{}, err
		}
		if res.Type.IsCollection() && res.Kind != KindPrimitive {
			return Result{}, errorf(typ, "the optional marker must be placed before the collection suffix")
		}
		res.Optional = domain.Bool(true)
		return res, nil
	}

	if t, ok := domain.LookupPropertyType(typ); ok {
		switch t {
		case domain.TypeDictionary, domain.TypeSet:
			return Result{
				Kind:       KindPrimitive,
				Type:       t,
				ObjectType: string(domain.TypeMixed),
				Optional:   domain.Bool(true),
			}, nil
		case domain.TypeMixed:
			return Result{Kind: KindMixed, Type: t, Optional: domain.Bool(true)}, nil
		default:
			return Result{Kind: KindPrimitive, Type: t}, nil
		}
	}

	return Result{
		Kind:       KindObjectRef,
		Type:       domain.TypeObject,
		ObjectType: typ,
		Optional:   domain.Bool(true),
	}, nil
}

func checkCollection(typ string, allowObjectType bool, nested bool) error {
	if nested {
		return errorf(typ, "unexpected nested object type")
	}
	if !allowObjectType {
		return errorf(typ, "objectType not allowed here: the type already declares its element type")
	}
	return nil
}

func parseItem(typ, prefix string) (Result, error) {
	item, err := parse(prefix, false, true)
	if err != nil {
		return Result{}, err
	}
	if item.Type.IsCollection() {
		return Result{}, errorf(typ, "unexpected nested object type")
	}
	return item, nil
}

func collectionOf(kind Kind, typ domain.PropertyType, item Result) Result {
	res := Result{Kind: kind, Type: typ}
	if item.Kind == KindObjectRef {
		res.ObjectType = item.ObjectType
		res.Optional = domain.Bool(true)
	} else {
		res.ObjectType = string(item.Type)
		res.Optional = item.Optional
	}
	return res
}

func errorf(typ string, msg string) error {
	return domain.ErrSchema{Message: fmt.Sprintf("invalid type %q: %s", typ, msg)}
}

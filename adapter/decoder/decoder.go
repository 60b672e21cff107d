// Package decoder contains the default [domain.Decoder] implementation, based
// on mapstructure. It is used to read raw map declarations into declaration
// types and to scan stored objects into user types.
package decoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-reflect"
	"github.com/mitchellh/mapstructure"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// TagName is the struct tag read for field names.
const TagName = "gerealm"

var (
	// ErrTargetNil is returned when the decoding target is nil.
	ErrTargetNil = errors.New("target interface is nil")
	// ErrNonPointer is returned when the decoding target is not a pointer.
	ErrNonPointer = errors.New("target must be a pointer")
)

// ErrDecode wraps third party decoding errors.
type ErrDecode struct {
	Source any
	Target any
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("cannot decode %T into %T", e.Source, e.Target)
}

// Decoder implements domain.Decoder.
type Decoder struct {
	errorUnused bool
}

// NewDecoder returns a new implementation of domain.Decoder.
func NewDecoder(options ...Option) domain.Decoder {
	var d Decoder
	for _, option := range options {
		option(&d)
	}
	return &d
}

// Decode implements domain.Decoder.
func (d *Decoder) Decode(source any, target any) error {
	if target == nil {
		return ErrTargetNil
	}

	value := reflect.ValueNoEscapeOf(target)
	if value.Kind() != reflect.Ptr {
		return ErrNonPointer
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     TagName,
		Result:      target,
		ErrorUnused: d.errorUnused,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(source); err != nil {
		errDec := ErrDecode{Source: source, Target: target}
		return fmt.Errorf("%w: %w", errDec, err)
	}
	return nil
}

// Fields returns the top-level fields of a struct or map. Nested values are
// kept as they are. Struct field names come from the gerealm tag, falling
// back to the field name; fields tagged "-", unexported fields and zero
// fields tagged "omitempty" are skipped. A nil value returns a nil map.
func Fields(value any) (map[string]any, error) {
	switch t := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return t, nil
	}

	r := reflect.ValueNoEscapeOf(value)
	for r.Kind() == reflect.Ptr || r.Kind() == reflect.Interface {
		if r.IsNil() {
			return nil, nil
		}
		r = r.Elem()
	}

	switch r.Kind() {
	case reflect.Map:
		if r.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("expected string keys, got %s", r.Type().Key().String())
		}
		res := make(map[string]any, r.Len())
		for _, k := range r.MapKeys() {
			res[k.String()] = r.MapIndex(k).Interface()
		}
		return res, nil
	case reflect.Struct:
		typ := r.Type()
		res := make(map[string]any, typ.NumField())
		for n := range typ.NumField() {
			field := typ.Field(n)
			if field.PkgPath != "" {
				continue
			}
			name, opts, _ := strings.Cut(field.Tag.Get(TagName), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = field.Name
			}
			if opts == "omitempty" && r.Field(n).IsZero() {
				continue
			}
			res[name] = r.Field(n).Interface()
		}
		return res, nil
	default:
		return nil, fmt.Errorf("expected map or struct, got %s", r.Type().String())
	}
}

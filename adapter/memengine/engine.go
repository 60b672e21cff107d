// Package memengine contains an in-memory [domain.Engine]. It keeps every
// object in process memory, supports one write transaction at a time with
// rollback, indexes primary keys and reports collection changes on commit.
package memengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gerealm/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// Engine implements [domain.Engine]. Every call to Open creates a new, empty
// database.
type Engine struct {
	idGenerator domain.IDGenerator
	comparer    domain.Comparer
	logger      *zap.Logger
}

// NewEngine returns a new implementation of [domain.Engine].
func NewEngine(options ...Option) domain.Engine {
	e := Engine{
		idGenerator: idgenerator.NewIDGenerator(),
		comparer:    comparer.NewComparer(),
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(&e)
	}
	return &e
}

// Open implements [domain.Engine].
func (e *Engine) Open(ctx context.Context, schema []domain.ObjectSchema) (domain.Session, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := checkSchema(schema); err != nil {
		return nil, err
	}

	s := newSession(e, schema)
	e.logger.Debug("session opened", zap.Int("objectTypes", len(schema)))
	return s, nil
}

// indexable lists the property types a primary key can have.
var indexable = map[domain.PropertyType]bool{
	domain.TypeInt:      true,
	domain.TypeString:   true,
	domain.TypeObjectID: true,
	domain.TypeUUID:     true,
}

// checkSchema runs the checks left out of normalization because they need
// the whole schema.
func checkSchema(schema []domain.ObjectSchema) error {
	byName := make(map[string]domain.ObjectSchema, len(schema))
	for _, obj := range schema {
		if _, dup := byName[obj.Name]; dup {
			return domain.ErrSchema{ObjectType: obj.Name, Message: "object type declared more than once"}
		}
		byName[obj.Name] = obj
	}

	for _, obj := range schema {
		if obj.PrimaryKey != "" {
			if obj.Embedded {
				return domain.ErrSchema{ObjectType: obj.Name, Message: "embedded objects cannot have a primary key"}
			}
			pk, ok := obj.Property(obj.PrimaryKey)
			if !ok {
				return domain.ErrSchema{
					ObjectType: obj.Name,
					Message:    fmt.Sprintf("primary key %q is not a declared property", obj.PrimaryKey),
				}
			}
			if !indexable[pk.Type] {
				return domain.ErrSchema{
					ObjectType: obj.Name,
					Property:   pk.Name,
					Message:    fmt.Sprintf("properties of type %q cannot be primary keys", pk.Type),
				}
			}
		}

		for _, p := range obj.Properties {
			el := p.Element()
			if el.Type != domain.TypeObject {
				continue
			}
			target, ok := byName[el.ObjectType]
			if !ok {
				return domain.ErrSchema{
					ObjectType: obj.Name,
					Property:   p.Name,
					Message:    fmt.Sprintf("links to undeclared object type %q", el.ObjectType),
				}
			}
			fail := func(msg string) error {
				return domain.ErrSchema{ObjectType: obj.Name, Property: p.Name, Message: msg}
			}
			switch {
			case target.Asymmetric:
				return fail("asymmetric objects cannot be linked to")
			case p.Type == domain.TypeObject && !p.Optional:
				return fail("object properties must be optional")
			case p.Type == domain.TypeSet && target.Embedded:
				return fail("sets of embedded objects are not supported")
			}
		}
	}
	return nil
}

// Package schemafile reads object schema declarations from YAML or JSON
// documents.
//
// A document is either a sequence of object declarations or a mapping whose
// "schema" key holds that sequence:
//
//	schema:
//	  - name: Person
//	    primaryKey: name
//	    properties:
//	      name: string
//	      age: int?
//	      friends: Person[]
//	      nickname: {type: string, default: none}
//
// Properties keep the order they are written in. A properties sequence is read
// as the legacy array-of-properties form.
package schemafile

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/dolmen-go/contextio"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

// ErrFormat is returned when a document does not have the shape of a schema
// file.
type ErrFormat struct {
	Line    int
	Column  int
	Message string
}

func (e ErrFormat) Error() string {
	return fmt.Sprintf("schema file %d:%d: %s", e.Line, e.Column, e.Message)
}

func formatErr(n *yaml.Node, format string, args ...any) error {
	return ErrFormat{Line: n.Line, Column: n.Column, Message: fmt.Sprintf(format, args...)}
}

// Loader reads schema files.
type Loader struct {
	fsys   fs.FS
	logger *zap.Logger
}

// NewLoader returns a new Loader.
func NewLoader(options ...Option) *Loader {
	l := Loader{logger: zap.NewNop()}
	for _, option := range options {
		option(&l)
	}
	return &l
}

// LoadFile reads the declarations in the named file.
func (l *Loader) LoadFile(ctx context.Context, name string) ([]domain.ObjectDeclaration, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if l.fsys != nil {
		f, err = l.fsys.Open(name)
	} else {
		f, err = os.Open(name)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decls, err := l.Load(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	l.logger.Debug("schema file loaded", zap.String("file", name), zap.Int("objectTypes", len(decls)))
	return decls, nil
}

// Load reads the declarations in r. Reading stops when ctx is done.
func (l *Loader) Load(ctx context.Context, r io.Reader) ([]domain.ObjectDeclaration, error) {
	data, err := io.ReadAll(contextio.NewReader(ctx, r))
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	list := root.Content[0]
	if list.Kind == yaml.MappingNode {
		if list = value(list, "schema"); list == nil {
			return nil, formatErr(root.Content[0], `expected a "schema" key`)
		}
	}
	if list.Kind != yaml.SequenceNode {
		return nil, formatErr(list, "expected a sequence of object schemas")
	}

	res := make([]domain.ObjectDeclaration, 0, len(list.Content))
	for _, n := range list.Content {
		decl, err := object(n)
		if err != nil {
			return nil, err
		}
		res = append(res, decl)
	}
	return res, nil
}

func object(n *yaml.Node) (domain.ObjectDeclaration, error) {
	var decl domain.ObjectDeclaration
	if n.Kind != yaml.MappingNode {
		return decl, formatErr(n, "expected an object schema mapping")
	}

	err := entries(n, func(key string, v *yaml.Node) error {
		switch key {
		case "name":
			return v.Decode(&decl.Name)
		case "primaryKey":
			return v.Decode(&decl.PrimaryKey)
		case "asymmetric":
			return v.Decode(&decl.Asymmetric)
		case "embedded":
			return v.Decode(&decl.Embedded)
		case "properties":
			return properties(v, &decl)
		default:
			return formatErr(v, "unknown object schema key %q", key)
		}
	})
	return decl, err
}

func properties(n *yaml.Node, decl *domain.ObjectDeclaration) error {
	switch n.Kind {
	case yaml.SequenceNode:
		return n.Decode(&decl.PropertyList)
	case yaml.MappingNode:
	default:
		return formatErr(n, "expected a mapping of properties")
	}

	decl.Properties = make(domain.PropertyDeclarations, 0, len(n.Content)/2)
	return entries(n, func(name string, v *yaml.Node) error {
		switch v.Kind {
		case yaml.ScalarNode:
			decl.Properties = append(decl.Properties, domain.NamedDeclaration{Name: name, Declaration: v.Value})
			return nil
		case yaml.MappingNode:
			var p domain.PropertyDeclaration
			if err := v.Decode(&p); err != nil {
				return err
			}
			decl.Properties = append(decl.Properties, domain.NamedDeclaration{Name: name, Declaration: p})
			return nil
		default:
			return formatErr(v, "property %q: expected a type or a declaration", name)
		}
	})
}

// entries calls fn for each key of a mapping node, in document order.
// Duplicate keys are rejected.
func entries(n *yaml.Node, fn func(key string, v *yaml.Node) error) error {
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if seen[k.Value] {
			return formatErr(k, "duplicate key %q", k.Value)
		}
		seen[k.Value] = true
		if err := fn(k.Value, v); err != nil {
			return err
		}
	}
	return nil
}

func value(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

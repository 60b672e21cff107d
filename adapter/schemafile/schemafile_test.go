package schemafile

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vinicius-lino-figueiredo/gerealm/adapter/schema"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

const peopleYAML = `
- name: Person
  primaryKey: name
  properties:
    name: string
    age: int?
    friends: Person[]
    nickname:
      type: string
      default: none
      indexed: true
- name: Address
  embedded: true
  properties:
    street: string
`

const peopleJSON = `{"schema": [
  {"name": "Person", "primaryKey": "name", "properties": {
    "name": "string", "age": "int?", "friends": "Person[]",
    "nickname": {"type": "string", "default": "none", "indexed": true}}},
  {"name": "Address", "embedded": true, "properties": {"street": "string"}}
]}`

type SchemaFileTestSuite struct {
	suite.Suite
	ctx context.Context
	l   *Loader
}

func (s *SchemaFileTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.l = NewLoader()
}

func (s *SchemaFileTestSuite) expected() []domain.ObjectDeclaration {
	return []domain.ObjectDeclaration{
		{
			Name:       "Person",
			PrimaryKey: "name",
			Properties: domain.PropertyDeclarations{
				{Name: "name", Declaration: "string"},
				{Name: "age", Declaration: "int?"},
				{Name: "friends", Declaration: "Person[]"},
				{Name: "nickname", Declaration: domain.PropertyDeclaration{
					Type:    "string",
					Default: "none",
					Indexed: domain.Bool(true),
				}},
			},
		},
		{
			Name:       "Address",
			Embedded:   true,
			Properties: domain.PropertyDeclarations{{Name: "street", Declaration: "string"}},
		},
	}
}

func (s *SchemaFileTestSuite) TestLoadYAML() {
	decls, err := s.l.Load(s.ctx, strings.NewReader(peopleYAML))
	s.Require().NoError(err)
	s.Equal(s.expected(), decls)
}

func (s *SchemaFileTestSuite) TestLoadJSON() {
	decls, err := s.l.Load(s.ctx, strings.NewReader(peopleJSON))
	s.Require().NoError(err)
	s.Equal(s.expected(), decls)
}

func (s *SchemaFileTestSuite) TestLoadYAMLSchemaKey() {
	const doc = `
schema:
  - name: Person
    primaryKey: name
    properties:
      name: string
      age: int?
      friends: Person[]
      nickname: {type: string, default: none}
`
	decls, err := s.l.Load(s.ctx, strings.NewReader(doc))
	s.Require().NoError(err)
	expected := s.expected()[:1]
	expected[0].Properties[3].Declaration = domain.PropertyDeclaration{Type: "string", Default: "none"}
	s.Equal(expected, decls)
}

func (s *SchemaFileTestSuite) TestNormalizes() {
	decls, err := s.l.Load(s.ctx, strings.NewReader(peopleYAML))
	s.Require().NoError(err)

	args := make([]any, len(decls))
	for i, d := range decls {
		args[i] = d
	}
	schemas, err := schema.NewNormalizer().Realm(args...)
	s.Require().NoError(err)
	s.Require().Len(schemas, 2)
	s.Equal([]string{"name", "age", "friends", "nickname"}, schemas[0].PropertyNames())

	nickname, ok := schemas[0].Property("nickname")
	s.Require().True(ok)
	s.Equal("none", nickname.Default)
	s.True(nickname.Indexed)
}

func (s *SchemaFileTestSuite) TestLegacyList() {
	decls, err := s.l.Load(s.ctx, strings.NewReader(`
- name: Person
  properties:
    - {name: name, type: string}
    - {name: age, type: int, optional: true}
`))
	s.Require().NoError(err)
	s.Equal([]domain.PropertyDeclaration{
		{Name: "name", Type: "string"},
		{Name: "age", Type: "int", Optional: domain.Bool(true)},
	}, decls[0].PropertyList)
	s.Nil(decls[0].Properties)
}

func (s *SchemaFileTestSuite) TestEmpty() {
	decls, err := s.l.Load(s.ctx, strings.NewReader(""))
	s.NoError(err)
	s.Empty(decls)
}

func (s *SchemaFileTestSuite) TestFormatErrors() {
	cases := map[string]string{
		"scalar root":        "Person",
		"mapping root":       "objects: []",
		"scalar object":      "- Person",
		"unknown key":        "- name: Person\n  kind: x",
		"scalar properties":  "- name: Person\n  properties: x",
		"sequence property":  "- name: Person\n  properties:\n    tags: [a]",
		"duplicate property": "- name: Person\n  properties:\n    a: int\n    a: string",
	}
	for name, doc := range cases {
		_, err := s.l.Load(s.ctx, strings.NewReader(doc))
		s.ErrorAs(err, new(ErrFormat), name)
	}

	_, err := s.l.Load(s.ctx, strings.NewReader("- name: [x"))
	s.Error(err)
	_, err = s.l.Load(s.ctx, strings.NewReader("- name: Person\n  embedded: maybe"))
	s.Error(err)
}

func (s *SchemaFileTestSuite) TestFormatErrorPosition() {
	_, err := s.l.Load(s.ctx, strings.NewReader("- name: Person\n  kind: x"))
	var formatErr ErrFormat
	s.Require().ErrorAs(err, &formatErr)
	s.Equal(2, formatErr.Line)
	s.Equal(`schema file 2:9: unknown object schema key "kind"`, err.Error())
}

func (s *SchemaFileTestSuite) TestCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.l.Load(ctx, strings.NewReader(peopleYAML))
	s.ErrorIs(err, context.Canceled)
}

func (s *SchemaFileTestSuite) TestLoadFile() {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLoader(
		WithFS(fstest.MapFS{
			"schema.yaml": {Data: []byte(peopleYAML)},
			"broken.yaml": {Data: []byte("Person")},
		}),
		WithLogger(zap.New(core)),
	)

	decls, err := l.LoadFile(s.ctx, "schema.yaml")
	s.Require().NoError(err)
	s.Len(decls, 2)
	s.Equal(1, logs.FilterMessage("schema file loaded").Len())

	_, err = l.LoadFile(s.ctx, "missing.yaml")
	s.True(errors.Is(err, fs.ErrNotExist))

	_, err = l.LoadFile(s.ctx, "broken.yaml")
	s.ErrorContains(err, "broken.yaml")
	s.ErrorAs(err, new(ErrFormat))
}

func TestSchemaFileTestSuite(t *testing.T) {
	suite.Run(t, new(SchemaFileTestSuite))
}

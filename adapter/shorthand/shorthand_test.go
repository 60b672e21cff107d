package shorthand

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gerealm/domain"
)

var (
	yes = domain.Bool(true)
	no  = domain.Bool(false)
)

type ShorthandTestSuite struct {
	suite.Suite
}

func (s *ShorthandTestSuite) parse(typ string) Result {
	res, err := Parse(typ, true)
	s.Require().NoError(err)
	return res
}

func (s *ShorthandTestSuite) TestPrimitives() {
	for _, t := range []domain.PropertyType{
		domain.TypeBool, domain.TypeInt, domain.TypeFloat,
		domain.TypeDouble, domain.TypeDecimal128, domain.TypeObjectID,
		domain.TypeString, domain.TypeData, domain.TypeDate,
		domain.TypeUUID,
	} {
		s.Equal(Result{Kind: KindPrimitive, Type: t}, s.parse(string(t)))
	}
}

func (s *ShorthandTestSuite) TestBareTokens() {
	s.Equal(Result{Kind: KindMixed, Type: domain.TypeMixed, Optional: yes}, s.parse("mixed"))
	s.Equal(Result{
		Kind:       KindPrimitive,
		Type:       domain.TypeDictionary,
		ObjectType: "mixed",
		Optional:   yes,
	}, s.parse("dictionary"))
	s.Equal(Result{
		Kind:       KindPrimitive,
		Type:       domain.TypeSet,
		ObjectType: "mixed",
		Optional:   yes,
	}, s.parse("set"))
	s.Equal(Result{Kind: KindPrimitive, Type: domain.TypeList}, s.parse("list"))
	s.Equal(Result{Kind: KindPrimitive, Type: domain.TypeObject}, s.parse("object"))
}

func (s *ShorthandTestSuite) TestOptional() {
	s.Equal(Result{Kind: KindPrimitive, Type: domain.TypeInt, Optional: yes}, s.parse("int?"))
	s.Equal(Result{
		Kind:       KindObjectRef,
		Type:       domain.TypeObject,
		ObjectType: "Person",
		Optional:   yes,
	}, s.parse("Person?"))
}

func (s *ShorthandTestSuite) TestObjectReference() {
	s.Equal(Result{
		Kind:       KindObjectRef,
		Type:       domain.TypeObject,
		ObjectType: "Person",
		Optional:   yes,
	}, s.parse("Person"))
}

func (s *ShorthandTestSuite) TestList() {
	s.Equal(Result{Kind: KindList, Type: domain.TypeList, ObjectType: "int"}, s.parse("int[]"))
	s.Equal(Result{Kind: KindList, Type: domain.TypeList, ObjectType: "int", Optional: yes}, s.parse("int?[]"))
	s.Equal(Result{Kind: KindList, Type: domain.TypeList, ObjectType: "Person", Optional: no}, s.parse("Person[]"))
	// objects in lists are never optional, whatever the item says
	s.Equal(Result{Kind: KindList, Type: domain.TypeList, ObjectType: "Person", Optional: no}, s.parse("Person?[]"))
	s.Equal(Result{Kind: KindList, Type: domain.TypeList, ObjectType: "mixed", Optional: yes}, s.parse("mixed[]"))
}

func (s *ShorthandTestSuite) TestSet() {
	s.Equal(Result{Kind: KindSet, Type: domain.TypeSet, ObjectType: "string"}, s.parse("string<>"))
	s.Equal(Result{Kind: KindSet, Type: domain.TypeSet, ObjectType: "Person", Optional: yes}, s.parse("Person<>"))
	s.Equal(Result{Kind: KindSet, Type: domain.TypeSet, ObjectType: "int", Optional: yes}, s.parse("int?<>"))
}

// The empty set item defaults to mixed without optionality, while the empty
// dictionary item defaults to an optional mixed. Both are kept as is.
func (s *ShorthandTestSuite) TestDefaultItemAsymmetry() {
	set := s.parse("<>")
	s.Equal(Result{Kind: KindSet, Type: domain.TypeSet, ObjectType: "mixed"}, set)
	s.Nil(set.Optional)

	dict := s.parse("{}")
	s.Equal(Result{Kind: KindDictionary, Type: domain.TypeDictionary, ObjectType: "mixed", Optional: yes}, dict)
}

func (s *ShorthandTestSuite) TestDictionary() {
	s.Equal(Result{Kind: KindDictionary, Type: domain.TypeDictionary, ObjectType: "mixed", Optional: yes}, s.parse("mixed{}"))
	s.Equal(Result{Kind: KindDictionary, Type: domain.TypeDictionary, ObjectType: "string"}, s.parse("string{}"))
	s.Equal(Result{Kind: KindDictionary, Type: domain.TypeDictionary, ObjectType: "Person", Optional: yes}, s.parse("Person{}"))
}

func (s *ShorthandTestSuite) TestObjectTypeNotAllowed() {
	for _, typ := range []string{"int[]", "int<>", "int{}", "Person[]", "<>", "{}"} {
		_, err := Parse(typ, false)
		s.ErrorAs(err, new(domain.ErrSchema), typ)
		s.ErrorContains(err, "objectType not allowed", typ)
	}

	res, err := Parse("int?", false)
	s.NoError(err)
	s.Equal(Result{Kind: KindPrimitive, Type: domain.TypeInt, Optional: yes}, res)
}

func (s *ShorthandTestSuite) TestNestedCollections() {
	for _, typ := range []string{"int[][]", "int{}[]", "int<>{}", "Person[]<>", "int[]?[]", "dictionary[]", "set{}"} {
		_, err := Parse(typ, true)
		s.ErrorContains(err, "unexpected nested object type", typ)
	}

	_, err := Parse("list[]", true)
	s.ErrorContains(err, "lists of lists")
}

func (s *ShorthandTestSuite) TestOptionalAfterCollection() {
	_, err := Parse("string[]?", true)
	s.ErrorAs(err, new(domain.ErrSchema))
	s.ErrorContains(err, "before the collection suffix")
}

func (s *ShorthandTestSuite) TestEmptyObjectType() {
	// the validator rejects these, the parser only reports what it sees
	s.Equal(Result{Kind: KindObjectRef, Type: domain.TypeObject, ObjectType: "", Optional: yes}, s.parse(""))
	s.Equal(Result{Kind: KindList, Type: domain.TypeList, ObjectType: "", Optional: no}, s.parse("[]"))
}

func (s *ShorthandTestSuite) TestKindString() {
	s.Equal("primitive", KindPrimitive.String())
	s.Equal("object reference", KindObjectRef.String())
	s.Equal("dictionary", KindDictionary.String())
	s.Equal("unknown", Kind(42).String())
}

func TestShorthandTestSuite(t *testing.T) {
	suite.Run(t, new(ShorthandTestSuite))
}

func objectName() gopter.Gen {
	return gen.Identifier().SuchThat(func(v string) bool {
		_, primitive := domain.LookupPropertyType(v)
		return !primitive
	})
}

func itemType() gopter.Gen {
	primitives := make([]any, 0, 11)
	for _, t := range domain.PropertyTypes() {
		if t.IsPrimitive() {
			primitives = append(primitives, string(t))
		}
	}
	return gen.OneGenOf(gen.OneConstOf(primitives...), objectName())
}

func TestPropertyCollectionSuffixes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	suffixes := map[string]domain.PropertyType{
		"[]": domain.TypeList,
		"<>": domain.TypeSet,
		"{}": domain.TypeDictionary,
	}

	properties.Property("collection suffixes set the collection type", prop.ForAll(
		func(item string, suffix string) bool {
			res, err := Parse(item+suffix, true)
			if err != nil {
				return false
			}
			parsedItem, err := Parse(item, true)
			if err != nil {
				return false
			}
			if res.Type != suffixes[suffix] {
				return false
			}
			if parsedItem.Kind == KindObjectRef {
				return res.ObjectType == parsedItem.ObjectType
			}
			return res.ObjectType == string(parsedItem.Type)
		},
		itemType(),
		gen.OneConstOf("[]", "<>", "{}"),
	))

	properties.Property("objects in lists are never optional", prop.ForAll(
		func(name string) bool {
			res, err := Parse(name+"[]", true)
			return err == nil && res.ObjectType == name && res.Optional != nil && !*res.Optional
		},
		objectName(),
	))

	properties.Property("the optional marker only changes optionality", prop.ForAll(
		func(item string) bool {
			plain, err := Parse(item, true)
			if err != nil {
				return false
			}
			opt, err := Parse(item+"?", true)
			if err != nil {
				return false
			}
			return opt.IsOptional() && opt.Type == plain.Type && opt.ObjectType == plain.ObjectType
		},
		itemType(),
	))

	properties.Property("collection suffixes are rejected without object type", prop.ForAll(
		func(item string, suffix string) bool {
			_, err := Parse(item+suffix, false)
			return err != nil
		},
		itemType(),
		gen.OneConstOf("[]", "<>", "{}"),
	))

	properties.TestingRun(t)
}

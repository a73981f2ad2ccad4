// internal/css/parser_test.go
package css

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(prop, val string, important bool) Declaration {
	return Declaration{Property: Property(prop), Value: Value(val), Important: important}
}

func compound(tag, id string, classes []string, attrs []AttributeSelector) CompoundSelector {
	return CompoundSelector{TagName: tag, ID: id, Classes: classes, Attributes: attrs}
}

func TestParseCompoundSelectors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected CompoundSelector
	}{
		{"Tag", "div", compound("div", "", nil, nil)},
		{"Upper Tag", "DIV", compound("div", "", nil, nil)},
		{"ID", "#main", compound("", "main", nil, nil)},
		{"Multiple Classes", ".btn.primary", compound("", "", []string{"btn", "primary"}, nil)},
		{"Universal", "*", compound("*", "", nil, nil)},
		{"Attr Presence", "[tabindex]", compound("", "", nil, []AttributeSelector{{Name: "tabindex"}})},
		{"Attr Exact", `[type="text"]`, compound("", "", nil, []AttributeSelector{{Name: "type", Operator: "=", Value: "text"}})},
		{"Attr Unquoted", `[type=text]`, compound("", "", nil, []AttributeSelector{{Name: "type", Operator: "=", Value: "text"}})},
		{"Attr Prefix", `a[href^='https']`, compound("a", "", nil, []AttributeSelector{{Name: "href", Operator: "^=", Value: "https"}})},
		{"Attr Word", `[class~=alert]`, compound("", "", nil, []AttributeSelector{{Name: "class", Operator: "~=", Value: "alert"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := ParseSelectorList(tt.input)
			require.NoError(t, err)
			require.Len(t, list, 1)
			require.Len(t, list[0].Selectors, 1)
			assert.Equal(t, tt.expected, list[0].Selectors[0].Compound)
		})
	}
}

func TestParsePseudoClasses(t *testing.T) {
	list, err := ParseSelectorList("li:nth-child( 3 ):first-child")
	require.NoError(t, err)
	got := list[0].Selectors[0].Compound
	assert.Equal(t, "li", got.TagName)
	assert.Equal(t, []PseudoClass{{Name: "nth-child", Arg: "3"}, {Name: "first-child"}}, got.PseudoClasses)

	list, err = ParseSelectorList("a::before")
	require.NoError(t, err)
	assert.Equal(t, "before", list[0].Selectors[0].Compound.PseudoElement)

	list, err = ParseSelectorList("p:after")
	require.NoError(t, err)
	assert.Equal(t, "after", list[0].Selectors[0].Compound.PseudoElement)
	assert.Empty(t, list[0].Selectors[0].Compound.PseudoClasses)
}

func TestParseCombinatorsAndLists(t *testing.T) {
	list, err := ParseSelectorList("body > div.main p + a ~ span, #x")
	require.NoError(t, err)
	require.Len(t, list, 2)

	var combinators []Combinator
	for _, s := range list[0].Selectors {
		combinators = append(combinators, s.Combinator)
	}
	assert.Equal(t, []Combinator{
		CombinatorNone, CombinatorChild, CombinatorDescendant, CombinatorAdjacentSibling, CombinatorGeneralSibling,
	}, combinators)
	assert.Equal(t, "x", list[1].Selectors[0].Compound.ID)
}

func TestParseSelectorListRejectsInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "div,", ",div", "#", "[", "[href", `[a="b`, "a[b!=c]", "div {", ":"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSelectorList(input)
			assert.ErrorIs(t, err, ErrInvalidSelector)
		})
	}
}

func TestSpecificity(t *testing.T) {
	tests := []struct {
		input   string
		a, b, c int
	}{
		{"*", 0, 0, 0},
		{"div", 0, 0, 1},
		{"#id", 1, 0, 0},
		{"div.a.b[href]", 0, 3, 1},
		{"ul li:first-child", 0, 1, 2},
		{"a::before", 0, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			list, err := ParseSelectorList(tt.input)
			require.NoError(t, err)
			a, b, c := list[0].Specificity()
			assert.Equal(t, []int{tt.a, tt.b, tt.c}, []int{a, b, c})
		})
	}
}

func TestParseStyleSheet(t *testing.T) {
	input := `
	/* header */
	@media print { body { display: none } }
	@import url("x.css");
	h1, .title { color: red; font-size: 20px !important; }
	div > p { }
	broken { color }
	a { display: inline-block; background: url("a;b.png") }
	`
	sheet := NewParser(input).Parse()
	require.Len(t, sheet.Rules, 2)

	assert.Len(t, sheet.Rules[0].Selectors, 2)
	assert.Equal(t, []Declaration{d("color", "red", false), d("font-size", "20px", true)}, sheet.Rules[0].Declarations)
	assert.Equal(t, []Declaration{d("display", "inline-block", false), d("background", `url("a;b.png")`, false)}, sheet.Rules[1].Declarations)
}

func TestParseDeclarations(t *testing.T) {
	decls := ParseDeclarations("display:none; Visibility : hidden ;; width: 10px !IMPORTANT")
	assert.Equal(t, []Declaration{
		d("display", "none", false),
		d("visibility", "hidden", false),
		d("width", "10px", true),
	}, decls)
	assert.Empty(t, ParseDeclarations(""))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("main"))
	assert.True(t, IsIdentifier("-x1"))
	assert.False(t, IsIdentifier("1abc"))
	assert.False(t, IsIdentifier("-1"))
	assert.False(t, IsIdentifier("a.b"))
	assert.False(t, IsIdentifier(""))
}

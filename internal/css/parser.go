// internal/css/parser.go
package css

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSelector is returned by ParseSelectorList for input that is not a valid selector list.
var ErrInvalidSelector = errors.New("invalid selector")

// Property represents a CSS property (e.g., "display").
type Property string

// Value represents a CSS value (e.g., "none").
type Value string

// Declaration is a key-value pair (e.g., display: none).
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// RuleSet represents a set of declarations applied by a selector list.
type RuleSet struct {
	Selectors    SelectorList
	Declarations []Declaration
}

// StyleSheet is the top-level structure representing the parsed CSSOM.
type StyleSheet struct {
	Rules []RuleSet
}

// SelectorList represents a comma-separated list of selectors (e.g., "h1, h2 .title").
// The order is preserved; callers that care about precedence rely on it.
type SelectorList []ComplexSelector

// ComplexSelector represents a sequence of compound selectors joined by combinators (e.g., "div > p").
type ComplexSelector struct {
	Selectors []CompoundWithCombinator
}

// CompoundWithCombinator pairs a compound selector with the combinator that precedes it.
type CompoundWithCombinator struct {
	Combinator Combinator
	Compound   CompoundSelector
}

// CompoundSelector is a tag with its id, class, attribute and pseudo-class qualifiers.
type CompoundSelector struct {
	TagName       string
	ID            string
	Classes       []string
	Attributes    []AttributeSelector
	PseudoClasses []PseudoClass
	// PseudoElement is set for selectors such as "a::before". Such selectors never match an element.
	PseudoElement string
}

// AttributeSelector represents a CSS attribute selector like `[href]` or `[target="_blank"]`.
type AttributeSelector struct {
	Name     string
	Operator string // "", "=", "~=", "|=", "^=", "$=", "*="
	Value    string
}

// PseudoClass is a structural pseudo-class such as :first-child or :nth-child(3).
type PseudoClass struct {
	Name string
	Arg  string
}

// Combinator defines the relationship between compound selectors.
type Combinator int

const (
	CombinatorNone            Combinator = iota // No combinator (first selector)
	CombinatorDescendant                        // Space
	CombinatorChild                             // >
	CombinatorAdjacentSibling                   // +
	CombinatorGeneralSibling                    // ~
)

// Specificity calculates the (a, b, c) specificity of a complex selector.
func (cs ComplexSelector) Specificity() (int, int, int) {
	a, b, c := 0, 0, 0
	for _, s := range cs.Selectors {
		sa, sb, sc := s.Compound.Specificity()
		a += sa
		b += sb
		c += sc
	}
	return a, b, c
}

// Specificity calculates the specificity of a compound selector.
func (s CompoundSelector) Specificity() (a, b, c int) {
	if s.ID != "" {
		a = 1
	}
	b = len(s.Classes) + len(s.Attributes) + len(s.PseudoClasses)
	if s.TagName != "" && s.TagName != "*" {
		c = 1
	}
	if s.PseudoElement != "" {
		c++
	}
	return a, b, c
}

// IsValid checks if the selector has at least one component.
func (s CompoundSelector) IsValid() bool {
	return s.TagName != "" || s.ID != "" || len(s.Classes) > 0 || len(s.Attributes) > 0 || len(s.PseudoClasses) > 0
}

// Parser holds the state of the CSS parser.
type Parser struct {
	input  string
	pos    int
	strict bool
	err    error
}

func NewParser(input string) *Parser {
	return &Parser{input: input, pos: 0}
}

// ParseSelectorList parses a standalone selector list such as the argument of querySelectorAll.
// Unlike stylesheet parsing, any malformed component fails the whole list.
func ParseSelectorList(input string) (SelectorList, error) {
	p := &Parser{input: input, strict: true}
	list := p.parseSelectorList()
	p.consumeWhitespace()
	if p.err != nil {
		return nil, p.err
	}
	if !p.eof() {
		return nil, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrInvalidSelector, p.currentChar(), p.pos, input)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty selector %q", ErrInvalidSelector, input)
	}
	return list, nil
}

// ParseDeclarations parses the body of an inline style attribute.
func ParseDeclarations(input string) []Declaration {
	p := &Parser{input: "{" + input + "}"}
	decls, _ := p.parseDeclarations()
	return decls
}

// Parse analyzes the input CSS string and builds a StyleSheet.
func (p *Parser) Parse() StyleSheet {
	var rules []RuleSet
	for {
		p.consumeWhitespace()
		if p.eof() {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}

		// At-rules (@media, @font-face, ...) are skipped entirely.
		if p.currentChar() == '@' {
			p.skipAtRule()
			continue
		}

		selectors := p.parseSelectorList()
		if len(selectors) == 0 {
			p.skipTo('{')
			if !p.eof() && p.currentChar() == '{' {
				p.consumeChar()
				p.skipBlock('{', '}')
			}
			continue
		}

		declarations, err := p.parseDeclarations()
		if err != nil {
			p.skipTo('}')
			p.consumeChar()
			continue
		}

		if len(declarations) > 0 {
			rules = append(rules, RuleSet{Selectors: selectors, Declarations: declarations})
		}
	}
	return StyleSheet{Rules: rules}
}

func (p *Parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s", ErrInvalidSelector, fmt.Sprintf(format, args...))
	}
}

// parseSelectorList parses a comma-separated list of complex selectors.
func (p *Parser) parseSelectorList() SelectorList {
	var list SelectorList
	for {
		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '{' {
			break
		}
		complex := p.parseComplexSelector()
		if len(complex.Selectors) > 0 {
			list = append(list, complex)
		} else if p.strict {
			p.fail("empty selector in list at offset %d", p.pos)
		}

		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '{' {
			break
		}
		if p.currentChar() == ',' {
			p.consumeChar()
			p.consumeWhitespace()
			if p.strict && p.eof() {
				p.fail("trailing comma in selector list")
			}
			continue
		}
		break
	}
	return list
}

// parseComplexSelector parses a sequence of compound selectors and combinators.
func (p *Parser) parseComplexSelector() ComplexSelector {
	var complexSelector ComplexSelector
	combinator := CombinatorNone
	dangling := false

	for {
		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '{' || p.currentChar() == ',' {
			if dangling && p.strict {
				p.fail("selector ends with a combinator")
			}
			break
		}

		start := p.pos
		compound, err := p.parseCompoundSelector()
		if err != nil {
			if p.strict {
				p.fail("%v at offset %d", err, p.pos)
				p.pos = len(p.input)
				return complexSelector
			}
			if p.pos == start {
				p.consumeChar()
			}
			p.skipTo(' ', '>', '+', '~', ',', '{')
			continue
		}
		complexSelector.Selectors = append(complexSelector.Selectors, CompoundWithCombinator{
			Combinator: combinator,
			Compound:   compound,
		})
		dangling = false

		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '{' || p.currentChar() == ',' {
			break
		}

		switch p.currentChar() {
		case '>':
			combinator = CombinatorChild
			dangling = true
			p.consumeChar()
		case '+':
			combinator = CombinatorAdjacentSibling
			dangling = true
			p.consumeChar()
		case '~':
			combinator = CombinatorGeneralSibling
			dangling = true
			p.consumeChar()
		default:
			combinator = CombinatorDescendant
		}
	}
	return complexSelector
}

// parseCompoundSelector parses a single selector component (e.g., input#id.class1[type="text"]:first-child).
func (p *Parser) parseCompoundSelector() (CompoundSelector, error) {
	selector := CompoundSelector{}

	if !p.eof() {
		ch := p.currentChar()
		if ch == '*' {
			p.consumeChar()
			selector.TagName = "*"
		} else if isValidIdentifierStart(ch) {
			selector.TagName = strings.ToLower(p.parseIdentifier())
		}
	}

	for !p.eof() {
		switch p.currentChar() {
		case '#':
			p.consumeChar()
			id := p.parseIdentifier()
			if id == "" {
				return selector, fmt.Errorf("empty id selector")
			}
			selector.ID = id
		case '.':
			p.consumeChar()
			class := p.parseIdentifier()
			if class == "" {
				return selector, fmt.Errorf("empty class selector")
			}
			selector.Classes = append(selector.Classes, class)
		case '[':
			p.consumeChar()
			attr, err := p.parseAttributeSelector()
			if err != nil {
				return selector, err
			}
			selector.Attributes = append(selector.Attributes, attr)
		case ':':
			p.consumeChar()
			if !p.eof() && p.currentChar() == ':' {
				p.consumeChar()
				selector.PseudoElement = strings.ToLower(p.parseIdentifier())
				continue
			}
			pseudo, err := p.parsePseudoClass()
			if err != nil {
				return selector, err
			}
			// Legacy single-colon pseudo-elements.
			switch pseudo.Name {
			case "before", "after", "first-line", "first-letter":
				selector.PseudoElement = pseudo.Name
			default:
				selector.PseudoClasses = append(selector.PseudoClasses, pseudo)
			}
		default:
			goto done
		}
	}

done:
	if !selector.IsValid() && selector.TagName != "*" && selector.PseudoElement == "" {
		return selector, fmt.Errorf("invalid compound selector")
	}
	return selector, nil
}

// parseAttributeSelector parses the contents of `[...]` for an attribute selector.
func (p *Parser) parseAttributeSelector() (AttributeSelector, error) {
	p.consumeWhitespace()
	name := strings.ToLower(p.parseIdentifier())
	p.consumeWhitespace()

	if name == "" {
		return AttributeSelector{}, fmt.Errorf("missing attribute name")
	}
	if p.eof() {
		return AttributeSelector{}, fmt.Errorf("unexpected EOF in attribute selector")
	}

	if p.currentChar() == ']' {
		p.consumeChar()
		return AttributeSelector{Name: name}, nil
	}

	var operator strings.Builder
	first := p.consumeChar()
	operator.WriteByte(first)
	if first != '=' {
		if p.eof() || p.currentChar() != '=' {
			return AttributeSelector{}, fmt.Errorf("malformed attribute operator")
		}
		operator.WriteByte(p.consumeChar())
	}
	switch operator.String() {
	case "=", "~=", "|=", "^=", "$=", "*=":
	default:
		return AttributeSelector{}, fmt.Errorf("unknown attribute operator %q", operator.String())
	}

	p.consumeWhitespace()

	var value string
	if p.currentChar() == '"' || p.currentChar() == '\'' {
		quote := p.currentChar()
		p.consumeChar()
		start := p.pos
		for !p.eof() && p.currentChar() != quote {
			p.pos++
		}
		if p.eof() {
			return AttributeSelector{}, fmt.Errorf("unterminated attribute value")
		}
		value = p.input[start:p.pos]
		p.consumeChar()
	} else {
		value = p.parseIdentifier()
	}
	p.consumeWhitespace()

	if p.eof() || p.currentChar() != ']' {
		return AttributeSelector{}, fmt.Errorf("expected ']' to close attribute selector")
	}
	p.consumeChar()

	return AttributeSelector{
		Name:     name,
		Operator: operator.String(),
		Value:    value,
	}, nil
}

// parsePseudoClass parses the name and optional parenthesised argument after ':'.
func (p *Parser) parsePseudoClass() (PseudoClass, error) {
	name := strings.ToLower(p.parseIdentifier())
	if name == "" {
		return PseudoClass{}, fmt.Errorf("empty pseudo-class")
	}
	pseudo := PseudoClass{Name: name}
	if !p.eof() && p.currentChar() == '(' {
		p.consumeChar()
		start := p.pos
		p.skipTo(')')
		if p.eof() {
			return PseudoClass{}, fmt.Errorf("unterminated pseudo-class argument")
		}
		pseudo.Arg = strings.TrimSpace(p.input[start:p.pos])
		p.consumeChar()
	}
	return pseudo, nil
}

// parseDeclarations parses the content within { ... }.
func (p *Parser) parseDeclarations() ([]Declaration, error) {
	p.consumeWhitespace()
	if p.eof() || p.currentChar() != '{' {
		return nil, fmt.Errorf("expected '{' at start of declarations")
	}
	p.consumeChar()

	var declarations []Declaration
	for {
		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '}' {
			break
		}

		if p.startsWith("/*") {
			p.skipComment()
			continue
		}

		property, value, important := p.parseDeclaration()
		if property != "" && value != "" {
			declarations = append(declarations, Declaration{
				Property:  Property(strings.ToLower(property)),
				Value:     Value(value),
				Important: important,
			})
		}
	}

	if !p.eof() && p.currentChar() == '}' {
		p.consumeChar()
	}
	return declarations, nil
}

// parseDeclaration parses a single 'property: value;' pair.
func (p *Parser) parseDeclaration() (prop, val string, important bool) {
	if !isValidIdentifierStart(p.currentChar()) {
		p.skipTo(';', '}')
		if !p.eof() && p.currentChar() == ';' {
			p.consumeChar()
		}
		return
	}
	prop = p.parseIdentifier()
	p.consumeWhitespace()

	if p.eof() || p.currentChar() != ':' {
		p.skipTo(';', '}')
		if !p.eof() && p.currentChar() == ';' {
			p.consumeChar()
		}
		return "", "", false
	}
	p.consumeChar()
	p.consumeWhitespace()

	val = p.parseValue()

	if strings.HasSuffix(strings.ToLower(val), "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}

	p.consumeWhitespace()
	if !p.eof() && p.currentChar() == ';' {
		p.consumeChar()
	}
	return
}

// parseValue reads a CSS value until a delimiter.
func (p *Parser) parseValue() string {
	start := p.pos
	for !p.eof() {
		ch := p.currentChar()
		if ch == ';' || ch == '}' {
			break
		}
		if ch == '"' || ch == '\'' {
			p.skipQuotedString(ch)
			continue
		}
		if ch == '(' {
			p.consumeChar()
			p.skipBlock('(', ')')
			continue
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

// -- Lexer-like Helpers --

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *Parser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) consumeChar() byte {
	ch := p.currentChar()
	if !p.eof() {
		p.pos++
	}
	return ch
}

func (p *Parser) consumeWhitespace() {
	for !p.eof() && isWhitespace(p.currentChar()) {
		p.pos++
	}
}

func (p *Parser) startsWith(s string) bool {
	if p.pos+len(s) > len(p.input) {
		return false
	}
	return p.input[p.pos:p.pos+len(s)] == s
}

func (p *Parser) skipComment() {
	p.pos += 2
	endIndex := strings.Index(p.input[p.pos:], "*/")
	if endIndex == -1 {
		p.pos = len(p.input)
	} else {
		p.pos += endIndex + 2
	}
}

func (p *Parser) skipTo(targets ...byte) {
	for !p.eof() {
		ch := p.currentChar()
		for _, target := range targets {
			if ch == target {
				return
			}
		}
		p.pos++
	}
}

// skipBlock consumes input up to and including the close byte matching an already consumed open byte.
func (p *Parser) skipBlock(open, close byte) {
	depth := 1
	for !p.eof() {
		c := p.consumeChar()
		if c == open {
			depth++
		} else if c == close {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *Parser) skipQuotedString(quote byte) {
	p.consumeChar()
	for !p.eof() {
		ch := p.consumeChar()
		if ch == '\\' {
			p.consumeChar()
		} else if ch == quote {
			return
		}
	}
}

func (p *Parser) skipAtRule() {
	p.consumeChar()
	_ = p.parseIdentifier()
	p.consumeWhitespace()
	for !p.eof() {
		ch := p.currentChar()
		if ch == '{' {
			p.consumeChar()
			p.skipBlock('{', '}')
			return
		}
		if ch == ';' {
			p.consumeChar()
			return
		}
		p.pos++
	}
}

func (p *Parser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isValidIdentifierChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// IsIdentifier reports whether s can be written as a CSS identifier without escaping.
func IsIdentifier(s string) bool {
	if s == "" || !isValidIdentifierStart(s[0]) {
		return false
	}
	if s[0] == '-' && (len(s) == 1 || (s[1] >= '0' && s[1] <= '9')) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isValidIdentifierChar(s[i]) {
			return false
		}
	}
	return true
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isValidIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isValidIdentifierChar(ch byte) bool {
	return isValidIdentifierStart(ch) || (ch >= '0' && ch <= '9')
}

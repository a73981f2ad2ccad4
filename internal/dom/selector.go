// internal/dom/selector.go
package dom

import (
	"strconv"
	"strings"
	"sync"

	"github.com/xkilldash9x/focusmap/internal/css"
)

var selectorCache sync.Map // string -> compiled

type compiled struct {
	list css.SelectorList
	err  error
}

// Compile parses a selector list, caching the result by source text.
func Compile(selector string) (css.SelectorList, error) {
	if v, ok := selectorCache.Load(selector); ok {
		c := v.(compiled)
		return c.list, c.err
	}
	list, err := css.ParseSelectorList(selector)
	selectorCache.Store(selector, compiled{list: list, err: err})
	return list, err
}

// MatchesSelector reports whether el matches the selector text. Selectors that fail to parse match nothing.
func MatchesSelector(el Element, selector string) bool {
	list, err := Compile(selector)
	if err != nil {
		return false
	}
	return Matches(el, list)
}

// Matches reports whether el matches any complex selector of the list.
func Matches(el Element, list css.SelectorList) bool {
	if el == nil {
		return false
	}
	_, ok := MatchingSelector(el, list)
	return ok
}

// MatchingSelector returns the first complex selector of the list that matches el.
func MatchingSelector(el Element, list css.SelectorList) (*css.ComplexSelector, bool) {
	for i := range list {
		last := len(list[i].Selectors) - 1
		if last < 0 {
			continue
		}
		if recursiveMatch(el, list[i], last) {
			return &list[i], true
		}
	}
	return nil, false
}

func recursiveMatch(el Element, complexSelector css.ComplexSelector, index int) bool {
	if el == nil || index < 0 {
		return false
	}
	current := complexSelector.Selectors[index]
	if !matchesCompound(el, current.Compound) {
		return false
	}
	if index == 0 {
		return true
	}
	next := index - 1
	switch current.Combinator {
	case css.CombinatorDescendant:
		for parent := el.Parent(); parent != nil; parent = parent.Parent() {
			if recursiveMatch(parent, complexSelector, next) {
				return true
			}
		}
		return false
	case css.CombinatorChild:
		return recursiveMatch(el.Parent(), complexSelector, next)
	case css.CombinatorAdjacentSibling:
		return recursiveMatch(el.PreviousElementSibling(), complexSelector, next)
	case css.CombinatorGeneralSibling:
		for sibling := el.PreviousElementSibling(); sibling != nil; sibling = sibling.PreviousElementSibling() {
			if recursiveMatch(sibling, complexSelector, next) {
				return true
			}
		}
		return false
	case css.CombinatorNone:
		return true
	}
	return false
}

func matchesCompound(el Element, selector css.CompoundSelector) bool {
	if selector.PseudoElement != "" {
		return false
	}
	if selector.TagName != "" && selector.TagName != "*" && el.TagName() != selector.TagName {
		return false
	}
	if selector.ID != "" {
		if id, ok := el.Attribute("id"); !ok || id != selector.ID {
			return false
		}
	}
	if len(selector.Classes) > 0 {
		classAttr, _ := el.Attribute("class")
		classes := strings.Fields(classAttr)
		for _, required := range selector.Classes {
			if !containsString(classes, required) {
				return false
			}
		}
	}
	for _, attrSel := range selector.Attributes {
		if !matchesAttribute(el, attrSel) {
			return false
		}
	}
	for _, pseudo := range selector.PseudoClasses {
		if !matchesPseudoClass(el, pseudo) {
			return false
		}
	}
	return true
}

func matchesAttribute(el Element, sel css.AttributeSelector) bool {
	actual, found := el.Attribute(sel.Name)
	if !found {
		return false
	}

	switch sel.Operator {
	case "":
		return true
	case "=":
		return actual == sel.Value
	case "~=":
		return containsString(strings.Fields(actual), sel.Value)
	case "|=":
		return actual == sel.Value || strings.HasPrefix(actual, sel.Value+"-")
	case "^=":
		return sel.Value != "" && strings.HasPrefix(actual, sel.Value)
	case "$=":
		return sel.Value != "" && strings.HasSuffix(actual, sel.Value)
	case "*=":
		return sel.Value != "" && strings.Contains(actual, sel.Value)
	default:
		return false
	}
}

func matchesPseudoClass(el Element, pseudo css.PseudoClass) bool {
	switch pseudo.Name {
	case "first-child":
		return el.PreviousElementSibling() == nil && el.Parent() != nil
	case "nth-child":
		n, err := strconv.Atoi(pseudo.Arg)
		if err != nil {
			return false
		}
		return el.Parent() != nil && ChildIndex(el) == n
	case "root":
		return el.Parent() == nil && el.TagName() == "html"
	default:
		return false
	}
}

// ChildIndex returns the 1-based position of el among its element siblings.
func ChildIndex(el Element) int {
	i := 1
	for s := el.PreviousElementSibling(); s != nil; s = s.PreviousElementSibling() {
		i++
	}
	return i
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

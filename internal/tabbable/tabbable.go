// internal/tabbable/tabbable.go
package tabbable

import (
	"slices"
	"strings"

	"github.com/xkilldash9x/focusmap/internal/dom"
)

// candidateSelectors is the ordered set of selectors that can yield tabbable elements.
// The order is the scan precedence for elements that share a tab index.
var candidateSelectors = [...]string{
	"input",
	"select",
	"textarea",
	"button",
	"a[href]",
	"a[tabindex]",
	"object",
	"[tabindex]",
	"area[href]",
}

// Selectors is the candidate list joined into a single selector list.
var Selectors = strings.Join(candidateSelectors[:], ", ")

// CandidateSelectors returns a copy of the ordered candidate list.
func CandidateSelectors() []string {
	return slices.Clone(candidateSelectors[:])
}

// maxAncestorDepth bounds ancestor walks so a malformed parent chain cannot loop forever.
const maxAncestorDepth = 4096

// disableableElements are the form controls the disabled attribute applies to.
var disableableElements = map[string]bool{
	"button": true, "input": true, "select": true, "textarea": true,
	"optgroup": true, "option": true, "fieldset": true,
}

// Element is a tabbable element tagged with its position among the tabbable survivors of a scan.
type Element struct {
	Element       dom.Element
	OriginalIndex int
}

// Classifier decides which elements of a document take part in sequential keyboard navigation.
type Classifier struct {
	utils dom.Utils
}

func New(utils dom.Utils) *Classifier {
	return &Classifier{utils: utils}
}

// GetAllTabbableElements returns the tabbable elements in encounter order.
func (c *Classifier) GetAllTabbableElements() []Element {
	var out []Element
	for _, el := range c.utils.QuerySelectorAll(Selectors) {
		if c.IsTabbable(el) {
			out = append(out, Element{Element: el, OriginalIndex: len(out)})
		}
	}
	return out
}

// GetSortedTabbableElements returns the tabbable elements in tab order.
func (c *Classifier) GetSortedTabbableElements() []Element {
	elements := c.GetAllTabbableElements()
	SortTabbableElements(elements)
	return elements
}

// CurrentFocusedElement returns the element that currently has focus.
func (c *Classifier) CurrentFocusedElement() dom.Element {
	return c.utils.CurrentFocusedElement()
}

// IsTabbable reports whether el can receive focus from the Tab key.
// An <area> is tabbable exactly when it belongs to a map that an image uses.
func (c *Classifier) IsTabbable(el dom.Element) bool {
	if el == nil {
		return false
	}
	if c.utils.TagName(el) == "area" {
		return c.GetAncestorMap(el) != nil
	}
	if isDisabled(el) {
		return false
	}
	if v, ok := el.Attribute("tabindex"); ok {
		if n, ok := dom.ParseInteger(v); ok && n < 0 {
			return false
		}
	}
	return c.isVisible(el) && c.utils.ElementMatches(el, Selectors)
}

func (c *Classifier) isVisible(el dom.Element) bool {
	style := c.utils.ComputedStyle(el)
	return style.Visibility != "hidden" &&
		style.Display != "none" &&
		c.utils.OffsetHeight(el) > 0 &&
		c.utils.OffsetWidth(el) > 0 &&
		len(c.utils.ClientRects(el)) > 0
}

// isDisabled applies the disabled attribute to form controls, including those inside a
// disabled fieldset other than in its first legend.
func isDisabled(el dom.Element) bool {
	tag := el.TagName()
	if !disableableElements[tag] {
		return false
	}
	if _, ok := el.Attribute("disabled"); ok {
		return true
	}

	child := el
	for depth, a := 0, el.Parent(); a != nil && depth < maxAncestorDepth; depth, a = depth+1, a.Parent() {
		if a.TagName() == "fieldset" {
			if _, ok := a.Attribute("disabled"); ok && !isFirstLegend(child) {
				return true
			}
		}
		child = a
	}
	return false
}

// isFirstLegend reports whether el is a <legend> with no preceding <legend> sibling.
func isFirstLegend(el dom.Element) bool {
	if el.TagName() != "legend" {
		return false
	}
	for s := el.PreviousElementSibling(); s != nil; s = s.PreviousElementSibling() {
		if s.TagName() == "legend" {
			return false
		}
	}
	return true
}

// GetAncestorMap returns the nearest ancestor <map> of el when that map is used by an image.
func (c *Classifier) GetAncestorMap(el dom.Element) dom.Element {
	if el == nil {
		return nil
	}
	for depth, a := 0, el.Parent(); a != nil && depth < maxAncestorDepth; depth, a = depth+1, a.Parent() {
		if c.utils.TagName(a) == "map" {
			if c.GetMappedImage(a) != nil {
				return a
			}
			return nil
		}
	}
	return nil
}

// GetMappedImage returns the first visible image whose usemap refers to the map's name.
func (c *Classifier) GetMappedImage(m dom.Element) dom.Element {
	if m == nil {
		return nil
	}
	name, ok := m.Attribute("name")
	if !ok || name == "" {
		return nil
	}
	for _, img := range c.utils.QuerySelectorAll("img[usemap]") {
		if usemap, _ := img.Attribute("usemap"); usemap == "#"+name && c.isVisible(img) {
			return img
		}
	}
	return nil
}

// TabIndex returns the parsed tabindex of el, or 0 when absent or unparsable.
func TabIndex(el dom.Element) int {
	if el == nil {
		return 0
	}
	v, ok := el.Attribute("tabindex")
	if !ok {
		return 0
	}
	n, ok := dom.ParseInteger(v)
	if !ok {
		return 0
	}
	return n
}

// CompareTabOrder is the three-way tab order comparator. Equal indices keep encounter
// order, a zero index sorts after any non-zero index, other indices sort ascending.
func CompareTabOrder(a, b Element) int {
	ta, tb := TabIndex(a.Element), TabIndex(b.Element)
	switch {
	case ta == tb:
		return a.OriginalIndex - b.OriginalIndex
	case ta == 0:
		return 1
	case tb == 0:
		return -1
	case ta < tb:
		return -1
	default:
		return 1
	}
}

// SortTabbableElements sorts elements in place into tab order.
func SortTabbableElements(elements []Element) {
	slices.SortStableFunc(elements, CompareTabOrder)
}

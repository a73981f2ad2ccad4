// internal/dom/dom.go
package dom

import (
	"context"
)

// Element is a non-owning reference to an element node of a Document.
// Implementations return an untyped nil from Parent and PreviousElementSibling when there is none.
type Element interface {
	// TagName returns the lower case tag name.
	TagName() string
	Attribute(name string) (string, bool)
	Parent() Element
	PreviousElementSibling() Element
}

// Rect is a viewport-relative box in CSS pixels.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Point is a document-relative position in CSS pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Style is the subset of the computed style the engine reads.
type Style struct {
	Display    string
	Visibility string
	Position   string
}

// Metrics describes the scroll offset and the full scrollable extent of a document.
type Metrics struct {
	ScrollX        float64
	ScrollY        float64
	DocumentWidth  float64
	DocumentHeight float64
}

// Utils is the read-only geometry and query seam over a rendered document.
// Every accessor is a pure pass-through; callers guard against nil elements.
type Utils interface {
	ComputedStyle(el Element) Style
	OffsetHeight(el Element) float64
	OffsetWidth(el Element) float64
	ClientRects(el Element) []Rect
	BoundingClientRect(el Element) Rect
	// QuerySelector returns nil when nothing matches or the selector does not parse.
	QuerySelector(selector string) Element
	QuerySelectorAll(selector string) []Element
	ElementMatches(el Element, selector string) bool
	CurrentFocusedElement() Element
	TagName(el Element) string
}

// Overlay is a drawer-owned node appended to the end of the body.
type Overlay struct {
	ID         string
	Tag        string
	Attributes map[string]string
	// Content is the inner markup. For a style overlay it is the stylesheet text.
	Content string
}

// Document is a Utils that drawers can also decorate.
type Document interface {
	Utils
	Body() Element
	DocumentElement() Element
	Metrics() Metrics

	AddClass(ctx context.Context, el Element, class string) error
	RemoveClass(ctx context.Context, el Element, class string) error
	// InjectOverlay replaces any existing overlay with the same ID.
	InjectOverlay(ctx context.Context, overlay Overlay) error
	// RemoveOverlay is a no-op when no overlay has the ID.
	RemoveOverlay(ctx context.Context, id string) error
}

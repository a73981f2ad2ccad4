// internal/visualization/drawer_utils.go
package visualization

import (
	"github.com/xkilldash9x/focusmap/internal/dom"
)

// DrawerUtils owns the document math shared by the drawers and the center calculator.
// Overlays are absolutely positioned children of the body, so every coordinate they
// use is relative to the body's containing block.
type DrawerUtils struct {
	doc dom.Document
}

func NewDrawerUtils(doc dom.Document) *DrawerUtils {
	return &DrawerUtils{doc: doc}
}

// Document returns the decorated document.
func (u *DrawerUtils) Document() dom.Document {
	return u.doc
}

// DocumentOffset returns the document-relative top-left corner of el's border box.
func (u *DrawerUtils) DocumentOffset(el dom.Element) dom.Point {
	r := u.doc.BoundingClientRect(el)
	m := u.doc.Metrics()
	return dom.Point{X: r.X + m.ScrollX, Y: r.Y + m.ScrollY}
}

// ContainerOrigin returns the document offset of the block an overlay is positioned
// against: the body, else the root element, when positioned, otherwise the page origin.
func (u *DrawerUtils) ContainerOrigin() dom.Point {
	for _, el := range []dom.Element{u.doc.Body(), u.doc.DocumentElement()} {
		if el == nil {
			continue
		}
		if pos := u.doc.ComputedStyle(el).Position; pos != "" && pos != "static" {
			return u.DocumentOffset(el)
		}
	}
	return dom.Point{}
}

// DocumentSize returns the full scrollable extent of the document.
func (u *DrawerUtils) DocumentSize() (width, height float64) {
	m := u.doc.Metrics()
	return m.DocumentWidth, m.DocumentHeight
}

// IsOutsideOfDocument reports whether a viewport rect lies entirely outside the document extent.
func (u *DrawerUtils) IsOutsideOfDocument(r dom.Rect) bool {
	m := u.doc.Metrics()
	left, top := r.Left()+m.ScrollX, r.Top()+m.ScrollY
	right, bottom := r.Right()+m.ScrollX, r.Bottom()+m.ScrollY
	return right < 0 || bottom < 0 || left > m.DocumentWidth || top > m.DocumentHeight
}

// ContainerLeftOffset converts a document x coordinate into container space, clamped to the document.
func (u *DrawerUtils) ContainerLeftOffset(offset dom.Point) float64 {
	return max(0, offset.X-u.ContainerOrigin().X)
}

func (u *DrawerUtils) ContainerTopOffset(offset dom.Point) float64 {
	return max(0, offset.Y-u.ContainerOrigin().Y)
}

// ContainerWidth returns the part of a box of the given width, starting at offset, that lies
// inside the document.
func (u *DrawerUtils) ContainerWidth(offset dom.Point, width float64) float64 {
	x := offset.X - u.ContainerOrigin().X
	docWidth, _ := u.DocumentSize()
	return clip(x, width, docWidth)
}

func (u *DrawerUtils) ContainerHeight(offset dom.Point, height float64) float64 {
	y := offset.Y - u.ContainerOrigin().Y
	_, docHeight := u.DocumentSize()
	return clip(y, height, docHeight)
}

func clip(start, size, limit float64) float64 {
	return max(0, min(start+size, limit)-max(start, 0))
}

// internal/dom/htmldoc/document.go
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/focusmap/internal/css"
	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/observability"
)

const (
	DefaultViewportWidth  = 1280.0
	DefaultViewportHeight = 720.0
)

// Document is a static, fully laid out HTML document. It implements dom.Document.
// Styles and layout are computed lazily and recomputed after any mutation.
// A Document is not safe for concurrent use.
type Document struct {
	root   *html.Node
	logger *zap.Logger

	viewportWidth  float64
	viewportHeight float64
	scrollX        float64
	scrollY        float64

	elements map[*html.Node]*element
	focused  *html.Node

	dirty  bool
	styles *styleEngine
	layout *layoutEngine

	// addedClasses remembers the class attribute as it was before the first AddClass so
	// removing every added class restores it exactly, in any order.
	addedClasses map[*html.Node]*classRecord
	overlays     map[string]*html.Node

	// linkedSheets holds the text supplied for <link rel="stylesheet"> hrefs.
	linkedSheets map[string]css.StyleSheet
}

type classRecord struct {
	original string
	existed  bool
	added    map[string]bool
}

// Option configures a Document.
type Option func(*Document)

// WithViewport sets the viewport size used for layout and viewport units.
func WithViewport(width, height float64) Option {
	return func(d *Document) {
		if width > 0 {
			d.viewportWidth = width
		}
		if height > 0 {
			d.viewportHeight = height
		}
	}
}

// WithScroll sets the scroll offset. Client rects of non-fixed boxes shift by it.
func WithScroll(x, y float64) Option {
	return func(d *Document) {
		d.scrollX, d.scrollY = x, y
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	d := &Document{
		root:           root,
		logger:         observability.GetLogger().Named("htmldoc"),
		viewportWidth:  DefaultViewportWidth,
		viewportHeight: DefaultViewportHeight,
		elements:       make(map[*html.Node]*element),
		dirty:          true,
		addedClasses:   make(map[*html.Node]*classRecord),
		overlays:       make(map[string]*html.Node),
		linkedSheets:   make(map[string]css.StyleSheet),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.styles = newStyleEngine(d)
	return d, nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Render writes the current document, including decorations, as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// StylesheetLinks returns the href of every <link rel="stylesheet"> in document order,
// as written in the markup. Duplicates are reported once.
func (d *Document) StylesheetLinks() []string {
	var hrefs []string
	seen := make(map[string]bool)
	walkElements(d.root, func(n *html.Node) bool {
		if href, ok := stylesheetHref(n); ok && !seen[href] {
			seen[href] = true
			hrefs = append(hrefs, href)
		}
		return true
	})
	return hrefs
}

// AddStylesheet supplies the text behind a linked stylesheet. The sheet cascades at the
// position of its <link> element. Links without text are skipped.
func (d *Document) AddStylesheet(href, text string) {
	d.linkedSheets[href] = css.NewParser(text).Parse()
	d.invalidate()
}

// Focus makes el the focused element. A nil el resets focus to the body.
func (d *Document) Focus(el dom.Element) {
	if n := d.node(el); n != nil {
		d.focused = n
		return
	}
	d.focused = nil
}

// HTML returns the outer HTML of el.
func (d *Document) HTML(el dom.Element) string {
	n := d.node(el)
	if n == nil {
		return ""
	}
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// element wraps an *html.Node. Each node has exactly one wrapper so wrappers compare equal by identity.
type element struct {
	doc *Document
	n   *html.Node
}

func (e *element) TagName() string { return e.n.Data }

func (e *element) Attribute(name string) (string, bool) { return attr(e.n, strings.ToLower(name)) }

func (e *element) Parent() dom.Element {
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

func (e *element) PreviousElementSibling() dom.Element {
	for s := e.n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return e.doc.wrap(s)
		}
	}
	return nil
}

func (e *element) String() string { return "<" + e.n.Data + ">" }

func (d *Document) wrap(n *html.Node) *element {
	if e, ok := d.elements[n]; ok {
		return e
	}
	e := &element{doc: d, n: n}
	d.elements[n] = e
	return e
}

// wrapElement returns an untyped nil for a nil node.
func (d *Document) wrapElement(n *html.Node) dom.Element {
	if n == nil {
		return nil
	}
	return d.wrap(n)
}

func (d *Document) node(el dom.Element) *html.Node {
	e, ok := el.(*element)
	if !ok || e == nil || e.doc != d {
		return nil
	}
	return e.n
}

// ensureLayout recomputes styles and geometry when the document changed since the last read.
func (d *Document) ensureLayout() {
	if !d.dirty {
		return
	}
	d.styles.build(d.root)
	d.layout = newLayoutEngine(d, d.styles.styles)
	d.layout.run(d.documentElementNode())
	d.dirty = false
}

func (d *Document) invalidate() { d.dirty = true }

func (d *Document) geometry(el dom.Element) *geometry {
	n := d.node(el)
	if n == nil {
		return nil
	}
	d.ensureLayout()
	return d.layout.geoms[n]
}

// -- dom.Utils --

func (d *Document) ComputedStyle(el dom.Element) dom.Style {
	n := d.node(el)
	if n == nil {
		return dom.Style{}
	}
	d.ensureLayout()
	if cs, ok := d.styles.styles[n]; ok {
		return cs.public()
	}
	return dom.Style{Display: "inline", Visibility: "visible", Position: "static"}
}

func (d *Document) OffsetHeight(el dom.Element) float64 {
	if g := d.geometry(el); g != nil {
		return math.Round(g.border.Height)
	}
	return 0
}

func (d *Document) OffsetWidth(el dom.Element) float64 {
	if g := d.geometry(el); g != nil {
		return math.Round(g.border.Width)
	}
	return 0
}

func (d *Document) ClientRects(el dom.Element) []dom.Rect {
	g := d.geometry(el)
	if g == nil {
		return nil
	}
	rects := make([]dom.Rect, 0, len(g.rects))
	for _, r := range g.rects {
		rects = append(rects, d.toViewport(r, g.fixed))
	}
	return rects
}

func (d *Document) BoundingClientRect(el dom.Element) dom.Rect {
	g := d.geometry(el)
	if g == nil {
		return dom.Rect{}
	}
	return d.toViewport(g.border, g.fixed)
}

func (d *Document) toViewport(r dom.Rect, fixed bool) dom.Rect {
	if fixed {
		return r
	}
	r.X -= d.scrollX
	r.Y -= d.scrollY
	return r
}

func (d *Document) QuerySelector(selector string) dom.Element {
	list, err := dom.Compile(selector)
	if err != nil {
		d.logger.Debug("Ignoring unparsable selector.", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	var found *html.Node
	walkElements(d.root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if dom.Matches(d.wrap(n), list) {
			found = n
			return false
		}
		return true
	})
	return d.wrapElement(found)
}

func (d *Document) QuerySelectorAll(selector string) []dom.Element {
	list, err := dom.Compile(selector)
	if err != nil {
		d.logger.Debug("Ignoring unparsable selector.", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	var out []dom.Element
	walkElements(d.root, func(n *html.Node) bool {
		if dom.Matches(d.wrap(n), list) {
			out = append(out, d.wrap(n))
		}
		return true
	})
	return out
}

// CountID returns how many elements carry id.
func (d *Document) CountID(id string) int {
	count := 0
	walkElements(d.root, func(n *html.Node) bool {
		if v, ok := attr(n, "id"); ok && v == id {
			count++
		}
		return true
	})
	return count
}

func (d *Document) ElementMatches(el dom.Element, selector string) bool {
	if d.node(el) == nil {
		return false
	}
	return dom.MatchesSelector(el, selector)
}

// CurrentFocusedElement returns the focused element, or the body when nothing has focus.
func (d *Document) CurrentFocusedElement() dom.Element {
	if d.focused != nil && isAttached(d.root, d.focused) {
		return d.wrap(d.focused)
	}
	return d.Body()
}

func (d *Document) TagName(el dom.Element) string {
	if el == nil {
		return ""
	}
	return el.TagName()
}

// -- dom.Document --

func (d *Document) Body() dom.Element {
	root := d.documentElementNode()
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return d.wrap(c)
		}
	}
	return nil
}

func (d *Document) DocumentElement() dom.Element {
	return d.wrapElement(d.documentElementNode())
}

func (d *Document) documentElementNode() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func (d *Document) Metrics() dom.Metrics {
	d.ensureLayout()
	return dom.Metrics{
		ScrollX:        d.scrollX,
		ScrollY:        d.scrollY,
		DocumentWidth:  d.layout.extentW,
		DocumentHeight: d.layout.extentH,
	}
}

func (d *Document) AddClass(_ context.Context, el dom.Element, class string) error {
	n := d.node(el)
	if n == nil {
		return fmt.Errorf("add class %q: element does not belong to this document", class)
	}
	value, exists := attr(n, "class")
	for _, c := range strings.Fields(value) {
		if c == class {
			return nil
		}
	}
	rec := d.addedClasses[n]
	if rec == nil {
		rec = &classRecord{original: value, existed: exists, added: make(map[string]bool)}
		d.addedClasses[n] = rec
	}
	rec.added[class] = true

	next := class
	if strings.TrimSpace(value) != "" {
		next = value + " " + class
	}
	setAttr(n, "class", next)
	d.invalidate()
	return nil
}

func (d *Document) RemoveClass(_ context.Context, el dom.Element, class string) error {
	n := d.node(el)
	if n == nil {
		return fmt.Errorf("remove class %q: element does not belong to this document", class)
	}
	value, exists := attr(n, "class")
	if !exists {
		return nil
	}
	fields := strings.Fields(value)
	kept := slices.DeleteFunc(slices.Clone(fields), func(c string) bool { return c == class })
	if len(kept) == len(fields) {
		return nil
	}

	if rec := d.addedClasses[n]; rec != nil {
		delete(rec.added, class)
		if len(rec.added) == 0 {
			delete(d.addedClasses, n)
			if slices.Equal(kept, strings.Fields(rec.original)) {
				if rec.existed {
					setAttr(n, "class", rec.original)
				} else {
					removeAttr(n, "class")
				}
				d.invalidate()
				return nil
			}
		}
	}

	setAttr(n, "class", strings.Join(kept, " "))
	d.invalidate()
	return nil
}

func (d *Document) InjectOverlay(_ context.Context, overlay dom.Overlay) error {
	if overlay.ID == "" {
		return fmt.Errorf("overlay requires an id")
	}
	tag := strings.ToLower(overlay.Tag)
	if tag == "" {
		tag = "div"
	}
	d.removeOverlay(overlay.ID)

	parent := d.node(d.Body())
	if parent == nil {
		parent = d.documentElementNode()
	}
	if parent == nil {
		return fmt.Errorf("inject overlay %q: document has no root element", overlay.ID)
	}

	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	n.Attr = append(n.Attr, html.Attribute{Key: "id", Val: overlay.ID})
	keys := make([]string, 0, len(overlay.Attributes))
	for k := range overlay.Attributes {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: overlay.Attributes[k]})
	}

	if overlay.Content != "" {
		if tag == "style" || tag == "script" {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: overlay.Content})
		} else {
			children, err := html.ParseFragment(strings.NewReader(overlay.Content), n)
			if err != nil {
				return fmt.Errorf("inject overlay %q: failed to parse content: %w", overlay.ID, err)
			}
			for _, c := range children {
				n.AppendChild(c)
			}
		}
	}

	parent.AppendChild(n)
	d.overlays[overlay.ID] = n
	d.invalidate()
	d.logger.Debug("Injected overlay.", zap.String("id", overlay.ID), zap.String("tag", tag))
	return nil
}

func (d *Document) RemoveOverlay(_ context.Context, id string) error {
	if d.removeOverlay(id) {
		d.logger.Debug("Removed overlay.", zap.String("id", id))
	}
	return nil
}

func (d *Document) removeOverlay(id string) bool {
	n, ok := d.overlays[id]
	if !ok {
		return false
	}
	delete(d.overlays, id)
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	d.invalidate()
	return true
}

// IsOverlay reports whether el is, or is inside, a drawer-owned overlay.
func (d *Document) IsOverlay(el dom.Element) bool {
	n := d.node(el)
	for ; n != nil; n = n.Parent {
		if id, ok := attr(n, "id"); ok && d.overlays[id] == n {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func isAttached(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// internal/dom/htmldoc/layout.go
package htmldoc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/focusmap/internal/css"
	"github.com/xkilldash9x/focusmap/internal/dom"
)

// Edges holds the four sides of a margin, border or padding.
type Edges struct {
	Top, Right, Bottom, Left float64
}

func (e Edges) horizontal() float64 { return e.Left + e.Right }
func (e Edges) vertical() float64   { return e.Top + e.Bottom }

// geometry is the laid out position of one element in document coordinates.
type geometry struct {
	border dom.Rect
	margin Edges
	// rects are the client rects. Block and atomic boxes have exactly one; inline boxes one per line.
	rects []dom.Rect
	fixed bool
}

type pendingBox struct {
	node             *html.Node
	staticX, staticY float64
}

// layoutEngine performs a simplified CSS 2 layout: block flow with sibling margin
// collapsing, inline line boxes with word wrapping, atomic inline boxes with
// shrink-to-fit widths, and absolute, fixed and relative positioning.
type layoutEngine struct {
	doc     *Document
	styles  map[*html.Node]*computedStyle
	geoms   map[*html.Node]*geometry
	pending []pendingBox
	vw, vh  float64
	extentW float64
	extentH float64
}

func newLayoutEngine(doc *Document, styles map[*html.Node]*computedStyle) *layoutEngine {
	return &layoutEngine{
		doc:     doc,
		styles:  styles,
		geoms:   make(map[*html.Node]*geometry),
		vw:      doc.viewportWidth,
		vh:      doc.viewportHeight,
	}
}

func (l *layoutEngine) run(root *html.Node) {
	if root == nil {
		return
	}
	cs := l.styles[root]
	if cs == nil || cs.display() == "none" {
		return
	}
	l.blockBox(root, 0, 0, l.vw)

	// Positioned boxes are placed once their containing block is final.
	for len(l.pending) > 0 {
		p := l.pending[0]
		l.pending = l.pending[1:]
		l.positionedBox(p)
	}

	l.extentW, l.extentH = l.vw, l.vh
	for n, g := range l.geoms {
		if g.fixed {
			continue
		}
		mb := g.border
		if n == root {
			mb = dom.Rect{X: mb.X - g.margin.Left, Y: mb.Y - g.margin.Top, Width: mb.Width + g.margin.horizontal(), Height: mb.Height + g.margin.vertical()}
		}
		for _, r := range append([]dom.Rect{mb}, g.rects...) {
			l.extentW = max(l.extentW, r.Right())
			l.extentH = max(l.extentH, r.Bottom())
		}
	}
}

func (l *layoutEngine) length(cs *computedStyle, prop css.Property, fallback string, reference float64) float64 {
	v, ok := parseLength(cs.lookup(prop, fallback), cs.fontSize, BaseFontSize, reference, l.vw, l.vh)
	if !ok {
		return 0
	}
	return v
}

func (l *layoutEngine) explicit(cs *computedStyle, prop css.Property, reference float64) (float64, bool) {
	return parseLength(cs.lookup(prop, "auto"), cs.fontSize, BaseFontSize, reference, l.vw, l.vh)
}

func (l *layoutEngine) edges(cs *computedStyle, containerWidth float64) (margin, border, padding Edges) {
	side := func(prefix, suffix string) (t, r, b, lft float64) {
		get := func(s string) float64 { return l.length(cs, css.Property(prefix+s+suffix), "0", containerWidth) }
		return get("top"), get("right"), get("bottom"), get("left")
	}
	margin.Top, margin.Right, margin.Bottom, margin.Left = side("margin-", "")
	padding.Top, padding.Right, padding.Bottom, padding.Left = side("padding-", "")
	padding = clampEdges(padding)

	borderWidth := func(s string) float64 {
		switch cs.lookup(css.Property("border-"+s+"-style"), "none") {
		case "none", "hidden":
			return 0
		}
		switch w := cs.lookup(css.Property("border-"+s+"-width"), "medium"); w {
		case "thin":
			return 1
		case "medium":
			return 3
		case "thick":
			return 5
		default:
			v, _ := parseLength(w, cs.fontSize, BaseFontSize, 0, l.vw, l.vh)
			return max(v, 0)
		}
	}
	border = Edges{Top: borderWidth("top"), Right: borderWidth("right"), Bottom: borderWidth("bottom"), Left: borderWidth("left")}
	return margin, border, padding
}

func clampEdges(e Edges) Edges {
	return Edges{Top: max(e.Top, 0), Right: max(e.Right, 0), Bottom: max(e.Bottom, 0), Left: max(e.Left, 0)}
}

// contentWidth resolves the used content width of a box placed in availWidth.
// shrink selects shrink-to-fit sizing for an auto width.
func (l *layoutEngine) contentWidth(n *html.Node, cs *computedStyle, availWidth float64, margin, border, padding Edges, shrink bool) float64 {
	extra := border.horizontal() + padding.horizontal()
	if w, ok := l.explicit(cs, "width", availWidth); ok {
		if cs.lookup("box-sizing", "content-box") == "border-box" {
			w -= extra
		}
		return max(w, 0)
	}
	if replacedElements[n.Data] {
		if size, ok := defaultReplacedSize[n.Data]; ok {
			return size[0]
		}
		return 0
	}
	fill := max(availWidth-margin.horizontal()-extra, 0)
	if shrink {
		return min(l.maxContent(n), fill)
	}
	return fill
}

func (l *layoutEngine) contentHeight(n *html.Node, cs *computedStyle, border, padding Edges, flowHeight float64) float64 {
	if h, ok := l.explicit(cs, "height", 0); ok && !strings.HasSuffix(cs.lookup("height", ""), "%") {
		if cs.lookup("box-sizing", "content-box") == "border-box" {
			h -= border.vertical() + padding.vertical()
		}
		return max(h, 0)
	}
	if replacedElements[n.Data] {
		if size, ok := defaultReplacedSize[n.Data]; ok {
			return size[1]
		}
		return 0
	}
	return flowHeight
}

// blockBox lays out n with its margin box starting at (x, y) and returns the margin box height.
func (l *layoutEngine) blockBox(n *html.Node, x, y, availWidth float64) float64 {
	return l.box(n, x, y, availWidth, false)
}

func (l *layoutEngine) box(n *html.Node, x, y, availWidth float64, shrink bool) float64 {
	cs := l.styles[n]
	margin, border, padding := l.edges(cs, availWidth)
	width := l.contentWidth(n, cs, availWidth, margin, border, padding, shrink)

	contentX := x + margin.Left + border.Left + padding.Left
	contentY := y + margin.Top + border.Top + padding.Top

	flowHeight := 0.0
	if !replacedElements[n.Data] {
		flowHeight = l.flow(n, contentX, contentY, width)
	}
	height := l.contentHeight(n, cs, border, padding, flowHeight)

	bb := dom.Rect{
		X:      x + margin.Left,
		Y:      y + margin.Top,
		Width:  width + padding.horizontal() + border.horizontal(),
		Height: height + padding.vertical() + border.vertical(),
	}
	l.geoms[n] = &geometry{border: bb, margin: margin, rects: []dom.Rect{bb}}

	if cs.position() == "relative" {
		dx := l.offset(cs, "left", "right", availWidth)
		dy := l.offset(cs, "top", "bottom", 0)
		if dx != 0 || dy != 0 {
			l.translate(n, dx, dy)
		}
	}
	return bb.Height + margin.vertical()
}

func (l *layoutEngine) offset(cs *computedStyle, start, end css.Property, reference float64) float64 {
	if v, ok := l.explicit(cs, start, reference); ok {
		return v
	}
	if v, ok := l.explicit(cs, end, reference); ok {
		return -v
	}
	return 0
}

// flow lays out the children of a block container and returns the content height.
func (l *layoutEngine) flow(n *html.Node, x, y, width float64) float64 {
	curY := y
	prevMarginBottom := 0.0
	var line *lineBuilder

	closeLine := func() {
		if line != nil && line.hasContent() {
			curY = line.finish()
			prevMarginBottom = 0
		}
		line = nil
	}
	ensureLine := func() *lineBuilder {
		if line == nil {
			line = newLineBuilder(l, n, x, curY, width)
		}
		return line
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if line == nil && strings.TrimSpace(c.Data) == "" {
				continue
			}
			ensureLine().addText(c, nil)
		case html.ElementNode:
			cs := l.styles[c]
			if cs == nil || cs.display() == "none" {
				continue
			}
			if pos := cs.position(); pos == "absolute" || pos == "fixed" {
				sx, sy := x, curY
				if line != nil {
					sx, sy = line.cursor()
				}
				l.pending = append(l.pending, pendingBox{node: c, staticX: sx, staticY: sy})
				continue
			}
			if isBlockLevel(cs.display()) {
				closeLine()
				mt := l.length(cs, "margin-top", "0", width)
				collapse := 0.0
				if mt > 0 && prevMarginBottom > 0 {
					collapse = min(mt, prevMarginBottom)
				}
				top := curY - collapse
				curY = top + l.blockBox(c, x, top, width)
				prevMarginBottom = max(l.geoms[c].margin.Bottom, 0)
				continue
			}
			ensureLine().addElement(c, nil)
		}
	}
	closeLine()
	return curY + prevMarginBottom - y
}

// atomicBox lays out an inline-level box that is placed as a unit and returns its margin box size.
// The box is laid out at the origin; the caller moves it into place.
func (l *layoutEngine) atomicBox(n *html.Node, availWidth float64) (w, h float64) {
	h = l.box(n, 0, 0, availWidth, true)
	g := l.geoms[n]
	return g.border.Width + g.margin.horizontal(), h
}

func (l *layoutEngine) positionedBox(p pendingBox) {
	cs := l.styles[p.node]
	fixed := cs.position() == "fixed"
	cb := dom.Rect{Width: l.vw, Height: l.vh}
	if !fixed {
		for a := p.node.Parent; a != nil; a = a.Parent {
			if as := l.styles[a]; as != nil && as.position() != "static" {
				if g, ok := l.geoms[a]; ok {
					// Padding box of the containing block.
					_, border, _ := l.edges(as, 0)
					cb = dom.Rect{
						X: g.border.X + border.Left, Y: g.border.Y + border.Top,
						Width: g.border.Width - border.horizontal(), Height: g.border.Height - border.vertical(),
					}
				}
				break
			}
		}
	}

	l.box(p.node, 0, 0, cb.Width, true)
	g := l.geoms[p.node]
	x, y := p.staticX, p.staticY
	if v, ok := l.explicit(cs, "left", cb.Width); ok {
		x = cb.X + v
	} else if v, ok := l.explicit(cs, "right", cb.Width); ok {
		x = cb.Right() - v - g.border.Width - g.margin.horizontal()
	}
	if v, ok := l.explicit(cs, "top", cb.Height); ok {
		y = cb.Y + v
	} else if v, ok := l.explicit(cs, "bottom", cb.Height); ok {
		y = cb.Bottom() - v - g.border.Height - g.margin.vertical()
	}
	l.translate(p.node, x, y)
	if fixed {
		l.markFixed(p.node)
	}
}

func (l *layoutEngine) markFixed(n *html.Node) {
	walkElements(n, func(e *html.Node) bool {
		if g, ok := l.geoms[e]; ok {
			g.fixed = true
		}
		return true
	})
}

// translate moves the geometry of n and all of its descendants.
func (l *layoutEngine) translate(n *html.Node, dx, dy float64) {
	walkElements(n, func(e *html.Node) bool {
		if g, ok := l.geoms[e]; ok {
			g.border.X += dx
			g.border.Y += dy
			for i := range g.rects {
				g.rects[i].X += dx
				g.rects[i].Y += dy
			}
		}
		return true
	})
}

// maxContent returns the preferred border box width of n when nothing wraps.
func (l *layoutEngine) maxContent(n *html.Node) float64 {
	best, line := 0.0, 0.0
	var visit func(p *html.Node)
	visit = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				line += textWidth(collapseWhitespace(c.Data), l.styles[p])
			case html.ElementNode:
				cs := l.styles[c]
				if cs == nil || cs.display() == "none" || cs.position() == "absolute" || cs.position() == "fixed" {
					continue
				}
				if c.Data == "br" {
					best, line = max(best, line), 0
					continue
				}
				margin, border, padding := l.edges(cs, 0)
				outer := margin.horizontal() + border.horizontal() + padding.horizontal()
				inner := 0.0
				if w, ok := l.explicit(cs, "width", 0); ok {
					inner = w
					if cs.lookup("box-sizing", "content-box") == "border-box" {
						inner -= border.horizontal() + padding.horizontal()
					}
				} else if replacedElements[c.Data] {
					if size, ok := defaultReplacedSize[c.Data]; ok {
						inner = size[0]
					}
				} else if isBlockLevel(cs.display()) || isAtomicInline(cs.display()) {
					inner = l.maxContent(c)
				} else {
					line += outer
					visit(c)
					continue
				}
				if isBlockLevel(cs.display()) {
					best, line = max(best, line, inner+outer), 0
				} else {
					line += inner + outer
				}
			}
		}
	}
	visit(n)
	return max(best, line)
}

func textWidth(s string, cs *computedStyle) float64 {
	fontSize := BaseFontSize
	if cs != nil {
		fontSize = cs.fontSize
	}
	return float64(utf8.RuneCountInString(s)) * fontSize * charWidthFactor
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// -- Inline formatting context --

type lineBuilder struct {
	l          *layoutEngine
	container  *html.Node
	x, width   float64
	lineY      float64
	lineHeight float64
	cursorX    float64
	count      int
	lineIndex  int
	pendingGap bool
	// fragments collects, per inline element, one rect per line it appears on.
	fragments map[*html.Node][]lineRect
	order     []*html.Node
}

type lineRect struct {
	line int
	rect dom.Rect
}

func newLineBuilder(l *layoutEngine, container *html.Node, x, y, width float64) *lineBuilder {
	return &lineBuilder{
		l: l, container: container, x: x, width: width, lineY: y, cursorX: x,
		fragments: make(map[*html.Node][]lineRect),
	}
}

func (b *lineBuilder) hasContent() bool { return b.count > 0 || len(b.fragments) > 0 || b.lineIndex > 0 }

func (b *lineBuilder) cursor() (float64, float64) { return b.cursorX, b.lineY }

func (b *lineBuilder) newLine() {
	if b.lineHeight == 0 {
		b.lineHeight = b.l.styles[b.container].lineHeight
	}
	b.lineY += b.lineHeight
	b.lineHeight = 0
	b.cursorX = b.x
	b.count = 0
	b.lineIndex++
	b.pendingGap = false
}

// place reserves a w by h slot on the current line, wrapping first when needed.
func (b *lineBuilder) place(w, h float64, chain []*html.Node) (float64, float64) {
	gap := 0.0
	if b.pendingGap && b.count > 0 {
		gap = textWidth(" ", b.l.styles[b.container])
	}
	if b.count > 0 && b.cursorX+gap+w > b.x+b.width {
		b.newLine()
		gap = 0
	}
	b.cursorX += gap
	px, py := b.cursorX, b.lineY
	b.cursorX += w
	b.count++
	b.pendingGap = false
	b.lineHeight = max(b.lineHeight, h)

	slot := dom.Rect{X: px, Y: py, Width: w, Height: h}
	for _, anc := range chain {
		frags := b.fragments[anc]
		if len(frags) > 0 && frags[len(frags)-1].line == b.lineIndex {
			last := &frags[len(frags)-1].rect
			right := max(last.Right(), slot.Right())
			bottom := max(last.Bottom(), slot.Bottom())
			last.X, last.Y = min(last.X, slot.X), min(last.Y, slot.Y)
			last.Width, last.Height = right-last.X, bottom-last.Y
		} else {
			if _, seen := b.fragments[anc]; !seen {
				b.order = append(b.order, anc)
			}
			b.fragments[anc] = append(frags, lineRect{line: b.lineIndex, rect: slot})
		}
	}
	return px, py
}

func (b *lineBuilder) addText(t *html.Node, chain []*html.Node) {
	cs := b.l.styles[t.Parent]
	if cs == nil {
		cs = b.l.styles[b.container]
	}
	if len(t.Data) > 0 && unicode.IsSpace(rune(t.Data[0])) {
		b.pendingGap = true
	}
	words := strings.Fields(t.Data)
	for i, w := range words {
		if i > 0 {
			b.pendingGap = true
		}
		b.place(textWidth(w, cs), cs.lineHeight, chain)
	}
	if len(words) > 0 && unicode.IsSpace(rune(t.Data[len(t.Data)-1])) {
		b.pendingGap = true
	}
}

func (b *lineBuilder) addElement(e *html.Node, chain []*html.Node) {
	cs := b.l.styles[e]
	if e.Data == "br" {
		if b.count == 0 {
			b.lineHeight = max(b.lineHeight, cs.lineHeight)
		}
		b.newLine()
		return
	}
	if isAtomicInline(cs.display()) || replacedElements[e.Data] {
		w, h := b.l.atomicBox(e, b.width)
		px, py := b.place(w, h, chain)
		b.l.translate(e, px, py)
		return
	}

	// Plain inline box: its children join the line, and its rects are the per-line fragments.
	inner := append(append([]*html.Node(nil), chain...), e)
	if _, seen := b.fragments[e]; !seen {
		b.fragments[e] = nil
		b.order = append(b.order, e)
	}
	for c := e.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.addText(c, inner)
		case html.ElementNode:
			ccs := b.l.styles[c]
			if ccs == nil || ccs.display() == "none" {
				continue
			}
			if pos := ccs.position(); pos == "absolute" || pos == "fixed" {
				b.l.pending = append(b.l.pending, pendingBox{node: c, staticX: b.cursorX, staticY: b.lineY})
				continue
			}
			if isBlockLevel(ccs.display()) {
				// Block inside inline: break the line around it.
				if b.count > 0 {
					b.newLine()
				}
				h := b.l.blockBox(c, b.x, b.lineY, b.width)
				b.lineY += h
				b.lineHeight = 0
				b.count = 0
				b.lineIndex++
				continue
			}
			b.addElement(c, inner)
		}
	}
}

// finish records inline fragments and returns the y coordinate below the last line.
func (b *lineBuilder) finish() float64 {
	end := b.lineY
	if b.count > 0 {
		if b.lineHeight == 0 {
			b.lineHeight = b.l.styles[b.container].lineHeight
		}
		end += b.lineHeight
	}
	for _, n := range b.order {
		frags := b.fragments[n]
		g := &geometry{}
		for i, f := range frags {
			g.rects = append(g.rects, f.rect)
			if i == 0 {
				g.border = f.rect
				continue
			}
			right, bottom := max(g.border.Right(), f.rect.Right()), max(g.border.Bottom(), f.rect.Bottom())
			g.border.X, g.border.Y = min(g.border.X, f.rect.X), min(g.border.Y, f.rect.Y)
			g.border.Width, g.border.Height = right-g.border.X, bottom-g.border.Y
		}
		b.l.geoms[n] = g
	}
	return end
}

// internal/dom/htmldoc/style.go
package htmldoc

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/focusmap/internal/css"
	"github.com/xkilldash9x/focusmap/internal/dom"
)

const (
	BaseFontSize      = 16.0 // Default root font size.
	DefaultLineHeight = 1.2  // Multiplier for 'line-height: normal'.
	charWidthFactor   = 0.6  // Average glyph advance as a fraction of the font size.
)

// DefaultUserAgentCSS holds the defaults the layout depends on: which elements
// generate boxes, block margins, and intrinsic sizes for form controls.
const DefaultUserAgentCSS = `
html, body, div, p, h1, h2, h3, h4, h5, h6, ul, ol, li, form, header, footer,
section, article, nav, main, aside, fieldset, legend, table, thead, tbody, tfoot, tr,
address, blockquote, figure, figcaption, details, summary, dl, dt, dd, pre, hr, menu, center {
    display: block;
}

head, script, style, title, meta, link, base, template, noscript, area, datalist, param,
input[type="hidden"], [hidden] {
    display: none;
}

li { display: list-item; }
td, th { display: inline-block; }

body { margin: 8px; }
p, ul, ol, dl, blockquote { margin: 1em 0; }
h1 { font-size: 2em; margin: 0.67em 0; }
h2 { font-size: 1.5em; margin: 0.83em 0; }
h3 { font-size: 1.17em; margin: 1em 0; }
ul, ol { padding-left: 40px; }
fieldset { margin: 0 2px; padding: 6px 10px 10px; border: 2px solid; }

input, button, textarea, select {
    display: inline-block;
    box-sizing: border-box;
    border: 1px solid;
}

input { width: 170px; height: 21px; padding: 1px 2px; }
input[type="checkbox"], input[type="radio"] {
    width: 13px;
    height: 13px;
    padding: 0;
    border: 0;
    margin: 3px;
}
input[type="submit"], input[type="button"], input[type="reset"] { width: 60px; }
button { padding: 1px 6px; }
select { width: 80px; height: 20px; }
textarea { width: 180px; height: 36px; padding: 2px; }

img, svg, iframe, object, embed, video, canvas { display: inline-block; }
`

var inheritedProperties = []css.Property{
	"color", "font-family", "font-size", "font-weight", "line-height", "text-align", "visibility", "cursor",
}

// replacedElements are laid out from their own size; their children never generate boxes.
var replacedElements = map[string]bool{
	"img": true, "input": true, "select": true, "textarea": true, "object": true,
	"iframe": true, "video": true, "canvas": true, "embed": true, "svg": true,
}

// defaultReplacedSize is used when a replaced element has no width or height from any source.
var defaultReplacedSize = map[string][2]float64{
	"iframe": {300, 150},
	"object": {300, 150},
	"embed":  {300, 150},
	"video":  {300, 150},
	"canvas": {300, 150},
	"svg":    {300, 150},
}

// dimensionHints lists elements whose width and height attributes map to CSS.
var dimensionHints = map[string]bool{
	"img": true, "svg": true, "iframe": true, "object": true, "embed": true, "video": true, "canvas": true,
}

type styleOrigin int

const (
	originUserAgent styleOrigin = iota
	originHint
	originAuthor
	originInline
)

type declarationWithContext struct {
	declaration css.Declaration
	specificity [3]int
	origin      styleOrigin
	order       int
}

// computedStyle is the cascaded, inherited and resolved style of one element.
type computedStyle struct {
	props      map[css.Property]css.Value
	fontSize   float64
	lineHeight float64
}

func (cs *computedStyle) lookup(prop css.Property, fallback string) string {
	if v, ok := cs.props[prop]; ok && v != "" {
		return strings.ToLower(strings.TrimSpace(string(v)))
	}
	return fallback
}

func (cs *computedStyle) display() string  { return cs.lookup("display", "inline") }
func (cs *computedStyle) position() string { return cs.lookup("position", "static") }

func (cs *computedStyle) visibility() string {
	return cs.lookup("visibility", "visible")
}

func (cs *computedStyle) public() dom.Style {
	return dom.Style{Display: cs.display(), Visibility: cs.visibility(), Position: cs.position()}
}

func isBlockLevel(display string) bool {
	switch display {
	case "block", "list-item", "flex", "grid", "table", "flow-root", "table-row", "table-row-group":
		return true
	}
	return false
}

func isAtomicInline(display string) bool {
	switch display {
	case "inline-block", "inline-flex", "inline-grid", "inline-table", "table-cell":
		return true
	}
	return false
}

// styleEngine computes styles for every element of a document in one pre-order pass.
type styleEngine struct {
	doc          *Document
	userAgent    []css.StyleSheet
	authorSheets []css.StyleSheet
	styles       map[*html.Node]*computedStyle
}

var userAgentSheet = css.NewParser(DefaultUserAgentCSS).Parse()

func newStyleEngine(doc *Document) *styleEngine {
	return &styleEngine{
		doc:       doc,
		userAgent: []css.StyleSheet{userAgentSheet},
		styles:    make(map[*html.Node]*computedStyle),
	}
}

// collectAuthorSheets gathers every <style> element and every supplied linked stylesheet
// in document order.
func (se *styleEngine) collectAuthorSheets(root *html.Node) {
	se.authorSheets = se.authorSheets[:0]
	walkElements(root, func(n *html.Node) bool {
		if href, ok := stylesheetHref(n); ok {
			if sheet, ok := se.doc.linkedSheets[href]; ok {
				se.authorSheets = append(se.authorSheets, sheet)
			}
			return true
		}
		if n.Data == "style" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			se.authorSheets = append(se.authorSheets, css.NewParser(sb.String()).Parse())
		}
		return true
	})
}

func (se *styleEngine) build(root *html.Node) {
	se.collectAuthorSheets(root)
	clear(se.styles)
	se.buildRecursive(root, nil)
}

func (se *styleEngine) buildRecursive(node *html.Node, parent *computedStyle) {
	if node.Type == html.ElementNode {
		cs := &computedStyle{props: se.cascade(node)}
		se.inherit(cs, parent)
		se.resolve(cs, parent)
		se.styles[node] = cs
		parent = cs
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		se.buildRecursive(c, parent)
	}
}

// cascade sorts every matching declaration by origin priority, specificity and order.
func (se *styleEngine) cascade(node *html.Node) map[css.Property]css.Value {
	var declarations []declarationWithContext
	order := 0
	el := se.doc.wrap(node)

	processSheets := func(sheets []css.StyleSheet, origin styleOrigin) {
		for _, sheet := range sheets {
			for _, rule := range sheet.Rules {
				best, matched := [3]int{}, false
				for _, complexSelector := range rule.Selectors {
					if !dom.Matches(el, css.SelectorList{complexSelector}) {
						continue
					}
					a, b, c := complexSelector.Specificity()
					spec := [3]int{a, b, c}
					if !matched || compareSpecificity(spec, best) > 0 {
						best = spec
					}
					matched = true
				}
				if !matched {
					continue
				}
				for _, decl := range rule.Declarations {
					declarations = append(declarations, declarationWithContext{
						declaration: decl, specificity: best, origin: origin, order: order,
					})
					order++
				}
			}
		}
	}

	processSheets(se.userAgent, originUserAgent)

	if dimensionHints[node.Data] {
		for _, prop := range []string{"width", "height"} {
			if v, ok := attr(node, prop); ok {
				if n, ok := dom.ParseFloatPrefix(v); ok && n >= 0 {
					declarations = append(declarations, declarationWithContext{
						declaration: css.Declaration{Property: css.Property(prop), Value: css.Value(strconv.FormatFloat(n, 'f', -1, 64) + "px")},
						origin:      originHint,
						order:       order,
					})
					order++
				}
			}
		}
	}

	processSheets(se.authorSheets, originAuthor)

	if styleAttr, ok := attr(node, "style"); ok {
		for _, decl := range css.ParseDeclarations(styleAttr) {
			declarations = append(declarations, declarationWithContext{
				declaration: decl,
				specificity: [3]int{1, 0, 0},
				origin:      originInline,
				order:       order,
			})
			order++
		}
	}

	sort.SliceStable(declarations, func(i, j int) bool {
		d1, d2 := declarations[i], declarations[j]
		p1, p2 := cascadePriority(d1), cascadePriority(d2)
		if p1 != p2 {
			return p1 < p2
		}
		if c := compareSpecificity(d1.specificity, d2.specificity); c != 0 {
			return c < 0
		}
		return d1.order < d2.order
	})

	styles := make(map[css.Property]css.Value)
	for _, d := range declarations {
		styles[d.declaration.Property] = d.declaration.Value
	}
	expandShorthands(styles)
	return styles
}

func compareSpecificity(a, b [3]int) int {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] - b[i]
		}
	}
	return 0
}

func cascadePriority(d declarationWithContext) int {
	important := d.declaration.Important
	switch d.origin {
	case originUserAgent:
		if important {
			return 6
		}
		return 1
	case originHint:
		return 2
	case originAuthor:
		if important {
			return 5
		}
		return 3
	case originInline:
		if important {
			return 5
		}
		return 4
	}
	return 0
}

func expandShorthands(styles map[css.Property]css.Value) {
	expand1To4Shorthand(styles, "margin", "margin-top", "margin-right", "margin-bottom", "margin-left")
	expand1To4Shorthand(styles, "padding", "padding-top", "padding-right", "padding-bottom", "padding-left")
	expand1To4Shorthand(styles, "border-width", "border-top-width", "border-right-width", "border-bottom-width", "border-left-width")
	expand1To4Shorthand(styles, "border-style", "border-top-style", "border-right-style", "border-bottom-style", "border-left-style")

	if borderVal, ok := styles["border"]; ok {
		width, styleVal := "medium", "none"
		foundWidth, foundStyle := false, false
		for _, part := range strings.Fields(string(borderVal)) {
			switch {
			case !foundStyle && isBorderStyle(part):
				styleVal, foundStyle = part, true
			case !foundWidth && (part == "thin" || part == "medium" || part == "thick" || (part[0] >= '0' && part[0] <= '9') || part[0] == '.'):
				width, foundWidth = part, true
			}
		}
		for _, side := range []string{"top", "right", "bottom", "left"} {
			if _, set := styles[css.Property("border-"+side+"-width")]; !set || foundWidth {
				styles[css.Property("border-"+side+"-width")] = css.Value(width)
			}
			styles[css.Property("border-"+side+"-style")] = css.Value(styleVal)
		}
	}
}

func isBorderStyle(s string) bool {
	switch s {
	case "none", "hidden", "dotted", "dashed", "solid", "double", "groove", "ridge", "inset", "outset":
		return true
	}
	return false
}

func expand1To4Shorthand(styles map[css.Property]css.Value, shorthand, top, right, bottom, left css.Property) {
	val, ok := styles[shorthand]
	if !ok {
		return
	}
	parts := strings.Fields(string(val))
	switch len(parts) {
	case 1:
		v1 := css.Value(parts[0])
		styles[top], styles[right], styles[bottom], styles[left] = v1, v1, v1, v1
	case 2:
		v1, v2 := css.Value(parts[0]), css.Value(parts[1])
		styles[top], styles[right], styles[bottom], styles[left] = v1, v2, v1, v2
	case 3:
		v1, v2, v3 := css.Value(parts[0]), css.Value(parts[1]), css.Value(parts[2])
		styles[top], styles[right], styles[bottom], styles[left] = v1, v2, v3, v2
	case 4:
		styles[top], styles[right], styles[bottom], styles[left] = css.Value(parts[0]), css.Value(parts[1]), css.Value(parts[2]), css.Value(parts[3])
	}
}

func (se *styleEngine) inherit(child, parent *computedStyle) {
	if parent == nil {
		return
	}
	for prop, val := range child.props {
		if val == "inherit" {
			if parentVal, ok := parent.props[prop]; ok {
				child.props[prop] = parentVal
			} else {
				delete(child.props, prop)
			}
		}
	}
	for _, prop := range inheritedProperties {
		if _, exists := child.props[prop]; !exists {
			if val, ok := parent.props[prop]; ok {
				child.props[prop] = val
			}
		}
	}
}

// resolve turns font-size and line-height into absolute pixels.
func (se *styleEngine) resolve(cs, parent *computedStyle) {
	parentFontSize := BaseFontSize
	if parent != nil {
		parentFontSize = parent.fontSize
	}
	cs.fontSize = parentFontSize
	if v, ok := cs.props["font-size"]; ok {
		if size, ok := se.length(string(v), parentFontSize, parentFontSize); ok {
			cs.fontSize = size
		} else if size, ok := fontSizeKeywords[strings.ToLower(string(v))]; ok {
			cs.fontSize = size
		}
	}

	cs.lineHeight = cs.fontSize * DefaultLineHeight
	if v, ok := cs.props["line-height"]; ok {
		value := strings.ToLower(strings.TrimSpace(string(v)))
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			cs.lineHeight = cs.fontSize * n
		} else if lh, ok := se.length(value, cs.fontSize, cs.fontSize); ok {
			cs.lineHeight = lh
		}
	}
}

var fontSizeKeywords = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16, "large": 18, "x-large": 24, "xx-large": 32,
}

// length resolves a CSS length. Percentages resolve against reference.
func (se *styleEngine) length(value string, fontSize, reference float64) (float64, bool) {
	return parseLength(value, fontSize, BaseFontSize, reference, se.doc.viewportWidth, se.doc.viewportHeight)
}

func parseLength(value string, fontSize, rootFontSize, reference, viewportWidth, viewportHeight float64) (float64, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "auto" || value == "normal" || value == "none" {
		return 0, false
	}
	end := 0
	for end < len(value) && (value[end] == '-' || value[end] == '+' || value[end] == '.' || (value[end] >= '0' && value[end] <= '9')) {
		end++
	}
	n, err := strconv.ParseFloat(value[:end], 64)
	if err != nil {
		return 0, false
	}
	switch value[end:] {
	case "", "px":
		return n, true
	case "%":
		return reference * n / 100, true
	case "em":
		return n * fontSize, true
	case "rem":
		return n * rootFontSize, true
	case "pt":
		return n * 4 / 3, true
	case "vw":
		return viewportWidth * n / 100, true
	case "vh":
		return viewportHeight * n / 100, true
	case "vmin":
		return min(viewportWidth, viewportHeight) * n / 100, true
	case "vmax":
		return max(viewportWidth, viewportHeight) * n / 100, true
	}
	return 0, false
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// walkElements visits element nodes in document order. fn returning false skips the subtree.
// stylesheetHref returns the href of a <link> whose rel includes "stylesheet" and not
// "alternate".
func stylesheetHref(n *html.Node) (string, bool) {
	if n.Data != "link" {
		return "", false
	}
	rel, _ := attr(n, "rel")
	var stylesheet bool
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		switch token {
		case "stylesheet":
			stylesheet = true
		case "alternate":
			return "", false
		}
	}
	href, ok := attr(n, "href")
	href = strings.TrimSpace(href)
	if !stylesheet || !ok || href == "" {
		return "", false
	}
	return href, true
}

func walkElements(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}

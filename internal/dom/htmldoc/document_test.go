// internal/dom/htmldoc/document_test.go
package htmldoc

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/focusmap/internal/dom"
)

func parse(t *testing.T, src string, opts ...Option) *Document {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	doc, err := ParseString(src, opts...)
	require.NoError(t, err)
	return doc
}

func byID(t *testing.T, doc *Document, id string) dom.Element {
	t.Helper()
	el := doc.QuerySelector("#" + id)
	require.NotNil(t, el, "element #%s not found", id)
	return el
}

func TestBlockLayout(t *testing.T) {
	doc := parse(t, `<html><body style="margin:0">
		<div id="a" style="width:100px;height:50px"></div>
		<div id="b" style="margin:10px;padding:5px;border:2px solid;height:20px"></div>
	</body></html>`)

	a := byID(t, doc, "a")
	assert.Equal(t, 100.0, doc.OffsetWidth(a))
	assert.Equal(t, 50.0, doc.OffsetHeight(a))
	assert.Equal(t, dom.Rect{X: 0, Y: 0, Width: 100, Height: 50}, doc.BoundingClientRect(a))

	b := byID(t, doc, "b")
	// Full width minus margins; height is content plus padding and border.
	assert.Equal(t, dom.Rect{X: 10, Y: 60, Width: 1260, Height: 34}, doc.BoundingClientRect(b))
	assert.Len(t, doc.ClientRects(b), 1)
}

func TestSiblingMarginsCollapse(t *testing.T) {
	doc := parse(t, `<body style="margin:0">
		<div id="a" style="height:10px;margin-bottom:20px"></div>
		<div id="b" style="height:10px;margin-top:30px"></div>`)
	assert.Equal(t, 40.0, doc.BoundingClientRect(byID(t, doc, "b")).Y)
}

func TestFormControlIntrinsicSizes(t *testing.T) {
	doc := parse(t, `<body style="margin:0"><input id="text"><input id="cb" type="checkbox"><button id="btn">Go</button></body>`)

	text := byID(t, doc, "text")
	assert.Equal(t, 170.0, doc.OffsetWidth(text))
	assert.Equal(t, 21.0, doc.OffsetHeight(text))
	assert.Equal(t, 0.0, doc.BoundingClientRect(text).X)

	cb := byID(t, doc, "cb")
	assert.Equal(t, 13.0, doc.OffsetWidth(cb))
	// Placed after the text input plus its own 3px left margin.
	assert.Equal(t, 173.0, doc.BoundingClientRect(cb).X)

	btn := byID(t, doc, "btn")
	// Shrink-to-fit: two glyphs at 9.6px plus 12px padding and 2px border.
	assert.InDelta(t, 33.2, doc.BoundingClientRect(btn).Width, 1e-9)
}

func TestInlineWrapProducesOneRectPerLine(t *testing.T) {
	doc := parse(t, `<body style="margin:0"><div style="width:60px"><span id="s">aaaa bbbb</span></div></body>`)
	s := byID(t, doc, "s")

	rects := doc.ClientRects(s)
	require.Len(t, rects, 2)
	assert.InDelta(t, 0, rects[0].Y, 1e-9)
	assert.InDelta(t, 19.2, rects[1].Y, 1e-9)
	assert.InDelta(t, 38.4, rects[1].Width, 1e-9)
	assert.Equal(t, 38.0, doc.OffsetHeight(s))
}

func TestEmptyInlineHasNoBox(t *testing.T) {
	doc := parse(t, `<body><a id="empty" href="#"></a></body>`)
	el := byID(t, doc, "empty")
	assert.Empty(t, doc.ClientRects(el))
	assert.Equal(t, 0.0, doc.OffsetWidth(el))
}

func TestDisplayNoneSubtreeHasNoGeometry(t *testing.T) {
	doc := parse(t, `<body><div style="display:none"><button id="b">x</button></div></body>`)
	b := byID(t, doc, "b")
	assert.Equal(t, 0.0, doc.OffsetWidth(b))
	assert.Equal(t, 0.0, doc.OffsetHeight(b))
	assert.Nil(t, doc.ClientRects(b))
	assert.Equal(t, "inline-block", doc.ComputedStyle(b).Display)
}

func TestPositionedLayout(t *testing.T) {
	doc := parse(t, `<body style="margin:0">
		<div id="rel" style="position:relative;margin-top:10px;height:40px">
			<span id="abs" style="position:absolute;left:5px;top:7px;width:10px;height:10px"></span>
		</div>
		<div id="shift" style="position:relative;left:3px;top:4px;height:5px"></div>
		<div id="fixed" style="position:fixed;right:0;bottom:0;width:20px;height:20px"></div>
	</body>`)

	assert.Equal(t, dom.Rect{X: 5, Y: 17, Width: 10, Height: 10}, doc.BoundingClientRect(byID(t, doc, "abs")))
	assert.Equal(t, dom.Rect{X: 3, Y: 54, Width: 1280, Height: 5}, doc.BoundingClientRect(byID(t, doc, "shift")))
	assert.Equal(t, dom.Rect{X: 1260, Y: 700, Width: 20, Height: 20}, doc.BoundingClientRect(byID(t, doc, "fixed")))
	assert.Equal(t, "fixed", doc.ComputedStyle(byID(t, doc, "fixed")).Position)
}

func TestScrollAndMetrics(t *testing.T) {
	doc := parse(t, `<body style="margin:0">
		<div id="tall" style="height:2000px"></div>
		<div id="fixed" style="position:fixed;left:0;top:0;width:20px;height:20px"></div>
	</body>`, WithScroll(0, 100), WithViewport(800, 600))

	m := doc.Metrics()
	assert.Equal(t, dom.Metrics{ScrollX: 0, ScrollY: 100, DocumentWidth: 800, DocumentHeight: 2000}, m)
	assert.Equal(t, -100.0, doc.BoundingClientRect(byID(t, doc, "tall")).Y)
	assert.Equal(t, 0.0, doc.BoundingClientRect(byID(t, doc, "fixed")).Y)
}

func TestCascade(t *testing.T) {
	doc := parse(t, `<html><head><style>
		#c { display: none }
		div.x { display: block !important }
		p { display: none }
		p#q { display: inline }
		.v { visibility: hidden }
	</style></head><body>
		<div id="c" class="x"></div>
		<p id="q"></p>
		<div id="inline" style="display:inline-block;position:absolute"></div>
		<div class="v"><a id="hidden" href="#">x</a><a id="shown" style="visibility:visible" href="#">y</a></div>
	</body></html>`)

	assert.Equal(t, "block", doc.ComputedStyle(byID(t, doc, "c")).Display)
	assert.Equal(t, "inline", doc.ComputedStyle(byID(t, doc, "q")).Display)
	assert.Equal(t, dom.Style{Display: "inline-block", Visibility: "visible", Position: "absolute"}, doc.ComputedStyle(byID(t, doc, "inline")))
	assert.Equal(t, "hidden", doc.ComputedStyle(byID(t, doc, "hidden")).Visibility)
	assert.Equal(t, "visible", doc.ComputedStyle(byID(t, doc, "shown")).Visibility)
	assert.Equal(t, dom.Style{}, doc.ComputedStyle(nil))
}

func TestLinkedStylesheets(t *testing.T) {
	doc := parse(t, `<html><head>
		<link rel="Stylesheet" href="site.css">
		<style>#late { display: inline }</style>
		<link rel="alternate stylesheet" href="print.css">
		<link rel="icon" href="favicon.ico">
	</head><body>
		<a id="menu" href="#">menu</a>
		<a id="late" href="#">late</a>
	</body></html>`)

	assert.Equal(t, []string{"site.css"}, doc.StylesheetLinks())
	assert.Equal(t, "inline", doc.ComputedStyle(byID(t, doc, "menu")).Display, "an unsupplied sheet is skipped")

	doc.AddStylesheet("site.css", "#menu { display: none } #late { display: none }")
	doc.AddStylesheet("print.css", "#late { display: block }")
	assert.Equal(t, "none", doc.ComputedStyle(byID(t, doc, "menu")).Display)
	assert.Equal(t, "inline", doc.ComputedStyle(byID(t, doc, "late")).Display, "the later <style> wins over the earlier link")
	assert.Empty(t, doc.ClientRects(byID(t, doc, "menu")))
}

func TestImageDimensionHints(t *testing.T) {
	doc := parse(t, `<body style="margin:0"><img id="img" width="120" height="80" src="x.png"><img id="styled" width="10" style="width:30px"></body>`)
	assert.Equal(t, dom.Rect{X: 0, Y: 0, Width: 120, Height: 80}, doc.BoundingClientRect(byID(t, doc, "img")))
	assert.Equal(t, 30.0, doc.OffsetWidth(byID(t, doc, "styled")))
}

func TestQuerySelectors(t *testing.T) {
	doc := parse(t, `<body><a id="one" href="#">1</a><div><a id="two">2</a></div></body>`)

	all := doc.QuerySelectorAll("a")
	require.Len(t, all, 2)
	assert.Same(t, all[0], byID(t, doc, "one"))
	assert.True(t, doc.ElementMatches(all[0], "a[href]"))
	assert.False(t, doc.ElementMatches(all[1], "a[href]"))

	assert.Nil(t, doc.QuerySelector("div >"))
	assert.Nil(t, doc.QuerySelectorAll("[["))
	assert.Nil(t, doc.QuerySelector("#missing"))
	assert.False(t, doc.ElementMatches(nil, "a"))
	assert.Equal(t, "a", doc.TagName(all[0]))
	assert.Equal(t, "", doc.TagName(nil))
}

func TestElementNavigation(t *testing.T) {
	doc := parse(t, `<body><p id="first"></p>text<span id="second"></span></body>`)
	second := byID(t, doc, "second")

	assert.Same(t, byID(t, doc, "first"), second.PreviousElementSibling())
	assert.Nil(t, byID(t, doc, "first").PreviousElementSibling())
	assert.Equal(t, "body", second.Parent().TagName())
	assert.Nil(t, doc.DocumentElement().Parent())

	id, ok := second.Attribute("ID")
	assert.True(t, ok)
	assert.Equal(t, "second", id)
}

func TestFocus(t *testing.T) {
	doc := parse(t, `<body><button id="b">x</button></body>`)
	assert.Equal(t, doc.Body(), doc.CurrentFocusedElement())

	b := byID(t, doc, "b")
	doc.Focus(b)
	assert.Equal(t, b, doc.CurrentFocusedElement())

	doc.Focus(nil)
	assert.Equal(t, doc.Body(), doc.CurrentFocusedElement())
}

func TestDecorationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	doc := parse(t, `<html><head></head><body><div id="plain"></div><div id="classed" class="a  b"></div><div id="empty" class=""></div></body></html>`)

	var before bytes.Buffer
	require.NoError(t, doc.Render(&before))

	els := []dom.Element{byID(t, doc, "plain"), byID(t, doc, "classed"), byID(t, doc, "empty")}
	for _, el := range els {
		require.NoError(t, doc.AddClass(ctx, el, "focusmap-mark"))
		assert.True(t, doc.ElementMatches(el, ".focusmap-mark"))
	}
	require.NoError(t, doc.InjectOverlay(ctx, dom.Overlay{ID: "focusmap-style", Tag: "style", Content: ".focusmap-mark { outline: 1px solid red }"}))
	require.NoError(t, doc.InjectOverlay(ctx, dom.Overlay{
		ID:         "focusmap-svg",
		Attributes: map[string]string{"style": "position:absolute;left:0;top:0"},
		Content:    `<svg width="10" height="10"><ellipse cx="5" cy="5" rx="4" ry="4"></ellipse></svg>`,
	}))

	var decorated bytes.Buffer
	require.NoError(t, doc.Render(&decorated))
	assert.Contains(t, decorated.String(), `<div id="focusmap-svg" style="position:absolute;left:0;top:0"><svg`)
	assert.Contains(t, decorated.String(), `class="a  b focusmap-mark"`)
	assert.True(t, doc.IsOverlay(doc.QuerySelector("ellipse")))
	assert.False(t, doc.IsOverlay(els[0]))

	for _, el := range els {
		require.NoError(t, doc.RemoveClass(ctx, el, "focusmap-mark"))
	}
	require.NoError(t, doc.RemoveOverlay(ctx, "focusmap-style"))
	require.NoError(t, doc.RemoveOverlay(ctx, "focusmap-svg"))
	require.NoError(t, doc.RemoveOverlay(ctx, "never-added"))

	var after bytes.Buffer
	require.NoError(t, doc.Render(&after))
	assert.Equal(t, before.String(), after.String())
}

func TestOverlayStylesAffectLayout(t *testing.T) {
	ctx := context.Background()
	doc := parse(t, `<body><button id="b">x</button></body>`)
	b := byID(t, doc, "b")
	require.Greater(t, doc.OffsetWidth(b), 0.0)

	require.NoError(t, doc.InjectOverlay(ctx, dom.Overlay{ID: "hide", Tag: "style", Content: ".gone { display: none }"}))
	require.NoError(t, doc.AddClass(ctx, b, "gone"))
	assert.Equal(t, 0.0, doc.OffsetWidth(b))

	// Injecting with the same id replaces the overlay.
	require.NoError(t, doc.InjectOverlay(ctx, dom.Overlay{ID: "hide", Tag: "style", Content: ".other { display: none }"}))
	assert.Len(t, doc.QuerySelectorAll("#hide"), 1)
	assert.Greater(t, doc.OffsetWidth(b), 0.0)
}

func TestDecorationErrors(t *testing.T) {
	ctx := context.Background()
	doc := parse(t, `<body></body>`)
	other := parse(t, `<body><p id="p"></p></body>`)

	assert.Error(t, doc.AddClass(ctx, byID(t, other, "p"), "x"))
	assert.Error(t, doc.RemoveClass(ctx, nil, "x"))
	assert.Error(t, doc.InjectOverlay(ctx, dom.Overlay{}))
}

func TestClassRemovalOrderDoesNotMatter(t *testing.T) {
	ctx := context.Background()
	doc := parse(t, `<html><head></head><body><div id="bare"></div><div id="spaced" class=" x  y "></div></body></html>`)
	var before bytes.Buffer
	require.NoError(t, doc.Render(&before))

	for _, id := range []string{"bare", "spaced"} {
		el := byID(t, doc, id)
		for _, c := range []string{"one", "two", "three"} {
			require.NoError(t, doc.AddClass(ctx, el, c))
		}
		for _, c := range []string{"one", "three", "two"} {
			require.NoError(t, doc.RemoveClass(ctx, el, c))
		}
	}

	var after bytes.Buffer
	require.NoError(t, doc.Render(&after))
	assert.Equal(t, before.String(), after.String())
}

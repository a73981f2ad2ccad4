// internal/browser/live_document_test.go
package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
	"github.com/xkilldash9x/focusmap/internal/tabstops"
	"github.com/xkilldash9x/focusmap/internal/visualization"
)

// pageSnapshot is what snapshot.js returns for:
//
//	<body><button id="a">A</button><div><a href="/x">x</a><span hidden>h</span></div></body>
const pageSnapshot = `{
  "scrollX": 0, "scrollY": 100, "documentWidth": 1280, "documentHeight": 2000, "focused": 3,
  "elements": [
    {"tag": "html", "attrs": {}, "parent": -1, "prev": -1,
     "style": {"display": "block", "visibility": "visible", "position": "static"},
     "offsetWidth": 1280, "offsetHeight": 2000, "rect": {"x": 0, "y": -100, "width": 1280, "height": 2000},
     "rects": [{"x": 0, "y": -100, "width": 1280, "height": 2000}]},
    {"tag": "head", "attrs": {}, "parent": 0, "prev": -1,
     "style": {"display": "none", "visibility": "visible", "position": "static"},
     "offsetWidth": 0, "offsetHeight": 0, "rect": {"x": 0, "y": 0, "width": 0, "height": 0}, "rects": []},
    {"tag": "body", "attrs": {"class": "page"}, "parent": 0, "prev": 1,
     "style": {"display": "block", "visibility": "visible", "position": "static"},
     "offsetWidth": 1264, "offsetHeight": 1984, "rect": {"x": 8, "y": -92, "width": 1264, "height": 1984},
     "rects": [{"x": 8, "y": -92, "width": 1264, "height": 1984}]},
    {"tag": "button", "attrs": {"id": "a"}, "parent": 2, "prev": -1,
     "style": {"display": "inline-block", "visibility": "visible", "position": "static"},
     "offsetWidth": 40, "offsetHeight": 20, "rect": {"x": 8, "y": -92, "width": 40, "height": 20},
     "rects": [{"x": 8, "y": -92, "width": 40, "height": 20}]},
    {"tag": "div", "attrs": {}, "parent": 2, "prev": 3,
     "style": {"display": "block", "visibility": "visible", "position": "static"},
     "offsetWidth": 1264, "offsetHeight": 20, "rect": {"x": 8, "y": 108, "width": 1264, "height": 20},
     "rects": [{"x": 8, "y": 108, "width": 1264, "height": 20}]},
    {"tag": "a", "attrs": {"href": "/x"}, "parent": 4, "prev": -1,
     "style": {"display": "inline", "visibility": "visible", "position": "static"},
     "offsetWidth": 10, "offsetHeight": 18, "rect": {"x": 8, "y": 109, "width": 10, "height": 18},
     "rects": [{"x": 8, "y": 109, "width": 10, "height": 18}]},
    {"tag": "span", "attrs": {"hidden": ""}, "parent": 4, "prev": 5,
     "style": {"display": "none", "visibility": "visible", "position": "static"},
     "offsetWidth": 0, "offsetHeight": 0, "rect": {"x": 0, "y": 0, "width": 0, "height": 0}, "rects": []}
  ]
}`

// fakePage answers the scripts a LiveDocument sends and records everything else.
type fakePage struct {
	mu        sync.Mutex
	snapshot  string
	scripts   []string
	missing   bool
	evalError error
}

func (f *fakePage) Evaluate(_ context.Context, script string, res any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalError != nil {
		return f.evalError
	}
	if script == snapshotScript {
		*res.(*string) = f.snapshot
		return nil
	}
	f.scripts = append(f.scripts, script)
	if found, ok := res.(*bool); ok {
		*found = !f.missing
	}
	return nil
}

func (f *fakePage) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scripts) == 0 {
		return ""
	}
	return f.scripts[len(f.scripts)-1]
}

func newLive(t *testing.T) (*LiveDocument, *fakePage) {
	t.Helper()
	page := &fakePage{snapshot: pageSnapshot}
	doc, err := NewLiveDocument(context.Background(), page, zaptest.NewLogger(t))
	require.NoError(t, err)
	return doc, page
}

func TestLiveDocumentReadsSnapshot(t *testing.T) {
	doc, _ := newLive(t)

	button := doc.QuerySelector("#a")
	require.NotNil(t, button)
	assert.Equal(t, "button", doc.TagName(button))
	assert.Equal(t, doc.Body(), button.Parent())
	assert.Equal(t, "html", doc.DocumentElement().TagName())
	assert.Equal(t, button, doc.CurrentFocusedElement())
	assert.Equal(t, dom.Rect{X: 8, Y: -92, Width: 40, Height: 20}, doc.BoundingClientRect(button))
	assert.Equal(t, 40.0, doc.OffsetWidth(button))
	assert.Equal(t, dom.Metrics{ScrollY: 100, DocumentWidth: 1280, DocumentHeight: 2000}, doc.Metrics())

	link := doc.QuerySelector("div > a[href]")
	require.NotNil(t, link)
	assert.Equal(t, "html > body:nth-child(2) > div:nth-child(2) > a:nth-child(1)", dom.UniqueSelector(link, doc))
	assert.Len(t, doc.QuerySelectorAll("body *"), 4)
	assert.True(t, doc.ElementMatches(doc.Body(), ".page"))
	assert.Nil(t, doc.QuerySelector("div >"), "unparsable selectors match nothing")
	assert.Equal(t, "inline", doc.ComputedStyle(link).Display)
	assert.Empty(t, doc.ClientRects(nil))
}

func TestLiveDocumentFeedsTheClassifier(t *testing.T) {
	doc, _ := newLive(t)
	sorted := tabbable.New(doc).GetSortedTabbableElements()
	require.Len(t, sorted, 2)
	assert.Equal(t, "#a", dom.UniqueSelector(sorted[0].Element, doc))
	assert.Equal(t, "a", sorted[1].Element.TagName())

	center := visualization.NewCenterPositionCalculator(visualization.NewDrawerUtils(doc), tabbable.New(doc))
	assert.Equal(t, &dom.Point{X: 28, Y: 18}, center.GetElementCenterPosition(sorted[0].Element))
}

func TestLiveDocumentClassDecorations(t *testing.T) {
	ctx := context.Background()
	doc, page := newLive(t)
	body := doc.Body()

	require.NoError(t, doc.AddClass(ctx, body, "insights-highlight-body"))
	assert.True(t, doc.ElementMatches(body, ".page.insights-highlight-body"), "the snapshot mirrors the page")

	require.NoError(t, doc.RemoveClass(ctx, body, "insights-highlight-body"))
	assert.Contains(t, page.last(), `"add":false`)
	v, _ := body.Attribute("class")
	assert.Equal(t, "page", v)

	button := doc.QuerySelector("#a")
	require.NoError(t, doc.AddClass(ctx, button, "x"))
	script := page.last()
	assert.True(t, strings.HasPrefix(script, "("+classFunction+")("))
	assert.Contains(t, script, `"selector":"#a"`)
	assert.Contains(t, script, `"className":"x"`)
	assert.Contains(t, script, `"add":true`)
	require.NoError(t, doc.RemoveClass(ctx, button, "x"))
	_, has := button.Attribute("class")
	assert.False(t, has, "removing the only class drops the attribute")
}

func TestLiveDocumentDecorationErrors(t *testing.T) {
	ctx := context.Background()
	doc, page := newLive(t)

	page.missing = true
	err := doc.AddClass(ctx, doc.Body(), "c")
	assert.ErrorIs(t, err, ErrElementNotFound)

	page.missing = false
	other, _ := newLive(t)
	assert.ErrorIs(t, doc.AddClass(ctx, other.Body(), "c"), ErrElementNotFound, "elements of another document are rejected")

	boom := errors.New("target closed")
	page.evalError = boom
	assert.ErrorIs(t, doc.InjectOverlay(ctx, dom.Overlay{ID: "o"}), boom)
	assert.ErrorIs(t, doc.Refresh(ctx), boom)
	assert.Error(t, doc.InjectOverlay(ctx, dom.Overlay{}), "an overlay needs an id")
}

func TestLiveDocumentOverlays(t *testing.T) {
	ctx := context.Background()
	doc, page := newLive(t)

	require.NoError(t, doc.InjectOverlay(ctx, dom.Overlay{
		ID:         "insights-tab-stops",
		Tag:        "DIV",
		Attributes: map[string]string{"class": "insights-tab-stops"},
		Content:    `<svg width="10px"></svg>`,
	}))
	script := page.last()
	assert.True(t, strings.HasPrefix(script, "("+overlayFunction+")("))
	assert.Contains(t, script, `"id":"insights-tab-stops"`)
	assert.Contains(t, script, `"tag":"div"`)
	assert.Contains(t, script, `svg width=\"10px\"`)

	require.NoError(t, doc.RemoveOverlay(ctx, "insights-tab-stops"))
	assert.Contains(t, page.last(), `"remove":true`)
}

func TestLiveDocumentDrivesDrawers(t *testing.T) {
	ctx := context.Background()
	doc, page := newLive(t)
	formatter := visualization.NewTabStopsFormatter(visualization.DefaultSVGConfiguration(), nil)
	controller, svg := visualization.NewDocumentController(doc, tabbable.New(doc), formatter, zaptest.NewLogger(t))

	require.NoError(t, controller.ProcessRequest(ctx, visualization.Message{
		ConfigID:       visualization.ConfigTabStops,
		Enabled:        true,
		ElementResults: []visualization.ElementResult{{Target: []string{"#a"}, TabOrder: 1}},
	}))
	assert.True(t, svg.IsOverlayEnabled())
	assert.Contains(t, page.last(), visualization.TabStopsContainerID)
	assert.Contains(t, page.last(), "ellipse")

	require.NoError(t, controller.DisableAll(ctx))
	assert.Contains(t, page.last(), `"remove":true`)
}

func TestRefreshRejectsBrokenSnapshots(t *testing.T) {
	for name, snap := range map[string]string{
		"not json":      `{"elements": [`,
		"forward link":  `{"elements": [{"tag": "html", "parent": 1, "prev": -1}, {"tag": "body", "parent": 0, "prev": -1}]}`,
		"negative link": `{"elements": [{"tag": "html", "parent": -2, "prev": -1}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewLiveDocument(context.Background(), &fakePage{snapshot: snap}, zaptest.NewLogger(t))
			assert.Error(t, err)
		})
	}

	doc, err := NewLiveDocument(context.Background(), &fakePage{snapshot: `{"focused": 7, "elements": [{"tag": "html", "parent": -1, "prev": -1}]}`}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, doc.Body())
	assert.Nil(t, doc.CurrentFocusedElement(), "an out of range focus index and no body means nothing has focus")
}

func TestDecodeFocus(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	ev, ok, err := decodeFocus(`{"target": ["#frame", "#inner"], "html": "<a id=\"inner\"></a>"}`, at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tabstops.Event{Timestamp: at, Target: []string{"#frame", "#inner"}, HTML: `<a id="inner"></a>`}, ev)

	_, ok, err = decodeFocus(`null`, at)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = decodeFocus(`{`, at)
	assert.Error(t, err)
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.BrowserConfig{Headless: true, Viewport: config.ViewportConfig{Width: 800, Height: 600}}
	base := len(AllocatorOptions(cfg))
	cfg.Args = []string{"--lang=de", "mute-audio"}
	assert.Len(t, AllocatorOptions(cfg), base+2, "custom args are appended to the defaults")
}

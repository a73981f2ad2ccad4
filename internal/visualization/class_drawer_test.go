// internal/visualization/class_drawer_test.go
package visualization_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/dom/htmldoc"
	"github.com/xkilldash9x/focusmap/internal/visualization"
)

const classPage = `<html><head></head><body class="page"><main id="main"><p id="p">text</p></main></body></html>`

func render(t *testing.T, doc *htmldoc.Document) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	return buf.String()
}

type classDrawerCase struct {
	name   string
	class  string
	create func(dom.Document, *zap.Logger) *visualization.ClassDrawer
	// data resolves to #main.
	data []visualization.ElementResult
}

func classDrawerCases() []classDrawerCase {
	return []classDrawerCase{
		{
			name:   "body",
			class:  visualization.BodyHighlightClass,
			create: visualization.NewBodyDrawer,
			data:   []visualization.ElementResult{{Target: []string{"#main", "#ignored"}}},
		},
		{
			name:   "color",
			class:  visualization.GreyscaleClass,
			create: visualization.NewColorDrawer,
			data:   []visualization.ElementResult{{Target: []string{"#main"}}, {Target: []string{"#p"}}},
		},
		{
			name:   "pseudo selector",
			class:  visualization.PseudoSelectorClass,
			create: visualization.NewPseudoSelectorDrawer,
			data:   []visualization.ElementResult{{Target: []string{"iframe", "#main"}}},
		},
	}
}

func TestClassDrawerRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, tc := range classDrawerCases() {
		t.Run(tc.name, func(t *testing.T) {
			doc := parseDoc(t, classPage)
			drawer := tc.create(doc, zaptest.NewLogger(t))
			before := render(t, doc)

			require.NoError(t, drawer.Initialize(ctx, visualization.InitData{Data: tc.data}))
			assert.False(t, drawer.IsOverlayEnabled())
			require.NoError(t, drawer.DrawLayout(ctx))
			assert.True(t, drawer.IsOverlayEnabled())

			main := doc.QuerySelector("#main")
			assert.True(t, doc.ElementMatches(main, "."+tc.class))
			assert.NotNil(t, doc.QuerySelector("#"+tc.class+"-style"))

			// A second draw applies nothing new.
			require.NoError(t, drawer.DrawLayout(ctx))
			assert.Len(t, doc.QuerySelectorAll("#"+tc.class+"-style"), 1)

			require.NoError(t, drawer.EraseLayout(ctx))
			assert.False(t, drawer.IsOverlayEnabled())
			assert.Equal(t, before, render(t, doc))

			// Erasing again is harmless.
			require.NoError(t, drawer.EraseLayout(ctx))
			assert.Equal(t, before, render(t, doc))
		})
	}
}

func TestClassDrawerNothingToDraw(t *testing.T) {
	ctx := context.Background()
	inputs := map[string][]visualization.ElementResult{
		"nil data":      nil,
		"empty target":  {{Target: nil}},
		"unresolvable":  {{Target: []string{"#nope"}}},
		"invalid":       {{Target: []string{"div >"}}},
		"empty element": {{Target: []string{""}}},
	}
	for _, tc := range classDrawerCases() {
		for name, data := range inputs {
			t.Run(tc.name+"/"+name, func(t *testing.T) {
				doc := parseDoc(t, classPage)
				drawer := tc.create(doc, zaptest.NewLogger(t))
				before := render(t, doc)

				require.NoError(t, drawer.Initialize(ctx, visualization.InitData{Data: data}))
				require.NoError(t, drawer.DrawLayout(ctx))
				assert.False(t, drawer.IsOverlayEnabled())
				assert.Equal(t, before, render(t, doc))
				require.NoError(t, drawer.EraseLayout(ctx))
				assert.Equal(t, before, render(t, doc))
			})
		}
	}
}

func TestClassDrawerReinitializeErasesFirst(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, classPage)
	drawer := visualization.NewBodyDrawer(doc, zaptest.NewLogger(t))
	before := render(t, doc)

	require.NoError(t, drawer.Initialize(ctx, visualization.InitData{Data: []visualization.ElementResult{{Target: []string{"#main"}}}}))
	require.NoError(t, drawer.DrawLayout(ctx))

	require.NoError(t, drawer.Initialize(ctx, visualization.InitData{Data: []visualization.ElementResult{{Target: []string{"#p"}}}}))
	assert.False(t, drawer.IsOverlayEnabled())
	assert.Equal(t, before, render(t, doc), "the old generation is gone before the new one is drawn")

	require.NoError(t, drawer.DrawLayout(ctx))
	assert.Empty(t, doc.QuerySelectorAll("#main."+visualization.BodyHighlightClass))
	assert.Len(t, doc.QuerySelectorAll("#p."+visualization.BodyHighlightClass), 1)

	require.NoError(t, drawer.EraseLayout(ctx))
	assert.Equal(t, before, render(t, doc))
}

func TestClassDrawerPreservesExistingClasses(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, classPage)
	drawer := visualization.NewBodyDrawer(doc, zaptest.NewLogger(t))
	before := render(t, doc)

	require.NoError(t, drawer.Initialize(ctx, visualization.InitData{Data: []visualization.ElementResult{{Target: []string{"body"}}}}))
	require.NoError(t, drawer.DrawLayout(ctx))
	assert.True(t, doc.ElementMatches(doc.Body(), ".page."+visualization.BodyHighlightClass))
	require.NoError(t, drawer.EraseLayout(ctx))
	assert.Equal(t, before, render(t, doc))
}

func TestClassDrawerKeepsClassThePageAlreadyHad(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, `<html><head></head><body class="`+visualization.BodyHighlightClass+` page"><p>text</p></body></html>`)
	drawer := visualization.NewBodyDrawer(doc, zaptest.NewLogger(t))
	before := render(t, doc)

	require.NoError(t, drawer.Initialize(ctx, visualization.InitData{Data: []visualization.ElementResult{{Target: []string{"body"}}}}))
	require.NoError(t, drawer.DrawLayout(ctx))
	assert.True(t, drawer.IsOverlayEnabled())
	assert.NotNil(t, doc.QuerySelector("#"+visualization.BodyHighlightClass+"-style"))

	require.NoError(t, drawer.EraseLayout(ctx))
	assert.True(t, doc.ElementMatches(doc.Body(), "."+visualization.BodyHighlightClass))
	assert.Equal(t, before, render(t, doc))
}

// failingDocument rejects class changes.
type failingDocument struct {
	*htmldoc.Document
}

var errRejected = errors.New("rejected")

func (f failingDocument) AddClass(context.Context, dom.Element, string) error { return errRejected }

func TestClassDrawerRollsBackPartialDraw(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, classPage)
	before := render(t, doc)
	drawer := visualization.NewColorDrawer(failingDocument{doc}, zaptest.NewLogger(t))

	require.NoError(t, drawer.Initialize(ctx, visualization.InitData{Data: []visualization.ElementResult{{Target: []string{"#main"}}}}))
	err := drawer.DrawLayout(ctx)
	require.ErrorIs(t, err, errRejected)
	assert.False(t, drawer.IsOverlayEnabled())
	assert.Equal(t, before, render(t, doc))
}

func TestNullDrawer(t *testing.T) {
	ctx := context.Background()
	var drawer visualization.Drawer = visualization.NullDrawer{}
	require.NoError(t, drawer.Initialize(ctx, visualization.InitData{Data: []visualization.ElementResult{{Target: []string{"#main"}}}}))
	require.NoError(t, drawer.DrawLayout(ctx))
	assert.False(t, drawer.IsOverlayEnabled())
	require.NoError(t, drawer.EraseLayout(ctx))
}

func TestTargetResolvers(t *testing.T) {
	data := []visualization.ElementResult{{Target: []string{"a", "b", "c"}}, {Target: []string{"d"}}}
	assert.Equal(t, "a", visualization.FirstTarget(data))
	assert.Equal(t, "c", visualization.LastTarget(data))
	assert.Empty(t, visualization.FirstTarget(nil))
	assert.Empty(t, visualization.LastTarget([]visualization.ElementResult{{}}))
}

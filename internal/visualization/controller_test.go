// internal/visualization/controller_test.go
package visualization_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/focusmap/internal/tabbable"
	"github.com/xkilldash9x/focusmap/internal/visualization"
)

// recordingDrawer records the lifecycle calls it receives.
type recordingDrawer struct {
	calls   []string
	data    visualization.InitData
	drawErr error
	enabled bool
}

func (r *recordingDrawer) Initialize(_ context.Context, data visualization.InitData) error {
	r.calls = append(r.calls, "initialize")
	r.data = data
	return nil
}

func (r *recordingDrawer) DrawLayout(context.Context) error {
	r.calls = append(r.calls, "draw")
	if r.drawErr != nil {
		return r.drawErr
	}
	r.enabled = true
	return nil
}

func (r *recordingDrawer) EraseLayout(context.Context) error {
	r.calls = append(r.calls, "erase")
	r.enabled = false
	return nil
}

func (r *recordingDrawer) IsOverlayEnabled() bool { return r.enabled }

func TestControllerRegister(t *testing.T) {
	c := visualization.NewController(zaptest.NewLogger(t))
	require.NoError(t, c.Register("b", &recordingDrawer{}))
	require.NoError(t, c.Register("a", visualization.NullDrawer{}))

	err := c.Register("b", &recordingDrawer{})
	assert.ErrorIs(t, err, visualization.ErrDrawerRegistered)
	assert.Equal(t, []string{"a", "b"}, c.IDs())
}

func TestControllerProcessRequest(t *testing.T) {
	ctx := context.Background()
	c := visualization.NewController(zaptest.NewLogger(t))
	drawer := &recordingDrawer{}
	require.NoError(t, c.Register("kind", drawer))

	flags := visualization.FeatureFlags{"x": true}
	results := []visualization.ElementResult{{Target: []string{"#a"}}}
	require.NoError(t, c.ProcessRequest(ctx, visualization.Message{ConfigID: "kind", Enabled: true, ElementResults: results, FeatureFlags: flags}))
	assert.Equal(t, []string{"initialize", "draw"}, drawer.calls)
	assert.Equal(t, visualization.InitData{Data: results, FeatureFlags: flags}, drawer.data)
	assert.True(t, drawer.IsOverlayEnabled())

	require.NoError(t, c.ProcessRequest(ctx, visualization.Message{ConfigID: "kind"}))
	assert.Equal(t, []string{"initialize", "draw", "erase"}, drawer.calls)
	assert.False(t, drawer.IsOverlayEnabled())

	err := c.ProcessRequest(ctx, visualization.Message{ConfigID: "missing", Enabled: true})
	assert.ErrorIs(t, err, visualization.ErrUnknownDrawer)
}

func TestControllerSurfacesDrawErrors(t *testing.T) {
	boom := errors.New("boom")
	c := visualization.NewController(zaptest.NewLogger(t))
	require.NoError(t, c.Register("kind", &recordingDrawer{drawErr: boom}))

	err := c.ProcessRequest(context.Background(), visualization.Message{ConfigID: "kind", Enabled: true})
	assert.ErrorIs(t, err, boom)
}

func TestDocumentControllerDrawsEveryKind(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, tabPage)
	before := render(t, doc)

	formatter := visualization.NewTabStopsFormatter(visualization.DefaultSVGConfiguration(), nil)
	c, svg := visualization.NewDocumentController(doc, tabbable.New(doc), formatter, zaptest.NewLogger(t))
	require.NotNil(t, svg)
	assert.Equal(t, []string{
		visualization.ConfigBody, visualization.ConfigColor,
		visualization.ConfigPseudoSelector, visualization.ConfigTabStops,
	}, c.IDs())

	target := []visualization.ElementResult{{Target: []string{"body"}}}
	for _, id := range []string{visualization.ConfigBody, visualization.ConfigColor, visualization.ConfigPseudoSelector} {
		require.NoError(t, c.ProcessRequest(ctx, visualization.Message{ConfigID: id, Enabled: true, ElementResults: target}))
	}
	require.NoError(t, c.ProcessRequest(ctx, visualization.Message{
		ConfigID:       visualization.ConfigTabStops,
		Enabled:        true,
		ElementResults: []visualization.ElementResult{tabbed(1, "#b1"), tabbed(2, "#b2")},
	}))
	assert.True(t, svg.IsOverlayEnabled())
	assert.True(t, doc.ElementMatches(doc.Body(), "."+visualization.BodyHighlightClass+"."+visualization.GreyscaleClass+"."+visualization.PseudoSelectorClass))

	require.NoError(t, c.DisableAll(ctx))
	assert.Equal(t, before, render(t, doc))
}

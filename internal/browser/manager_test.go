// internal/browser/manager_test.go
package browser_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/focusmap/internal/browser"
	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
	"github.com/xkilldash9x/focusmap/internal/tabstops"
	"github.com/xkilldash9x/focusmap/internal/visualization"
)

const tabPage = `<!doctype html>
<html><body>
<button id="second" tabindex="2">second</button>
<a id="plain" href="#">plain</a>
<button id="first" tabindex="1">first</button>
<div style="display:none"><input id="hidden"></div>
</body></html>`

// setupManager launches a real browser, skipping the test when none is available.
func setupManager(t *testing.T) *browser.Manager {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in short mode")
	}
	cfg := config.NewDefaultConfig().Browser()
	cfg.PostLoadWait = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)
	m, err := browser.NewManager(ctx, cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("no usable browser: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, m.Shutdown(shutdownCtx))
	})
	return m
}

func TestSessionRecordsAndDrawsTabOrder(t *testing.T) {
	m := setupManager(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(tabPage))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	s, err := m.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close(ctx)

	require.NoError(t, s.Navigate(ctx, server.URL))
	require.NoError(t, s.ResetFocus(ctx))

	doc, err := s.Document(ctx)
	require.NoError(t, err)
	expected := tabstops.ExpectedTargets(tabbable.New(doc), doc)
	assert.Equal(t, []string{"#first", "#second", "#plain"}, expected)

	recording, err := tabstops.NewRecorder(s, 0, zaptest.NewLogger(t)).Record(ctx, 10, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(recording.Events), 3)
	analysis := tabstops.Analyze(expected, recording.Events[:3])
	assert.True(t, analysis.Passed(), "browser order should match the computed order: %+v", analysis)

	formatter := visualization.NewTabStopsFormatter(visualization.DefaultSVGConfiguration(), nil)
	controller, _ := visualization.NewDocumentController(doc, tabbable.New(doc), formatter, zaptest.NewLogger(t))
	require.NoError(t, controller.ProcessRequest(ctx, visualization.Message{
		ConfigID:       visualization.ConfigTabStops,
		Enabled:        true,
		ElementResults: analysis.ElementResults(),
	}))

	var count int
	require.NoError(t, s.Evaluate(ctx, `document.querySelectorAll('#insights-tab-stops ellipse').length`, &count))
	assert.Equal(t, 3, count)

	require.NoError(t, doc.Refresh(ctx))
	assert.Nil(t, doc.QuerySelector("#"+visualization.TabStopsContainerID), "overlays stay out of snapshots")

	png, err := s.Screenshot(ctx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	require.NoError(t, controller.DisableAll(ctx))
	require.NoError(t, s.Evaluate(ctx, `document.querySelectorAll('#insights-tab-stops').length`, &count))
	assert.Zero(t, count)
}

func TestShutdownClosesOpenSessions(t *testing.T) {
	m := setupManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := m.NewSession(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Shutdown(ctx))
	assert.NoError(t, s.Close(ctx), "closing twice is harmless")
}

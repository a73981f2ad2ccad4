// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/tabstops"
)

// Session is one browser tab. It evaluates scripts for a LiveDocument and drives
// keyboard focus for the tab recorder.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig
	now    func() time.Time

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

var (
	_ Evaluator          = (*Session)(nil)
	_ tabstops.Navigator = (*Session)(nil)
)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger, onClose func()) *Session {
	id := uuid.New().String()
	return &Session{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(zap.String("session_id", id)),
		cfg:     cfg,
		now:     time.Now,
		onClose: onClose,
	}
}

// initialize attaches to the tab and applies the configured viewport.
func (s *Session) initialize(ctx context.Context) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	// The first Run creates the target.
	if err := chromedp.Run(runCtx); err != nil {
		return fmt.Errorf("failed to create browser tab: %w", err)
	}
	vp := s.cfg.Viewport
	if vp.Width > 0 && vp.Height > 0 {
		if err := chromedp.Run(runCtx, emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1.0, false)); err != nil {
			return fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	return nil
}

func (s *Session) ID() string { return s.id }

// Navigate loads url and waits for the body plus the configured settle time.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("Navigating.", zap.String("url", url))
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.cfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(s.cfg.PostLoadWait))
	}
	if err := s.runActions(navCtx, actions...); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Evaluate runs script in the top level document. A nil res discards the result.
func (s *Session) Evaluate(ctx context.Context, script string, res any) error {
	return s.runActions(ctx, chromedp.Evaluate(script, res))
}

// Document snapshots the current page.
func (s *Session) Document(ctx context.Context) (*LiveDocument, error) {
	return NewLiveDocument(ctx, s, s.logger)
}

// ResetFocus blurs the active element and scrolls to the top so the next Tab starts the order over.
func (s *Session) ResetFocus(ctx context.Context) error {
	if err := s.Evaluate(ctx, resetFocusScript, nil); err != nil {
		return fmt.Errorf("failed to reset focus: %w", err)
	}
	return nil
}

func (s *Session) PressTab(ctx context.Context) error {
	return s.runActions(ctx, chromedp.KeyEvent(kb.Tab))
}

type focusResult struct {
	Target []string `json:"target"`
	HTML   string   `json:"html"`
}

// FocusedElement reports the focused element, descending into same-origin frames.
func (s *Session) FocusedElement(ctx context.Context) (tabstops.Event, bool, error) {
	var raw string
	if err := s.Evaluate(ctx, focusScript, &raw); err != nil {
		return tabstops.Event{}, false, fmt.Errorf("failed to read focused element: %w", err)
	}
	return decodeFocus(raw, s.now())
}

func decodeFocus(raw string, at time.Time) (tabstops.Event, bool, error) {
	var res *focusResult
	if err := json.UnmarshalFromString(raw, &res); err != nil {
		return tabstops.Event{}, false, fmt.Errorf("failed to decode focused element: %w", err)
	}
	if res == nil || len(res.Target) == 0 {
		return tabstops.Event{}, false, nil
	}
	return tabstops.Event{Timestamp: at, Target: res.Target, HTML: res.HTML}, true, nil
}

// Screenshot captures the full page as a PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.runActions(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close releases the tab. It is safe to call more than once.
func (s *Session) Close(context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// runActions executes actions bounded by both the session lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// CombineContext returns a context carrying primary's values that is canceled when either
// context is. chromedp finds the tab through primary's values.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

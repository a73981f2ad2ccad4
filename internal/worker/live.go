package worker

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/browser"
	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/report"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
	"github.com/xkilldash9x/focusmap/internal/tabstops"
	"github.com/xkilldash9x/focusmap/internal/visualization"
)

// LiveSession is the part of a browser tab the live worker drives.
type LiveSession interface {
	tabstops.Navigator
	Navigate(ctx context.Context, url string) error
	ResetFocus(ctx context.Context) error
	Document(ctx context.Context) (*browser.LiveDocument, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}

// SessionOpener opens a fresh tab for one target.
type SessionOpener func(ctx context.Context) (LiveSession, error)

// ManagerSessions adapts a browser manager to a SessionOpener.
func ManagerSessions(m *browser.Manager) SessionOpener {
	return func(ctx context.Context) (LiveSession, error) {
		s, err := m.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// LiveWorker analyses a target in a real browser, pressing Tab and reading where focus lands.
type LiveWorker struct {
	base
	open SessionOpener
}

func NewLiveWorker(cfg config.Interface, open SessionOpener, logger *zap.Logger, opts ...Option) *LiveWorker {
	return &LiveWorker{
		base: newBase(cfg, logger, "live_worker", opts),
		open: open,
	}
}

func (w *LiveWorker) Mode() report.Mode { return report.ModeLive }

func (w *LiveWorker) Process(ctx context.Context, target string) (report.PageReport, error) {
	started := w.now()
	logger := w.logger.With(zap.String("target", target))

	location, err := NavigableURL(target)
	if err != nil {
		return report.PageReport{}, err
	}

	s, err := w.open(ctx)
	if err != nil {
		return report.PageReport{}, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()

	if err := s.Navigate(ctx, location); err != nil {
		return report.PageReport{}, err
	}
	if err := s.ResetFocus(ctx); err != nil {
		return report.PageReport{}, err
	}

	doc, err := s.Document(ctx)
	if err != nil {
		return report.PageReport{}, err
	}
	classifier := tabbable.New(doc)
	expected := tabstops.ExpectedTargets(classifier, doc)

	scan := w.cfg.Scan()
	var (
		controller *visualization.Controller
		onEvent    func(tabstops.Event)
		drawErr    error
	)
	if scan.Overlay {
		var svg *visualization.SVGDrawer
		controller, svg = w.newController(doc, classifier)
		if err := controller.ProcessRequest(ctx, visualization.Message{ConfigID: visualization.ConfigTabStops, Enabled: true}); err != nil {
			return report.PageReport{}, fmt.Errorf("failed to draw overlay: %w", err)
		}
		// The overlay follows focus while Tab is pressed.
		var events []tabstops.Event
		onEvent = func(ev tabstops.Event) {
			events = append(events, ev)
			if drawErr != nil {
				return
			}
			drawErr = svg.Update(ctx, visualization.InitData{Data: tabstops.EventResults(events)})
		}
	}

	rec, err := tabstops.NewRecorder(s, w.cfg.Recorder().Interval, logger).Record(ctx, w.maxStops(len(expected)), onEvent)
	if err != nil {
		return report.PageReport{}, fmt.Errorf("failed to record tab order: %w", err)
	}
	if drawErr != nil {
		return report.PageReport{}, fmt.Errorf("failed to draw tab stop: %w", drawErr)
	}

	analysis := tabstops.Analyze(expected, rec.Events)
	result := report.NewPageReport(target, report.ModeLive, rec, analysis)
	result.Location = location

	if scan.Overlay || scan.Screenshot {
		// Recording moved focus and scroll; measure again from the top, without the
		// overlay that followed the recording.
		if controller != nil {
			if err := controller.ProcessRequest(ctx, visualization.Message{ConfigID: visualization.ConfigTabStops}); err != nil {
				return report.PageReport{}, err
			}
		}
		if err := s.ResetFocus(ctx); err != nil {
			return report.PageReport{}, err
		}
		if err := doc.Refresh(ctx); err != nil {
			return report.PageReport{}, err
		}
	}
	if scan.Overlay {
		if err := w.drawAnalysis(ctx, controller, analysis); err != nil {
			return report.PageReport{}, fmt.Errorf("failed to draw overlay: %w", err)
		}
	}
	if scan.Screenshot {
		path, err := w.saveScreenshot(ctx, s, target)
		if err != nil {
			return report.PageReport{}, err
		}
		result.Screenshot = path
	}

	result.StartedAt = started
	result.FinishedAt = w.now()
	logger.Info("Live analysis finished.",
		zap.Int("expected", len(expected)),
		zap.Int("stops", len(rec.Events)),
		zap.String("stop_reason", string(rec.Stop)),
		zap.Bool("passed", result.Passed))
	return result, nil
}

func (w *LiveWorker) saveScreenshot(ctx context.Context, s LiveSession, target string) (string, error) {
	png, err := s.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	path, err := w.artifactPath(target, ".png")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}
	return path, nil
}

// NavigableURL turns a target into something a browser can open. Local paths become
// absolute file URLs.
func NavigableURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if u, err := url.Parse(target); err == nil && len(u.Scheme) > 1 {
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "file":
			return target, nil
		default:
			return "", fmt.Errorf("unsupported target scheme: %s", u.Scheme)
		}
	}
	expanded, err := homedir.Expand(target)
	if err != nil {
		return "", fmt.Errorf("failed to expand path %s: %w", target, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", target, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

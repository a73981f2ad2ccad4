package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/dom/htmldoc"
	"github.com/xkilldash9x/focusmap/internal/fetch"
	"github.com/xkilldash9x/focusmap/internal/report"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
	"github.com/xkilldash9x/focusmap/internal/tabstops"
)

// Loader fetches the document behind a target and the stylesheets it links.
type Loader interface {
	Load(ctx context.Context, target string) (*fetch.Page, error)
	LoadStylesheet(ctx context.Context, target string) (*fetch.Page, error)
}

// StaticWorker analyses a target without a browser: it parses the document, lays it out,
// and walks the computed tab order.
type StaticWorker struct {
	base
	loader Loader
}

func NewStaticWorker(cfg config.Interface, loader Loader, logger *zap.Logger, opts ...Option) *StaticWorker {
	return &StaticWorker{
		base:   newBase(cfg, logger, "static_worker", opts),
		loader: loader,
	}
}

func (w *StaticWorker) Mode() report.Mode { return report.ModeStatic }

// Process loads and analyses target. When overlays are enabled the decorated document is
// written next to the report.
func (w *StaticWorker) Process(ctx context.Context, target string) (report.PageReport, error) {
	started := w.now()
	logger := w.logger.With(zap.String("target", target))

	page, err := w.loader.Load(ctx, target)
	if err != nil {
		return report.PageReport{}, err
	}

	vp := w.cfg.Browser().Viewport
	doc, err := htmldoc.Parse(bytes.NewReader(page.Body),
		htmldoc.WithViewport(float64(vp.Width), float64(vp.Height)),
		htmldoc.WithLogger(logger),
	)
	if err != nil {
		return report.PageReport{}, fmt.Errorf("failed to parse %s: %w", target, err)
	}
	if err := w.loadStylesheets(ctx, doc, page.Location, logger); err != nil {
		return report.PageReport{}, err
	}

	classifier := tabbable.New(doc)
	expected := tabstops.ExpectedTargets(classifier, doc)

	nav := tabstops.NewStaticNavigator(doc, classifier).WithClock(w.now)
	rec, err := tabstops.NewRecorder(nav, 0, logger).Record(ctx, w.maxStops(len(expected)), nil)
	if err != nil {
		return report.PageReport{}, fmt.Errorf("failed to record tab order: %w", err)
	}
	doc.Focus(nil)

	analysis := tabstops.Analyze(expected, rec.Events)
	result := report.NewPageReport(target, report.ModeStatic, rec, analysis)
	result.Location = page.Location

	if w.cfg.Scan().Overlay {
		path, err := w.writeOverlay(ctx, doc, classifier, analysis, target)
		if err != nil {
			return report.PageReport{}, err
		}
		result.Overlay = path
	}

	result.StartedAt = started
	result.FinishedAt = w.now()
	logger.Info("Static analysis finished.",
		zap.Int("expected", len(expected)),
		zap.Int("stops", len(rec.Events)),
		zap.Bool("passed", result.Passed))
	return result, nil
}

// loadStylesheets supplies doc with the sheets it links. A sheet that cannot be loaded is
// skipped with a warning, as a browser would; only cancellation aborts.
func (w *StaticWorker) loadStylesheets(ctx context.Context, doc *htmldoc.Document, location string, logger *zap.Logger) error {
	for _, href := range doc.StylesheetLinks() {
		ref, err := fetch.ResolveReference(location, href)
		if err != nil {
			logger.Warn("Skipping unresolvable stylesheet.", zap.String("href", href), zap.Error(err))
			continue
		}
		sheet, err := w.loader.LoadStylesheet(ctx, ref)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Warn("Skipping stylesheet that failed to load.", zap.String("href", href), zap.Error(err))
			continue
		}
		doc.AddStylesheet(href, string(sheet.Body))
	}
	return nil
}

func (w *StaticWorker) writeOverlay(ctx context.Context, doc *htmldoc.Document, classifier *tabbable.Classifier, a tabstops.Analysis, target string) (string, error) {
	if err := w.drawOverlay(ctx, doc, classifier, a); err != nil {
		return "", fmt.Errorf("failed to draw overlay: %w", err)
	}

	path, err := w.artifactPath(target, ".overlay.html")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render overlay: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write overlay %s: %w", path, err)
	}
	return path, nil
}

package worker

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/dom"
	"github.com/xkilldash9x/focusmap/internal/tabbable"
	"github.com/xkilldash9x/focusmap/internal/tabstops"
	"github.com/xkilldash9x/focusmap/internal/visualization"
)

// Option is a function that configures a worker.
type Option func(*base)

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// base holds what the static and live workers share.
type base struct {
	cfg    config.Interface
	logger *zap.Logger
	now    func() time.Time
}

func newBase(cfg config.Interface, logger *zap.Logger, name string, opts []Option) base {
	b := base{
		cfg:    cfg,
		logger: logger.With(zap.String("component", name)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// SVGConfiguration applies the configured toggles to the default tab stop styling.
func SVGConfiguration(v config.VisualizationConfig) visualization.SVGConfiguration {
	c := visualization.DefaultSVGConfiguration()
	c.Line.ShowSolidFocusLine = v.ShowSolidFocusLine
	c.TabIndexLabel.ShowTabIndexedLabel = v.ShowTabIndexedLabel
	c.ErroredTabIndexLabel.ShowTabIndexedLabel = v.ShowTabIndexedLabel
	return c
}

// newController registers the drawers for doc with the configured tab stops styling.
func (b base) newController(doc dom.Document, classifier *tabbable.Classifier) (*visualization.Controller, *visualization.SVGDrawer) {
	formatter := visualization.NewTabStopsFormatter(
		SVGConfiguration(b.cfg.Visualization()),
		visualization.NewLoggingDialogRenderer(b.logger),
	)
	return visualization.NewDocumentController(doc, classifier, formatter, b.logger)
}

// drawOverlay enables the configured highlights and the tab stops visualization on doc.
func (b base) drawOverlay(ctx context.Context, doc dom.Document, classifier *tabbable.Classifier, a tabstops.Analysis) error {
	controller, _ := b.newController(doc, classifier)
	return b.drawAnalysis(ctx, controller, a)
}

// drawAnalysis draws the final analysis through controller, replacing anything it drew before.
func (b base) drawAnalysis(ctx context.Context, controller *visualization.Controller, a tabstops.Analysis) error {
	for _, id := range b.cfg.Visualization().Highlights {
		msg := visualization.Message{
			ConfigID:       id,
			Enabled:        true,
			ElementResults: []visualization.ElementResult{{Target: []string{highlightTarget(id)}}},
		}
		if err := controller.ProcessRequest(ctx, msg); err != nil {
			return err
		}
	}
	return controller.ProcessRequest(ctx, visualization.Message{
		ConfigID:       visualization.ConfigTabStops,
		Enabled:        true,
		ElementResults: a.ElementResults(),
	})
}

// highlightTarget is the element a page wide highlight decorates. Greyscale applies to the
// root so nothing escapes it.
func highlightTarget(id string) string {
	if id == visualization.ConfigColor {
		return "html"
	}
	return "body"
}

// artifactPath names an output file for target inside the report directory.
func (b base) artifactPath(target, suffix string) (string, error) {
	dir := b.cfg.Report().OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return filepath.Join(dir, ArtifactName(target)+suffix), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactName turns a target into a file name stem. A checksum of the full target keeps
// stems distinct when truncation or replacement collapses two targets.
func ArtifactName(target string) string {
	trimmed := target
	if _, rest, ok := strings.Cut(trimmed, "://"); ok {
		trimmed = rest
	}
	slug := strings.Trim(unsafeChars.ReplaceAllString(trimmed, "-"), "-.")
	if len(slug) > 60 {
		slug = slug[:60]
	}
	if slug == "" {
		slug = "page"
	}
	return fmt.Sprintf("%s-%08x", slug, crc32.ChecksumIEEE([]byte(target)))
}

// maxStops bounds a recording. A zero setting falls back to twice the expected stops
// plus a margin so a page without cycles still ends.
func (b base) maxStops(expected int) int {
	if n := b.cfg.Recorder().MaxStops; n > 0 {
		return n
	}
	return 2*expected + 10
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/report"
)

// -- Interfaces for Dependency Inversion --

// Worker analyses one target.
type Worker interface {
	Mode() report.Mode
	Process(ctx context.Context, target string) (report.PageReport, error)
}

// Store persists finished reports.
type Store interface {
	SaveReport(ctx context.Context, r *report.Report) error
}

const persistTimeout = 30 * time.Second

// Engine runs a worker over many targets with bounded concurrency.
type Engine struct {
	cfg     config.Interface
	logger  *zap.Logger
	worker  Worker
	store   Store
	version string
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists every report produced by Run.
func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithVersion stamps reports with the tool version.
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(cfg config.Interface, logger *zap.Logger, worker Worker, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if worker == nil {
		return nil, errors.New("worker cannot be nil")
	}
	e := &Engine{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "scan_engine")),
		worker:  worker,
		version: "dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run analyses every target and returns the report with pages in target order. A target that
// fails is recorded on its page and does not stop the others. Run only returns an error
// when ctx ends before all targets finished, or when persisting the report fails.
func (e *Engine) Run(ctx context.Context, targets []string) (*report.Report, error) {
	concurrency := e.cfg.Engine().Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	e.logger.Info("Starting scan", zap.Int("targets", len(targets)), zap.Int("concurrency", concurrency))

	pages := make([]report.PageReport, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages[i] = e.process(gctx, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan aborted: %w", err)
	}

	r := report.New(e.version, e.now(), pages)
	e.logger.Info("Scan finished",
		zap.String("report_id", r.ID),
		zap.Int("passed", r.Summary.Passed),
		zap.Int("failed", r.Summary.Failed),
		zap.Int("errored", r.Summary.Errored))

	if e.store != nil {
		// Persist even when the caller is shutting down.
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := e.store.SaveReport(persistCtx, r); err != nil {
			return r, fmt.Errorf("failed to persist report: %w", err)
		}
		e.logger.Info("Report persisted.", zap.String("report_id", r.ID))
	}
	return r, nil
}

// process runs the worker for one target under the per target timeout.
func (e *Engine) process(ctx context.Context, target string) report.PageReport {
	logger := e.logger.With(zap.String("target", target))
	timeout := e.cfg.Engine().ScanTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := e.now()
	page, err := e.worker.Process(taskCtx, target)
	if err == nil {
		return page
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Target timed out", zap.Duration("timeout", timeout), zap.Error(err))
	case errors.Is(err, context.Canceled):
		logger.Warn("Target was cancelled", zap.Error(err))
	default:
		logger.Error("Target failed", zap.Error(err))
	}
	return report.PageReport{
		Target:     target,
		Mode:       e.worker.Mode(),
		Error:      err.Error(),
		StartedAt:  started,
		FinishedAt: e.now(),
	}
}

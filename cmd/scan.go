package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/browser"
	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/engine"
	"github.com/xkilldash9x/focusmap/internal/fetch"
	"github.com/xkilldash9x/focusmap/internal/observability"
	"github.com/xkilldash9x/focusmap/internal/report"
	"github.com/xkilldash9x/focusmap/internal/worker"
)

const shutdownTimeout = 15 * time.Second

type scanOptions struct {
	live        bool
	overlay     bool
	screenshot  bool
	headless    bool
	concurrency int
	maxStops    int
	format      string
	output      string
}

// newScanCmd creates and configures the `scan` command.
func newScanCmd(provider storeProvider) *cobra.Command {
	var opts scanOptions

	scanCmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Records the tab order of one or more pages",
		Long: `Each target is a URL or a path to a local HTML file. By default pages are parsed and
laid out without a browser. With --live they are loaded in Chrome and walked by
pressing Tab.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg, args); err != nil {
				return err
			}
			return runScan(ctx, observability.GetLogger(), cfg, opts.live, provider, cmd.OutOrStdout())
		},
	}

	flags := scanCmd.Flags()
	flags.BoolVar(&opts.live, "live", false, "Drive a real browser instead of the static layout.")
	flags.BoolVar(&opts.overlay, "overlay", false, "Draw the tab order onto each page.")
	flags.BoolVar(&opts.screenshot, "screenshot", false, "Save a screenshot of each page (live mode only).")
	flags.BoolVar(&opts.headless, "headless", true, "Run the browser without a window. (Overrides config/env)")
	flags.IntVarP(&opts.concurrency, "concurrency", "j", 0, "Number of pages scanned at once. (Overrides config/env)")
	flags.IntVar(&opts.maxStops, "max-stops", 0, "Stop recording after this many tab stops. (Overrides config/env)")
	flags.StringVarP(&opts.format, "format", "f", "", "Report format: text, json, yaml or sarif. (Overrides config/env)")
	flags.StringVarP(&opts.output, "output", "o", "", "Report file. If unset or '-', the report is printed to stdout.")

	return scanCmd
}

// apply copies the flags the user set onto cfg.
func (o scanOptions) apply(cmd *cobra.Command, cfg config.Interface, targets []string) error {
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		if o.concurrency <= 0 {
			return fmt.Errorf("--concurrency must be positive, got %d", o.concurrency)
		}
		cfg.SetEngineConcurrency(o.concurrency)
	}
	if flags.Changed("max-stops") {
		if o.maxStops < 0 {
			return fmt.Errorf("--max-stops must not be negative, got %d", o.maxStops)
		}
		cfg.SetRecorderMaxStops(o.maxStops)
	}
	if flags.Changed("headless") {
		cfg.SetBrowserHeadless(o.headless)
	}
	if flags.Changed("format") {
		cfg.SetReportFormat(o.format)
	}
	if o.screenshot && !o.live {
		return errors.New("--screenshot requires --live")
	}
	cfg.SetScanConfig(config.ScanConfig{
		Targets:    targets,
		Output:     o.output,
		Overlay:    o.overlay,
		Screenshot: o.screenshot,
	})
	return nil
}

// runScan wires the worker, engine and optional store, runs the scan, and writes the report.
func runScan(ctx context.Context, logger *zap.Logger, cfg config.Interface, live bool, provider storeProvider, stdout io.Writer) error {
	// Reject a bad format before any page is loaded.
	if _, err := report.NewEncoder(cfg.Report().Format); err != nil {
		return err
	}

	w, shutdown, err := newWorker(ctx, cfg, live, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	var engineOpts []engine.Option
	engineOpts = append(engineOpts, engine.WithVersion(Version))
	if cfg.Database().URL != "" {
		s, cleanup, err := provider.Create(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		if cleanup != nil {
			defer cleanup()
		}
		engineOpts = append(engineOpts, engine.WithStore(s))
	}

	eng, err := engine.New(cfg, logger, w, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize scan engine: %w", err)
	}

	r, runErr := eng.Run(ctx, cfg.Scan().Targets)
	if r == nil {
		return runErr
	}
	if err := report.Write(r, cfg.Report().Format, cfg.Scan().Output, stdout); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	if r.Failed() {
		return fmt.Errorf("%w: %d of %d pages", ErrFocusProblems, r.Summary.Failed+r.Summary.Errored, r.Summary.Pages)
	}
	return nil
}

// newWorker builds the static worker, or a live worker backed by a fresh browser.
func newWorker(ctx context.Context, cfg config.Interface, live bool, logger *zap.Logger) (engine.Worker, func(), error) {
	if !live {
		loader := fetch.NewLoader(cfg.Network(), logger)
		return worker.NewStaticWorker(cfg, loader, logger), func() {}, nil
	}

	manager, err := browser.NewManager(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	return worker.NewLiveWorker(cfg, worker.ManagerSessions(manager), logger), shutdown, nil
}

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/config"
	"github.com/xkilldash9x/focusmap/internal/observability"
	"github.com/xkilldash9x/focusmap/internal/report"
	"github.com/xkilldash9x/focusmap/internal/store"
)

// reportStore is the part of the store the commands use.
type reportStore interface {
	SaveReport(ctx context.Context, r *report.Report) error
	GetReport(ctx context.Context, id string) (*report.Report, error)
}

// storeProvider creates the report store, so tests can swap the database for a mock.
type storeProvider interface {
	// Create returns the store and a cleanup function that releases its resources.
	Create(ctx context.Context, cfg config.Interface) (reportStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the configured database, makes sure the schema exists, and returns
// the store along with a cleanup function that closes the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (reportStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (%s_DATABASE_URL)", config.EnvPrefix)
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var reportID string
	var outputPath string
	var format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Prints a stored scan report",
		Long: `Loads a report saved by an earlier scan from the database and writes it in the
requested format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if format == "" {
				format = cfg.Report().Format
			}
			return runReport(ctx, observability.GetLogger(), cfg, reportID, outputPath, format, provider, cmd.OutOrStdout())
		},
	}

	reportCmd.Flags().StringVar(&reportID, "id", "", "The ID of the report to print (required)")
	_ = reportCmd.MarkFlagRequired("id")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, the report is printed to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "", "Report format: text, json, yaml or sarif. (Overrides config/env)")

	return reportCmd
}

// runReport contains the core, testable logic for printing a stored report.
func runReport(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	reportID, outputPath, format string,
	provider storeProvider,
	stdout io.Writer,
) error {
	logger.Info("Loading report", zap.String("report_id", reportID))

	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	r, err := s.GetReport(ctx, reportID)
	if err != nil {
		return fmt.Errorf("failed to load report %s: %w", reportID, err)
	}
	if err := report.Write(r, format, outputPath, stdout); err != nil {
		return err
	}
	if outputPath != "" && outputPath != "-" {
		logger.Info("Report successfully written to file", zap.String("path", outputPath))
	}
	return nil
}

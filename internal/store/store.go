package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/focusmap/internal/report"
)

// ErrReportNotFound is returned when no report has the requested id.
var ErrReportNotFound = errors.New("report not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store keeps tab order reports in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
        id UUID PRIMARY KEY,
        tool TEXT NOT NULL,
        version TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS report_pages (
        report_id UUID NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
        position INTEGER NOT NULL,
        target TEXT NOT NULL,
        mode TEXT NOT NULL,
        passed BOOLEAN NOT NULL,
        error TEXT NOT NULL,
        page JSONB NOT NULL,
        PRIMARY KEY (report_id, position)
    );`,
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

const insertReport = `
    INSERT INTO reports (id, tool, version, created_at)
    VALUES ($1, $2, $3, $4);
`

var pageColumns = []string{"report_id", "position", "target", "mode", "passed", "error", "page"}

// SaveReport writes the report and all of its pages in one transaction.
func (s *Store) SaveReport(ctx context.Context, r *report.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, insertReport, r.ID, r.Tool, r.Version, r.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert report %s: %w", r.ID, err)
	}

	if len(r.Pages) > 0 {
		rows := make([][]any, len(r.Pages))
		for i, p := range r.Pages {
			doc, err := report.MarshalPage(p)
			if err != nil {
				return fmt.Errorf("failed to encode page %s: %w", p.Target, err)
			}
			rows[i] = []any{r.ID, i, p.Target, string(p.Mode), p.Passed, p.Error, doc}
		}
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{"report_pages"}, pageColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy report pages: %w", err)
		}
		if int(copied) != len(rows) {
			return fmt.Errorf("mismatch in copied pages count: expected %d, got %d", len(rows), copied)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Report saved.", zap.String("report_id", r.ID), zap.Int("pages", len(r.Pages)))
	return nil
}

const (
	selectReport = `
        SELECT tool, version, created_at
        FROM reports
        WHERE id = $1;
    `
	selectPages = `
        SELECT page
        FROM report_pages
        WHERE report_id = $1
        ORDER BY position ASC;
    `
)

// GetReport loads a saved report with its pages in their original order.
func (s *Store) GetReport(ctx context.Context, id string) (*report.Report, error) {
	r := &report.Report{ID: id}
	err := s.pool.QueryRow(ctx, selectReport, id).Scan(&r.Tool, &r.Version, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	rows, err := s.pool.Query(ctx, selectPages, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query report pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		page, err := report.UnmarshalPage(doc)
		if err != nil {
			return nil, err
		}
		r.Pages = append(r.Pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	r.CreatedAt = r.CreatedAt.UTC()
	r.Summarize()
	return r, nil
}

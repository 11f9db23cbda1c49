package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/ports"
)

// ManifestRepository records the outcome of every download decision in
// SQLite or Postgres.
type ManifestRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ManifestRepository = (*ManifestRepository)(nil)

// Open connects to driver ("sqlite" or "postgres") and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*ManifestRepository, error) {
	var placeholder sq.PlaceholderFormat
	switch driver {
	case "", "sqlite":
		driver, placeholder = "sqlite", sq.Question
	case "postgres":
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := NewManifestRepository(db, placeholder)
	if err := migrate(ctx, db, repo.sb); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

// NewManifestRepository wires an already migrated sql.DB.
func NewManifestRepository(db *sql.DB, placeholder sq.PlaceholderFormat) *ManifestRepository {
	return &ManifestRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// Close releases the connection pool.
func (r *ManifestRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveOutcome upserts the latest decision for a report.
func (r *ManifestRepository) SaveOutcome(ctx context.Context, rec domain.DownloadRecord) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.upsert(rec).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.IOFailure("save outcome", fmt.Errorf("report %s: %w", rec.ReportID, err))
	}
	return nil
}

func (r *ManifestRepository) upsert(rec domain.DownloadRecord) sq.InsertBuilder {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	return r.sb.Insert("downloads").
		Columns("report_id", "run_id", "ticker", "title", "path", "outcome", "expected_pages", "attempts", "recorded_at").
		Values(rec.ReportID, rec.RunID, rec.Ticker, rec.Title, rec.Path, string(rec.Outcome), rec.ExpectedPages, rec.Attempts, recordedAt.UnixMilli()).
		Suffix(`ON CONFLICT (report_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			ticker = EXCLUDED.ticker,
			title = EXCLUDED.title,
			path = EXCLUDED.path,
			outcome = EXCLUDED.outcome,
			expected_pages = EXCLUDED.expected_pages,
			attempts = EXCLUDED.attempts,
			recorded_at = EXCLUDED.recorded_at`)
}

// Stats returns report counts per outcome and the most recent run.
func (r *ManifestRepository) Stats(ctx context.Context) (domain.ManifestStats, error) {
	stats := domain.ManifestStats{ByOutcome: map[domain.Outcome]int{}}
	if r.db == nil {
		return stats, nil
	}

	query, args, err := r.sb.Select("outcome", "COUNT(*)").From("downloads").GroupBy("outcome").ToSql()
	if err != nil {
		return stats, fmt.Errorf("build stats query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			_ = rows.Close()
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByOutcome[domain.Outcome(outcome)] = count
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return stats, fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return stats, fmt.Errorf("close rows: %w", err)
	}

	query, args, err = r.sb.Select("run_id", "recorded_at").From("downloads").
		OrderBy("recorded_at DESC").Limit(1).ToSql()
	if err != nil {
		return stats, fmt.Errorf("build last run query: %w", err)
	}
	var runID string
	var recordedAt int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&runID, &recordedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return stats, fmt.Errorf("query last run: %w", err)
	default:
		stats.LastRunID = runID
		stats.LastRunAt = time.UnixMilli(recordedAt)
	}

	return stats, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

type migration struct {
	Version    int
	Name       string
	Statements []string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "downloads",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS downloads (
				report_id      TEXT PRIMARY KEY,
				run_id         TEXT NOT NULL,
				ticker         TEXT NOT NULL,
				title          TEXT NOT NULL DEFAULT '',
				path           TEXT NOT NULL,
				outcome        TEXT NOT NULL,
				expected_pages INTEGER NOT NULL DEFAULT 0,
				attempts       INTEGER NOT NULL DEFAULT 0,
				recorded_at    BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_downloads_recorded_at ON downloads (recorded_at)`,
			`CREATE INDEX IF NOT EXISTS idx_downloads_ticker ON downloads (ticker)`,
		},
	},
}

// migrate creates the schema_migrations table and applies every migration
// that has not been recorded yet, each in its own transaction.
func migrate(ctx context.Context, db *sql.DB, sb sq.StatementBuilderType) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := isApplied(ctx, db, sb, m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}
		if err := apply(ctx, db, sb, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func isApplied(ctx context.Context, db *sql.DB, sb sq.StatementBuilderType, version int) (bool, error) {
	query, args, err := sb.Select("COUNT(*)").From("schema_migrations").Where(sq.Eq{"version": version}).ToSql()
	if err != nil {
		return false, err
	}
	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func apply(ctx context.Context, db *sql.DB, sb sq.StatementBuilderType, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	query, args, err := sb.Insert("schema_migrations").Columns("version", "name").Values(m.Version, m.Name).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

package history

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema change, applied at most once.
type Migration struct {
	Name    string
	UpSQL   string
	Version int
}

// Migrations returns all migrations in order.
func Migrations() []Migration {
	return []Migration{
		migration001CreateRuns,
		migration002CreateRunArticles,
	}
}

var migration001CreateRuns = Migration{
	Version: 1,
	Name:    "create_runs",
	UpSQL: `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			source_url TEXT NOT NULL,
			halt_reason TEXT NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			count INTEGER NOT NULL,
			pages INTEGER NOT NULL,
			cap INTEGER NOT NULL,
			sorted BOOLEAN NOT NULL,
			all_valid BOOLEAN NOT NULL,
			violation TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
	`,
}

var migration002CreateRunArticles = Migration{
	Version: 2,
	Name:    "create_run_articles",
	UpSQL: `
		CREATE TABLE IF NOT EXISTS run_articles (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			sequence_index INTEGER NOT NULL,
			article_id TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT,
			user TEXT,
			raw_date TEXT,
			date TEXT,
			PRIMARY KEY (run_id, sequence_index)
		);
	`,
}

// migrate creates the migrations table and applies pending migrations, each in its own transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	applied := make(map[int]bool)

	rows, err := db.QueryContext(ctx, `SELECT version FROM migrations`)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()

			return fmt.Errorf("failed to scan migration version: %w", err)
		}

		applied[v] = true
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		_ = tx.Rollback()

		return err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
		_ = tx.Rollback()

		return err
	}

	return tx.Commit()
}

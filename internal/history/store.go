// Package history keeps a SQLite record of collection runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"hnsort/internal/models"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// startedLayout has a fixed width so that started_at sorts lexically.
const startedLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists run summaries and the articles each run accepted.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()

		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores the summary and its articles in one transaction.
func (s *Store) RecordRun(ctx context.Context, summary models.RunSummary, articles []models.Article) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var violation sql.NullString
	if summary.Violation != nil {
		violation = sql.NullString{String: summary.Violation.String(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, source_url, halt_reason, elapsed_ms, count, pages, cap, sorted, all_valid, violation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.StartedAt.UTC().Format(startedLayout),
		summary.SourceURL,
		string(summary.HaltReason),
		summary.Elapsed.Milliseconds(),
		summary.Count,
		summary.Pages,
		summary.Cap,
		summary.Sorted,
		summary.AllValid,
		violation,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_articles (run_id, sequence_index, article_id, title, url, user, raw_date, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare article insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		var date sql.NullString
		if a.Timestamp.Valid {
			date = sql.NullString{String: a.Timestamp.Instant.UTC().Format(time.RFC3339Nano), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, summary.RunID, a.SequenceIndex, a.ID, a.Title, a.URL, a.User, a.RawTimestamp, date); err != nil {
			return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// Write lets the store act as an output sink.
func (s *Store) Write(ctx context.Context, summary models.RunSummary, articles []models.Article) error {
	return s.RecordRun(ctx, summary, articles)
}

// RunRecord is a stored run. Violation is the human-readable description, empty when sorted.
type RunRecord struct {
	StartedAt  time.Time
	ID         string
	SourceURL  string
	HaltReason models.HaltReason
	Violation  string
	Elapsed    time.Duration
	Count      int
	Pages      int
	Cap        int
	Sorted     bool
	AllValid   bool
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, source_url, halt_reason, elapsed_ms, count, pages, cap, sorted, all_valid, violation
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	return runs, nil
}

// RunArticles returns the articles a run accepted, in sequence order.
func (s *Store) RunArticles(ctx context.Context, runID string) ([]models.Article, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}

	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_index, article_id, title, url, user, raw_date, date
		FROM run_articles WHERE run_id = ? ORDER BY sequence_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article

	for rows.Next() {
		var (
			a                  models.Article
			url, user, rawDate sql.NullString
			date               sql.NullString
		)

		if err := rows.Scan(&a.SequenceIndex, &a.ID, &a.Title, &url, &user, &rawDate, &date); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}

		a.URL, a.User, a.RawTimestamp = url.String, user.String, rawDate.String

		if date.Valid {
			t, err := time.Parse(time.RFC3339Nano, date.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse stored date %q: %w", date.String, err)
			}

			a.Timestamp = models.ValidTimestamp(t)
		}

		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}

	return articles, nil
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var (
		r         RunRecord
		started   string
		reason    string
		elapsedMs int64
		violation sql.NullString
	)

	err := rows.Scan(&r.ID, &started, &r.SourceURL, &reason, &elapsedMs, &r.Count, &r.Pages, &r.Cap, &r.Sorted, &r.AllValid, &violation)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to scan run: %w", err)
	}

	r.StartedAt, err = time.Parse(startedLayout, started)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to parse started_at %q: %w", started, err)
	}

	r.HaltReason = models.HaltReason(reason)
	r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	r.Violation = violation.String

	return r, nil
}

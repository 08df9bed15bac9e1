package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hnsort/internal/config"
	"hnsort/internal/history"
	"hnsort/internal/logger"
	"hnsort/internal/models"
)

func TestExitCode(t *testing.T) {
	ok := models.RunSummary{HaltReason: models.HaltCapReached, Sorted: true, AllValid: true, Count: 100}

	tests := []struct {
		name   string
		mutate func(s *models.RunSummary)
		runErr error
		want   int
	}{
		{name: "complete sorted run", mutate: func(*models.RunSummary) {}, want: 0},
		{name: "exhausted early", mutate: func(s *models.RunSummary) { s.HaltReason = models.HaltExhausted; s.Count = 30 }, want: 0},
		{name: "unsorted", mutate: func(s *models.RunSummary) { s.Sorted = false }, want: 1},
		{name: "undated article", mutate: func(s *models.RunSummary) { s.AllValid = false }, want: 1},
		{name: "halted on invalid timestamp", mutate: func(s *models.RunSummary) { s.HaltReason = models.HaltInvalidTimestamp }, want: 1},
		{name: "fetch error", mutate: func(*models.RunSummary) {}, runErr: errors.New("timeout"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ok
			tt.mutate(&s)

			if got := exitCode(s, tt.runErr); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFinalize_CanceledContext(t *testing.T) {
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Output.Path = filepath.Join(dir, "articles.json")
	cfg.History.Enabled = true
	cfg.History.DBPath = filepath.Join(dir, "history.db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := models.RunSummary{
		StartedAt:  time.Now().UTC(),
		RunID:      "interrupted",
		HaltReason: models.HaltFetchError,
		Count:      1,
		Pages:      1,
		Cap:        100,
		Sorted:     true,
		AllValid:   true,
	}
	articles := []models.Article{{
		ID:            "1",
		Title:         "kept",
		Timestamp:     models.Timestamp{Instant: summary.StartedAt, Valid: true},
		SequenceIndex: 1,
	}}

	finalize(ctx, cfg, false, summary, articles, logger.Discard())

	if _, err := os.Stat(cfg.Output.Path); err != nil {
		t.Fatalf("expected output file after an interrupted run: %v", err)
	}

	store, err := history.Open(context.Background(), cfg.History.DBPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}

	if len(runs) != 1 || runs[0].ID != "interrupted" || runs[0].Count != 1 {
		t.Errorf("expected the interrupted run in history, got %+v", runs)
	}
}

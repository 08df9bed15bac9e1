package integration

import (
	"context"
	"path/filepath"
	"testing"

	"hnsort/internal/collector"
	"hnsort/internal/crawler"
	"hnsort/internal/formatter"
	"hnsort/internal/history"
	"hnsort/internal/output"
	"hnsort/pkg/metadata"
)

func TestPipeline_CollectPersistReport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// 1. Collect
	fetcher := crawler.NewFileFetcher(fixtures("newest_page1.html", "newest_page2.html", "newest_page3.html", "newest_page4.html"), nil)

	res, err := collector.New(fetcher, collector.DefaultOptions(), nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	summary := res.Summary("run-integration", "file://fixtures")

	// 2. Persist
	store, err := history.Open(ctx, filepath.Join(dir, "hnsort.db"))
	if err != nil {
		t.Fatalf("history.Open failed: %v", err)
	}
	defer store.Close()

	jsonPath := filepath.Join(dir, "HackerNewsArticles.json")
	sinks := output.Multi{
		output.NewJSONFileSink(output.JSONOptions{Path: jsonPath, Pretty: true}, nil),
		store,
	}

	if err := sinks.Write(ctx, summary, res.Articles); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := output.LoadArticles(jsonPath)
	if err != nil {
		t.Fatalf("LoadArticles failed: %v", err)
	}

	if len(loaded) != len(res.Articles) || loaded[0].ID != res.Articles[0].ID {
		t.Errorf("JSON round trip lost articles: %d vs %d", len(loaded), len(res.Articles))
	}

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("RecentRuns: %v (%d runs)", err, len(runs))
	}

	if runs[0].ID != "run-integration" || runs[0].Count != 100 || !runs[0].Sorted {
		t.Errorf("unexpected stored run: %+v", runs[0])
	}

	stored, err := store.RunArticles(ctx, "run-integration")
	if err != nil || len(stored) != 100 {
		t.Fatalf("RunArticles: %v (%d articles)", err, len(stored))
	}

	// 3. Report
	report := formatter.RenderRun(summary, loaded)

	if ok, err := metadata.Verify(report); !ok || err != nil {
		t.Fatalf("report signature invalid: %v", err)
	}

	meta, _ := metadata.Extract(report)
	if !meta.Validation || meta.RunID != "run-integration" {
		t.Errorf("unexpected report metadata: %+v", meta)
	}
}

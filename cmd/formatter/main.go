// Package main renders a saved article file as a signed markdown report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"hnsort/internal/formatter"
	"hnsort/internal/history"
	"hnsort/internal/logger"
	"hnsort/internal/models"
	"hnsort/internal/normalizer"
	"hnsort/internal/output"
)

func main() {
	inputPath := flag.String("input", "HackerNewsArticles.json", "Saved articles (JSON array or JSONL)")
	outputPath := flag.String("output", "", "Report path (default: input with .md extension, or <run-id>.md with -db)")
	runID := flag.String("run-id", "", "Run id recorded in the signature (default: input file name)")
	dbPath := flag.String("db", "", "Read the articles of -run-id from this history database instead of -input")
	list := flag.Int("list", 0, "With -db, print this many recent runs and exit")

	flag.Parse()

	if *dbPath != "" && *list > 0 {
		if err := listRuns(*dbPath, *list); err != nil {
			log.Fatalf("❌ Failed to list runs: %v\n", err)
		}

		return
	}

	var (
		articles []models.Article
		err      error
	)

	if *dbPath != "" {
		if *runID == "" {
			log.Fatalf("❌ -db requires -run-id\n")
		}

		articles, err = loadFromHistory(*dbPath, *runID)
	} else {
		articles, err = output.LoadArticles(*inputPath)
	}

	if err != nil {
		log.Fatalf("❌ Failed to load articles: %v\n", err)
	}

	fmt.Printf("📂 Loaded %d articles\n", len(articles))

	id := *runID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(*inputPath), filepath.Ext(*inputPath))
	}

	summary := summarize(id, articles)

	out := *outputPath
	if out == "" && *dbPath != "" {
		out = id + ".md"
	} else if out == "" {
		out = strings.TrimSuffix(*inputPath, filepath.Ext(*inputPath)) + ".md"
	}

	if err := os.WriteFile(out, []byte(formatter.RenderRun(summary, articles)), 0644); err != nil {
		log.Fatalf("❌ Failed to write report: %v\n", err)
	}

	fmt.Printf("✅ Formatted & Signed: %s (sorted: %t)\n", out, summary.Sorted)
}

// summarize rebuilds what can be known about a run from its saved articles.
func summarize(runID string, articles []models.Article) models.RunSummary {
	sorted, violation := normalizer.CheckOrder(articles)

	summary := models.RunSummary{
		RunID:      runID,
		HaltReason: models.HaltExhausted,
		Count:      len(articles),
		Cap:        len(articles),
		Sorted:     sorted,
		AllValid:   normalizer.AllTimestampsValid(articles, logger.Discard()),
		Violation:  violation,
	}

	if violation != nil {
		summary.HaltReason = models.HaltOrderViolation
	}

	return summary
}

func loadFromHistory(path, runID string) ([]models.Article, error) {
	ctx := context.Background()

	store, err := history.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.RunArticles(ctx, runID)
}

func listRuns(path string, limit int) error {
	ctx := context.Background()

	store, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}

	for _, r := range runs {
		status := "✅"
		if !r.Sorted {
			status = "❌"
		}

		fmt.Printf("%s %s  %s  %-16s %3d/%d articles, %d pages, %s\n",
			status, r.StartedAt.Format("2006-01-02 15:04:05"), r.ID, r.HaltReason, r.Count, r.Cap, r.Pages, r.Elapsed)

		if r.Violation != "" {
			fmt.Printf("   ↳ %s\n", r.Violation)
		}
	}

	return nil
}

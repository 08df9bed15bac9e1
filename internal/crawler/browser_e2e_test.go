//go:build e2e

package crawler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hnsort/internal/logger"
)

func TestBrowserFetcher_E2E(t *testing.T) {
	srv := newListingServer(t)
	defer srv.Close()

	b, err := NewBrowserFetcher(context.Background(), srv.URL+"/newest", BrowserOptions{
		ChromePath: os.Getenv("CHROME_PATH"),
		Timeout:    20 * time.Second,
		Headless:   true,
	}, logger.Discard())
	if err != nil {
		t.Fatalf("NewBrowserFetcher failed: %v", err)
	}
	defer b.Close()

	page, err := b.FetchNextPage(context.Background())
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	if len(page.Records) != 30 || !page.HasMore {
		t.Fatalf("page 1: %d records, HasMore=%v", len(page.Records), page.HasMore)
	}

	page, err = b.FetchNextPage(context.Background())
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	if page.HasMore {
		t.Error("Expected last page")
	}

	shot := filepath.Join(t.TempDir(), "shots", "page.png")
	if err := b.Screenshot(context.Background(), shot); err != nil {
		t.Fatalf("Screenshot failed: %v", err)
	}

	if info, err := os.Stat(shot); err != nil || info.Size() == 0 {
		t.Fatalf("screenshot not written: %v", err)
	}
}

package normalizer

import (
	"testing"

	"hnsort/internal/logger"
	"hnsort/internal/models"
)

func TestProcessor_Process(t *testing.T) {
	p := NewProcessor(logger.Discard())

	records := []models.RawRecord{
		{ID: models.StringPtr("3"), Title: models.StringPtr("c"), RawTimestamp: models.StringPtr("2024-12-04T15:00:00 1733324400")},
		{ID: models.StringPtr("2"), Title: models.StringPtr("b"), RawTimestamp: nil},
		{ID: models.StringPtr("1"), Title: models.StringPtr("a"), RawTimestamp: models.StringPtr("2024-12-04T13:00:00 1733317200")},
	}

	articles := p.Process(records)

	if len(articles) != len(records) {
		t.Fatalf("Expected %d articles, got %d", len(records), len(articles))
	}

	for i, want := range []string{"3", "2", "1"} {
		if articles[i].ID != want {
			t.Errorf("articles[%d].ID = %q, want %q", i, articles[i].ID, want)
		}
	}

	if articles[1].Timestamp.Valid {
		t.Error("Expected missing timestamp to be invalid")
	}

	if !IsSortedDescending(articles, logger.Discard()) {
		t.Error("Expected page to be sorted once the invalid entry is skipped")
	}
}

func TestProcessor_Process_Empty(t *testing.T) {
	p := NewProcessor(nil)

	if got := p.Process(nil); len(got) != 0 {
		t.Errorf("Expected no articles, got %d", len(got))
	}
}

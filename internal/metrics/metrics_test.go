package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"hnsort/internal/models"
)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus()

	p.PageFetched(30)
	p.PageFetched(30)
	p.ArticlesAccepted(60)
	p.OrderViolation()
	p.InvalidTimestamps(2)
	p.RunFinished(models.HaltOrderViolation, 3*time.Second)

	if got := testutil.ToFloat64(p.pagesFetched); got != 2 {
		t.Errorf("pages fetched = %v, want 2", got)
	}

	if got := testutil.ToFloat64(p.recordsFetched); got != 60 {
		t.Errorf("records fetched = %v, want 60", got)
	}

	if got := testutil.ToFloat64(p.articlesAccepted); got != 60 {
		t.Errorf("articles accepted = %v, want 60", got)
	}

	if got := testutil.ToFloat64(p.orderViolations); got != 1 {
		t.Errorf("violations = %v, want 1", got)
	}

	if got := testutil.ToFloat64(p.runs.WithLabelValues("order_violation")); got != 1 {
		t.Errorf("runs{order_violation} = %v, want 1", got)
	}
}

func TestPrometheus_WriteTextfile(t *testing.T) {
	p := NewPrometheus()
	p.PageFetched(4)

	path := filepath.Join(t.TempDir(), "hnsort.prom")
	if err := p.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}

	if !strings.Contains(string(data), "hnsort_pages_fetched_total 1") {
		t.Errorf("textfile missing counter:\n%s", data)
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}

	r.PageFetched(1)
	r.RunFinished(models.HaltExhausted, time.Second)
}

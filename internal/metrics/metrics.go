// Package metrics exposes collection counters through Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hnsort/internal/models"
)

// Recorder receives collection events from the collector.
type Recorder interface {
	PageFetched(records int)
	ArticlesAccepted(n int)
	OrderViolation()
	InvalidTimestamps(n int)
	RunFinished(reason models.HaltReason, elapsed time.Duration)
}

// Nop discards every event.
type Nop struct{}

func (Nop) PageFetched(int)                              {}
func (Nop) ArticlesAccepted(int)                         {}
func (Nop) OrderViolation()                              {}
func (Nop) InvalidTimestamps(int)                        {}
func (Nop) RunFinished(models.HaltReason, time.Duration) {}

// Prometheus records events on its own registry so runs do not share global state.
type Prometheus struct {
	registry *prometheus.Registry

	pagesFetched      prometheus.Counter
	recordsFetched    prometheus.Counter
	articlesAccepted  prometheus.Counter
	orderViolations   prometheus.Counter
	invalidTimestamps prometheus.Counter
	runs              *prometheus.CounterVec
	runDuration       prometheus.Histogram
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates a recorder with a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		pagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "hnsort_pages_fetched_total",
			Help: "Total number of listing pages fetched",
		}),
		recordsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "hnsort_records_fetched_total",
			Help: "Total number of raw records seen on fetched pages",
		}),
		articlesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hnsort_articles_accepted_total",
			Help: "Total number of articles accepted into the result",
		}),
		orderViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "hnsort_order_violations_total",
			Help: "Total number of newest-to-oldest order violations",
		}),
		invalidTimestamps: factory.NewCounter(prometheus.CounterOpts{
			Name: "hnsort_invalid_timestamps_total",
			Help: "Total number of records with a missing or unparseable timestamp",
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hnsort_runs_total",
			Help: "Total number of collection runs by halt reason",
		}, []string{"halt_reason"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hnsort_run_duration_seconds",
			Help:    "Collection run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
}

func (p *Prometheus) PageFetched(records int) {
	p.pagesFetched.Inc()
	p.recordsFetched.Add(float64(records))
}

func (p *Prometheus) ArticlesAccepted(n int) {
	p.articlesAccepted.Add(float64(n))
}

func (p *Prometheus) OrderViolation() {
	p.orderViolations.Inc()
}

func (p *Prometheus) InvalidTimestamps(n int) {
	p.invalidTimestamps.Add(float64(n))
}

func (p *Prometheus) RunFinished(reason models.HaltReason, elapsed time.Duration) {
	p.runs.WithLabelValues(string(reason)).Inc()
	p.runDuration.Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (p *Prometheus) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}

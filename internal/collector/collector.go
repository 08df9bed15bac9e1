// Package collector walks a paginated listing and accumulates articles while they stay ordered newest to oldest.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hnsort/internal/logger"
	"hnsort/internal/metrics"
	"hnsort/internal/models"
	"hnsort/internal/normalizer"
)

// DefaultCap is the number of articles collected when Options.Cap is unset.
const DefaultCap = 100

// Collector errors.
var (
	ErrFetchFailed = errors.New("failed to fetch page")
	ErrNilFetcher  = errors.New("page fetcher is nil")
)

// Page is one batch of raw records returned by a single fetch.
type Page struct {
	Records []models.RawRecord
	HasMore bool
}

// PageFetcher supplies listing pages in order. It must return an error rather than a partially parsed page.
type PageFetcher interface {
	FetchNextPage(ctx context.Context) (Page, error)
}

// Timing selects when ordering is checked.
type Timing string

// Validation timings.
const (
	// TimingPerPage validates each page before it is accepted and halts on the first violation.
	TimingPerPage Timing = "per_page"
	// TimingAtEnd accepts pages up to the cap and validates the whole result once.
	TimingAtEnd Timing = "at_end"
)

// Options configures a run.
type Options struct {
	Timing Timing
	Cap    int
	// MaxPages stops the run after this many fetches. Zero means no limit.
	MaxPages      int
	BoundaryCheck bool
	RequireValid  bool
}

// DefaultOptions returns per-page validation with a cap of 100, boundary checks and valid timestamps required.
func DefaultOptions() Options {
	return Options{
		Timing:        TimingPerPage,
		Cap:           DefaultCap,
		BoundaryCheck: true,
		RequireValid:  true,
	}
}

// Result is what a run hands to persistence.
type Result struct {
	StartedAt  time.Time
	Violation  *models.OrderViolation
	HaltReason models.HaltReason
	Articles   []models.Article
	Elapsed    time.Duration
	Pages      int
	Cap        int
	Sorted     bool
	AllValid   bool
}

// Summary describes the result for sinks and notifications.
func (r *Result) Summary(runID, sourceURL string) models.RunSummary {
	return models.RunSummary{
		StartedAt:  r.StartedAt,
		Violation:  r.Violation,
		RunID:      runID,
		SourceURL:  sourceURL,
		HaltReason: r.HaltReason,
		Elapsed:    r.Elapsed,
		Count:      len(r.Articles),
		Pages:      r.Pages,
		Cap:        r.Cap,
		Sorted:     r.Sorted,
		AllValid:   r.AllValid,
	}
}

// Option configures a Collector.
type Option func(*Collector)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Collector) {
		c.metrics = r
	}
}

// Collector owns the state of one pagination run.
type Collector struct {
	fetcher   PageFetcher
	processor *normalizer.Processor
	log       *logger.Logger
	metrics   metrics.Recorder
	opts      Options

	accumulated []models.Article
	violation   *models.OrderViolation
	pages       int
	nextIndex   int
}

// New creates a collector. A non-positive cap falls back to DefaultCap and an empty timing to per-page.
func New(fetcher PageFetcher, opts Options, log *logger.Logger, options ...Option) *Collector {
	if opts.Cap <= 0 {
		opts.Cap = DefaultCap
	}

	if opts.Timing == "" {
		opts.Timing = TimingPerPage
	}

	if log == nil {
		log = logger.Discard()
	}

	c := &Collector{
		fetcher:   fetcher,
		processor: normalizer.NewProcessor(log),
		log:       log,
		metrics:   metrics.Nop{},
		opts:      opts,
	}

	for _, o := range options {
		o(c)
	}

	return c
}

// Run fetches pages until the cap is reached, the listing is exhausted or validation fails.
// Each call starts from an empty result. On a fetch error the partial result is returned with
// an error wrapping ErrFetchFailed.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	if c.fetcher == nil {
		return nil, ErrNilFetcher
	}

	c.reset()

	start := time.Now()
	c.log.Info("collection started", "cap", c.opts.Cap, "timing", string(c.opts.Timing))

	reason, err := c.loop(ctx)

	res := c.finish(reason, start)

	c.metrics.RunFinished(res.HaltReason, res.Elapsed)
	c.log.Info("collection finished",
		"halt_reason", string(res.HaltReason),
		"count", len(res.Articles),
		"pages", res.Pages,
		"sorted", res.Sorted,
		"elapsed", res.Elapsed.String(),
	)

	return res, err
}

func (c *Collector) reset() {
	c.accumulated = make([]models.Article, 0, c.opts.Cap)
	c.violation = nil
	c.pages = 0
	c.nextIndex = 1
}

func (c *Collector) loop(ctx context.Context) (models.HaltReason, error) {
	for {
		if err := ctx.Err(); err != nil {
			return models.HaltFetchError, fmt.Errorf("%w: page %d: %w", ErrFetchFailed, c.pages+1, err)
		}

		c.log.Info("loading page", "page", c.pages+1, "accumulated", len(c.accumulated))

		page, err := c.fetcher.FetchNextPage(ctx)
		if err != nil {
			c.log.Error("page fetch failed", "page", c.pages+1, "error", err)

			return models.HaltFetchError, fmt.Errorf("%w: page %d: %w", ErrFetchFailed, c.pages+1, err)
		}

		c.pages++
		c.metrics.PageFetched(len(page.Records))

		articles := c.processor.Process(page.Records)
		if n := len(normalizer.FindInvalidTimestamps(articles)); n > 0 {
			c.metrics.InvalidTimestamps(n)
		}

		if c.opts.Timing == TimingPerPage {
			if reason, halt := c.validatePage(articles); halt {
				return reason, nil
			}
		}

		c.accumulate(articles)

		if len(c.accumulated) >= c.opts.Cap {
			return models.HaltCapReached, nil
		}

		if !page.HasMore {
			c.log.Info("no more pages to load")

			return models.HaltExhausted, nil
		}

		if c.opts.MaxPages > 0 && c.pages >= c.opts.MaxPages {
			c.log.Warn("page limit reached before cap", "max_pages", c.opts.MaxPages)

			return models.HaltPageLimit, nil
		}
	}
}

// validatePage runs the per-page checks. The page is rejected as a whole on any failure.
func (c *Collector) validatePage(articles []models.Article) (models.HaltReason, bool) {
	if c.opts.RequireValid && !normalizer.AllTimestampsValid(articles, c.log) {
		c.log.Error("invalid timestamps on page", "page", c.pages, "accumulated", len(c.accumulated))

		return models.HaltInvalidTimestamp, true
	}

	if ok, v := normalizer.CheckOrder(articles); !ok {
		v.Page = c.pages
		c.reportViolation(v)

		return models.HaltOrderViolation, true
	}

	if c.opts.BoundaryCheck {
		prev, okPrev := lastValid(c.accumulated)
		next, okNext := firstValid(articles)

		if okPrev && okNext {
			if v := normalizer.CheckBoundary(prev, next); v != nil {
				v.Page = c.pages
				v.Position = len(c.accumulated)
				c.reportViolation(v)

				return models.HaltOrderViolation, true
			}
		}
	}

	return "", false
}

func (c *Collector) reportViolation(v *models.OrderViolation) {
	c.violation = v
	c.metrics.OrderViolation()
	c.log.Error("unsorted articles detected",
		"page", v.Page,
		"accumulated", len(c.accumulated),
		"violation", v.String(),
	)
}

// accumulate trims the page to the remaining capacity, keeping its head, and assigns sequence indices.
func (c *Collector) accumulate(articles []models.Article) {
	remaining := c.opts.Cap - len(c.accumulated)
	if len(articles) > remaining {
		c.log.Info("trimming final page", "keep", remaining, "page_size", len(articles))
		articles = articles[:remaining]
	}

	for i := range articles {
		articles[i].SequenceIndex = c.nextIndex
		c.nextIndex++
	}

	c.accumulated = append(c.accumulated, articles...)
	c.metrics.ArticlesAccepted(len(articles))
}

func (c *Collector) finish(reason models.HaltReason, start time.Time) *Result {
	res := &Result{
		StartedAt:  start,
		HaltReason: reason,
		Articles:   c.accumulated,
		Pages:      c.pages,
		Cap:        c.opts.Cap,
	}

	if c.opts.Timing == TimingAtEnd && reason != models.HaltFetchError {
		res.AllValid = normalizer.AllTimestampsValid(c.accumulated, c.log)

		// Keep only the prefix before the first invalid timestamp.
		if invalid := normalizer.FindInvalidTimestamps(c.accumulated); c.opts.RequireValid && len(invalid) > 0 {
			c.log.Error("invalid timestamps in result, truncating",
				"first_invalid", invalid[0]+1,
				"invalid", len(invalid),
				"accumulated", len(c.accumulated),
			)

			c.accumulated = c.accumulated[:invalid[0]]
			res.Articles = c.accumulated
			res.HaltReason = models.HaltInvalidTimestamp
		}

		// Page stays 0: the merged result no longer knows page boundaries.
		if ok, v := normalizer.CheckOrder(c.accumulated); !ok {
			c.reportViolation(v)
		}
	} else {
		res.AllValid = reason != models.HaltInvalidTimestamp &&
			len(normalizer.FindInvalidTimestamps(c.accumulated)) == 0
	}

	res.Violation = c.violation
	res.Sorted = c.violation == nil
	res.Elapsed = time.Since(start)

	return res
}

func lastValid(articles []models.Article) (models.Article, bool) {
	for i := len(articles) - 1; i >= 0; i-- {
		if articles[i].Timestamp.Valid {
			return articles[i], true
		}
	}

	return models.Article{}, false
}

func firstValid(articles []models.Article) (models.Article, bool) {
	for i := range articles {
		if articles[i].Timestamp.Valid {
			return articles[i], true
		}
	}

	return models.Article{}, false
}

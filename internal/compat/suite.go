// Package compat runs the Hacker News listing checks in several browser engines.
package compat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hnsort/internal/drive"
	"hnsort/internal/logger"
	"hnsort/internal/models"
	"hnsort/internal/normalizer"
)

// Check failures.
var (
	ErrUnexpectedTitle   = errors.New("page title does not contain expected text")
	ErrMissingTimestamp  = errors.New("article has no timestamp")
	ErrInvalidTimestamp  = errors.New("article timestamp cannot be parsed")
	ErrNotSorted         = errors.New("articles are not sorted newest to oldest")
	ErrDeliberateFailure = errors.New("deliberate failure")
	ErrNoBrowsers        = errors.New("no browsers configured")
)

// Check names.
const (
	CheckTitle             = "title"
	CheckTimestampsPresent = "timestamps_present"
	CheckSorted            = "sorted"
	CheckFailureDemo       = "failure_demo"
)

const expectedTitle = "Hacker News"

// Page is the slice of a browser page the checks drive.
type Page interface {
	Goto(url string) error
	Title() (string, error)
	// Stories returns every listed story in page order.
	Stories() ([]Story, error)
	HasMore() (bool, error)
	NextPage() error
	Screenshot(path string) error
	Close() error
}

// Story is one listing row as rendered. Fields are nil where the element is absent.
type Story struct {
	Title *string
	// Age is the title attribute of the row's span.age.
	Age *string
}

// Opener opens a fresh page in the named browser engine.
type Opener interface {
	Open(browser string) (Page, error)
}

// ScreenshotUploader receives failure screenshots.
type ScreenshotUploader interface {
	UploadScreenshot(ctx context.Context, path, test, browser string) (*drive.File, error)
}

// Options configures a suite run.
type Options struct {
	BaseURL            string
	ArtifactsDir       string
	Browsers           []string
	MaxPages           int
	SampleSize         int
	IncludeFailureDemo bool
}

// Result is the outcome of one check in one browser.
type Result struct {
	Browser    string        `json:"browser"`
	Check      string        `json:"check"`
	Error      string        `json:"error,omitempty"`
	Screenshot string        `json:"screenshot,omitempty"`
	DriveLink  string        `json:"driveLink,omitempty"`
	Duration   time.Duration `json:"durationNs"`
	Passed     bool          `json:"passed"`
}

// Report collects every result of a run.
type Report struct {
	StartedAt time.Time     `json:"startedAt"`
	Results   []Result      `json:"results"`
	Elapsed   time.Duration `json:"elapsedNs"`
}

// Failed returns the failing results.
func (r *Report) Failed() []Result {
	var failed []Result

	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}

	return failed
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	return len(r.Failed()) == 0
}

type check struct {
	run  func(ctx context.Context, p Page) error
	name string
}

// Suite runs the checks against each configured browser.
type Suite struct {
	opener   Opener
	uploader ScreenshotUploader
	logger   *logger.Logger
	opts     Options
}

// NewSuite creates a suite. uploader may be nil.
func NewSuite(opener Opener, uploader ScreenshotUploader, opts Options, log *logger.Logger) *Suite {
	if log == nil {
		log = logger.Discard()
	}

	if opts.MaxPages < 1 {
		opts.MaxPages = 10
	}

	if opts.SampleSize < 1 {
		opts.SampleSize = 100
	}

	return &Suite{opener: opener, uploader: uploader, opts: opts, logger: log}
}

func (s *Suite) checks() []check {
	checks := []check{
		{name: CheckTitle, run: s.checkTitle},
		{name: CheckTimestampsPresent, run: s.checkTimestampsPresent},
		{name: CheckSorted, run: s.checkSorted},
	}

	if s.opts.IncludeFailureDemo {
		checks = append(checks, check{name: CheckFailureDemo, run: s.checkFailureDemo})
	}

	return checks
}

// Run executes every check in every browser. Each check gets its own page.
func (s *Suite) Run(ctx context.Context) (*Report, error) {
	if len(s.opts.Browsers) == 0 {
		return nil, ErrNoBrowsers
	}

	report := &Report{StartedAt: time.Now()}

	for _, browser := range s.opts.Browsers {
		for _, c := range s.checks() {
			if err := ctx.Err(); err != nil {
				report.Elapsed = time.Since(report.StartedAt)

				return report, err
			}

			report.Results = append(report.Results, s.runCheck(ctx, browser, c))
		}
	}

	report.Elapsed = time.Since(report.StartedAt)

	s.logger.Info("compatibility suite finished",
		"results", len(report.Results),
		"failed", len(report.Failed()),
		"elapsed", report.Elapsed,
	)

	return report, nil
}

func (s *Suite) runCheck(ctx context.Context, browser string, c check) Result {
	log := s.logger.With("browser", browser, "check", c.name)
	start := time.Now()
	res := Result{Browser: browser, Check: c.name}

	page, err := s.opener.Open(browser)
	if err != nil {
		res.Error = fmt.Sprintf("failed to open browser: %v", err)
		res.Duration = time.Since(start)
		log.Error("check failed", "error", res.Error)

		return res
	}
	defer page.Close()

	err = page.Goto(s.opts.BaseURL)
	if err == nil {
		err = c.run(ctx, page)
	}

	res.Duration = time.Since(start)

	if err == nil {
		res.Passed = true
		log.Info("check passed", "duration", res.Duration)

		return res
	}

	res.Error = err.Error()
	log.Error("check failed", "error", err)

	s.captureFailure(ctx, page, &res, log)

	return res
}

// captureFailure saves a full-page screenshot and hands it to the uploader.
func (s *Suite) captureFailure(ctx context.Context, page Page, res *Result, log *logger.Logger) {
	dir := s.opts.ArtifactsDir
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn("could not create artifacts directory", "error", err)

		return
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", res.Browser, res.Check))
	if err := page.Screenshot(path); err != nil {
		log.Warn("could not capture screenshot", "error", err)

		return
	}

	res.Screenshot = path

	if s.uploader == nil {
		return
	}

	file, err := s.uploader.UploadScreenshot(ctx, path, res.Check, res.Browser)
	if err != nil {
		log.Warn("screenshot upload failed", "error", err)

		return
	}

	res.DriveLink = file.WebViewLink
}

func (s *Suite) checkTitle(_ context.Context, p Page) error {
	title, err := p.Title()
	if err != nil {
		return err
	}

	if !strings.Contains(title, expectedTitle) {
		return fmt.Errorf("%w: %q", ErrUnexpectedTitle, title)
	}

	return nil
}

func (s *Suite) checkTimestampsPresent(_ context.Context, p Page) error {
	stories, err := p.Stories()
	if err != nil {
		return err
	}

	for i, st := range stories {
		if st.Age == nil || strings.TrimSpace(*st.Age) == "" {
			return fmt.Errorf("%w: position %d (%s)", ErrMissingTimestamp, i+1, storyTitle(st))
		}

		if !normalizer.NormalizeTimestamp(st.Age, s.logger).Valid {
			return fmt.Errorf("%w: position %d (%s): %q", ErrInvalidTimestamp, i+1, storyTitle(st), *st.Age)
		}
	}

	return nil
}

// checkSorted collects timestamps across pages until the sample is full.
func (s *Suite) checkSorted(ctx context.Context, p Page) error {
	var articles []models.Article

	for pages := 1; ; pages++ {
		stories, err := p.Stories()
		if err != nil {
			return err
		}

		for _, st := range stories {
			articles = append(articles, models.Article{
				Title:         storyTitle(st),
				Timestamp:     normalizer.NormalizeTimestamp(st.Age, s.logger),
				SequenceIndex: len(articles) + 1,
			})
		}

		if len(articles) >= s.opts.SampleSize || pages >= s.opts.MaxPages || ctx.Err() != nil {
			break
		}

		more, err := p.HasMore()
		if err != nil {
			return err
		}

		if !more {
			break
		}

		if err := p.NextPage(); err != nil {
			return fmt.Errorf("failed to load page %d: %w", pages+1, err)
		}
	}

	if len(articles) > s.opts.SampleSize {
		articles = articles[:s.opts.SampleSize]
	}

	if len(articles) < s.opts.SampleSize {
		s.logger.Info("fewer timestamps than sample size", "collected", len(articles), "sample", s.opts.SampleSize)
	}

	if invalid := normalizer.FindInvalidTimestamps(articles); len(invalid) > 0 {
		first := articles[invalid[0]]

		return fmt.Errorf("%w: %d of %d, first %q at position %d",
			ErrInvalidTimestamp, len(invalid), len(articles), first.Title, first.SequenceIndex)
	}

	if sorted, v := normalizer.CheckOrder(articles); !sorted {
		return fmt.Errorf("%w: %s at position %d", ErrNotSorted, v, v.Position+1)
	}

	return nil
}

func storyTitle(st Story) string {
	if st.Title == nil {
		return "untitled"
	}

	return *st.Title
}

// checkFailureDemo always fails so the screenshot path can be exercised end to end.
func (s *Suite) checkFailureDemo(_ context.Context, p Page) error {
	title, err := p.Title()
	if err != nil {
		return err
	}

	return fmt.Errorf("%w: title %q does not match %q", ErrDeliberateFailure, title, "This Will Definitely Fail")
}

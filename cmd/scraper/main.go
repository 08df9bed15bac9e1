// Package main provides the scraper command: it walks Hacker News /newest,
// checks that articles are ordered newest to oldest and persists the run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"hnsort/internal/collector"
	"hnsort/internal/config"
	"hnsort/internal/crawler"
	"hnsort/internal/drive"
	"hnsort/internal/formatter"
	"hnsort/internal/history"
	"hnsort/internal/logger"
	"hnsort/internal/metrics"
	"hnsort/internal/models"
	"hnsort/internal/notify"
	"hnsort/internal/output"
	"hnsort/pkg/utils"
)

const defaultConfigPath = "configs/hnsort.yaml"

type flags struct {
	configFile string
	envFile    string
	startURL   string
	source     string
	output     string
	timing     string
	files      string
	cap        int
	maxPages   int
	report     bool
	help       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	var f flags

	flag.StringVar(&f.configFile, "config", "", "Path to YAML configuration file")
	flag.StringVar(&f.envFile, "env", ".env", "Path to .env file with overrides")
	flag.StringVar(&f.startURL, "url", "", "Listing URL to start from (overrides config)")
	flag.StringVar(&f.source, "source", "", "Page source: browser, http or file (overrides config)")
	flag.StringVar(&f.output, "output", "", "Output file path (overrides config)")
	flag.StringVar(&f.timing, "timing", "", "Validation timing: per_page or at_end (overrides config)")
	flag.StringVar(&f.files, "files", "", "Comma-separated saved listing pages for -source file")
	flag.IntVar(&f.cap, "cap", 0, "Maximum number of articles to collect (overrides config)")
	flag.IntVar(&f.maxPages, "max-pages", 0, "Stop after this many pages (overrides config, 0 = no limit)")
	flag.BoolVar(&f.report, "report", false, "Also write a markdown report next to the output")
	flag.BoolVar(&f.help, "help", false, "Show usage information")

	flag.Parse()

	if f.help {
		printUsage()

		return 0
	}

	// A missing .env file is normal.
	if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to load %s: %v\n", f.envFile, err)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)

		return 2
	}

	log, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)

		return 2
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	log = log.With("run_id", runID)

	fmt.Printf("⚙️  %s\n", cfg)

	fetcher, err := buildFetcher(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create page source", "error", err)

		return 1
	}
	defer fetcher.close(log)

	recorder := metrics.NewPrometheus()
	c := collector.New(fetcher.PageFetcher, collectorOptions(cfg), log, collector.WithRecorder(recorder))

	res, runErr := c.Run(ctx)
	if res == nil {
		log.Error("collection failed", "error", runErr)

		return 1
	}

	if runErr != nil {
		log.Error("collection stopped early", "error", runErr)
	}

	summary := res.Summary(runID, cfg.Source.StartURL)

	if summary.Violation != nil {
		captureViolation(ctx, cfg, fetcher, runID, log)
	}

	finalize(ctx, cfg, f.report, summary, res.Articles, log)

	if path := cfg.Metrics.Textfile; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			log.Warn("failed to write metrics textfile", "error", err)
		}
	}

	printSummary(summary)

	return exitCode(summary, runErr)
}

// exitCode is 0 only for a complete run whose articles are sorted and all dated.
func exitCode(s models.RunSummary, runErr error) int {
	if runErr != nil || !s.Sorted || !s.AllValid || s.HaltReason == models.HaltInvalidTimestamp {
		return 1
	}

	return 0
}

func loadConfig(f flags) (*config.Config, error) {
	path := f.configFile
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg := config.DefaultConfig()

	if path != "" {
		fmt.Printf("⚙️  Loading configuration from: %s\n", path)

		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}

		cfg = loaded
	}

	cfg.ApplyEnv()

	if f.startURL != "" {
		cfg.Source.StartURL = f.startURL
	}

	if f.source != "" {
		cfg.Source.Kind = f.source
	}

	if f.output != "" {
		cfg.Output.Path = f.output
	}

	if f.timing != "" {
		cfg.Collector.ValidationTiming = f.timing
	}

	if f.files != "" {
		cfg.Source.Files = strings.Split(f.files, ",")
	}

	if f.cap > 0 {
		cfg.Collector.Cap = f.cap
	}

	if f.maxPages > 0 {
		cfg.Collector.MaxPages = f.maxPages
	}

	if f.report {
		cfg.Output.Report = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Source.Kind != config.SourceFile && !utils.NewHTTPHelper("").IsValidURL(cfg.Source.StartURL) {
		return nil, fmt.Errorf("invalid start url %q", cfg.Source.StartURL)
	}

	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) (*logger.Logger, func(), error) {
	if cfg.File == "" {
		return logger.NewLogger(cfg.Level), func() {}, nil
	}

	log, closeFile, err := logger.NewFileLogger(cfg.Level, cfg.File)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return log, func() { _ = closeFile() }, nil
}

func collectorOptions(cfg *config.Config) collector.Options {
	return collector.Options{
		Timing:        collector.Timing(cfg.Collector.ValidationTiming),
		Cap:           cfg.Collector.Cap,
		MaxPages:      cfg.Collector.MaxPages,
		BoundaryCheck: cfg.Collector.BoundaryCheck,
		RequireValid:  cfg.Collector.RequireValid,
	}
}

// pageSource is the configured fetcher plus what the HTTP and browser variants add.
type pageSource struct {
	collector.PageFetcher
	http    *crawler.HTTPFetcher
	browser *crawler.BrowserFetcher
}

func (p pageSource) close(log *logger.Logger) {
	if p.http != nil {
		p.http.Attempts().LogSummary(log)
	}

	if p.browser != nil {
		p.browser.Close()
	}
}

func buildFetcher(ctx context.Context, cfg *config.Config, log *logger.Logger) (pageSource, error) {
	src := cfg.Source

	switch src.Kind {
	case config.SourceFile:
		return pageSource{PageFetcher: crawler.NewFileFetcher(src.Files, log)}, nil
	case config.SourceHTTP:
		h := crawler.NewHTTPFetcher(src.StartURL, crawler.HTTPOptions{
			UserAgent: src.UserAgent,
			Timeout:   src.Timeout(),
			Retry: crawler.RetryPolicy{
				MaxAttempts:       src.Retry.MaxAttempts,
				InitialDelay:      src.Retry.InitialDelay(),
				MaxDelay:          src.Retry.MaxDelay(),
				BackoffMultiplier: src.Retry.BackoffMultiplier,
			},
		}, log)

		return pageSource{PageFetcher: h, http: h}, nil
	default:
		b, err := crawler.NewBrowserFetcher(ctx, src.StartURL, crawler.BrowserOptions{
			ChromePath:   src.ChromePath,
			UserAgent:    src.UserAgent,
			WaitSelector: src.WaitSelector,
			Timeout:      src.Timeout(),
			Headless:     src.Headless,
		}, log)
		if err != nil {
			return pageSource{}, err
		}

		return pageSource{PageFetcher: b, browser: b}, nil
	}
}

// captureViolation screenshots the page holding the violation and uploads it when Drive is enabled.
func captureViolation(ctx context.Context, cfg *config.Config, src pageSource, runID string, log *logger.Logger) {
	if src.browser == nil {
		return
	}

	dir := cfg.Source.ScreenshotDir
	if dir == "" {
		dir = "screenshots"
	}

	path := filepath.Join(dir, fmt.Sprintf("order_violation_%s.png", runID))
	if err := src.browser.Screenshot(ctx, path); err != nil {
		log.Warn("failed to capture violation screenshot", "error", err)

		return
	}

	log.Info("violation screenshot saved", "path", path)

	uploader, err := drive.FromConfig(ctx, cfg.Drive, log)
	if err != nil {
		log.Warn("google drive unavailable", "error", err)

		return
	}

	if uploader == nil {
		return
	}

	if _, err := uploader.UploadScreenshot(ctx, path, "orderViolation", "chrome"); err != nil {
		log.Warn("failed to upload violation screenshot", "error", err)
	}
}

// finalize stores and announces the run. An interrupted run still keeps what it collected.
func finalize(ctx context.Context, cfg *config.Config, report bool, summary models.RunSummary, articles []models.Article, log *logger.Logger) {
	ctx = context.WithoutCancel(ctx)

	persist(ctx, cfg, report, summary, articles, log)
	publish(ctx, cfg.Notify, summary, log)
}

func persist(ctx context.Context, cfg *config.Config, report bool, summary models.RunSummary, articles []models.Article, log *logger.Logger) {
	jsonSink := output.NewJSONFileSink(output.JSONOptions{
		Path:        cfg.Output.Path,
		Format:      cfg.Output.Format,
		Pretty:      cfg.Output.PrettyPrint,
		Backup:      cfg.Output.CreateBackup,
		Timestamped: cfg.Output.Timestamped,
	}, log)

	sinks := output.Multi{jsonSink}

	if m := cfg.Output.Mongo; m.URI != "" {
		mongoSink, disconnect, err := output.ConnectMongo(ctx, output.MongoOptions{
			URI:        m.URI,
			Database:   m.Database,
			Collection: m.Collection,
		}, log)
		if err != nil {
			log.Warn("mongo sink disabled", "error", err)
		} else {
			defer func() { _ = disconnect(context.Background()) }()

			sinks = append(sinks, mongoSink)
		}
	}

	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.DBPath)
		if err != nil {
			log.Warn("run history disabled", "error", err)
		} else {
			defer store.Close()

			sinks = append(sinks, store)
		}
	}

	if err := sinks.Write(ctx, summary, articles); err != nil {
		log.Error("failed to persist run", "error", err)
	}

	fmt.Printf("💾 Results written to: %s\n", jsonSink.Path())

	if !report && !cfg.Output.Report {
		return
	}

	reportPath := strings.TrimSuffix(jsonSink.Path(), filepath.Ext(jsonSink.Path())) + ".md"
	if err := os.WriteFile(reportPath, []byte(formatter.RenderRun(summary, articles)), 0644); err != nil {
		log.Error("failed to write report", "error", err)

		return
	}

	fmt.Printf("📝 Report written to: %s\n", reportPath)
}

func publish(ctx context.Context, cfg config.NotifyConfig, summary models.RunSummary, log *logger.Logger) {
	n, err := notify.Connect(cfg.NATSURL, cfg.Subject, log)
	if err != nil {
		log.Warn("notifications disabled", "error", err)

		return
	}
	defer n.Close()

	if err := n.RunCompleted(ctx, summary); err != nil {
		log.Warn("failed to publish run event", "error", err)
	}
}

func printSummary(s models.RunSummary) {
	strs := utils.NewStringHelper()

	fmt.Println("\n----------------------------------------------------------------")
	fmt.Printf("count: %d\n", s.Count)
	fmt.Printf("sorted: %t\n", s.Sorted)
	fmt.Printf("allValid: %t\n", s.AllValid)
	fmt.Printf("halt reason: %s\n", s.HaltReason)
	fmt.Printf("elapsed: %.2fs\n", s.Elapsed.Seconds())

	if v := s.Violation; v != nil {
		fmt.Printf("❌ Out of order at position %d: %q (%s) is newer than %q (%s)\n",
			v.Position+1,
			strs.TruncateString(v.Current.Title, 60), v.Current.Timestamp,
			strs.TruncateString(v.Previous.Title, 60), v.Previous.Timestamp,
		)
	} else if s.Sorted {
		fmt.Println("✅ Articles are sorted newest to oldest")
	}

	if !s.AllValid {
		fmt.Println("❌ Some articles have a missing or unparseable timestamp")
	}
}

func printUsage() {
	fmt.Println("Usage: ./bin/scraper [OPTIONS]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  ./bin/scraper")
	fmt.Println("  ./bin/scraper -source http -cap 100 -report")
	fmt.Println("  ./bin/scraper -source file -files test/fixtures/newest_page1.html,test/fixtures/newest_page2.html")
}

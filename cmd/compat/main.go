// Package main runs the Hacker News listing checks in chromium, firefox and webkit.
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

	"github.com/joho/godotenv"

	"hnsort/internal/compat"
	"hnsort/internal/config"
	"hnsort/internal/drive"
	"hnsort/internal/formatter"
	"hnsort/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	envFile := flag.String("env", ".env", "Path to .env file with overrides")
	browsers := flag.String("browsers", "", "Comma-separated browsers (overrides config)")
	failureDemo := flag.Bool("failure-demo", false, "Include the deliberately failing check")
	install := flag.Bool("install", false, "Install playwright browsers before running")
	headed := flag.Bool("headed", false, "Show browser windows")

	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to load %s: %v\n", *envFile, err)
	}

	cfg := config.DefaultConfig()

	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)

			return 2
		}

		cfg = loaded
	}

	cfg.ApplyEnv()

	if *browsers != "" {
		cfg.Compat.Browsers = strings.Split(*browsers, ",")
	}

	if *failureDemo {
		cfg.Compat.IncludeFailureDemo = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)

		return 2
	}

	log := logger.NewLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opener, err := compat.StartPlaywright(compat.PlaywrightOptions{
		TimeoutMs: float64(cfg.Compat.TimeoutMs),
		Headless:  !*headed,
		Install:   *install,
	}, log)
	if err != nil {
		log.Error("failed to start playwright", "error", err)

		return 1
	}
	defer func() { _ = opener.Stop() }()

	var uploader compat.ScreenshotUploader

	u, err := drive.FromConfig(ctx, cfg.Drive, log)
	if err != nil {
		log.Warn("google drive unavailable", "error", err)
	} else if u != nil {
		uploader = u
	}

	suite := compat.NewSuite(opener, uploader, compat.Options{
		BaseURL:            cfg.Compat.BaseURL,
		ArtifactsDir:       cfg.Compat.ArtifactsDir,
		Browsers:           cfg.Compat.Browsers,
		MaxPages:           cfg.Compat.MaxPages,
		SampleSize:         cfg.Compat.SampleSize,
		IncludeFailureDemo: cfg.Compat.IncludeFailureDemo,
	}, log)

	report, err := suite.Run(ctx)
	if err != nil {
		log.Error("compatibility suite aborted", "error", err)

		if report == nil {
			return 1
		}
	}

	reportPath := filepath.Join(cfg.Compat.ArtifactsDir, "compat-report.md")
	if err := os.MkdirAll(cfg.Compat.ArtifactsDir, 0755); err == nil {
		if err := os.WriteFile(reportPath, []byte(formatter.RenderCompat(report)), 0644); err != nil {
			log.Warn("failed to write report", "error", err)
		} else {
			fmt.Printf("📝 Report written to: %s\n", reportPath)
		}
	}

	for _, r := range report.Results {
		mark := "✅"
		if !r.Passed {
			mark = "❌"
		}

		fmt.Printf("%s %-9s %-20s %s\n", mark, r.Browser, r.Check, r.Error)
	}

	if !report.Passed() {
		fmt.Printf("\n%d of %d checks failed\n", len(report.Failed()), len(report.Results))

		return 1
	}

	return 0
}

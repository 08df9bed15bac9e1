// Package config provides configuration management for the scraper and the compatibility suite.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidCap              = errors.New("collector.cap must be at least 1")
	ErrInvalidMaxPages         = errors.New("collector.max_pages must not be negative")
	ErrInvalidValidationTiming = errors.New("collector.validation_timing must be 'per_page' or 'at_end'")
	ErrInvalidSourceKind       = errors.New("source.kind must be one of: browser, http, file")
	ErrMissingStartURL         = errors.New("source.start_url is required for browser and http sources")
	ErrMissingSourceFiles      = errors.New("source.files is required for file sources")
	ErrInvalidTimeout          = errors.New("source.timeout_sec must be at least 1")
	ErrInvalidRetry            = errors.New("source.retry.max_attempts must be at least 1")
	ErrMissingOutputPath       = errors.New("output.path is required")
	ErrInvalidOutputFormat     = errors.New("output.format must be 'json' or 'jsonl'")
	ErrInvalidLogLevel         = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrMissingHistoryPath      = errors.New("history.db_path is required when history is enabled")
	ErrMissingDriveCredentials = errors.New("drive.credentials_file and drive.token_file are required when drive is enabled")
	ErrInvalidBrowser          = errors.New("compat.browsers entries must be chromium, firefox or webkit")
)

// Validation timing policies.
const (
	TimingPerPage = "per_page"
	TimingAtEnd   = "at_end"
)

// Source kinds.
const (
	SourceBrowser = "browser"
	SourceHTTP    = "http"
	SourceFile    = "file"
)

// DefaultStartURL is the listing the scraper walks by default.
const DefaultStartURL = "https://news.ycombinator.com/newest"

// Config represents the complete scraper configuration.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`
	Source    SourceConfig    `yaml:"source"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
	History   HistoryConfig   `yaml:"history"`
	Notify    NotifyConfig    `yaml:"notify"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Drive     DriveConfig     `yaml:"drive"`
	Compat    CompatConfig    `yaml:"compat"`
}

// CollectorConfig controls the pagination collector.
type CollectorConfig struct {
	ValidationTiming string `yaml:"validation_timing"`
	Cap              int    `yaml:"cap"`
	MaxPages         int    `yaml:"max_pages"`
	BoundaryCheck    bool   `yaml:"boundary_check"`
	RequireValid     bool   `yaml:"require_valid"`
}

// SourceConfig describes where listing pages come from.
type SourceConfig struct {
	Kind          string      `yaml:"kind"`
	StartURL      string      `yaml:"start_url"`
	UserAgent     string      `yaml:"user_agent"`
	ChromePath    string      `yaml:"chrome_path"`
	WaitSelector  string      `yaml:"wait_selector"`
	ScreenshotDir string      `yaml:"screenshot_dir"`
	Files         []string    `yaml:"files"`
	Retry         RetryPolicy `yaml:"retry"`
	TimeoutSec    int         `yaml:"timeout_sec"`
	Headless      bool        `yaml:"headless"`
}

// RetryPolicy defines retry behavior for HTTP page requests.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// OutputConfig defines output behavior.
type OutputConfig struct {
	Path         string      `yaml:"path"`
	Format       string      `yaml:"format"`
	Mongo        MongoConfig `yaml:"mongo"`
	PrettyPrint  bool        `yaml:"pretty_print"`
	CreateBackup bool        `yaml:"create_backup"`
	Timestamped  bool        `yaml:"timestamped"`
	Report       bool        `yaml:"report"`
}

// MongoConfig enables the MongoDB sink when URI is set.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	DBPath  string `yaml:"db_path"`
	Enabled bool   `yaml:"enabled"`
}

// NotifyConfig enables run notifications over NATS when URL is set.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// DriveConfig controls screenshot uploads to Google Drive.
type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
	RedirectPort    int    `yaml:"redirect_port"`
	Enabled         bool   `yaml:"enabled"`
}

// CompatConfig controls the cross-browser compatibility suite.
type CompatConfig struct {
	BaseURL            string   `yaml:"base_url"`
	ArtifactsDir       string   `yaml:"artifacts_dir"`
	Browsers           []string `yaml:"browsers"`
	MaxPages           int      `yaml:"max_pages"`
	SampleSize         int      `yaml:"sample_size"`
	TimeoutMs          int      `yaml:"timeout_ms"`
	IncludeFailureDemo bool     `yaml:"include_failure_demo"`
}

// DefaultConfig returns the configuration used when no file overrides a field.
func DefaultConfig() *Config {
	return &Config{
		Collector: CollectorConfig{
			Cap:              100,
			ValidationTiming: TimingPerPage,
			BoundaryCheck:    true,
			RequireValid:     true,
		},
		Source: SourceConfig{
			Kind:         SourceBrowser,
			StartURL:     DefaultStartURL,
			TimeoutSec:   30,
			Headless:     true,
			WaitSelector: ".athing",
			Retry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    1000,
				MaxDelayMs:        10000,
				BackoffMultiplier: 2,
			},
		},
		Output: OutputConfig{
			Path:        "HackerNewsArticles.json",
			Format:      "json",
			PrettyPrint: true,
			Mongo: MongoConfig{
				Database:   "hnsort",
				Collection: "articles",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		History: HistoryConfig{
			DBPath: "hnsort.db",
		},
		Notify: NotifyConfig{
			Subject: "hnsort.run.completed",
		},
		Drive: DriveConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			FolderName:      "Hacker News Articles",
			RedirectPort:    3000,
		},
		Compat: CompatConfig{
			BaseURL:      DefaultStartURL,
			ArtifactsDir: "test-results",
			Browsers:     []string{"chromium", "firefox", "webkit"},
			MaxPages:     10,
			SampleSize:   100,
			TimeoutMs:    30000,
		},
	}
}

// LoadConfig loads configuration from a YAML file layered over DefaultConfig.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables. Unparseable numbers are ignored.
func (c *Config) ApplyEnv() {
	if v := getEnv("HNSORT_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Collector.Cap = n
		}
	}

	if v := getEnv("HNSORT_VALIDATION_TIMING"); v != "" {
		c.Collector.ValidationTiming = v
	}

	if v := getEnv("HNSORT_START_URL"); v != "" {
		c.Source.StartURL = v
	}

	if v := getEnv("HNSORT_SOURCE"); v != "" {
		c.Source.Kind = v
	}

	if v := getEnv("HNSORT_OUTPUT"); v != "" {
		c.Output.Path = v
	}

	if v := getEnv("HNSORT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := getEnv("CHROME_PATH"); v != "" {
		c.Source.ChromePath = v
	}

	if v := getEnv("MONGO_URI"); v != "" {
		c.Output.Mongo.URI = v
	}

	if v := getEnv("NATS_URL"); v != "" {
		c.Notify.NATSURL = v
	}

	if v := getEnv("GOOGLE_CREDENTIALS_FILE"); v != "" {
		c.Drive.CredentialsFile = v
	}

	if v := getEnv("GOOGLE_TOKEN_FILE"); v != "" {
		c.Drive.TokenFile = v
	}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Collector.Cap < 1 {
		return ErrInvalidCap
	}

	if c.Collector.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.Collector.ValidationTiming != TimingPerPage && c.Collector.ValidationTiming != TimingAtEnd {
		return ErrInvalidValidationTiming
	}

	switch c.Source.Kind {
	case SourceBrowser, SourceHTTP:
		if c.Source.StartURL == "" {
			return ErrMissingStartURL
		}
	case SourceFile:
		if len(c.Source.Files) == 0 {
			return ErrMissingSourceFiles
		}
	default:
		return ErrInvalidSourceKind
	}

	if c.Source.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Source.Retry.MaxAttempts < 1 {
		return ErrInvalidRetry
	}

	if c.Output.Path == "" {
		return ErrMissingOutputPath
	}

	if c.Output.Format != "json" && c.Output.Format != "jsonl" {
		return ErrInvalidOutputFormat
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return ErrMissingHistoryPath
	}

	if c.Drive.Enabled && (c.Drive.CredentialsFile == "" || c.Drive.TokenFile == "") {
		return ErrMissingDriveCredentials
	}

	for i, b := range c.Compat.Browsers {
		switch b {
		case "chromium", "firefox", "webkit":
		default:
			return fmt.Errorf("%w: compat.browsers[%d]=%q", ErrInvalidBrowser, i, b)
		}
	}

	return nil
}

// Timeout returns the per-page fetch timeout.
func (s *SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// InitialDelay returns the wait before the first retry.
func (r *RetryPolicy) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// MaxDelay returns the upper bound on any wait between attempts.
func (r *RetryPolicy) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// ValidateAtEnd reports whether ordering is checked once after collection.
func (c *CollectorConfig) ValidateAtEnd() bool {
	return c.ValidationTiming == TimingAtEnd
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Source: %s %s, Cap: %d, Timing: %s, Output: %s}",
		c.Source.Kind,
		c.Source.StartURL,
		c.Collector.Cap,
		c.Collector.ValidationTiming,
		c.Output.Path,
	)
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// validConfigYAML overrides a handful of fields and leaves the rest at defaults.
const validConfigYAML = `
collector:
  cap: 30
  validation_timing: at_end
  boundary_check: false
  require_valid: true
source:
  kind: http
  start_url: "http://example.com/newest"
  timeout_sec: 5
output:
  path: "./out/articles.jsonl"
  format: jsonl
  report: true
logging:
  level: debug
`

func TestLoadConfig_Valid(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Collector.Cap != 30 {
		t.Errorf("Expected cap 30, got %d", cfg.Collector.Cap)
	}

	if !cfg.Collector.ValidateAtEnd() {
		t.Errorf("Expected at_end timing, got %q", cfg.Collector.ValidationTiming)
	}

	if cfg.Collector.BoundaryCheck {
		t.Error("Expected boundary_check to be disabled")
	}

	if cfg.Source.Kind != SourceHTTP {
		t.Errorf("Expected source kind http, got %q", cfg.Source.Kind)
	}

	if cfg.Source.Timeout() != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", cfg.Source.Timeout())
	}

	if cfg.Output.Format != "jsonl" || !cfg.Output.Report {
		t.Errorf("Unexpected output config: %+v", cfg.Output)
	}

	// Untouched sections keep their defaults.
	if cfg.Drive.FolderName != "Hacker News Articles" {
		t.Errorf("Expected default drive folder, got %q", cfg.Drive.FolderName)
	}

	if len(cfg.Compat.Browsers) != 3 {
		t.Errorf("Expected 3 default browsers, got %v", cfg.Compat.Browsers)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := createTempConfigFile(t, "invalid: yaml: content: [}")

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	configPath := createTempConfigFile(t, "collector:\n  cap: 0\n")

	_, err := LoadConfig(configPath)
	if !errors.Is(err, ErrInvalidCap) {
		t.Fatalf("Expected ErrInvalidCap, got %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	if cfg.Collector.Cap != 100 {
		t.Errorf("Expected default cap 100, got %d", cfg.Collector.Cap)
	}

	if !cfg.Collector.BoundaryCheck || !cfg.Collector.RequireValid {
		t.Error("Expected boundary check and require_valid on by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "zero cap",
			mutate:  func(c *Config) { c.Collector.Cap = 0 },
			wantErr: ErrInvalidCap,
		},
		{
			name:    "no request attempts",
			mutate:  func(c *Config) { c.Source.Retry.MaxAttempts = 0 },
			wantErr: ErrInvalidRetry,
		},
		{
			name:    "negative max pages",
			mutate:  func(c *Config) { c.Collector.MaxPages = -1 },
			wantErr: ErrInvalidMaxPages,
		},
		{
			name:    "unknown timing",
			mutate:  func(c *Config) { c.Collector.ValidationTiming = "sometimes" },
			wantErr: ErrInvalidValidationTiming,
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Source.Kind = "ftp" },
			wantErr: ErrInvalidSourceKind,
		},
		{
			name:    "http without url",
			mutate:  func(c *Config) { c.Source.Kind = SourceHTTP; c.Source.StartURL = "" },
			wantErr: ErrMissingStartURL,
		},
		{
			name:    "file without files",
			mutate:  func(c *Config) { c.Source.Kind = SourceFile },
			wantErr: ErrMissingSourceFiles,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Source.TimeoutSec = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "missing output path",
			mutate:  func(c *Config) { c.Output.Path = "" },
			wantErr: ErrMissingOutputPath,
		},
		{
			name:    "bad output format",
			mutate:  func(c *Config) { c.Output.Format = "xml" },
			wantErr: ErrInvalidOutputFormat,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "history without path",
			mutate:  func(c *Config) { c.History.Enabled = true; c.History.DBPath = "" },
			wantErr: ErrMissingHistoryPath,
		},
		{
			name:    "drive without token file",
			mutate:  func(c *Config) { c.Drive.Enabled = true; c.Drive.TokenFile = "" },
			wantErr: ErrMissingDriveCredentials,
		},
		{
			name:    "unknown browser",
			mutate:  func(c *Config) { c.Compat.Browsers = []string{"chromium", "opera"} },
			wantErr: ErrInvalidBrowser,
		},
		{
			name:   "file source with files",
			mutate: func(c *Config) { c.Source.Kind = SourceFile; c.Source.Files = []string{"page1.html"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("HNSORT_CAP", "42")
	t.Setenv("HNSORT_START_URL", "http://localhost:8080/newest")
	t.Setenv("HNSORT_LOG_LEVEL", " warn ")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("GOOGLE_TOKEN_FILE", "/secrets/token.json")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Collector.Cap != 42 {
		t.Errorf("Expected cap 42, got %d", cfg.Collector.Cap)
	}

	if cfg.Source.StartURL != "http://localhost:8080/newest" {
		t.Errorf("Unexpected start url %q", cfg.Source.StartURL)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected trimmed level 'warn', got %q", cfg.Logging.Level)
	}

	if cfg.Output.Mongo.URI == "" || cfg.Notify.NATSURL == "" {
		t.Error("Expected mongo and nats urls from env")
	}

	if cfg.Drive.TokenFile != "/secrets/token.json" {
		t.Errorf("Unexpected token file %q", cfg.Drive.TokenFile)
	}
}

func TestConfig_ApplyEnv_IgnoresBadCap(t *testing.T) {
	t.Setenv("HNSORT_CAP", "lots")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Collector.Cap != 100 {
		t.Errorf("Expected cap to stay 100, got %d", cfg.Collector.Cap)
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collector.Cap = 7
	cfg.Source.Kind = SourceFile
	cfg.Source.Files = []string{"a.html", "b.html"}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Collector.Cap != 7 || len(loaded.Source.Files) != 2 {
		t.Errorf("Round trip lost fields: %s", loaded)
	}
}

package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hnsort/internal/logger"
	"hnsort/internal/models"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// ErrUnknownFormat is returned for formats other than json and jsonl.
var ErrUnknownFormat = errors.New("unknown output format")

// JSONOptions configures a JSONFileSink.
type JSONOptions struct {
	Path   string
	Format string
	Pretty bool
	// Backup renames an existing file to <path>.bak before writing.
	Backup bool
	// Timestamped inserts the run start time into the file name.
	Timestamped bool
}

// JSONFileSink writes articles as a JSON array or as JSON lines.
type JSONFileSink struct {
	log      *logger.Logger
	opts     JSONOptions
	lastPath string
}

var _ Sink = (*JSONFileSink)(nil)

// NewJSONFileSink creates a file sink.
func NewJSONFileSink(opts JSONOptions, log *logger.Logger) *JSONFileSink {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}

	if log == nil {
		log = logger.Discard()
	}

	return &JSONFileSink{opts: opts, log: log}
}

// Path returns the file written by the last successful Write.
func (s *JSONFileSink) Path() string {
	return s.lastPath
}

// Write implements Sink.
func (s *JSONFileSink) Write(_ context.Context, summary models.RunSummary, articles []models.Article) error {
	path := s.opts.Path
	if s.opts.Timestamped {
		path = TimestampedPath(path, summary.StartedAt)
	}

	data, err := s.encode(articles)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if s.opts.Backup {
		if err := backup(path); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.lastPath = path
	s.log.Info("articles written", "path", path, "count", len(articles), "format", s.opts.Format)

	return nil
}

func (s *JSONFileSink) encode(articles []models.Article) ([]byte, error) {
	if articles == nil {
		articles = []models.Article{}
	}

	switch s.opts.Format {
	case FormatJSON:
		var (
			data []byte
			err  error
		)

		if s.opts.Pretty {
			data, err = json.MarshalIndent(articles, "", "  ")
		} else {
			data, err = json.Marshal(articles)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}

		return append(data, '\n'), nil
	case FormatJSONL:
		var buf bytes.Buffer

		enc := json.NewEncoder(&buf)
		for i := range articles {
			if err := enc.Encode(&articles[i]); err != nil {
				return nil, fmt.Errorf("failed to marshal JSON line: %w", err)
			}
		}

		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, s.opts.Format)
	}
}

func backup(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := os.Rename(path, path+".bak"); err != nil {
		return fmt.Errorf("failed to back up %s: %w", path, err)
	}

	return nil
}

// TimestampedPath turns "out/HackerNewsArticles.json" into
// "out/HackerNewsArticles_2024-12-04T19-30-36-000Z.json".
func TimestampedPath(path string, t time.Time) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))

	return stem + "_" + stamp + ext
}

// LoadArticles reads a file written by JSONFileSink. The format is detected from the first byte.
func LoadArticles(path string) ([]models.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var articles []models.Article
		if err := json.Unmarshal(trimmed, &articles); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}

		return articles, nil
	}

	var articles []models.Article

	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}

		var a models.Article
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", line, err)
		}

		articles = append(articles, a)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan articles: %w", err)
	}

	return articles, nil
}

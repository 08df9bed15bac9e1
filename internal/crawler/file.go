package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hnsort/internal/collector"
	"hnsort/internal/logger"
)

// FileFetcher replays saved listing pages from disk in the given order.
// The last file ends the listing regardless of its "More" link.
type FileFetcher struct {
	parser *Parser
	log    *logger.Logger
	paths  []string
	pos    int
}

var _ collector.PageFetcher = (*FileFetcher)(nil)

// NewFileFetcher creates a fetcher over paths.
func NewFileFetcher(paths []string, log *logger.Logger) *FileFetcher {
	if log == nil {
		log = logger.Discard()
	}

	return &FileFetcher{
		parser: NewParser(),
		log:    log,
		paths:  paths,
	}
}

// FetchNextPage parses the next file.
func (f *FileFetcher) FetchNextPage(ctx context.Context) (collector.Page, error) {
	if err := ctx.Err(); err != nil {
		return collector.Page{}, err
	}

	if f.pos >= len(f.paths) {
		return collector.Page{}, ErrNoMorePages
	}

	path := f.paths[f.pos]

	file, err := os.Open(path)
	if err != nil {
		return collector.Page{}, fmt.Errorf("failed to open page file: %w", err)
	}
	defer file.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	listing, err := f.parser.Parse(file, "file://"+filepath.ToSlash(abs))
	if err != nil {
		return collector.Page{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	f.pos++
	f.log.Debug("replayed page", "path", path, "records", len(listing.Records))

	return collector.Page{
		Records: listing.Records,
		HasMore: f.pos < len(f.paths),
	}, nil
}

package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hnsort/internal/logger"
	"hnsort/internal/models"
)

// Timestamp parsing errors.
var (
	ErrEmptyTimestamp    = errors.New("empty timestamp")
	ErrUnparseableLayout = errors.New("timestamp does not match any ISO-8601 layout")
)

// isoLayouts are tried in order. Layouts without a zone are read as UTC, which is what the listing emits.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp converts a composite "<ISO-8601> <unix seconds>" value into a tagged instant.
// Only the first space-separated token is parsed; the trailing unix value is ignored.
// Missing or malformed input yields the invalid marker and a warning, never an error.
func NormalizeTimestamp(raw *string, log *logger.Logger) models.Timestamp {
	if log == nil {
		log = logger.Discard()
	}

	if raw == nil {
		log.Warn("timestamp missing, expected an ISO string followed by a unix timestamp")

		return models.InvalidTimestamp()
	}

	t, err := parseComposite(*raw)
	if err != nil {
		log.Warn("failed to parse timestamp", "raw", *raw, "error", err)

		return models.InvalidTimestamp()
	}

	return models.ValidTimestamp(t)
}

// NormalizeValue normalizes a loosely typed value, such as one decoded from JSON.
// Anything other than a string or *string yields the invalid marker.
func NormalizeValue(v any, log *logger.Logger) models.Timestamp {
	if log == nil {
		log = logger.Discard()
	}

	switch val := v.(type) {
	case string:
		return NormalizeTimestamp(&val, log)
	case *string:
		return NormalizeTimestamp(val, log)
	default:
		log.Warn("invalid timestamp input, expected a string", "value", v, "type", fmt.Sprintf("%T", v))

		return models.InvalidTimestamp()
	}
}

func parseComposite(raw string) (time.Time, error) {
	iso, _, _ := strings.Cut(strings.TrimSpace(raw), " ")
	if iso == "" {
		return time.Time{}, ErrEmptyTimestamp
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableLayout, iso)
}

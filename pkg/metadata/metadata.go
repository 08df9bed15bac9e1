// Package metadata signs rendered reports with a trailing comment block.
//
// The block records whether the run's articles were sorted, which run produced
// the report and a SHA-256 hash of everything above the block, so an edited
// report fails Verify.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// TagStart is the start of the metadata block.
	TagStart = "<!-- METADATA_START"
	// TagEnd is the end of the metadata block.
	TagEnd = "METADATA_END -->"
)

// Metadata verification errors.
var (
	ErrNoMetadataBlock = errors.New("no metadata block found")
	ErrNoHashFound     = errors.New("no hash found in metadata")
	ErrHashMismatch    = errors.New("hash mismatch")
)

// Metadata is the parsed signature block.
type Metadata struct {
	LastModify time.Time
	RunID      string
	Hash       string
	// Validation is true when the report's articles passed the order check.
	Validation bool
}

var blockRegex = regexp.MustCompile(`(?s)<!--\s*METADATA_START\s*\n(.*?)\n\s*METADATA_END\s*-->`)

var now = time.Now

// Extract splits content into its metadata (nil when unsigned) and the content above the block.
func Extract(content string) (*Metadata, string) {
	match := blockRegex.FindStringSubmatch(content)
	clean := strings.TrimRight(blockRegex.ReplaceAllString(content, ""), "\n")

	if len(match) < 2 {
		return nil, clean
	}

	meta := &Metadata{}

	for line := range strings.SplitSeq(match[1], "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)

		switch strings.TrimSpace(key) {
		case "VALIDATION":
			meta.Validation = strings.EqualFold(val, "TRUE")
		case "LAST_MODIFY":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				meta.LastModify = t
			}
		case "HASH":
			meta.Hash = val
		case "RUN_ID":
			meta.RunID = val
		}
	}

	return meta, clean
}

// CalculateHash hashes content with any metadata block removed.
func CalculateHash(content string) string {
	_, clean := Extract(content)
	sum := sha256.Sum256([]byte(clean))

	return hex.EncodeToString(sum[:])
}

// Sign replaces any existing block with a fresh one.
func Sign(content string, validated bool, runID string) string {
	_, clean := Extract(content)

	valStr := "FALSE"
	if validated {
		valStr = "TRUE"
	}

	var b strings.Builder

	b.WriteString(clean)
	b.WriteString("\n\n")
	b.WriteString(TagStart + "\n")
	fmt.Fprintf(&b, "VALIDATION: %s\n", valStr)

	if runID != "" {
		fmt.Fprintf(&b, "RUN_ID: %s\n", runID)
	}

	fmt.Fprintf(&b, "LAST_MODIFY: %s\n", now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "HASH: %s\n", CalculateHash(clean))
	b.WriteString(TagEnd)

	return b.String()
}

// Verify checks that content still matches the hash in its block.
func Verify(content string) (bool, error) {
	meta, clean := Extract(content)
	if meta == nil {
		return false, ErrNoMetadataBlock
	}

	if meta.Hash == "" {
		return false, ErrNoHashFound
	}

	calculated := CalculateHash(clean)
	if calculated != meta.Hash {
		return false, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, meta.Hash, calculated)
	}

	return true, nil
}

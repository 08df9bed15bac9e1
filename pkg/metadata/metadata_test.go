package metadata

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 12, 4, 19, 30, 36, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	signed := Sign("# Report\n\nbody\n", true, "run-1")

	meta, clean := Extract(signed)
	if meta == nil {
		t.Fatal("Expected metadata block")
	}

	if clean != "# Report\n\nbody" || !meta.Validation || meta.RunID != "run-1" || meta.LastModify.Year() != 2024 {
		t.Errorf("unexpected extract: %+v %q", meta, clean)
	}

	if ok, err := Verify(signed); !ok || err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Re-signing replaces the block instead of stacking another.
	resigned := Sign(signed, false, "")
	if strings.Count(resigned, TagStart) != 1 || strings.Contains(resigned, "RUN_ID") {
		t.Errorf("unexpected re-signed content:\n%s", resigned)
	}
}

func TestVerify_Errors(t *testing.T) {
	if _, err := Verify("plain"); !errors.Is(err, ErrNoMetadataBlock) {
		t.Errorf("Expected ErrNoMetadataBlock, got %v", err)
	}

	noHash := "body\n\n" + TagStart + "\nVALIDATION: TRUE\n" + TagEnd
	if _, err := Verify(noHash); !errors.Is(err, ErrNoHashFound) {
		t.Errorf("Expected ErrNoHashFound, got %v", err)
	}

	tampered := strings.Replace(Sign("count: 100", true, ""), "count: 100", "count: 99", 1)
	if _, err := Verify(tampered); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Expected ErrHashMismatch, got %v", err)
	}
}

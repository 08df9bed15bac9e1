package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is the result of normalizing a raw listing timestamp.
// The zero value is the invalid marker.
type Timestamp struct {
	Instant time.Time
	Valid   bool
}

// ValidTimestamp wraps t as a valid timestamp.
func ValidTimestamp(t time.Time) Timestamp {
	return Timestamp{Instant: t, Valid: true}
}

// InvalidTimestamp returns the invalid marker.
func InvalidTimestamp() Timestamp {
	return Timestamp{}
}

// After reports whether ts is strictly newer than other. Invalid values are never after anything.
func (ts Timestamp) After(other Timestamp) bool {
	if !ts.Valid || !other.Valid {
		return false
	}

	return ts.Instant.After(other.Instant)
}

// String implements fmt.Stringer.
func (ts Timestamp) String() string {
	if !ts.Valid {
		return "invalid"
	}

	return ts.Instant.Format(time.RFC3339)
}

// MarshalJSON encodes a valid timestamp as RFC 3339 with any fractional seconds, and the invalid marker as null.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid {
		return []byte("null"), nil
	}

	return json.Marshal(ts.Instant.Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts null or an RFC 3339 string.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ts = InvalidTimestamp()

		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string or null: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}

	*ts = ValidTimestamp(t)

	return nil
}

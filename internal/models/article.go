// Package models defines data structures shared by the fetchers, the collector and the sinks.
package models

// RawRecord is one listing row as extracted from the page, before normalization.
// A nil field means the element was missing from the markup.
type RawRecord struct {
	ID                *string `json:"id"`
	Title             *string `json:"title"`
	RawTimestamp      *string `json:"date"`
	User              *string `json:"user"`
	SubmittedRelative *string `json:"submitted"`
	URL               *string `json:"url"`
}

// Article is a normalized listing entry.
type Article struct {
	Timestamp         Timestamp `json:"date"`
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	RawTimestamp      string    `json:"rawDate"`
	User              string    `json:"user"`
	SubmittedRelative string    `json:"submitted"`
	URL               string    `json:"url"`
	SequenceIndex     int       `json:"sequenceIndex"`
}

// Deref returns the pointed-to string or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

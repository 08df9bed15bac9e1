package models

import (
	"fmt"
	"time"
)

// HaltReason names the condition that ended a collection run.
type HaltReason string

// Halt reasons.
const (
	HaltCapReached       HaltReason = "cap_reached"
	HaltExhausted        HaltReason = "exhausted"
	HaltOrderViolation   HaltReason = "order_violation"
	HaltInvalidTimestamp HaltReason = "invalid_timestamp"
	HaltFetchError       HaltReason = "fetch_error"
	HaltPageLimit        HaltReason = "page_limit"
)

// OrderViolation describes two consecutive articles where the later one is newer.
type OrderViolation struct {
	Previous Article `json:"previous"`
	Current  Article `json:"current"`
	// Position is the index of Current within the checked sequence.
	Position int `json:"position"`
	// Page is the 1-based page on which Current was fetched, 0 when unknown.
	Page int `json:"page,omitempty"`
}

func (v *OrderViolation) String() string {
	return fmt.Sprintf("%q (%s) is newer than %q (%s)",
		v.Current.Title, v.Current.Timestamp, v.Previous.Title, v.Previous.Timestamp)
}

// RunSummary is the persisted description of one collection run.
type RunSummary struct {
	StartedAt  time.Time       `json:"startedAt"`
	Violation  *OrderViolation `json:"violation,omitempty"`
	RunID      string          `json:"runId"`
	SourceURL  string          `json:"sourceUrl"`
	HaltReason HaltReason      `json:"haltReason"`
	Elapsed    time.Duration   `json:"elapsedNs"`
	Count      int             `json:"count"`
	Pages      int             `json:"pages"`
	Cap        int             `json:"cap"`
	Sorted     bool            `json:"sorted"`
	AllValid   bool            `json:"allValid"`
}

// Package output persists collected articles.
package output

import (
	"context"
	"errors"

	"hnsort/internal/models"
)

// Sink receives the result of a finished run.
type Sink interface {
	Write(ctx context.Context, summary models.RunSummary, articles []models.Article) error
}

// Multi writes to every sink and joins their errors. A failing sink does not stop the others.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, summary models.RunSummary, articles []models.Article) error {
	var errs []error

	for _, s := range m {
		if err := s.Write(ctx, summary, articles); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

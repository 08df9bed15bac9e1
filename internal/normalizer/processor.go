// Package normalizer turns raw listing rows into articles and checks their timestamps.
package normalizer

import (
	"hnsort/internal/logger"
	"hnsort/internal/models"
)

// Processor normalizes whole pages.
type Processor struct {
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor(log *logger.Logger) *Processor {
	return &Processor{
		transformer: NewTransformer(log),
	}
}

// Process normalizes every record of a page, preserving page order.
func (p *Processor) Process(records []models.RawRecord) []models.Article {
	articles := make([]models.Article, 0, len(records))
	for _, rec := range records {
		articles = append(articles, p.transformer.Transform(rec))
	}

	return articles
}

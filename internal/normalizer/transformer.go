package normalizer

import (
	"hnsort/internal/logger"
	"hnsort/internal/models"
	"hnsort/pkg/utils"
)

// Transformer converts raw listing rows into articles.
type Transformer struct {
	strings *utils.StringHelper
	log     *logger.Logger
}

// NewTransformer creates a new transformer instance.
func NewTransformer(log *logger.Logger) *Transformer {
	if log == nil {
		log = logger.Discard()
	}

	return &Transformer{
		strings: utils.NewStringHelper(),
		log:     log,
	}
}

// Transform normalizes one record. SequenceIndex is left at zero; the collector assigns it.
func (t *Transformer) Transform(rec models.RawRecord) models.Article {
	return models.Article{
		ID:                t.clean(rec.ID),
		Title:             t.clean(rec.Title),
		RawTimestamp:      models.Deref(rec.RawTimestamp),
		User:              t.clean(rec.User),
		SubmittedRelative: t.clean(rec.SubmittedRelative),
		URL:               t.strings.TrimWhitespace(models.Deref(rec.URL)),
		Timestamp:         NormalizeTimestamp(rec.RawTimestamp, t.log.With("id", models.Deref(rec.ID))),
	}
}

func (t *Transformer) clean(s *string) string {
	return t.strings.NormalizeWhitespace(models.Deref(s))
}

package normalizer

import (
	"hnsort/internal/logger"
	"hnsort/internal/models"
)

// CheckOrder reports whether articles are ordered newest to oldest. Equal instants are allowed.
// Articles with invalid timestamps are skipped; the comparison resumes from the last valid one.
// On failure the first offending pair is returned.
func CheckOrder(articles []models.Article) (bool, *models.OrderViolation) {
	last := -1

	for i := range articles {
		if !articles[i].Timestamp.Valid {
			continue
		}

		if last >= 0 && articles[i].Timestamp.After(articles[last].Timestamp) {
			return false, &models.OrderViolation{
				Previous: articles[last],
				Current:  articles[i],
				Position: i,
			}
		}

		last = i
	}

	return true, nil
}

// IsSortedDescending is CheckOrder with logging of the outcome.
func IsSortedDescending(articles []models.Article, log *logger.Logger) bool {
	ok, v := CheckOrder(articles)
	if !ok {
		log.Error("timestamps are not sorted newest to oldest",
			"current_title", v.Current.Title,
			"current", v.Current.Timestamp.String(),
			"previous_title", v.Previous.Title,
			"previous", v.Previous.Timestamp.String(),
			"position", v.Position,
		)

		return false
	}

	log.Debug("timestamps are sorted newest to oldest", "count", len(articles))

	return true
}

// CheckBoundary compares the last article of one page with the first of the next.
// It returns nil when the pair is ordered or either timestamp is invalid.
func CheckBoundary(prev, next models.Article) *models.OrderViolation {
	if next.Timestamp.After(prev.Timestamp) {
		return &models.OrderViolation{
			Previous: prev,
			Current:  next,
		}
	}

	return nil
}

// FindInvalidTimestamps returns the positions of articles whose timestamp is the invalid marker.
func FindInvalidTimestamps(articles []models.Article) []int {
	var idx []int

	for i := range articles {
		if !articles[i].Timestamp.Valid {
			idx = append(idx, i)
		}
	}

	return idx
}

// AllTimestampsValid reports whether every article carries a valid timestamp.
// The first invalid one is logged.
func AllTimestampsValid(articles []models.Article, log *logger.Logger) bool {
	invalid := FindInvalidTimestamps(articles)
	if len(invalid) == 0 {
		log.Debug("all timestamps are present", "count", len(articles))

		return true
	}

	first := articles[invalid[0]]
	log.Error("timestamp is missing or invalid",
		"title", first.Title,
		"index", invalid[0],
		"invalid_count", len(invalid),
	)

	return false
}

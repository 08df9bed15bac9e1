// Package validator checks rendered run reports: table structure, article order and signature.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hnsort/pkg/metadata"
)

// Validation errors.
var (
	ErrNoArticleTable = errors.New("no article table found")
	ErrTooManyRows    = errors.New("more articles than the cap")
)

// postedLayout is how the report prints article timestamps.
const postedLayout = "2006-01-02 15:04:05"

// invalidPosted marks an article whose timestamp could not be parsed.
const invalidPosted = "invalid"

var postedPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Field   string
	Value   string
	Pattern string
	Message string
	Line    int
	Column  int
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
	Stats    ValidationStats
	IsValid  bool
	// Sorted is false when a later row was posted after an earlier one.
	Sorted bool
}

// ValidationStats contains validation statistics.
type ValidationStats struct {
	TotalRows           int
	ValidRows           int
	InvalidRows         int
	RowsWithInvalidDate int
	OutOfOrder          int
}

// MarkdownValidator validates the article table of a run report.
type MarkdownValidator struct {
	// MaxRows is the collection cap. Zero disables the check.
	MaxRows int
}

// NewMarkdownValidator creates a validator for reports of at most maxRows articles.
func NewMarkdownValidator(maxRows int) *MarkdownValidator {
	return &MarkdownValidator{MaxRows: maxRows}
}

type row struct {
	posted time.Time
	line   int
	index  int
}

// ValidateMarkdown checks the article table: row numbering, timestamp format and newest-first order.
// Rows marked invalid are counted but skipped in the order check.
func (v *MarkdownValidator) ValidateMarkdown(markdown string) *ValidationResult {
	result := &ValidationResult{
		IsValid:  true,
		Sorted:   true,
		Errors:   []ValidationError{},
		Warnings: []string{},
	}

	tableStarted := false
	found := false
	undated := 0

	var previous *row

	for lineNum, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)

		if !strings.HasPrefix(line, "|") {
			tableStarted = false

			continue
		}

		if !tableStarted {
			upper := strings.ToUpper(line)
			if strings.Contains(upper, "POSTED") && strings.Contains(upper, "TITLE") {
				tableStarted, found = true, true
			}

			continue
		}

		if strings.Contains(line, "---") && strings.Trim(line, "|-: ") == "" {
			continue
		}

		result.Stats.TotalRows++

		r, errs := v.validateRow(line, lineNum+1, result.Stats.TotalRows)
		if len(errs) > 0 {
			result.IsValid = false
			result.Stats.InvalidRows++
			result.Errors = append(result.Errors, errs...)

			for _, e := range errs {
				if e.Field == "posted" {
					result.Stats.RowsWithInvalidDate++
				}
			}

			continue
		}

		result.Stats.ValidRows++

		if r.posted.IsZero() {
			undated++

			continue
		}

		if previous != nil && r.posted.After(previous.posted) {
			result.Sorted = false
			result.IsValid = false
			result.Stats.OutOfOrder++
			result.Errors = append(result.Errors, ValidationError{
				Line:    r.line,
				Column:  2,
				Field:   "posted",
				Value:   r.posted.Format(postedLayout),
				Message: fmt.Sprintf("article %d was posted after article %d (%s)", r.index, previous.index, previous.posted.Format(postedLayout)),
			})
		}

		previous = &r
	}

	if !found {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{Message: ErrNoArticleTable.Error()})

		return result
	}

	if v.MaxRows > 0 && result.Stats.TotalRows > v.MaxRows {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("%v: got %d, cap %d", ErrTooManyRows, result.Stats.TotalRows, v.MaxRows),
		})
	}

	if undated > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d articles have no valid timestamp", undated))
	}

	return result
}

// ValidateIntegrity checks the integrity of the markdown content using the metadata block.
func (v *MarkdownValidator) ValidateIntegrity(content string) *ValidationResult {
	result := &ValidationResult{
		IsValid: true,
		Sorted:  true,
	}

	valid, err := metadata.Verify(content)
	if !valid {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("integrity check failed: %v", err),
		})
	}

	return result
}

// validateRow checks one data row: # | Posted (UTC) | Title | User.
func (v *MarkdownValidator) validateRow(line string, lineNum, rowNum int) (row, []ValidationError) {
	var errs []ValidationError

	values := splitCells(line)
	if len(values) < 4 {
		return row{}, []ValidationError{{
			Line:    lineNum,
			Column:  1,
			Message: fmt.Sprintf("expected 4 columns (#, Posted, Title, User), got %d", len(values)),
		}}
	}

	r := row{line: lineNum}

	index, err := strconv.Atoi(values[0])
	switch {
	case err != nil:
		errs = append(errs, ValidationError{
			Line:    lineNum,
			Column:  1,
			Field:   "index",
			Value:   values[0],
			Message: "index is not a number",
		})
	case index != rowNum:
		errs = append(errs, ValidationError{
			Line:    lineNum,
			Column:  1,
			Field:   "index",
			Value:   values[0],
			Message: fmt.Sprintf("expected index %d", rowNum),
		})
	default:
		r.index = index
	}

	switch posted := values[1]; {
	case posted == invalidPosted:
	case !postedPattern.MatchString(posted):
		errs = append(errs, ValidationError{
			Line:    lineNum,
			Column:  2,
			Field:   "posted",
			Value:   posted,
			Pattern: "YYYY-MM-DD HH:MM:SS",
			Message: fmt.Sprintf("posted '%s' invalid format", posted),
		})
	default:
		t, err := time.Parse(postedLayout, posted)
		if err != nil {
			errs = append(errs, ValidationError{
				Line:    lineNum,
				Column:  2,
				Field:   "posted",
				Value:   posted,
				Message: err.Error(),
			})
		}

		r.posted = t
	}

	if values[2] == "" {
		errs = append(errs, ValidationError{
			Line:    lineNum,
			Column:  3,
			Field:   "title",
			Message: "title field is empty",
		})
	}

	return r, errs
}

// splitCells splits a table row on pipes that are not escaped.
func splitCells(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")

	var (
		cells []string
		cur   strings.Builder
	)

	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteString(`\|`)
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}

	return append(cells, strings.TrimSpace(cur.String()))
}

// String returns string representation of validation result.
func (r *ValidationResult) String() string {
	status := "✅ VALID"
	if !r.IsValid {
		status = "❌ INVALID"
	}

	return fmt.Sprintf(
		"%s | Total: %d | Valid: %d | Invalid: %d | Out of order: %d | Warnings: %d",
		status,
		r.Stats.TotalRows,
		r.Stats.ValidRows,
		r.Stats.InvalidRows,
		r.Stats.OutOfOrder,
		len(r.Warnings),
	)
}

// PrintErrors prints validation errors in readable format.
func (r *ValidationResult) PrintErrors() {
	if len(r.Errors) == 0 {
		return
	}

	fmt.Println("❌ Validation Errors:")

	for _, err := range r.Errors {
		if err.Line > 0 {
			fmt.Printf("  Line %d, Col %d", err.Line, err.Column)

			if err.Field != "" {
				fmt.Printf(" [%s]", err.Field)
			}

			fmt.Printf(": %s\n", err.Message)

			if err.Value != "" {
				fmt.Printf("    Found: %q\n", err.Value)
			}

			if err.Pattern != "" {
				fmt.Printf("    Expected pattern: %s\n", err.Pattern)
			}
		} else {
			fmt.Printf("  %s\n", err.Message)
		}
	}
}

// PrintWarnings prints validation warnings.
func (r *ValidationResult) PrintWarnings() {
	if len(r.Warnings) == 0 {
		return
	}

	fmt.Println("⚠️  Validation Warnings:")

	for _, warn := range r.Warnings {
		fmt.Printf("  %s\n", warn)
	}
}

package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"hnsort/internal/compat"
	"hnsort/internal/models"
	"hnsort/pkg/metadata"
)

// maxTitleWidth bounds the title column in display cells.
const maxTitleWidth = 80

// RenderRun renders a collection run as a signed markdown report. The
// signature's VALIDATION field is true when the run's articles were sorted.
func RenderRun(summary models.RunSummary, articles []models.Article) string {
	var b strings.Builder

	b.WriteString("# Hacker News /newest order report\n\n")

	fmt.Fprintf(&b, "- Run: `%s`\n", summary.RunID)
	fmt.Fprintf(&b, "- Source: %s\n", summary.SourceURL)
	fmt.Fprintf(&b, "- Started: %s\n", summary.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Halt reason: `%s`\n", summary.HaltReason)
	fmt.Fprintf(&b, "- Count: %d of %d (pages: %d)\n", summary.Count, summary.Cap, summary.Pages)
	fmt.Fprintf(&b, "- Sorted: %t\n", summary.Sorted)
	fmt.Fprintf(&b, "- All timestamps valid: %t\n", summary.AllValid)
	fmt.Fprintf(&b, "- Elapsed: %s\n", summary.Elapsed.Round(time.Millisecond))

	if v := summary.Violation; v != nil {
		b.WriteString("\n## Order violation\n\n")
		fmt.Fprintf(&b, "%s (position %d", v.String(), v.Position+1)

		if v.Page > 0 {
			fmt.Fprintf(&b, ", page %d", v.Page)
		}

		b.WriteString(")\n")
	}

	b.WriteString("\n## Articles\n\n")

	if len(articles) == 0 {
		b.WriteString("No articles collected.\n")
	} else {
		b.WriteString("| # | Posted (UTC) | Title | User |\n")
		b.WriteString("| --- | --- | --- | --- |\n")

		for _, a := range articles {
			posted := "invalid"
			if a.Timestamp.Valid {
				posted = a.Timestamp.Instant.UTC().Format("2006-01-02 15:04:05")
			}

			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
				a.SequenceIndex, posted, cell(runewidth.Truncate(a.Title, maxTitleWidth, "…")), cell(a.User))
		}
	}

	return metadata.Sign(FormatMarkdown(b.String()), summary.Sorted, summary.RunID)
}

// RenderCompat renders a compatibility suite report, signed valid when every check passed.
func RenderCompat(report *compat.Report) string {
	var b strings.Builder

	b.WriteString("# Browser compatibility report\n\n")
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Checks: %d, failed: %d\n", len(report.Results), len(report.Failed()))
	fmt.Fprintf(&b, "- Elapsed: %s\n\n", report.Elapsed.Round(time.Millisecond))

	b.WriteString("| Browser | Check | Result | Duration | Detail |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")

	for _, r := range report.Results {
		result, detail := "pass", ""
		if !r.Passed {
			result, detail = "FAIL", r.Error

			if r.DriveLink != "" {
				detail += " ([screenshot](" + r.DriveLink + "))"
			} else if r.Screenshot != "" {
				detail += " (" + r.Screenshot + ")"
			}
		}

		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			r.Browser, r.Check, result, r.Duration.Round(time.Millisecond), cell(detail))
	}

	return metadata.Sign(FormatMarkdown(b.String()), report.Passed(), "")
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	return strings.ReplaceAll(s, "|", `\|`)
}

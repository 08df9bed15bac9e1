// Package formatter renders runs as markdown reports.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const minColumnWidth = 3

// FormatMarkdown aligns every pipe table in content by display width so that
// wide runes in article titles keep columns straight. Other lines pass through.
func FormatMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	var table []string

	flush := func() {
		if len(table) > 0 {
			out = append(out, alignTable(table)...)
			table = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			table = append(table, trimmed)

			continue
		}

		flush()

		out = append(out, line)
	}

	flush()

	return strings.Join(out, "\n")
}

// splitRow splits a table row on unescaped pipes.
func splitRow(row string) []string {
	row = strings.TrimSuffix(strings.TrimPrefix(row, "|"), "|")

	var (
		cells []string
		cell  strings.Builder
	)

	for i := 0; i < len(row); i++ {
		switch {
		case row[i] == '\\' && i+1 < len(row) && row[i+1] == '|':
			cell.WriteString(`\|`)
			i++
		case row[i] == '|':
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		default:
			cell.WriteByte(row[i])
		}
	}

	return append(cells, strings.TrimSpace(cell.String()))
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" || c == "" {
			return false
		}
	}

	return true
}

func alignTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, len(rows))
	cols := 0

	for i, row := range rows {
		table[i] = splitRow(row)
		cols = max(cols, len(table[i]))
	}

	sep := -1
	if isSeparator(table[1]) {
		sep = 1
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = minColumnWidth
	}

	for r, cells := range table {
		if r == sep {
			continue
		}

		for c, cell := range cells {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}

	out := make([]string, len(table))

	for r, cells := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for c := range cols {
			sb.WriteString(" ")

			if r == sep {
				sb.WriteString(strings.Repeat("-", widths[c]))
			} else {
				cell := ""
				if c < len(cells) {
					cell = cells[c]
				}

				sb.WriteString(runewidth.FillRight(cell, widths[c]))
			}

			sb.WriteString(" |")
		}

		out[r] = sb.String()
	}

	return out
}

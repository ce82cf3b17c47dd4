package table

import (
	"regexp"
	"strings"
)

// Placeholder marks an empty cell, most often a missing link.
const Placeholder = "—"

// Table is a parsed markdown table: ordered headers plus rows of cells
// aligned positionally to the headers.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Empty reports whether parsing found no header line.
func (t Table) Empty() bool {
	return len(t.Headers) == 0
}

var (
	flatSeparator = regexp.MustCompile(`\|\s*-{3,}\s*\|`)
	flatRowStart  = regexp.MustCompile(`\|\s*(\d+)\s*\|`)
)

// normalizeFlat restores line breaks when the model emitted the whole table
// on a single line.
func normalizeFlat(md string) string {
	if strings.Contains(md, "\n|") {
		return md
	}
	md = flatSeparator.ReplaceAllString(md, "\n|---|")
	md = flatRowStart.ReplaceAllString(md, "\n| $1 |")
	return strings.TrimSpace(md)
}

// Parse extracts the first markdown table from free-form model output. The
// first line starting with "|" is the header, the following line is assumed
// to be the separator and skipped, and every later "|" line becomes a row.
// Lines without a leading "|" are ignored. A missing header yields an empty
// table, never an error.
func Parse(md string) Table {
	var t Table

	lines := strings.Split(normalizeFlat(md), "\n")
	headerIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return t
	}

	t.Headers = splitRow(lines[headerIdx])
	body := lines[headerIdx+1:]
	if len(body) > 0 {
		// the line after the header is assumed to be the separator
		body = body[1:]
	}
	for _, line := range body {
		if !strings.HasPrefix(strings.TrimSpace(line), "|") {
			continue
		}
		cells := splitRow(line)
		// normalizeFlat can leave separator fragments between rows
		if isSeparatorRow(cells) {
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func isSeparatorRow(cells []string) bool {
	if len(cells) == 0 {
		return true
	}
	for _, c := range cells {
		if strings.Trim(c, ":-") != "" {
			return false
		}
	}
	return true
}

// Serialize renders the table back to pipe-delimited markdown with a "---"
// separator row.
func Serialize(t Table) string {
	if t.Empty() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(serializeRow(t.Headers))
	sb.WriteString("\n|")
	for range t.Headers {
		sb.WriteString("---|")
	}
	for _, row := range t.Rows {
		sb.WriteString("\n")
		sb.WriteString(serializeRow(row))
	}
	return sb.String()
}

// ReconcileLinks overwrites the link column with URLs reported by the search
// tool. Row-to-URL correspondence is positional (row i gets urls[i]); the
// provider gives no per-row provenance, so this is best-effort only. Rows are
// padded to header length first. An existing non-empty cell survives when no
// URL is available; otherwise the cell becomes the placeholder.
func ReconcileLinks(t Table, urls []string) Table {
	col := linkColumn(t.Headers)
	if col == -1 {
		return t
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		// pad short rows to header length; longer rows keep their extra cells
		width := len(t.Headers)
		if len(row) > width {
			width = len(row)
		}
		padded := make([]string, width)
		copy(padded, row)

		url := ""
		if i < len(urls) {
			url = strings.TrimSpace(urls[i])
		}
		switch {
		case url != "":
			padded[col] = url
		case strings.TrimSpace(padded[col]) != "":
			// keep what the model wrote
		default:
			padded[col] = Placeholder
		}
		rows[i] = padded
	}
	return Table{Headers: t.Headers, Rows: rows}
}

// MergeAppend keeps the old table's headers and appends the new table's rows,
// dropping any new row whose trimmed serialized form exactly matches an
// existing row. Exact-string dedup only: the same document formatted
// differently passes through.
func MergeAppend(old, new Table) Table {
	if old.Empty() {
		return new
	}

	merged := Table{Headers: old.Headers, Rows: append([][]string(nil), old.Rows...)}

	seen := make(map[string]struct{}, len(old.Rows))
	for _, row := range old.Rows {
		seen[rowKey(row)] = struct{}{}
	}

	for _, row := range new.Rows {
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged.Rows = append(merged.Rows, row)
	}
	return merged
}

func linkColumn(headers []string) int {
	for i, h := range headers {
		lower := strings.ToLower(h)
		if strings.Contains(lower, "ссылка") || strings.Contains(lower, "url") {
			return i
		}
	}
	return -1
}

func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, part := range parts {
		cells = append(cells, strings.TrimSpace(part))
	}
	// Leading and trailing "|" produce empty edge tokens.
	if len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}
	if len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func serializeRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

func rowKey(cells []string) string {
	trimmed := make([]string, len(cells))
	for i, c := range cells {
		trimmed[i] = strings.TrimSpace(c)
	}
	return strings.TrimSpace(serializeRow(trimmed))
}

package dataset

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Table is a raw, untyped source table: a header row plus data rows
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the index of the column whose normalized name equals
// name, or -1
func (t *Table) ColumnIndex(name string) int {
	want := normalizeHeader(name)
	if want == "" {
		return -1
	}
	for i, c := range t.Columns {
		if normalizeHeader(c) == want {
			return i
		}
	}
	return -1
}

// Cell returns row[col] trimmed, or "" when the row is short
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// newTable splits records into header and data rows, dropping trailing
// rows that are entirely blank
func newTable(records [][]string) *Table {
	if len(records) == 0 {
		return &Table{}
	}

	rows := records[1:]
	for len(rows) > 0 && blank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}

	return &Table{
		Columns: records[0],
		Rows:    rows,
	}
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// normalizeHeader trims whitespace and a leading byte order mark and puts the
// name in NFC so headers typed on different systems compare equal
func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return norm.NFC.String(strings.TrimSpace(name))
}

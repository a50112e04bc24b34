// Package table defines the in-memory tabular structure passed between
// pipeline stages. A Table is deliberately dumb: named columns plus positional
// rows, no typing beyond what the loader put in each cell (string or nil).
package table

import (
	"fmt"
	"strings"
)

// Table holds named columns and positional rows.
//
// Cell values are `any` but stages only ever produce strings, float64 (the
// aggregate join) or nil (absent value). nil survives all the way to the
// writer, where it becomes SQL NULL.
type Table struct {
	Columns []string
	Rows    [][]any
}

// New returns an empty table with the given column names.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of a column by name, or -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AppendRow adds a row. The row must have exactly one value per column.
func (t *Table) AppendRow(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table: row has %d values, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// AddColumn appends a column and extends every row with fill.
func (t *Table) AddColumn(name string, fill any) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
}

// Head renders up to n rows for logging, mirroring the column order.
// Intended for human eyes only; not a stable serialization.
func (t *Table) Head(n int) string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, " | "))
	for _, row := range t.Rows[:n] {
		b.WriteString("\n")
		for i, v := range row {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(CellString(v))
		}
	}
	return b.String()
}

// CellString converts a cell value to its canonical string form.
// nil becomes the empty string.
func CellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(v)
	}
}

package table

import (
	"strings"
	"testing"
)

func TestAppendRowRejectsWidthMismatch(t *testing.T) {
	t.Parallel()

	tbl := New("a", "b")
	if err := tbl.AppendRow([]any{"1", "2"}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if err := tbl.AppendRow([]any{"1"}); err == nil {
		t.Fatalf("AppendRow accepted a short row")
	}
	if got := tbl.NumRows(); got != 1 {
		t.Fatalf("NumRows = %d, want 1", got)
	}
}

func TestColumnIndex(t *testing.T) {
	t.Parallel()

	tbl := New("Customer ID", "Total")
	if got := tbl.ColumnIndex("Total"); got != 1 {
		t.Fatalf("ColumnIndex(Total) = %d, want 1", got)
	}
	if got := tbl.ColumnIndex("missing"); got != -1 {
		t.Fatalf("ColumnIndex(missing) = %d, want -1", got)
	}
}

func TestAddColumnExtendsExistingRows(t *testing.T) {
	t.Parallel()

	tbl := New("a")
	_ = tbl.AppendRow([]any{"1"})
	_ = tbl.AppendRow([]any{"2"})
	tbl.AddColumn("b", 0.0)

	for i, row := range tbl.Rows {
		if len(row) != 2 {
			t.Fatalf("row %d has %d cells, want 2", i, len(row))
		}
		if row[1] != 0.0 {
			t.Fatalf("row %d fill = %v, want 0.0", i, row[1])
		}
	}
}

// TestCellString covers the cell value kinds stages actually produce:
// string, float64 and nil.
func TestCellString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil is empty", nil, ""},
		{"string passthrough", "x", "x"},
		{"float", 12.5, "12.5"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CellString(tt.in); got != tt.want {
				t.Fatalf("CellString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHeadClampsToRowCount(t *testing.T) {
	t.Parallel()

	tbl := New("a", "b")
	_ = tbl.AppendRow([]any{"1", nil})

	got := tbl.Head(5)
	if lines := strings.Count(got, "\n"); lines != 1 {
		t.Fatalf("Head rendered %d data lines, want 1:\n%s", lines, got)
	}
	if !strings.HasPrefix(got, "a | b") {
		t.Fatalf("Head missing header line:\n%s", got)
	}
}

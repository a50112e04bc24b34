package transform

import (
	"errors"
	"fmt"
	"time"

	"salesmart/internal/table"
)

// CanonicalLayout is the single timestamp representation all date columns are
// rewritten into.
const CanonicalLayout = "2006-01-02 15:04:05"

// ErrFormat marks a date value that matches none of the accepted layouts.
var ErrFormat = errors.New("transform: date format")

// DefaultDateLayouts are the source layouts accepted when the config does not
// override them. The provider exports minutes-precision US-style short dates.
var DefaultDateLayouts = []string{
	"01/02/06 15:04",
	"01/02/2006 15:04",
	"2006-01-02",
}

// NormalizeDates rewrites every value of the named column into
// CanonicalLayout, parsing with the given source layouts (DefaultDateLayouts
// when nil). The canonical layout itself is always accepted, so normalizing
// an already-normalized column is a no-op.
//
// Policy for unrecognized values: reject. The first value matching no layout
// aborts the run with an ErrFormat error naming the row and raw value. The
// alternative (pass through with a flag) hides mixed-format columns from the
// operator until queries misbehave.
//
// nil cells pass through untouched; an absent date is a data-quality signal,
// not a format violation.
//
// Returns the number of cells rewritten.
func NormalizeDates(t *table.Table, column string, layouts []string) (changed int, err error) {
	ci := t.ColumnIndex(column)
	if ci < 0 {
		return 0, fmt.Errorf("dates: unknown column %q", column)
	}
	if layouts == nil {
		layouts = DefaultDateLayouts
	}

	for ri, row := range t.Rows {
		v := row[ci]
		if v == nil {
			continue
		}
		raw := table.CellString(v)

		ts, ok := parseAny(raw, layouts)
		if !ok {
			return changed, fmt.Errorf("%w: row %d: column %q: unrecognized value %q", ErrFormat, ri+1, column, raw)
		}

		out := ts.Format(CanonicalLayout)
		if out != raw {
			row[ci] = out
			changed++
		}
	}
	return changed, nil
}

func parseAny(raw string, layouts []string) (time.Time, bool) {
	if ts, err := time.Parse(CanonicalLayout, raw); err == nil {
		return ts, true
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

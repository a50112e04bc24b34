// Package transform holds the record-set transformations between ingestion
// and schema assembly: deduplication, date normalization and the per-user
// spending aggregate.
package transform

import (
	"fmt"
	"strings"

	"salesmart/internal/table"
)

// keySep separates composite key parts; chosen so no delimited field can
// contain it.
const keySep = "\x1f"

// Dedupe removes duplicate rows in place, keeping the first occurrence of
// each distinct identity key (input row order defines "first").
//
// keyColumns names the columns forming the identity key. An empty list means
// the entire row is the key. Returns the number of rows removed.
//
// Running Dedupe twice with the same key columns removes nothing the second
// time.
func Dedupe(t *table.Table, keyColumns []string) (removed int, err error) {
	keyIdx := make([]int, 0, len(keyColumns))
	for _, c := range keyColumns {
		i := t.ColumnIndex(c)
		if i < 0 {
			return 0, fmt.Errorf("dedupe: unknown key column %q", c)
		}
		keyIdx = append(keyIdx, i)
	}
	if len(keyIdx) == 0 {
		keyIdx = make([]int, len(t.Columns))
		for i := range keyIdx {
			keyIdx[i] = i
		}
	}

	seen := make(map[string]struct{}, len(t.Rows))
	kept := t.Rows[:0]
	var b strings.Builder

	for _, row := range t.Rows {
		b.Reset()
		for n, i := range keyIdx {
			if n > 0 {
				b.WriteString(keySep)
			}
			b.WriteString(table.CellString(row[i]))
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, row)
	}

	t.Rows = kept
	return removed, nil
}

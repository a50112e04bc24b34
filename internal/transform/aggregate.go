package transform

import (
	"fmt"
	"strconv"

	"salesmart/internal/table"
)

// TotalSpending sums the amount column per user identifier over the
// (deduplicated, date-normalized) transaction table.
//
// Users with no transactions are simply absent from the result; the schema
// builder treats absence as zero when joining. Amounts are summed as raw
// numeric values regardless of currency; no conversion happens here, by
// contract with the downstream report layer.
//
// Rows with a nil user identifier are skipped: there is no dimension row to
// attribute them to. A non-numeric amount aborts the aggregation.
func TotalSpending(tx *table.Table, userColumn, amountColumn string) (map[string]float64, error) {
	ui := tx.ColumnIndex(userColumn)
	if ui < 0 {
		return nil, fmt.Errorf("aggregate: unknown user column %q", userColumn)
	}
	ai := tx.ColumnIndex(amountColumn)
	if ai < 0 {
		return nil, fmt.Errorf("aggregate: unknown amount column %q", amountColumn)
	}

	totals := make(map[string]float64)
	for ri, row := range tx.Rows {
		user := table.CellString(row[ui])
		if user == "" {
			continue
		}

		amount := 0.0
		if row[ai] != nil {
			v, err := strconv.ParseFloat(table.CellString(row[ai]), 64)
			if err != nil {
				return nil, fmt.Errorf("aggregate: row %d: column %q: non-numeric amount %q", ri+1, amountColumn, table.CellString(row[ai]))
			}
			amount = v
		}
		totals[user] += amount
	}
	return totals, nil
}

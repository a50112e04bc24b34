package warehouse

import (
	"fmt"
	"strings"

	"salesmart/internal/table"
)

// Table names of the star layout.
const (
	DimUserTable        = "dim_user"
	DimProductTable     = "dim_product"
	FctTransactionTable = "fct_transaction"
)

// TotalSpendingColumn is the derived user-dimension column.
const TotalSpendingColumn = "total_spending"

// BuildConfig names the key and typed columns of the three sources, using
// the raw provider column names (standardization happens inside Build).
type BuildConfig struct {
	// UserKey identifies a user row (e.g. "Customer ID").
	UserKey string
	// ProductKeys identify a product row (e.g. "Subscription ID", "Plan").
	ProductKeys []string
	// TransactionKey identifies a transaction row.
	TransactionKey string

	// UserRef and SubscriptionRef are the fact columns referencing the two
	// dimensions. SubscriptionRef values may be absent; such rows are kept.
	UserRef         string
	SubscriptionRef string

	// NumericColumns and TimestampColumns force column kinds; everything
	// else is declared as text.
	NumericColumns   []string
	TimestampColumns []string
}

// Build assembles the star layout:
//
//   - left-joins spending onto the user table by UserKey; a user with no
//     transactions gets total_spending = 0
//   - standardizes all column names ("Date (UTC)" -> "date_utc"), the form
//     the report queries are written against
//   - declares primary keys and dimension references per table
//
// Build mutates none of its inputs; the returned tables share row value
// ownership with the sources but carry fresh column slices and, for users,
// fresh rows (the appended aggregate).
func Build(users, products, transactions *table.Table, spending map[string]float64, cfg BuildConfig) (*Star, error) {
	userKeyIdx := users.ColumnIndex(cfg.UserKey)
	if userKeyIdx < 0 {
		return nil, fmt.Errorf("warehouse: users: unknown key column %q", cfg.UserKey)
	}

	dimUser := standardized(users)
	dimUser.Columns = append(dimUser.Columns, TotalSpendingColumn)
	for i, src := range users.Rows {
		total := spending[table.CellString(src[userKeyIdx])]
		row := make([]any, 0, len(src)+1)
		row = append(row, src...)
		row = append(row, total)
		dimUser.Rows[i] = row
	}

	dimProduct := standardized(products)
	copy(dimProduct.Rows, products.Rows)

	fct := standardized(transactions)
	copy(fct.Rows, transactions.Rows)

	star := &Star{
		DimUser: Load{
			Spec: TableSpec{
				Name:       DimUserTable,
				Columns:    columnSpecs(dimUser.Columns, cfg, nil),
				PrimaryKey: []string{StandardizeName(cfg.UserKey)},
			},
			Data: dimUser,
		},
		DimProduct: Load{
			Spec: TableSpec{
				Name:       DimProductTable,
				Columns:    columnSpecs(dimProduct.Columns, cfg, nil),
				PrimaryKey: standardizeAll(cfg.ProductKeys),
			},
			Data: dimProduct,
		},
		FctTransaction: Load{
			Spec: TableSpec{
				Name:    FctTransactionTable,
				Columns: columnSpecs(fct.Columns, cfg, factReferences(cfg)),
				PrimaryKey: []string{
					StandardizeName(cfg.TransactionKey),
				},
			},
			Data: fct,
		},
	}

	if err := star.validate(); err != nil {
		return nil, err
	}
	return star, nil
}

func (s *Star) validate() error {
	for _, l := range s.Ordered() {
		for _, pk := range l.Spec.PrimaryKey {
			if l.Data.ColumnIndex(pk) < 0 {
				return fmt.Errorf("warehouse: %s: primary key column %q not present", l.Spec.Name, pk)
			}
		}
		if len(l.Spec.PrimaryKey) == 0 {
			return fmt.Errorf("warehouse: %s: no primary key declared", l.Spec.Name)
		}
	}
	return nil
}

// standardized returns a new table with standardized column names and a rows
// slice sized to match the source.
func standardized(src *table.Table) *table.Table {
	out := &table.Table{
		Columns: standardizeAll(src.Columns),
		Rows:    make([][]any, len(src.Rows)),
	}
	return out
}

var nameReplacer = strings.NewReplacer(" ", "_", "(", "", ")", "")

// StandardizeName converts a provider column name to warehouse form:
// spaces to underscores, parentheses stripped, lowercase.
// "Date (UTC)" becomes "date_utc".
func StandardizeName(name string) string {
	return strings.ToLower(nameReplacer.Replace(name))
}

func standardizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = StandardizeName(n)
	}
	return out
}

func columnSpecs(stdCols []string, cfg BuildConfig, refs map[string]string) []ColumnSpec {
	numeric := toSet(standardizeAll(cfg.NumericColumns))
	numeric[TotalSpendingColumn] = struct{}{}
	timestamps := toSet(standardizeAll(cfg.TimestampColumns))

	out := make([]ColumnSpec, len(stdCols))
	for i, c := range stdCols {
		kind := KindText
		if _, ok := numeric[c]; ok {
			kind = KindNumeric
		}
		if _, ok := timestamps[c]; ok {
			kind = KindTimestamp
		}
		out[i] = ColumnSpec{Name: c, Kind: kind, References: refs[c]}
	}
	return out
}

func factReferences(cfg BuildConfig) map[string]string {
	return map[string]string{
		StandardizeName(cfg.UserRef):         DimUserTable,
		StandardizeName(cfg.SubscriptionRef): DimProductTable,
	}
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

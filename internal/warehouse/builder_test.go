package warehouse

import (
	"testing"

	"salesmart/internal/table"
)

func buildCfg() BuildConfig {
	return BuildConfig{
		UserKey:          "Customer ID",
		ProductKeys:      []string{"Subscription ID"},
		TransactionKey:   "Transaction ID",
		UserRef:          "Customer ID",
		SubscriptionRef:  "Subscription ID",
		NumericColumns:   []string{"Total"},
		TimestampColumns: []string{"Date (UTC)"},
	}
}

func sampleInputs(t *testing.T) (users, products, transactions *table.Table) {
	t.Helper()

	users = table.New("Customer ID", "Customer Name")
	for _, r := range [][]any{
		{"C01", "Ada"},
		{"C02", "Grace"},
	} {
		if err := users.AppendRow(r); err != nil {
			t.Fatalf("users row: %v", err)
		}
	}

	products = table.New("Subscription ID", "Product")
	if err := products.AppendRow([]any{"S1", "Starter"}); err != nil {
		t.Fatalf("products row: %v", err)
	}

	transactions = table.New("Transaction ID", "Customer ID", "Subscription ID", "Date (UTC)", "Total")
	for _, r := range [][]any{
		{"T1", "C01", "S1", "2021-06-07 00:00:00", "10"},
		{"T2", "C01", nil, "2021-06-08 00:00:00", "20"},
	} {
		if err := transactions.AppendRow(r); err != nil {
			t.Fatalf("transactions row: %v", err)
		}
	}
	return users, products, transactions
}

func TestStandardizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Date (UTC)", "date_utc"},
		{"Customer ID", "customer_id"},
		{"Total", "total"},
		{"already_standard", "already_standard"},
	}
	for _, tt := range tests {
		if got := StandardizeName(tt.in); got != tt.want {
			t.Fatalf("StandardizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildJoinsSpendingWithZeroDefault(t *testing.T) {
	t.Parallel()

	users, products, transactions := sampleInputs(t)
	star, err := Build(users, products, transactions, map[string]float64{"C01": 30}, buildCfg())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	du := star.DimUser.Data
	ti := du.ColumnIndex(TotalSpendingColumn)
	if ti < 0 {
		t.Fatalf("dim_user columns = %v, missing %s", du.Columns, TotalSpendingColumn)
	}
	if du.Rows[0][ti] != 30.0 {
		t.Fatalf("C01 total_spending = %v, want 30", du.Rows[0][ti])
	}
	// User with no transactions defaults to 0, not NULL.
	if du.Rows[1][ti] != 0.0 {
		t.Fatalf("C02 total_spending = %v, want 0", du.Rows[1][ti])
	}
}

func TestBuildStandardizesColumnNames(t *testing.T) {
	t.Parallel()

	users, products, transactions := sampleInputs(t)
	star, err := Build(users, products, transactions, nil, buildCfg())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fct := star.FctTransaction.Data
	want := []string{"transaction_id", "customer_id", "subscription_id", "date_utc", "total"}
	for i, c := range want {
		if fct.Columns[i] != c {
			t.Fatalf("fact columns = %v, want %v", fct.Columns, want)
		}
	}
	// Source tables keep their raw provider names.
	if transactions.Columns[3] != "Date (UTC)" {
		t.Fatalf("source columns mutated: %v", transactions.Columns)
	}
}

func TestBuildDeclaresKeysKindsAndReferences(t *testing.T) {
	t.Parallel()

	users, products, transactions := sampleInputs(t)
	star, err := Build(users, products, transactions, nil, buildCfg())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if pk := star.DimUser.Spec.PrimaryKey; len(pk) != 1 || pk[0] != "customer_id" {
		t.Fatalf("dim_user pk = %v", pk)
	}
	if pk := star.FctTransaction.Spec.PrimaryKey; len(pk) != 1 || pk[0] != "transaction_id" {
		t.Fatalf("fct pk = %v", pk)
	}

	kinds := map[string]ColumnSpec{}
	for _, c := range star.FctTransaction.Spec.Columns {
		kinds[c.Name] = c
	}
	if kinds["total"].Kind != KindNumeric {
		t.Fatalf("total kind = %v, want numeric", kinds["total"].Kind)
	}
	if kinds["date_utc"].Kind != KindTimestamp {
		t.Fatalf("date_utc kind = %v, want timestamp", kinds["date_utc"].Kind)
	}
	if kinds["customer_id"].References != DimUserTable {
		t.Fatalf("customer_id references = %q, want %q", kinds["customer_id"].References, DimUserTable)
	}
	if kinds["subscription_id"].References != DimProductTable {
		t.Fatalf("subscription_id references = %q, want %q", kinds["subscription_id"].References, DimProductTable)
	}
}

// TestBuildRetainsNullSubscription verifies fact rows with an absent
// subscription reference survive assembly.
func TestBuildRetainsNullSubscription(t *testing.T) {
	t.Parallel()

	users, products, transactions := sampleInputs(t)
	star, err := Build(users, products, transactions, nil, buildCfg())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fct := star.FctTransaction.Data
	if fct.NumRows() != 2 {
		t.Fatalf("fact rows = %d, want 2", fct.NumRows())
	}
	si := fct.ColumnIndex("subscription_id")
	if fct.Rows[1][si] != nil {
		t.Fatalf("null subscription rewritten to %v", fct.Rows[1][si])
	}
}

func TestBuildOrderedDimsBeforeFact(t *testing.T) {
	t.Parallel()

	users, products, transactions := sampleInputs(t)
	star, err := Build(users, products, transactions, nil, buildCfg())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var names []string
	for _, l := range star.Ordered() {
		names = append(names, l.Spec.Name)
	}
	if names[len(names)-1] != FctTransactionTable {
		t.Fatalf("load order = %v, want fact last", names)
	}
}

func TestBuildUnknownUserKey(t *testing.T) {
	t.Parallel()

	users, products, transactions := sampleInputs(t)
	cfg := buildCfg()
	cfg.UserKey = "missing"
	if _, err := Build(users, products, transactions, nil, cfg); err == nil {
		t.Fatalf("Build accepted an unknown user key")
	}
}

// Package report runs the analytical queries the sales dashboard is built
// on, against the finished star schema. It speaks database/sql so the same
// queries run on every warehouse backend; only month truncation and row
// limiting differ per dialect.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Dialect captures the per-backend SQL differences the queries need.
type Dialect struct {
	Kind string

	// monthExpr truncates fct_transaction.date_utc to "YYYY-MM".
	monthExpr string

	// topN marks dialects using SELECT TOP n instead of LIMIT n.
	topN bool
}

// DialectFor returns the dialect for a warehouse kind.
func DialectFor(kind string) (Dialect, error) {
	switch kind {
	case "postgres":
		return Dialect{Kind: kind, monthExpr: "to_char(date_utc, 'YYYY-MM')"}, nil
	case "sqlite":
		return Dialect{Kind: kind, monthExpr: "strftime('%Y-%m', date_utc)"}, nil
	case "mysql":
		return Dialect{Kind: kind, monthExpr: "DATE_FORMAT(date_utc, '%Y-%m')"}, nil
	case "mssql":
		return Dialect{Kind: kind, monthExpr: "FORMAT(date_utc, 'yyyy-MM')", topN: true}, nil
	default:
		return Dialect{}, fmt.Errorf("report: unsupported warehouse kind %q", kind)
	}
}

func driverFor(kind string) (string, error) {
	switch kind {
	case "postgres":
		return "pgx", nil
	case "sqlite":
		return "sqlite", nil
	case "mysql":
		return "mysql", nil
	case "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("report: unsupported warehouse kind %q", kind)
	}
}

// Client issues report queries over one database handle.
type Client struct {
	db *sql.DB
	d  Dialect
}

// Open connects to the warehouse identified by kind+dsn.
func Open(ctx context.Context, kind, dsn string) (*Client, error) {
	d, err := DialectFor(kind)
	if err != nil {
		return nil, err
	}
	driver, err := driverFor(kind)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Client{db: db, d: d}, nil
}

// NewClient wraps an existing handle; used by tests and embedders.
func NewClient(db *sql.DB, kind string) (*Client, error) {
	d, err := DialectFor(kind)
	if err != nil {
		return nil, err
	}
	return &Client{db: db, d: d}, nil
}

// Close closes the underlying handle.
func (c *Client) Close() error { return c.db.Close() }

// Spender is one row of the top-spenders report.
type Spender struct {
	CustomerID    string
	TotalSpending float64
}

// TopSpenders returns the n users with the highest total spending.
func (c *Client) TopSpenders(ctx context.Context, n int) ([]Spender, error) {
	q := c.limited(
		"SELECT customer_id, total_spending FROM dim_user ORDER BY total_spending DESC, customer_id", n)

	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("report: top spenders: %w", err)
	}
	defer rows.Close()

	var out []Spender
	for rows.Next() {
		var s Spender
		if err := rows.Scan(&s.CustomerID, &s.TotalSpending); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CategorySales is the product category with its summed sales.
type CategorySales struct {
	Product    string
	TotalSales float64
}

// HighestSalesCategory returns the product category with the highest total
// sales, via the fact/dimension join on subscription_id. Transactions with a
// null or unmatched subscription reference fall out of the inner join here;
// they are counted by DataQuality instead of being silently invisible.
//
// A warehouse with no joinable transactions has no highest category; that is
// reported as found=false, not as an error, so the rest of the report still
// renders.
func (c *Client) HighestSalesCategory(ctx context.Context) (CategorySales, bool, error) {
	q := c.limited(`
SELECT dp.product, SUM(ft.total) AS total_sales
FROM fct_transaction ft
INNER JOIN dim_product dp ON ft.subscription_id = dp.subscription_id
GROUP BY dp.product
ORDER BY total_sales DESC, dp.product`, 1)

	var cs CategorySales
	err := c.db.QueryRowContext(ctx, q).Scan(&cs.Product, &cs.TotalSales)
	if err == sql.ErrNoRows {
		return CategorySales{}, false, nil
	}
	if err != nil {
		return CategorySales{}, false, fmt.Errorf("report: highest sales category: %w", err)
	}
	return cs, true, nil
}

// MonthRevenue is one calendar month of fact-table revenue.
type MonthRevenue struct {
	Month     string // "YYYY-MM"
	Revenue   float64
	AvgAmount float64
	Count     int64

	// GrowthPct is the month-over-month revenue change in percent.
	// The first month in range has no prior period; it reports 0 with
	// HasPrior=false rather than a division error.
	GrowthPct float64
	HasPrior  bool
}

// MonthlyRevenue returns per-month revenue in ascending month order with
// growth computed against the previous month.
//
// Rows with a NULL date cannot be bucketed into a month and are excluded;
// DataQuality counts them.
func (c *Client) MonthlyRevenue(ctx context.Context) ([]MonthRevenue, error) {
	q := fmt.Sprintf(`
SELECT %[1]s AS month, SUM(total) AS revenue, AVG(total) AS avg_amount, COUNT(*) AS n
FROM fct_transaction
WHERE date_utc IS NOT NULL
GROUP BY %[1]s
ORDER BY month`, c.d.monthExpr)

	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("report: monthly revenue: %w", err)
	}
	defer rows.Close()

	var out []MonthRevenue
	for rows.Next() {
		var m MonthRevenue
		if err := rows.Scan(&m.Month, &m.Revenue, &m.AvgAmount, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if i == 0 {
			continue
		}
		prev := out[i-1].Revenue
		if prev == 0 {
			// Zero-revenue prior month: growth is undefined, report 0.
			continue
		}
		out[i].GrowthPct = (out[i].Revenue - prev) / prev * 100
		out[i].HasPrior = true
	}
	return out, nil
}

// QualityCounts are the orphan/data-quality signals of the loaded schema.
// None of these are errors: they are retained rows being made visible.
type QualityCounts struct {
	// NullSubscription counts fact rows whose subscription reference is
	// absent in the source.
	NullSubscription int64

	// NullDate counts fact rows without a timestamp. They carry revenue
	// but cannot appear in any monthly bucket.
	NullDate int64

	// OrphanFactUsers counts fact rows whose user reference matches no
	// dim_user row; OrphanFactProducts likewise for dim_product (null
	// references excluded, they are counted above).
	OrphanFactUsers    int64
	OrphanFactProducts int64

	// IdleUsers / IdleProducts count dimension rows with no fact rows.
	IdleUsers    int64
	IdleProducts int64
}

// DataQuality counts orphaned rows in both directions.
func (c *Client) DataQuality(ctx context.Context) (QualityCounts, error) {
	var qc QualityCounts
	for _, q := range []struct {
		dst *int64
		sql string
	}{
		{&qc.NullSubscription,
			"SELECT COUNT(*) FROM fct_transaction WHERE subscription_id IS NULL"},
		{&qc.NullDate,
			"SELECT COUNT(*) FROM fct_transaction WHERE date_utc IS NULL"},
		{&qc.OrphanFactUsers, `
SELECT COUNT(*) FROM fct_transaction ft
LEFT JOIN dim_user du ON ft.customer_id = du.customer_id
WHERE du.customer_id IS NULL`},
		{&qc.OrphanFactProducts, `
SELECT COUNT(*) FROM fct_transaction ft
LEFT JOIN dim_product dp ON ft.subscription_id = dp.subscription_id
WHERE ft.subscription_id IS NOT NULL AND dp.subscription_id IS NULL`},
		{&qc.IdleUsers, `
SELECT COUNT(*) FROM dim_user du
LEFT JOIN fct_transaction ft ON ft.customer_id = du.customer_id
WHERE ft.customer_id IS NULL`},
		{&qc.IdleProducts, `
SELECT COUNT(*) FROM dim_product dp
LEFT JOIN fct_transaction ft ON ft.subscription_id = dp.subscription_id
WHERE ft.subscription_id IS NULL`},
	} {
		if err := c.db.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return qc, fmt.Errorf("report: data quality: %w", err)
		}
	}
	return qc, nil
}

// limited applies the dialect's row-limit syntax to an ORDER BY query.
func (c *Client) limited(q string, n int) string {
	q = strings.TrimSpace(q)
	if c.d.topN {
		// SELECT TOP n must splice in after the first SELECT.
		return "SELECT TOP " + fmt.Sprint(n) + strings.TrimPrefix(q, "SELECT")
	}
	return fmt.Sprintf("%s LIMIT %d", q, n)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"salesmart/internal/config"
	"salesmart/internal/report"
)

// main renders the sales reports over a previously loaded warehouse:
// top spenders, highest-sales product category, monthly revenue with
// month-over-month growth, and data-quality counts.
func main() {
	var (
		cfgPath    string
		passphrase string
		topN       int
		months     int
	)

	flag.StringVar(&cfgPath, "config", "configs/salesmart.yaml", "pipeline config YAML path (.enc for encrypted)")
	flag.StringVar(&passphrase, "config-passphrase", "", "passphrase for an encrypted config (overrides env CONFIG_PASSPHRASE)")
	flag.IntVar(&topN, "top", 5, "number of top spenders to show")
	flag.IntVar(&months, "months", 6, "number of trailing months to show (0 = all)")
	flag.Parse()

	if passphrase == "" {
		passphrase = os.Getenv("CONFIG_PASSPHRASE")
	}

	cfg, err := config.Load(cfgPath, passphrase)
	if err != nil {
		fatalf("load config: %v", err)
	}

	ctx := context.Background()
	c, err := report.Open(ctx, cfg.Warehouse.Kind, cfg.Warehouse.DSN)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer c.Close()

	if err := run(ctx, c, topN, months); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, c *report.Client, topN, months int) error {
	spenders, err := c.TopSpenders(ctx, topN)
	if err != nil {
		return err
	}
	fmt.Printf("Top %d spenders\n", topN)
	t := tablewriter.NewWriter(os.Stdout)
	t.SetHeader([]string{"Customer", "Total Spending"})
	for _, s := range spenders {
		t.Append([]string{s.CustomerID, strconv.FormatFloat(s.TotalSpending, 'f', 2, 64)})
	}
	t.Render()

	cat, found, err := c.HighestSalesCategory(ctx)
	if err != nil {
		return err
	}
	if found {
		fmt.Printf("\nHighest sales category: %s (%.2f)\n", cat.Product, cat.TotalSales)
	} else {
		fmt.Printf("\nHighest sales category: n/a (no joinable transactions)\n")
	}

	rev, err := c.MonthlyRevenue(ctx)
	if err != nil {
		return err
	}
	if months > 0 && len(rev) > months {
		rev = rev[len(rev)-months:]
	}
	fmt.Printf("\nMonthly revenue\n")
	t = tablewriter.NewWriter(os.Stdout)
	t.SetHeader([]string{"Month", "Revenue", "Avg Transaction", "Count", "MoM Growth"})
	for _, m := range rev {
		t.Append([]string{
			m.Month,
			strconv.FormatFloat(m.Revenue, 'f', 2, 64),
			strconv.FormatFloat(m.AvgAmount, 'f', 2, 64),
			strconv.FormatInt(m.Count, 10),
			growthCell(m),
		})
	}
	t.Render()

	qc, err := c.DataQuality(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nData quality\n")
	t = tablewriter.NewWriter(os.Stdout)
	t.SetHeader([]string{"Check", "Rows"})
	t.Append([]string{"transactions without subscription", strconv.FormatInt(qc.NullSubscription, 10)})
	t.Append([]string{"transactions without date", strconv.FormatInt(qc.NullDate, 10)})
	t.Append([]string{"transactions with unknown user", strconv.FormatInt(qc.OrphanFactUsers, 10)})
	t.Append([]string{"transactions with unknown product", strconv.FormatInt(qc.OrphanFactProducts, 10)})
	t.Append([]string{"users without transactions", strconv.FormatInt(qc.IdleUsers, 10)})
	t.Append([]string{"products without transactions", strconv.FormatInt(qc.IdleProducts, 10)})
	t.Render()

	return nil
}

// growthCell colors growth green when positive, red when negative. The first
// month in range has no prior period to compare with.
func growthCell(m report.MonthRevenue) string {
	if !m.HasPrior {
		return "n/a"
	}
	s := fmt.Sprintf("%+.1f%%", m.GrowthPct)
	switch {
	case m.GrowthPct > 0:
		return color.GreenString(s)
	case m.GrowthPct < 0:
		return color.RedString(s)
	default:
		return s
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

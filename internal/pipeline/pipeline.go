// Package pipeline wires the stages together: load, dedupe, normalize
// dates, aggregate, build the star layout, write it out. One call to Run is
// one full batch; each stage consumes its predecessor completely before the
// next starts, and the first error aborts the run with every unwritten
// table untouched at the sink.
package pipeline

import (
	"context"
	"log"
	"time"

	"salesmart/internal/config"
	"salesmart/internal/loader"
	"salesmart/internal/metrics"
	"salesmart/internal/storage"
	"salesmart/internal/table"
	"salesmart/internal/transform"
	"salesmart/internal/warehouse"
)

// Logger is the minimal logging interface used by the pipeline.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Pipeline runs one batch from flat files to warehouse tables.
type Pipeline struct {
	Config *config.Config
	Repo   storage.Repository
	Logger Logger

	// Verbose adds sample-row logging after the build stage.
	Verbose bool
}

func (p *Pipeline) logf(format string, v ...any) {
	if p.Logger == nil {
		return
	}
	p.Logger.Printf(format, v...)
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

// Run executes the batch. The context covers all file and database I/O.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.Config

	sources := []struct {
		name string
		src  config.Source
	}{
		{"users", cfg.Sources.Users},
		{"products", cfg.Sources.Products},
		{"transactions", cfg.Sources.Transactions},
	}

	// Load.
	tables := make(map[string]*table.Table, len(sources))
	for _, s := range sources {
		start := time.Now()
		t, err := loader.ReadFile(s.src.Path, loader.Options{
			Comma:    s.src.DelimiterRune(),
			Encoding: s.src.Encoding,
		})
		if err != nil {
			return err
		}
		tables[s.name] = t

		metrics.IncCounter("etl_rows_loaded_total", float64(t.NumRows()), metrics.Labels{"source": s.name})
		p.logf("stage=load source=%s rows=%d duration=%s", s.name, t.NumRows(), durMS(start))
	}

	// Dedupe.
	for _, s := range sources {
		t := tables[s.name]
		removed, err := transform.Dedupe(t, s.src.KeyColumns)
		if err != nil {
			return err
		}

		metrics.IncCounter("etl_duplicates_removed_total", float64(removed), metrics.Labels{"source": s.name})
		p.logf("stage=dedupe source=%s removed=%d remaining=%d", s.name, removed, t.NumRows())
	}

	// Normalize dates.
	for _, s := range sources {
		if s.src.DateColumn == "" {
			continue
		}
		changed, err := transform.NormalizeDates(tables[s.name], s.src.DateColumn, cfg.DateFormats)
		if err != nil {
			return err
		}

		metrics.IncCounter("etl_dates_normalized_total", float64(changed), metrics.Labels{"source": s.name})
		p.logf("stage=dates source=%s column=%q rewritten=%d", s.name, s.src.DateColumn, changed)
	}

	// Aggregate.
	tx := cfg.Sources.Transactions
	spending, err := transform.TotalSpending(tables["transactions"], tx.UserColumn, tx.AmountColumn)
	if err != nil {
		return err
	}
	p.logf("stage=aggregate users_with_spending=%d", len(spending))

	// Build the star layout.
	star, err := warehouse.Build(
		tables["users"], tables["products"], tables["transactions"], spending,
		warehouse.BuildConfig{
			UserKey:          cfg.Sources.Users.KeyColumns[0],
			ProductKeys:      cfg.Sources.Products.KeyColumns,
			TransactionKey:   tx.KeyColumns[0],
			UserRef:          tx.UserColumn,
			SubscriptionRef:  tx.SubscriptionColumn,
			NumericColumns:   []string{tx.AmountColumn},
			TimestampColumns: dateColumns(cfg),
		},
	)
	if err != nil {
		return err
	}
	if p.Verbose {
		p.logf("stage=build table=%s sample:\n%s", warehouse.DimUserTable, star.DimUser.Data.Head(5))
	}

	// Write, dimensions first.
	for _, l := range star.Ordered() {
		start := time.Now()
		written, err := p.Repo.ReplaceTable(ctx, l.Spec, l.Data)
		if err != nil {
			return err
		}

		metrics.IncCounter("etl_rows_written_total", float64(written), metrics.Labels{"table": l.Spec.Name})
		p.logf("stage=write table=%s rows=%d duration=%s", l.Spec.Name, written, durMS(start))
	}

	return nil
}

func dateColumns(cfg *config.Config) []string {
	var out []string
	for _, src := range []config.Source{cfg.Sources.Users, cfg.Sources.Products, cfg.Sources.Transactions} {
		if src.DateColumn != "" {
			out = append(out, src.DateColumn)
		}
	}
	return out
}

var _ Logger = (*log.Logger)(nil)

// Package postgres implements the warehouse sink on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"salesmart/internal/storage"
	"salesmart/internal/table"
	"salesmart/internal/warehouse"
)

// Keep chunked statements well under the 65535 bind-parameter protocol limit.
const maxBindArgs = 60000

type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() { r.pool.Close() }

// ReplaceTable rebuilds the table inside a single transaction: DROP, CREATE,
// chunked INSERT, then ALTER TABLE ADD PRIMARY KEY. Postgres DDL is
// transactional, so concurrent readers see the old table until commit and
// the finished one after, never a partial state.
func (r *Repo) ReplaceTable(ctx context.Context, spec warehouse.TableSpec, data *table.Table) (int64, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return 0, fmt.Errorf("postgres: table name is empty")
	}
	if len(data.Columns) == 0 {
		return 0, fmt.Errorf("postgres: %s: no columns", spec.Name)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(spec.Name)); err != nil {
		return 0, fmt.Errorf("postgres: drop %s: %w", spec.Name, err)
	}
	if _, err := tx.Exec(ctx, buildCreateSQL(spec)); err != nil {
		return 0, fmt.Errorf("postgres: create %s: %w", spec.Name, err)
	}

	var written int64
	perChunk := maxBindArgs / len(data.Columns)
	if perChunk < 1 {
		perChunk = 1
	}
	for start := 0; start < len(data.Rows); start += perChunk {
		end := start + perChunk
		if end > len(data.Rows) {
			end = len(data.Rows)
		}
		q, args := buildInsertSQL(spec.Name, data.Columns, data.Rows[start:end])
		cmd, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert %s: %w", spec.Name, err)
		}
		written += cmd.RowsAffected()
	}

	if len(spec.PrimaryKey) > 0 {
		if _, err := tx.Exec(ctx, buildAddPrimaryKeySQL(spec)); err != nil {
			return 0, fmt.Errorf("postgres: add primary key %s: %w", spec.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return written, nil
}

// buildCreateSQL, buildInsertSQL and buildAddPrimaryKeySQL are pure so DDL
// correctness (identifier quoting, placeholder numbering) is unit-testable
// without a database.

func buildCreateSQL(spec warehouse.TableSpec) string {
	pk := make(map[string]bool, len(spec.PrimaryKey))
	for _, c := range spec.PrimaryKey {
		pk[c] = true
	}

	parts := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		col := pgIdent(c.Name) + " " + pgType(c.Kind)
		if pk[c.Name] {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", pgIdent(spec.Name), strings.Join(parts, ",\n  "))
}

func buildInsertSQL(tableName string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(tableName))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// The PK is added after load rather than declared inline, matching the
// replace-then-constrain order the warehouse has always used. ADD PRIMARY
// KEY also verifies key uniqueness one final time at the sink.
func buildAddPrimaryKeySQL(spec warehouse.TableSpec) string {
	cols := make([]string, 0, len(spec.PrimaryKey))
	for _, c := range spec.PrimaryKey {
		cols = append(cols, pgIdent(c))
	}
	return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s);", pgIdent(spec.Name), strings.Join(cols, ", "))
}

func pgType(kind string) string {
	switch kind {
	case warehouse.KindNumeric:
		return "DOUBLE PRECISION"
	case warehouse.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

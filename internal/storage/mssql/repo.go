// Package mssql implements the warehouse sink on SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"salesmart/internal/storage"
	"salesmart/internal/table"
	"salesmart/internal/warehouse"
)

// SQL Server caps a statement at 2100 bind parameters.
const maxBindArgs = 2000

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ReplaceTable rebuilds the table inside one transaction. SQL Server DDL is
// transactional; DROP/CREATE take a schema lock, so readers block briefly at
// commit rather than ever observing a half-loaded table.
func (r *Repo) ReplaceTable(ctx context.Context, spec warehouse.TableSpec, data *table.Table) (int64, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return 0, fmt.Errorf("mssql: table name is empty")
	}
	if len(data.Columns) == 0 {
		return 0, fmt.Errorf("mssql: %s: no columns", spec.Name)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+msIdent(spec.Name)); err != nil {
		return 0, fmt.Errorf("mssql: drop %s: %w", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateSQL(spec)); err != nil {
		return 0, fmt.Errorf("mssql: create %s: %w", spec.Name, err)
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
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("mssql: insert %s: %w", spec.Name, err)
		}
		n, _ := res.RowsAffected()
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

func buildCreateSQL(spec warehouse.TableSpec) string {
	pk := make(map[string]bool, len(spec.PrimaryKey))
	for _, c := range spec.PrimaryKey {
		pk[c] = true
	}

	parts := make([]string, 0, len(spec.Columns)+1)
	for _, c := range spec.Columns {
		col := msIdent(c.Name) + " " + msType(c.Kind)
		if pk[c.Name] {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}
	if len(spec.PrimaryKey) > 0 {
		cols := make([]string, 0, len(spec.PrimaryKey))
		for _, c := range spec.PrimaryKey {
			cols = append(cols, msIdent(c))
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", msIdent(spec.Name), strings.Join(parts, ",\n  "))
}

func buildInsertSQL(tableName string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(msIdent(tableName))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(msIdent(c))
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
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// msType maps generic kinds to SQL Server types. Text uses NVARCHAR(450):
// NVARCHAR(MAX) cannot participate in a primary key, and 450 stays inside
// the 900-byte index key limit.
func msType(kind string) string {
	switch kind {
	case warehouse.KindNumeric:
		return "FLOAT"
	case warehouse.KindTimestamp:
		return "DATETIME2"
	default:
		return "NVARCHAR(450)"
	}
}

func msIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// Package sqlite implements the warehouse sink on SQLite. It exists mostly
// for local runs and tests, where a file (or :memory:) database stands in
// for the real warehouse.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"salesmart/internal/storage"
	"salesmart/internal/table"
	"salesmart/internal/warehouse"
)

// SQLite's default variable limit is 999; stay under it.
const maxBindArgs = 900

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
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

// ReplaceTable drops and recreates the table inside one transaction. SQLite
// DDL is transactional, so readers on other connections see either the old
// table or the finished new one.
//
// The primary key is declared inline: SQLite has no ALTER TABLE ADD PRIMARY
// KEY. Timestamps are stored as TEXT; the canonical "2006-01-02 15:04:05"
// form sorts and strftime()s correctly as-is.
func (r *Repo) ReplaceTable(ctx context.Context, spec warehouse.TableSpec, data *table.Table) (int64, error) {
	if err := validateSpec(spec, data); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(spec.Name)); err != nil {
		return 0, fmt.Errorf("sqlite: drop %s: %w", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateSQL(spec)); err != nil {
		return 0, fmt.Errorf("sqlite: create %s: %w", spec.Name, err)
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
			return 0, fmt.Errorf("sqlite: insert %s: %w", spec.Name, err)
		}
		n, _ := res.RowsAffected()
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

func validateSpec(spec warehouse.TableSpec, data *table.Table) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("sqlite: table name is empty")
	}
	if len(data.Columns) == 0 {
		return fmt.Errorf("sqlite: %s: no columns", spec.Name)
	}
	return nil
}

func buildCreateSQL(spec warehouse.TableSpec) string {
	pk := make(map[string]bool, len(spec.PrimaryKey))
	for _, c := range spec.PrimaryKey {
		pk[c] = true
	}

	parts := make([]string, 0, len(spec.Columns)+1)
	for _, c := range spec.Columns {
		col := sqlIdent(c.Name) + " " + sqliteType(c.Kind)
		if pk[c.Name] {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}
	if len(spec.PrimaryKey) > 0 {
		cols := make([]string, 0, len(spec.PrimaryKey))
		for _, c := range spec.PrimaryKey {
			cols = append(cols, sqlIdent(c))
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(spec.Name), strings.Join(parts, ",\n  "))
}

func buildInsertSQL(tableName string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(tableName))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}

func sqliteType(kind string) string {
	switch kind {
	case warehouse.KindNumeric:
		return "REAL"
	case warehouse.KindTimestamp:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

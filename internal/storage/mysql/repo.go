// Package mysql implements the warehouse sink on MySQL.
//
// MySQL DDL is not transactional, so "replace atomically" cannot be a
// DROP+CREATE in one transaction like the other backends. Instead the table
// is rebuilt under a staging name and swapped in with RENAME TABLE, which is
// atomic: readers see the old table until the rename and the finished new
// one after.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"salesmart/internal/storage"
	"salesmart/internal/table"
	"salesmart/internal/warehouse"
)

const (
	stagingSuffix = "__incoming"
	retiredSuffix = "__retired"

	// max_allowed_packet is the practical bound, but capping bind args keeps
	// statements comparable with the other backends.
	maxBindArgs = 50000
)

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mysql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("mysql", cfg.DSN)
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

func (r *Repo) ReplaceTable(ctx context.Context, spec warehouse.TableSpec, data *table.Table) (int64, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return 0, fmt.Errorf("mysql: table name is empty")
	}
	if len(data.Columns) == 0 {
		return 0, fmt.Errorf("mysql: %s: no columns", spec.Name)
	}

	staging := spec.Name + stagingSuffix
	retired := spec.Name + retiredSuffix

	// Leftovers from a crashed run are garbage; clear them first.
	for _, t := range []string{staging, retired} {
		if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+myIdent(t)); err != nil {
			return 0, fmt.Errorf("mysql: drop %s: %w", t, err)
		}
	}

	if _, err := r.db.ExecContext(ctx, buildCreateSQL(spec, staging)); err != nil {
		return 0, fmt.Errorf("mysql: create %s: %w", staging, err)
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
		q, args := buildInsertSQL(staging, data.Columns, data.Rows[start:end])
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("mysql: insert %s: %w", staging, err)
		}
		n, _ := res.RowsAffected()
		written += n
	}

	exists, err := r.tableExists(ctx, spec.Name)
	if err != nil {
		return 0, err
	}

	if exists {
		swap := fmt.Sprintf(
			"RENAME TABLE %s TO %s, %s TO %s",
			myIdent(spec.Name), myIdent(retired), myIdent(staging), myIdent(spec.Name),
		)
		if _, err := r.db.ExecContext(ctx, swap); err != nil {
			return 0, fmt.Errorf("mysql: swap %s: %w", spec.Name, err)
		}
		if _, err := r.db.ExecContext(ctx, "DROP TABLE "+myIdent(retired)); err != nil {
			return 0, fmt.Errorf("mysql: drop %s: %w", retired, err)
		}
	} else {
		swap := fmt.Sprintf("RENAME TABLE %s TO %s", myIdent(staging), myIdent(spec.Name))
		if _, err := r.db.ExecContext(ctx, swap); err != nil {
			return 0, fmt.Errorf("mysql: swap %s: %w", spec.Name, err)
		}
	}

	return written, nil
}

func (r *Repo) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("mysql: table lookup %s: %w", name, err)
	}
	return n > 0, nil
}

func buildCreateSQL(spec warehouse.TableSpec, tableName string) string {
	pk := make(map[string]bool, len(spec.PrimaryKey))
	for _, c := range spec.PrimaryKey {
		pk[c] = true
	}

	parts := make([]string, 0, len(spec.Columns)+1)
	for _, c := range spec.Columns {
		col := myIdent(c.Name) + " " + myType(c.Kind)
		if pk[c.Name] {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}
	if len(spec.PrimaryKey) > 0 {
		cols := make([]string, 0, len(spec.PrimaryKey))
		for _, c := range spec.PrimaryKey {
			cols = append(cols, myIdent(c))
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", myIdent(tableName), strings.Join(parts, ",\n  "))
}

func buildInsertSQL(tableName string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, myIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(myIdent(tableName))
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

// myType maps generic kinds to MySQL types. Text columns use VARCHAR(191)
// rather than TEXT: TEXT cannot carry a primary key without a prefix length,
// and 191 is the utf8mb4 index-safe width.
func myType(kind string) string {
	switch kind {
	case warehouse.KindNumeric:
		return "DOUBLE"
	case warehouse.KindTimestamp:
		return "DATETIME"
	default:
		return "VARCHAR(191)"
	}
}

func myIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// Package warehouse assembles the dimension/fact layout from the cleaned
// source tables. The TableSpec types live here so storage backends can
// consume them without importing the builder.
package warehouse

import "salesmart/internal/table"

// Column kinds are declared generically; each storage backend maps them to
// its own dialect types.
const (
	KindText      = "text"
	KindNumeric   = "numeric"
	KindTimestamp = "timestamp"
)

// TableSpec declares a warehouse table: columns, the natural primary key
// applied after load, and intended (not enforced) dimension references.
type TableSpec struct {
	Name       string
	Columns    []ColumnSpec
	PrimaryKey []string
}

// ColumnSpec declares one column.
//
// References names the dimension table this column points at. It documents
// the star layout for the report layer; no backend turns it into a foreign
// key constraint, because orphaned fact rows must stay loadable and
// queryable.
type ColumnSpec struct {
	Name       string
	Kind       string
	References string
}

// Load pairs a finished table with its declared spec, ready for the writer.
type Load struct {
	Spec TableSpec
	Data *table.Table
}

// Star is the finished warehouse layout.
type Star struct {
	DimUser        Load
	DimProduct     Load
	FctTransaction Load
}

// Ordered returns the loads in write order: dimensions before the fact
// table. The sink does not require this (no enforced FK), but it keeps
// intermediate states readable if a run dies between tables.
func (s *Star) Ordered() []Load {
	return []Load{s.DimUser, s.DimProduct, s.FctTransaction}
}

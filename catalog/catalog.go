// Package catalog defines the BackendCatalog interface the core compiler
// consumes to resolve table names to backend-native table expressions,
// without the compiler ever knowing how a backend maps its own schema onto
// the cohort algebra's logical table names.
package catalog

import "github.com/cohortsql/compiler/dialect"

// TableExpression is a backend's projection of a logical table: a name (or
// derived-table alias) that, once referenced in FROM, exposes patient_id
// plus the declared columns.
type TableExpression struct {
	// Name is the SQL table (or view) name to select FROM.
	Name string
	// PatientIDColumn is the backend-native column that maps to the
	// algebra's patient_id; the catalog is responsible for having already
	// exposed it under that name if the underlying source differs.
	PatientIDColumn string
	// Columns is the set of column names this table expression exposes,
	// for UnknownColumn validation.
	Columns map[string]bool
	// HasSystemColumn, when true, lets codelist filters restrict their
	// scalar subquery to `system = <codelist.system>` per §4.3.
	HasSystemColumn bool
}

// BackendCatalog is the only interface the core consumes from the backend
// registry (out of scope per §1) -- table resolution, the canonical
// type map, insert batching, and the dialect adapter.
type BackendCatalog interface {
	// TableExpression resolves a logical table name to its backend
	// projection. Returns cerrors.UnknownTableError if name is not mapped.
	TableExpression(name string) (TableExpression, error)
	// TypeMap returns the canonical name -> SQL type overrides for this
	// backend (boolean, date, datetime, float, integer, varchar, code).
	TypeMap() map[string]string
	// MaxRowsPerInsert bounds codelist INSERT batching; 0 means unbounded.
	MaxRowsPerInsert() int
	// DialectAdapter returns the dialect adapter driving SQL rendering for
	// this backend's target database.
	DialectAdapter() dialect.Adapter
}

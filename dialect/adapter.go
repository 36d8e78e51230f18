// Package dialect implements the Dialect Adapter (§4.5): the small surface
// a dialect must provide so the dialect-neutral core can emit runnable SQL.
package dialect

import (
	"context"
	"database/sql"

	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// Adapter is the minimum interface a dialect must provide. A compiler run
// holds exactly one Adapter for its whole lifetime (Empty -> Analyzed ->
// Lowered -> Assembled); see compiler.Compiler.
type Adapter interface {
	sqlast.Quoter

	// Name identifies the dialect for error messages and trace output.
	Name() string

	// TempTableName returns a globally unique name for this run; hint is a
	// short human-readable suffix such as "group_3" or "codelist_1". Two
	// concurrent runs must not collide (§5); the bundled dialects get this
	// from fresh randomness in every name (see newTempTableName), not from
	// any per-Adapter state.
	TempTableName(hint string) string

	// WriteQueryToTable renders the dialect's CTAS form materializing query
	// into table (already a name returned by TempTableName).
	WriteQueryToTable(table string, query *sqlast.Select) string

	// TypeMap returns the canonical name -> SQL type map for this dialect
	// (boolean, date, datetime, float, integer, varchar, code).
	TypeMap() map[string]string

	// MaxRowsPerInsert bounds codelist INSERT batching; 0 means unbounded.
	MaxRowsPerInsert() int

	// LowerFunction renders a ValueFromFunction of the given kind applied to
	// already-lowered argument expressions, per the pluggable
	// strategy-object-keyed-by-function-kind design note (§9). Returns
	// *cerrors.UnsupportedFunctionError if kind has no registered lowering.
	LowerFunction(kind node.FunctionKind, args []sqlast.Expr) (sqlast.Expr, error)

	// PostExecuteCleanup drops the per-run temporary objects named in
	// createdTables. Optional per §4.5; a dialect whose temp tables are
	// already session-scoped may no-op.
	PostExecuteCleanup(ctx context.Context, db *sql.DB, createdTables []string) error
}

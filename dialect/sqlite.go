package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// SQLite is the Adapter for SQLite, using the pure-Go modernc.org/sqlite
// driver (no cgo) so the scenario test harness can run anywhere -- see
// SPEC_FULL.md's DOMAIN STACK for why this driver replaces the donor
// project's cgo-based one.
type SQLite struct {
	typeMap          map[string]string
	maxRowsPerInsert int
}

func NewSQLite() *SQLite {
	overrides := map[string]string{
		"boolean":  "INTEGER",
		"datetime": "TEXT",
		"date":     "TEXT",
	}
	return &SQLite{typeMap: mergeTypeMap(overrides), maxRowsPerInsert: 500}
}

func (d *SQLite) Name() string { return "sqlite" }

func (d *SQLite) QuoteIdent(name string) string {
	return `"` + name + `"`
}

func (d *SQLite) TempTableName(hint string) string {
	return newTempTableName(time.Now(), hint)
}

func (d *SQLite) WriteQueryToTable(table string, query *sqlast.Select) string {
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s AS %s", d.QuoteIdent(table), sqlast.Render(d, query))
}

func (d *SQLite) TypeMap() map[string]string { return d.typeMap }

func (d *SQLite) MaxRowsPerInsert() int { return d.maxRowsPerInsert }

// LowerFunction has no native year-arithmetic builtin to lean on, so it
// leans on strftime('%Y', ...) and date(..., '+n years') instead, per §4.3's
// "dialects without matching builtins must produce an equivalent
// expression."
func (d *SQLite) LowerFunction(kind node.FunctionKind, args []sqlast.Expr) (sqlast.Expr, error) {
	if kind != node.FuncDateDifferenceInYears {
		return nil, &cerrors.UnsupportedFunctionError{Dialect: d.Name(), Kind: string(kind)}
	}
	start, end := args[0], args[1]
	years := sqlast.Raw{SQL: fmt.Sprintf(
		"(CAST(strftime('%%Y', %s) AS INTEGER) - CAST(strftime('%%Y', %s) AS INTEGER))",
		sqlast.RenderExpr(d, end), sqlast.RenderExpr(d, start),
	)}
	addedBack := sqlast.Raw{SQL: fmt.Sprintf(
		"date(%s, '+' || %s || ' years')",
		sqlast.RenderExpr(d, start), sqlast.RenderExpr(d, years),
	)}
	return sqlast.CaseExpr{
		Whens: []sqlast.CaseWhen{
			{
				Cond:   sqlast.BinaryOp{Left: addedBack, Op: ">", Right: end},
				Result: sqlast.BinaryOp{Left: years, Op: "-", Right: sqlast.Literal{Value: 1}},
			},
		},
		Else: years,
	}, nil
}

func (d *SQLite) PostExecuteCleanup(ctx context.Context, db *sql.DB, createdTables []string) error {
	exec := func(stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}
	drop := func(name string) string {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(name))
	}
	return dropAllIgnoringErrors(exec, drop, createdTables)
}

// OpenSQLite opens an in-process SQLite database. dsn may be a file path or
// ":memory:".
func OpenSQLite(dsn string) (*sql.DB, error) {
	return sql.Open("sqlite", dsn)
}

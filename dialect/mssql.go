package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// MSSQL is the Adapter for SQL Server, grounded on
// database/mssql/database.go's DSN-building conventions. MSSQL has no
// CREATE TABLE AS SELECT; its CTAS idiom is SELECT ... INTO.
type MSSQL struct {
	typeMap          map[string]string
	maxRowsPerInsert int
}

func NewMSSQL() *MSSQL {
	overrides := map[string]string{
		"boolean":  "BIT",
		"datetime": "DATETIME2",
	}
	return &MSSQL{typeMap: mergeTypeMap(overrides), maxRowsPerInsert: 1000}
}

func (d *MSSQL) Name() string { return "mssql" }

func (d *MSSQL) QuoteIdent(name string) string {
	return "[" + name + "]"
}

func (d *MSSQL) TempTableName(hint string) string {
	return newTempTableName(time.Now(), hint)
}

func (d *MSSQL) WriteQueryToTable(table string, query *sqlast.Select) string {
	return sqlast.RenderInto(d, query, table)
}

func (d *MSSQL) TypeMap() map[string]string { return d.typeMap }

func (d *MSSQL) MaxRowsPerInsert() int { return d.maxRowsPerInsert }

// LowerFunction implements the canonical DateDifferenceInYears lowering from
// §4.3 directly: MSSQL's native DATEDIFF/DATEADD are exactly the functions
// that snippet names.
func (d *MSSQL) LowerFunction(kind node.FunctionKind, args []sqlast.Expr) (sqlast.Expr, error) {
	if kind != node.FuncDateDifferenceInYears {
		return nil, &cerrors.UnsupportedFunctionError{Dialect: d.Name(), Kind: string(kind)}
	}
	start, end := args[0], args[1]
	years := sqlast.FuncCall{Name: "DATEDIFF", Args: []sqlast.Expr{sqlast.Raw{SQL: "year"}, start, end}}
	addedBack := sqlast.FuncCall{Name: "DATEADD", Args: []sqlast.Expr{sqlast.Raw{SQL: "year"}, years, start}}
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

func (d *MSSQL) PostExecuteCleanup(ctx context.Context, db *sql.DB, createdTables []string) error {
	exec := func(stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}
	drop := func(name string) string {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(name))
	}
	return dropAllIgnoringErrors(exec, drop, createdTables)
}

func mssqlBuildDSN(host string, port int, user, password, dbName string) string {
	if port == 0 {
		port = 1433
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s", user, password, host, port, dbName)
}

// OpenMSSQL opens a *sql.DB against SQL Server using
// github.com/denisenkom/go-mssqldb.
func OpenMSSQL(host string, port int, user, password, dbName string) (*sql.DB, error) {
	return sql.Open("sqlserver", mssqlBuildDSN(host, port, user, password, dbName))
}

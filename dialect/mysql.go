package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// MySQL is the Adapter for MySQL/MariaDB, grounded on
// database/mysql/database.go's DSN-building and connection conventions
// (the schema-dumping half of that file has no analogue here and was
// dropped -- see DESIGN.md).
type MySQL struct {
	typeMap          map[string]string
	maxRowsPerInsert int
}

func NewMySQL() *MySQL {
	return &MySQL{typeMap: canonicalTypeMap(), maxRowsPerInsert: 1000}
}

func (d *MySQL) Name() string { return "mysql" }

func (d *MySQL) QuoteIdent(name string) string {
	return "`" + name + "`"
}

func (d *MySQL) TempTableName(hint string) string {
	return newTempTableName(time.Now(), hint)
}

func (d *MySQL) WriteQueryToTable(table string, query *sqlast.Select) string {
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s AS %s", d.QuoteIdent(table), sqlast.Render(d, query))
}

func (d *MySQL) TypeMap() map[string]string { return d.typeMap }

func (d *MySQL) MaxRowsPerInsert() int { return d.maxRowsPerInsert }

func (d *MySQL) LowerFunction(kind node.FunctionKind, args []sqlast.Expr) (sqlast.Expr, error) {
	if kind != node.FuncDateDifferenceInYears {
		return nil, &cerrors.UnsupportedFunctionError{Dialect: d.Name(), Kind: string(kind)}
	}
	start, end := args[0], args[1]
	years := sqlast.FuncCall{Name: "TIMESTAMPDIFF", Args: []sqlast.Expr{sqlast.Raw{SQL: "YEAR"}, start, end}}
	addedBack := sqlast.Raw{SQL: fmt.Sprintf(
		"DATE_ADD(%s, INTERVAL %s YEAR)",
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

func (d *MySQL) PostExecuteCleanup(ctx context.Context, db *sql.DB, createdTables []string) error {
	exec := func(stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}
	drop := func(name string) string {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(name))
	}
	return dropAllIgnoringErrors(exec, drop, createdTables)
}

// mysqlBuildDSN builds a go-sql-driver/mysql DSN, grounded on
// database/mysql/database.go's mysqlBuildDSN.
func mysqlBuildDSN(host string, port int, user, password, dbName string) string {
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", user, password, host, port, dbName)
}

// OpenMySQL opens a *sql.DB against a MySQL server using the
// github.com/go-sql-driver/mysql driver.
func OpenMySQL(host string, port int, user, password, dbName string) (*sql.DB, error) {
	return sql.Open("mysql", mysqlBuildDSN(host, port, user, password, dbName))
}

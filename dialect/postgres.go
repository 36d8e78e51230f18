package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// Postgres is the Adapter for PostgreSQL, grounded on
// database/postgres/database.go's DSN-building conventions.
type Postgres struct {
	typeMap          map[string]string
	maxRowsPerInsert int
}

func NewPostgres() *Postgres {
	overrides := map[string]string{
		"boolean": "boolean",
		"varchar": "varchar(255)",
	}
	return &Postgres{typeMap: mergeTypeMap(overrides), maxRowsPerInsert: 1000}
}

func (d *Postgres) Name() string { return "postgres" }

func (d *Postgres) QuoteIdent(name string) string {
	return `"` + name + `"`
}

func (d *Postgres) TempTableName(hint string) string {
	return newTempTableName(time.Now(), hint)
}

func (d *Postgres) WriteQueryToTable(table string, query *sqlast.Select) string {
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s AS %s", d.QuoteIdent(table), sqlast.Render(d, query))
}

func (d *Postgres) TypeMap() map[string]string { return d.typeMap }

func (d *Postgres) MaxRowsPerInsert() int { return d.maxRowsPerInsert }

func (d *Postgres) LowerFunction(kind node.FunctionKind, args []sqlast.Expr) (sqlast.Expr, error) {
	if kind != node.FuncDateDifferenceInYears {
		return nil, &cerrors.UnsupportedFunctionError{Dialect: d.Name(), Kind: string(kind)}
	}
	start, end := args[0], args[1]
	years := sqlast.FuncCall{
		Name: "DATE_PART",
		Args: []sqlast.Expr{sqlast.Literal{Value: "year"}, sqlast.FuncCall{Name: "AGE", Args: []sqlast.Expr{end, start}}},
	}
	addedBack := sqlast.Raw{SQL: fmt.Sprintf(
		"(%s + (%s || ' years')::interval)",
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

func (d *Postgres) PostExecuteCleanup(ctx context.Context, db *sql.DB, createdTables []string) error {
	exec := func(stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}
	drop := func(name string) string {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(name))
	}
	return dropAllIgnoringErrors(exec, drop, createdTables)
}

func postgresBuildDSN(host string, port int, user, password, dbName, sslMode string) string {
	if port == 0 {
		port = 5432
	}
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode)
}

// OpenPostgres opens a *sql.DB against PostgreSQL using github.com/lib/pq.
func OpenPostgres(host string, port int, user, password, dbName, sslMode string) (*sql.DB, error) {
	return sql.Open("postgres", postgresBuildDSN(host, port, user, password, dbName, sslMode))
}

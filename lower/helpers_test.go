package lower

import (
	"context"
	"database/sql"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// fakeLowerAdapter is a minimal dialect.Adapter for exercising lowering and
// rendering without depending on a real dialect package.
type fakeLowerAdapter struct{}

func (fakeLowerAdapter) Name() string                 { return "fake" }
func (fakeLowerAdapter) QuoteIdent(name string) string { return name }
func (fakeLowerAdapter) TempTableName(hint string) string {
	return "tmp_" + hint
}
func (fakeLowerAdapter) WriteQueryToTable(table string, query *sqlast.Select) string {
	return "CREATE TABLE " + table + " AS " + sqlast.Render(fakeLowerAdapter{}, query)
}
func (fakeLowerAdapter) TypeMap() map[string]string { return map[string]string{} }
func (fakeLowerAdapter) MaxRowsPerInsert() int       { return 0 }
func (fakeLowerAdapter) LowerFunction(kind node.FunctionKind, args []sqlast.Expr) (sqlast.Expr, error) {
	if kind != node.FuncDateDifferenceInYears {
		return nil, &cerrors.UnsupportedFunctionError{Dialect: "fake", Kind: string(kind)}
	}
	return sqlast.FuncCall{Name: "DATE_DIFF_YEARS", Args: args}, nil
}
func (fakeLowerAdapter) PostExecuteCleanup(ctx context.Context, db *sql.DB, createdTables []string) error {
	return nil
}

package planner

import (
	"fmt"
	"strings"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/dialect"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// BuildCodelistStatements builds the CREATE TABLE plus batched INSERTs for
// one codelist, per §4.4 step 1 / §6's codelist table schema. index
// distinguishes this codelist's temp name from others ("codelist_<i>").
// Exported so compiler.Compiler's phased Lower step can drive it directly
// rather than going through Assemble's all-in-one pipeline.
func BuildCodelistStatements(cl *node.Codelist, index int, adapter dialect.Adapter) ([]Statement, string, error) {
	if len(cl.Codes) == 0 {
		return nil, "", &cerrors.CodelistError{Detail: fmt.Sprintf("codelist for system %q has no codes", cl.System)}
	}
	lens := sortedCodeLengths(cl.Codes)
	maxLen := lens[len(lens)-1]
	if maxLen > maxCodeLength {
		return nil, "", &cerrors.CodelistError{
			Detail: fmt.Sprintf("codelist for system %q has a code of length %d, exceeding the maximum of %d", cl.System, maxLen, maxCodeLength),
		}
	}

	name := adapter.TempTableName(fmt.Sprintf("codelist_%d", index))
	collation := dialect.CaseSensitiveCollation(adapter.Name())
	if adapter.Name() == "postgres" {
		collation = adapter.QuoteIdent(collation)
	}

	create := fmt.Sprintf(
		"CREATE TABLE %s (%s VARCHAR(%d) COLLATE %s NOT NULL, %s VARCHAR(6) NOT NULL)",
		adapter.QuoteIdent(name), adapter.QuoteIdent("code"), maxLen, collation, adapter.QuoteIdent("system"),
	)
	statements := []Statement{{SQL: create, CreatesTable: name}}

	batchSize := adapter.MaxRowsPerInsert()
	for _, batch := range batchCodes(cl.Codes, batchSize) {
		statements = append(statements, Statement{SQL: insertStatement(name, cl.System, batch, adapter)})
	}
	return statements, name, nil
}

// batchCodes splits codes into groups of at most size (per
// split_list_into_batches in the reference implementation); size <= 0 means
// unbounded -- one batch holding every code.
func batchCodes(codes []string, size int) [][]string {
	if size <= 0 {
		return [][]string{codes}
	}
	var batches [][]string
	for i := 0; i < len(codes); i += size {
		end := i + size
		if end > len(codes) {
			end = len(codes)
		}
		batches = append(batches, codes[i:end])
	}
	return batches
}

func insertStatement(table, system string, codes []string, adapter dialect.Adapter) string {
	var rows []string
	for _, code := range codes {
		rows = append(rows, fmt.Sprintf("(%s, %s)",
			sqlast.RenderExpr(adapter, sqlast.Literal{Value: code}),
			sqlast.RenderExpr(adapter, sqlast.Literal{Value: system}),
		))
	}
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES %s",
		adapter.QuoteIdent(table), adapter.QuoteIdent("code"), adapter.QuoteIdent("system"), strings.Join(rows, ", "))
}

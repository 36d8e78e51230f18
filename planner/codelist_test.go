package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/dialect"
	"github.com/cohortsql/compiler/node"
)

func TestBuildCodelistStatementsRejectsEmptyCodelist(t *testing.T) {
	cl := node.NewCodelist("snomed")
	_, _, err := BuildCodelistStatements(cl, 0, dialect.NewSQLite())
	assert.Error(t, err)
	var codelistErr *cerrors.CodelistError
	assert.ErrorAs(t, err, &codelistErr)
}

func TestBuildCodelistStatementsRejectsOverlongCode(t *testing.T) {
	cl := node.NewCodelist("snomed", strings.Repeat("1", maxCodeLength+1))
	_, _, err := BuildCodelistStatements(cl, 0, dialect.NewSQLite())
	assert.Error(t, err)
}

func TestBuildCodelistStatementsBatchesInserts(t *testing.T) {
	codes := make([]string, 5)
	for i := range codes {
		codes[i] = "code"
	}
	cl := node.NewCodelist("snomed", codes...)

	adapter := &batchingAdapter{SQLite: *dialect.NewSQLite(), maxRows: 2}
	stmts, name, err := BuildCodelistStatements(cl, 0, adapter)
	assert.NoError(t, err)
	assert.NotEmpty(t, name)
	// 1 CREATE + ceil(5/2)=3 INSERT batches
	assert.Len(t, stmts, 4)
}

type batchingAdapter struct {
	dialect.SQLite
	maxRows int
}

func (a *batchingAdapter) MaxRowsPerInsert() int { return a.maxRows }

func TestBatchCodesUnboundedWhenSizeNonPositive(t *testing.T) {
	batches := batchCodes([]string{"a", "b", "c"}, 0)
	assert.Len(t, batches, 1)
	assert.Equal(t, []string{"a", "b", "c"}, batches[0])
}

func TestBatchCodesSplitsEvenly(t *testing.T) {
	batches := batchCodes([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"e"}, batches[2])
}

func TestBuildCodelistStatementsUsesCaseSensitiveCollation(t *testing.T) {
	cl := node.NewCodelist("snomed", "abc")
	stmts, _, err := BuildCodelistStatements(cl, 0, dialect.NewMySQL())
	assert.NoError(t, err)
	assert.Contains(t, stmts[0].SQL, "utf8mb4_bin")
}

func TestBuildCodelistStatementsPostgresQuotesCollation(t *testing.T) {
	cl := node.NewCodelist("snomed", "abc")
	stmts, _, err := BuildCodelistStatements(cl, 0, dialect.NewPostgres())
	assert.NoError(t, err)
	assert.Contains(t, stmts[0].SQL, `"C"`)
}

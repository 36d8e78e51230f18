package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohortsql/compiler/dag"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

func TestValueExprResolvesOwnGroupTable(t *testing.T) {
	table := node.NewTable("events")
	agg := node.Count(table, "code")

	lookup := func(key dag.GroupKey) (string, bool) {
		if key.Kind == node.KindValueFromAggregate {
			return "interim_1", true
		}
		return "", false
	}

	expr, refs, err := ValueExpr(agg, lookup, fakeLowerAdapter{})
	assert.NoError(t, err)
	assert.Len(t, refs, 1)

	col, ok := expr.(sqlast.ColumnRef)
	assert.True(t, ok)
	assert.Equal(t, "interim_1", col.Table)
	assert.Equal(t, "code_count", col.Column)
}

func TestValueExprUnmaterializedGroupErrors(t *testing.T) {
	table := node.NewTable("events")
	agg := node.Count(table, "code")

	_, _, err := ValueExpr(agg, noGroupTables, fakeLowerAdapter{})
	assert.Error(t, err)
}

func TestValueExprCategoryBuildsCaseExpr(t *testing.T) {
	table := node.NewTable("events")
	agg := node.Count(table, "code")
	cat := node.Categorise([]node.CategoryDefinition{
		{Label: "many", When: node.Gt(agg, 5)},
	}, "few")

	lookup := func(dag.GroupKey) (string, bool) { return "interim_1", true }

	expr, refs, err := ValueExpr(cat, lookup, fakeLowerAdapter{})
	assert.NoError(t, err)
	assert.Len(t, refs, 1)

	_, ok := expr.(sqlast.CaseExpr)
	assert.True(t, ok)
}

func TestValueExprFunctionDelegatesToAdapter(t *testing.T) {
	tableA := node.NewTable("a")
	tableB := node.NewTable("b")
	start := node.FirstBy(tableA, "date").Get("date")
	end := node.FirstBy(tableB, "date").Get("date")
	fn := node.DateDifferenceInYears(start, end)

	lookup := func(dag.GroupKey) (string, bool) { return "interim_x", true }

	expr, refs, err := ValueExpr(fn, lookup, fakeLowerAdapter{})
	assert.NoError(t, err)
	assert.Len(t, refs, 2)

	call, ok := expr.(sqlast.FuncCall)
	assert.True(t, ok)
	assert.Equal(t, "DATE_DIFF_YEARS", call.Name)
}

func TestComparatorExprNegationWrapsWithNot(t *testing.T) {
	table := node.NewTable("events")
	agg := node.Count(table, "code")
	cmp := node.Not(node.Gt(agg, 5))

	lookup := func(dag.GroupKey) (string, bool) { return "interim_1", true }

	expr, _, err := comparatorExpr(cmp, lookup, fakeLowerAdapter{})
	assert.NoError(t, err)
	_, ok := expr.(sqlast.Not)
	assert.True(t, ok)
}

func TestComparatorExprAndOr(t *testing.T) {
	table := node.NewTable("events")
	agg := node.Count(table, "code")
	left := node.Gt(agg, 1)
	right := node.Lt(agg, 10)
	and := node.And(left, right)

	lookup := func(dag.GroupKey) (string, bool) { return "interim_1", true }

	expr, refs, err := comparatorExpr(and, lookup, fakeLowerAdapter{})
	assert.NoError(t, err)
	assert.Len(t, refs, 2)

	bo, ok := expr.(sqlast.BinaryOp)
	assert.True(t, ok)
	assert.Equal(t, "AND", bo.Op)
}

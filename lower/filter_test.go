package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohortsql/compiler/catalog"
	"github.com/cohortsql/compiler/dag"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

func TestLowerFilterLiteral(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	te, err := cat.TableExpression("events")
	assert.NoError(t, err)

	f := node.Filter(node.NewTable("events"), "code", node.OpEq, "123")
	ctx := &Context{Catalog: cat, CodelistTableName: noCodelistTables}
	expr, err := lowerFilter(f, "base", te, noJoin, ctx)
	assert.NoError(t, err)

	sql := sqlast.Render(fakeLowerAdapter{}, (&sqlast.Select{Where: expr, Columns: nil, From: sqlast.NamedTable{Name: "x"}}))
	assert.Contains(t, sql, "base")
	assert.Contains(t, sql, "'123'")
}

func noJoin(dag.GroupKey) (string, error) { return "", nil }

func TestLowerFilterLiteralListBuildsInList(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	te, err := cat.TableExpression("events")
	assert.NoError(t, err)

	f := node.Filter(node.NewTable("events"), "code", node.OpIn, []any{"abc", "def"})
	ctx := &Context{Catalog: cat, CodelistTableName: noCodelistTables}
	expr, err := lowerFilter(f, "base", te, noJoin, ctx)
	assert.NoError(t, err)
	inList, ok := expr.(sqlast.InList)
	assert.True(t, ok)
	assert.False(t, inList.Negated)
	assert.Len(t, inList.Values, 2)

	sql := sqlast.Render(fakeLowerAdapter{}, &sqlast.Select{Where: expr, From: sqlast.NamedTable{Name: "x"}})
	assert.Contains(t, sql, "'abc'")
	assert.Contains(t, sql, "'def'")
	assert.NotContains(t, sql, "NOT IN")
}

func TestLowerFilterLiteralListNotInNegates(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	te, err := cat.TableExpression("events")
	assert.NoError(t, err)

	f := node.Filter(node.NewTable("events"), "code", node.OpNotIn, []any{"abc"})
	ctx := &Context{Catalog: cat, CodelistTableName: noCodelistTables}
	expr, err := lowerFilter(f, "base", te, noJoin, ctx)
	assert.NoError(t, err)
	inList, ok := expr.(sqlast.InList)
	assert.True(t, ok)
	assert.True(t, inList.Negated)

	sql := sqlast.Render(fakeLowerAdapter{}, &sqlast.Select{Where: expr, From: sqlast.NamedTable{Name: "x"}})
	assert.Contains(t, sql, "NOT IN")
}

func TestLowerFilterUnknownColumn(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	te, err := cat.TableExpression("events")
	assert.NoError(t, err)

	f := node.Filter(node.NewTable("events"), "nonexistent", node.OpEq, "x")
	ctx := &Context{Catalog: cat, CodelistTableName: noCodelistTables}
	_, err = lowerFilter(f, "base", te, noJoin, ctx)
	assert.Error(t, err)
}

func TestLowerFilterCodelistNotReadyErrors(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	te, err := cat.TableExpression("events")
	assert.NoError(t, err)

	cl := node.NewCodelist("snomed", "1")
	f := node.Filter(node.NewTable("events"), "code", node.OpIn, cl)
	ctx := &Context{Catalog: cat, CodelistTableName: noCodelistTables}
	_, err = lowerFilter(f, "base", te, noJoin, ctx)
	assert.Error(t, err)
}

func TestLowerFilterCrossColumnJoinsOtherGroup(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	te, err := cat.TableExpression("events")
	assert.NoError(t, err)

	otherTable := node.NewTable("other")
	otherAgg := node.Count(otherTable, "code")

	f := node.Filter(node.NewTable("events"), "code", node.OpEq, otherAgg)

	ensureJoin := func(key dag.GroupKey) (string, error) { return "g1", nil }
	ctx := &Context{Catalog: cat, CodelistTableName: noCodelistTables}
	expr, err := lowerFilter(f, "base", te, ensureJoin, ctx)
	assert.NoError(t, err)

	sql := sqlast.Render(fakeLowerAdapter{}, &sqlast.Select{Where: expr, From: sqlast.NamedTable{Name: "x"}})
	assert.Contains(t, sql, "g1")
}

func TestCorrelatedColumnSubqueryRejectsNestedNonLiteralFilter(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
		"other":  {Columns: []string{"value"}},
	})
	te, err := cat.TableExpression("events")
	assert.NoError(t, err)

	innerTable := node.NewTable("other")
	cl := node.NewCodelist("snomed", "1")
	innerFiltered := node.Filter(innerTable, "value", node.OpIn, cl)
	otherCol := node.GetColumn(innerFiltered, "value")

	f := node.Filter(node.NewTable("events"), "code", node.OpEq, otherCol)
	ctx := &Context{Catalog: cat, CodelistTableName: noCodelistTables}
	_, err = lowerFilter(f, "base", te, noJoin, ctx)
	assert.Error(t, err)
}

func TestMembershipExprNegatesForNotInAndNe(t *testing.T) {
	lhs := sqlast.ColumnRef{Table: "base", Column: "code"}
	sub := sqlast.Literal{Value: "x"}

	exprIn := membershipExpr(lhs, node.OpIn, sub)
	_, isBinary := exprIn.(sqlast.BinaryOp)
	assert.True(t, isBinary)

	exprNotIn := membershipExpr(lhs, node.OpNotIn, sub)
	_, isNot := exprNotIn.(sqlast.Not)
	assert.True(t, isNot)

	exprNe := membershipExpr(lhs, node.OpNe, sub)
	_, isNot2 := exprNe.(sqlast.Not)
	assert.True(t, isNot2)
}

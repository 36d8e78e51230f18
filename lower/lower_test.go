package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohortsql/compiler/catalog"
	"github.com/cohortsql/compiler/dag"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

func testCatalog(t *testing.T, tables map[string]catalog.MockTable) catalog.BackendCatalog {
	t.Helper()
	cat, err := catalog.NewMockCatalog(tables, nil, 0, fakeLowerAdapter{})
	assert.NoError(t, err)
	return cat
}

func noGroupTables(dag.GroupKey) (string, bool) { return "", false }

func noCodelistTables(*node.Codelist) (string, bool) { return "", false }

func TestBuildColumnSelect(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code", "date"}},
	})
	table := node.NewTable("events")
	filtered := node.Filter(table, "code", node.OpEq, "123")
	col := node.GetColumn(filtered, "date")

	order := dag.Topological([]node.Node{col})
	groups := dag.OutputGroups(order)
	assert.Len(t, groups, 1)

	ctx := &Context{Catalog: cat, GroupTableName: noGroupTables, CodelistTableName: noCodelistTables}
	sel, err := Build(groups[0], ctx)
	assert.NoError(t, err)

	sql := sqlast.Render(fakeLowerAdapter{}, sel)
	assert.Contains(t, sql, "FROM events")
	assert.Contains(t, sql, "WHERE")
}

func TestBuildRowPickedUsesRowNumber(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code", "date", "value"}},
	})
	table := node.NewTable("events")
	filtered := node.Filter(table, "code", node.OpEq, "123")
	row := node.LastBy(filtered, "date")
	val := row.Get("value")

	order := dag.Topological([]node.Node{val})
	groups := dag.OutputGroups(order)

	ctx := &Context{Catalog: cat, GroupTableName: noGroupTables, CodelistTableName: noCodelistTables}
	sel, err := Build(groups[0], ctx)
	assert.NoError(t, err)

	sql := sqlast.Render(fakeLowerAdapter{}, sel)
	assert.Contains(t, sql, "ROW_NUMBER()")
	assert.Contains(t, sql, "DESC")
	assert.Contains(t, sql, "_row_num")
}

func TestBuildAggregateCount(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	table := node.NewTable("events")
	agg := node.Count(table, "code")

	order := dag.Topological([]node.Node{agg})
	groups := dag.OutputGroups(order)

	ctx := &Context{Catalog: cat, GroupTableName: noGroupTables, CodelistTableName: noCodelistTables}
	sel, err := Build(groups[0], ctx)
	assert.NoError(t, err)

	sql := sqlast.Render(fakeLowerAdapter{}, sel)
	assert.Contains(t, sql, "COUNT(")
	assert.Contains(t, sql, "GROUP BY")
}

func TestBuildExistsAggregateUsesLiteralTrue(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	table := node.NewTable("events")
	ex := node.Exists(table, "")

	order := dag.Topological([]node.Node{ex})
	groups := dag.OutputGroups(order)

	ctx := &Context{Catalog: cat, GroupTableName: noGroupTables, CodelistTableName: noCodelistTables}
	sel, err := Build(groups[0], ctx)
	assert.NoError(t, err)

	sql := sqlast.Render(fakeLowerAdapter{}, sel)
	assert.Contains(t, sql, "TRUE")
}

func TestBuildUnknownColumnErrors(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	table := node.NewTable("events")
	filtered := node.Filter(table, "nonexistent_column", node.OpEq, "x")
	col := node.GetColumn(filtered, "code")

	order := dag.Topological([]node.Node{col})
	groups := dag.OutputGroups(order)

	ctx := &Context{Catalog: cat, GroupTableName: noGroupTables, CodelistTableName: noCodelistTables}
	_, err := Build(groups[0], ctx)
	assert.Error(t, err)
}

func TestBuildOrNullWidensFilter(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}},
	})
	table := node.NewTable("events")
	filtered := node.FilterOrNull(table, "code", node.OpEq, "123")
	col := node.GetColumn(filtered, "code")

	order := dag.Topological([]node.Node{col})
	groups := dag.OutputGroups(order)

	ctx := &Context{Catalog: cat, GroupTableName: noGroupTables, CodelistTableName: noCodelistTables}
	sel, err := Build(groups[0], ctx)
	assert.NoError(t, err)

	sql := sqlast.Render(fakeLowerAdapter{}, sel)
	assert.Contains(t, sql, "IS NULL")
	assert.Contains(t, sql, " OR ")
}

func TestBuildCodelistFilterRestrictsBySystemColumn(t *testing.T) {
	cat := testCatalog(t, map[string]catalog.MockTable{
		"events": {Columns: []string{"code"}, HasSystemColumn: true},
	})
	cl := node.NewCodelist("snomed", "123", "456")
	table := node.NewTable("events")
	filtered := node.Filter(table, "code", node.OpIn, cl)
	col := node.GetColumn(filtered, "code")

	order := dag.Topological([]node.Node{col})
	groups := dag.OutputGroups(order)

	codelistNames := func(c *node.Codelist) (string, bool) {
		if c == cl {
			return "codelist_0", true
		}
		return "", false
	}

	ctx := &Context{Catalog: cat, GroupTableName: noGroupTables, CodelistTableName: codelistNames}
	sel, err := Build(groups[0], ctx)
	assert.NoError(t, err)

	sql := sqlast.Render(fakeLowerAdapter{}, sel)
	assert.Contains(t, sql, "codelist_0")
	assert.Contains(t, sql, "system")
}

package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohortsql/compiler/node"
)

func TestOutputGroupsPartitionsByKindAndSource(t *testing.T) {
	table := node.NewTable("events")
	filtered := node.Filter(table, "code", node.OpEq, "123")
	row := node.FirstBy(filtered, "date")

	a := row.Get("value")
	b := row.Get("other_value")
	agg := node.Aggregate(filtered, node.AggCount, "code")

	order := Topological([]node.Node{a, b, agg})
	groups := OutputGroups(order)

	assert.Len(t, groups, 2)

	var rowGroup, aggGroup *OutputGroup
	for _, g := range groups {
		switch g.Key.Kind {
		case node.KindValueFromRow:
			rowGroup = g
		case node.KindValueFromAggregate:
			aggGroup = g
		}
	}
	if assert.NotNil(t, rowGroup) {
		assert.Len(t, rowGroup.Outputs, 2)
	}
	if assert.NotNil(t, aggGroup) {
		assert.Len(t, aggGroup.Outputs, 1)
	}
}

func TestOutputGroupsExcludesCategoryAndFunctionNodes(t *testing.T) {
	table := node.NewTable("events")
	agg := node.Aggregate(table, node.AggCount, "code")
	cat := node.Categorise([]node.CategoryDefinition{
		{Label: "high", When: node.Gt(agg, 5)},
	}, "low")

	order := Topological([]node.Node{cat})
	groups := OutputGroups(order)

	for _, g := range groups {
		assert.NotEqual(t, node.KindValueFromCategory, g.Key.Kind)
		assert.NotEqual(t, node.KindValueFromFunction, g.Key.Kind)
	}
}

func TestOutputGroupsPreservesFirstAppearanceOrder(t *testing.T) {
	tableA := node.NewTable("a_events")
	tableB := node.NewTable("b_events")

	rowA := node.FirstBy(tableA, "date").Get("v")
	rowB := node.FirstBy(tableB, "date").Get("v")

	order := Topological([]node.Node{rowB, rowA})
	groups := OutputGroups(order)

	assert.Len(t, groups, 2)
	assert.Same(t, rowB.Source, groups[0].Key.Source)
	assert.Same(t, rowA.Source, groups[1].Key.Source)
}

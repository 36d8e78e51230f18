package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohortsql/compiler/node"
)

func TestCategoryParentsDeduplicatesSharedValue(t *testing.T) {
	table := node.NewTable("events")
	agg := node.Aggregate(table, node.AggCount, "code")

	defs := []node.CategoryDefinition{
		{Label: "high", When: node.Gt(agg, 5)},
		{Label: "mid", When: node.Gt(agg, 1)},
	}

	parents := CategoryParents(defs)
	assert.Len(t, parents, 1)
	assert.Same(t, agg, parents[0])
}

func TestCategoryParentsCollectsFromBothSides(t *testing.T) {
	table := node.NewTable("events")
	left := node.Aggregate(table, node.AggCount, "code")
	rightTable := node.NewTable("other_events")
	right := node.Aggregate(rightTable, node.AggCount, "code")

	defs := []node.CategoryDefinition{
		{Label: "both", When: node.Gt(left, right)},
	}
	parents := CategoryParents(defs)
	assert.Len(t, parents, 2)
}

func TestCategoryParentsUnwrapsFunctionArguments(t *testing.T) {
	tableA := node.NewTable("a")
	tableB := node.NewTable("b")
	startVal := node.FirstBy(tableA, "date").Get("date")
	endVal := node.FirstBy(tableB, "date").Get("date")
	fn := node.DateDifferenceInYears(startVal, endVal)

	defs := []node.CategoryDefinition{
		{Label: "young", When: node.Lt(fn, 18)},
	}
	parents := CategoryParents(defs)

	assert.Len(t, parents, 2)
	assert.NotContains(t, parents, node.Value(fn))
}

func TestCategoryParentsOrderIsDeterministic(t *testing.T) {
	tableA := node.NewTable("a_events")
	tableB := node.NewTable("b_events")
	aVal := node.FirstBy(tableA, "date").Get("a_value")
	bVal := node.FirstBy(tableB, "date").Get("b_value")

	defs1 := []node.CategoryDefinition{
		{Label: "x", When: node.Gt(bVal, 1)},
		{Label: "y", When: node.Gt(aVal, 1)},
	}
	defs2 := []node.CategoryDefinition{
		{Label: "y", When: node.Gt(aVal, 1)},
		{Label: "x", When: node.Gt(bVal, 1)},
	}

	parents1 := CategoryParents(defs1)
	parents2 := CategoryParents(defs2)

	assert.Equal(t, len(parents1), len(parents2))
	for i := range parents1 {
		assert.Same(t, parents1[i], parents2[i])
	}
}

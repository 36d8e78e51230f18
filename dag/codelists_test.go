package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cohortsql/compiler/node"
)

func TestCodelistsDeduplicatesByPointer(t *testing.T) {
	cl := node.NewCodelist("snomed", "123", "456")
	table := node.NewTable("events")
	filteredA := node.Filter(table, "code", node.OpIn, cl)
	filteredB := node.Filter(filteredA, "code", node.OpIn, cl)

	order := Topological([]node.Node{filteredB})
	codelists := Codelists(order)

	assert.Len(t, codelists, 1)
	assert.Same(t, cl, codelists[0])
}

func TestCodelistsDistinguishesSeparateInstances(t *testing.T) {
	clA := node.NewCodelist("snomed", "123")
	clB := node.NewCodelist("snomed", "123")
	table := node.NewTable("events")
	filteredA := node.Filter(table, "code", node.OpIn, clA)
	filteredB := node.Filter(table, "other_code", node.OpIn, clB)

	order := Topological([]node.Node{filteredA, filteredB})
	codelists := Codelists(order)

	assert.Len(t, codelists, 2)
}

func TestCodelistsEmptyWhenNoneReferenced(t *testing.T) {
	table := node.NewTable("events")
	filtered := node.Filter(table, "code", node.OpEq, "x")

	order := Topological([]node.Node{filtered})
	assert.Empty(t, Codelists(order))
}

package dag

import (
	"sort"

	"github.com/cohortsql/compiler/node"
)

// CategoryParents walks every comparator's LHS/RHS in definitions and
// collects the referenced Values. For a ValueFromFunction, its arguments
// are collected, not the function node itself -- the function is not a
// materializable group on its own. Results are sorted by
// (column_name, structural fingerprint of the value) to keep join order
// stable across runs regardless of map/slice construction order upstream.
//
// The fingerprint used here is of the whole value node rather than just its
// "source" field (the reference implementation sorts on repr(source)):
// doing so still produces a total, deterministic order and additionally
// disambiguates two parents with the same source but different function or
// column, which repr(source) alone would not.
func CategoryParents(definitions []node.CategoryDefinition) []node.Value {
	seen := make(map[node.Value]bool)
	var collected []node.Value

	var collect func(v node.Value)
	collect = func(v node.Value) {
		if v == nil {
			return
		}
		if fn, ok := v.(*node.ValueFromFunction); ok {
			for _, arg := range fn.Arguments {
				collect(arg)
			}
			return
		}
		if seen[v] {
			return
		}
		seen[v] = true
		collected = append(collected, v)
	}

	var walk func(c *node.Comparator)
	walk = func(c *node.Comparator) {
		if c == nil {
			return
		}
		if c.IsLeaf() {
			collect(c.LHS)
			if rhsVal, ok := c.RHS.(node.Value); ok {
				collect(rhsVal)
			}
			return
		}
		walk(c.Left)
		walk(c.Right)
	}

	for _, def := range definitions {
		walk(def.When)
	}

	sort.SliceStable(collected, func(i, j int) bool {
		ci, cj := columnNameOf(collected[i]), columnNameOf(collected[j])
		if ci != cj {
			return ci < cj
		}
		return node.Fingerprint(collected[i]) < node.Fingerprint(collected[j])
	})
	return collected
}

func columnNameOf(v node.Value) string {
	if on, ok := v.(node.OutputNode); ok {
		return on.OutputColumnName()
	}
	return ""
}

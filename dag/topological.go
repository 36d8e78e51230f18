// Package dag walks a set of output nodes and extracts the structure the SQL
// lowering stage needs: a stable topological order, the partition of
// output-kind nodes into groups that compile to a single SELECT each, the
// set of referenced codelists, and the deterministically-sorted parents of
// a categorise expression.
package dag

import "github.com/cohortsql/compiler/node"

// Topological returns every node reachable from roots, parents strictly
// before children. The traversal is depth-first post-order with a visited
// set; sibling order for a given node is: category-definition parents, then
// source, then value (if it is itself a node), then arguments in declared
// order. This ordering is stable across runs given the same construction
// order of roots, which is what makes the emitted SQL reproducible.
func Topological(roots []node.Node) []node.Node {
	seen := make(map[node.Node]bool)
	var order []node.Node
	var visit func(node.Node)
	visit = func(n node.Node) {
		if n == nil {
			return
		}
		// Interface values over a nil pointer are themselves non-nil;
		// guard against that happening from a zero-value Value field.
		if isNilNode(n) {
			return
		}
		if seen[n] {
			return
		}
		seen[n] = true
		for _, child := range children(n) {
			visit(child)
		}
		order = append(order, n)
	}
	for _, r := range roots {
		visit(r)
	}
	return order
}

func isNilNode(n node.Node) bool {
	switch v := n.(type) {
	case *node.Table:
		return v == nil
	case *node.FilteredTable:
		return v == nil
	case *node.Row:
		return v == nil
	case *node.Column:
		return v == nil
	case *node.ValueFromRow:
		return v == nil
	case *node.ValueFromAggregate:
		return v == nil
	case *node.ValueFromCategory:
		return v == nil
	case *node.ValueFromFunction:
		return v == nil
	case *node.Codelist:
		return v == nil
	default:
		return false
	}
}

// children returns the parent-pointer edges a node exposes, in the sibling
// order §4.1 mandates: category-definition parents, then source, then value
// (if a node), then arguments.
func children(n node.Node) []node.Node {
	switch v := n.(type) {
	case *node.ValueFromCategory:
		parents := CategoryParents(v.Definitions)
		out := make([]node.Node, 0, len(parents))
		for _, p := range parents {
			out = append(out, p)
		}
		return out
	case *node.FilteredTable:
		out := []node.Node{v.Source}
		if valNode, ok := v.Value.(node.Node); ok {
			out = append(out, valNode)
		}
		return out
	case *node.Row:
		return []node.Node{v.Source}
	case *node.Column:
		return []node.Node{v.Source}
	case *node.ValueFromRow:
		return []node.Node{v.Source}
	case *node.ValueFromAggregate:
		return []node.Node{v.Source}
	case *node.ValueFromFunction:
		out := make([]node.Node, 0, len(v.Arguments))
		for _, arg := range v.Arguments {
			out = append(out, arg)
		}
		return out
	default:
		// *node.Table, *node.Codelist: leaves, no parents.
		return nil
	}
}

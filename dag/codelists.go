package dag

import "github.com/cohortsql/compiler/node"

// Codelists returns the distinct Codelist nodes reachable in nodes, in
// first-appearance order. Distinctness is by pointer identity, consistent
// with the algebra's value-address semantics.
func Codelists(nodes []node.Node) []*node.Codelist {
	seen := make(map[*node.Codelist]bool)
	var out []*node.Codelist
	for _, n := range nodes {
		cl, ok := n.(*node.Codelist)
		if !ok || cl == nil || seen[cl] {
			continue
		}
		seen[cl] = true
		out = append(out, cl)
	}
	return out
}

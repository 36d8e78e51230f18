package dag

import "github.com/cohortsql/compiler/node"

// GroupKey identifies an output group: all output nodes sharing both the
// output kind and the source node's identity compile to one SELECT.
type GroupKey struct {
	Kind   node.Kind
	Source node.Node
}

// OutputGroup is the maximal set of output-kind nodes sharing a GroupKey.
type OutputGroup struct {
	Key     GroupKey
	Outputs []node.OutputNode
}

// OutputGroups partitions the output-producing nodes (kind Column,
// ValueFromRow, or ValueFromAggregate) found in nodes by (kind, source).
// Group insertion order follows first appearance in nodes, which in
// practice is the topological order from Topological. ValueFromCategory and
// ValueFromFunction nodes are output-kind (nameable as a result column) but
// never form their own group: they are computed in the final join from the
// groups their parents belong to.
func OutputGroups(nodes []node.Node) []*OutputGroup {
	index := make(map[GroupKey]*OutputGroup)
	var order []*OutputGroup
	for _, n := range nodes {
		switch n.Kind() {
		case node.KindColumn, node.KindValueFromRow, node.KindValueFromAggregate:
		default:
			continue
		}
		out, ok := n.(node.OutputNode)
		if !ok {
			continue
		}
		key := GroupKey{Kind: n.Kind(), Source: out.SourceNode()}
		g, found := index[key]
		if !found {
			g = &OutputGroup{Key: key}
			index[key] = g
			order = append(order, g)
		}
		g.Outputs = append(g.Outputs, out)
	}
	return order
}

package dag

import (
	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/node"
)

// Chain is the linearized Table -> Filter* -> Row? shape rooted under a
// group's source, in root-to-leaf order (Table is always the root *node.Table).
type Chain struct {
	Table   *node.Table
	Filters []*node.FilteredTable // root-to-leaf order: Filters[0] chains directly off Table
	Row     *node.Row             // nil unless the chain ends in a row-picker
}

// Linearize walks a TableNode's Source links up to a Table, per §4.2. It
// asserts the resulting shape is Table, Filter*, (Row?). kind identifies
// which output kind the chain is being linearized for: ValueFromRow
// requires a terminal Row; ValueFromAggregate and Column require the chain
// to end at a Filter or the bare Table.
func Linearize(kind node.Kind, source node.Node) (Chain, error) {
	var row *node.Row
	cur := source
	if kind == node.KindValueFromRow {
		r, ok := cur.(*node.Row)
		if !ok {
			return Chain{}, &cerrors.ShapeError{
				Detail: "ValueFromRow source must be a Row",
				Node:   source,
			}
		}
		row = r
		cur = r.Source
	}

	var filtersReversed []*node.FilteredTable
	for {
		switch t := cur.(type) {
		case *node.FilteredTable:
			filtersReversed = append(filtersReversed, t)
			cur = t.Source
		case *node.Table:
			filters := make([]*node.FilteredTable, len(filtersReversed))
			for i, f := range filtersReversed {
				filters[len(filtersReversed)-1-i] = f
			}
			return Chain{Table: t, Filters: filters, Row: row}, nil
		default:
			return Chain{}, &cerrors.ShapeError{
				Detail: "chain does not terminate in a Table",
				Node:   cur,
			}
		}
	}
}

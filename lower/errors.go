package lower

import (
	"fmt"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/node"
)

func codelistNotReadyError(cl *node.Codelist) error {
	return &cerrors.CodelistError{Detail: fmt.Sprintf("codelist table for system %q is not yet materialized", cl.System)}
}

func shapeErrorNestedFilterValue(f *node.FilteredTable, v node.Node) error {
	return &cerrors.ShapeError{
		Detail: fmt.Sprintf("correlated Column subquery filter on %q has a nested non-literal filter value, which is unsupported", f.Column),
		Node:   v,
	}
}

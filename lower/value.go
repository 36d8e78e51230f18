package lower

import (
	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/dag"
	"github.com/cohortsql/compiler/dialect"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// GroupTableLookup resolves an already-materialized output group to its
// interim table name, for cross-group references in a categorise or
// function expression evaluated in the final join.
type GroupTableLookup func(dag.GroupKey) (string, bool)

// ValueExpr lowers any Value to a SQL expression plus the set of output
// groups it reads from (so the caller -- the planner building the final
// join -- knows which interim tables must be joined for this expression to
// resolve). Column/ValueFromRow/ValueFromAggregate lower to a direct column
// reference into their own group's interim table; ValueFromCategory lowers
// to a CASE expression; ValueFromFunction lowers via the dialect's
// registered function strategy.
func ValueExpr(v node.Value, groupTables GroupTableLookup, adapter dialect.Adapter) (sqlast.Expr, []dag.GroupKey, error) {
	switch val := v.(type) {
	case *node.ValueFromCategory:
		return categoryExpr(val, groupTables, adapter)
	case *node.ValueFromFunction:
		return functionExpr(val, groupTables, adapter)
	default:
		out, ok := v.(node.OutputNode)
		if !ok {
			return nil, nil, &cerrors.ShapeError{Detail: "value is not a recognized output-producing node", Node: v}
		}
		key := dag.GroupKey{Kind: v.Kind(), Source: out.SourceNode()}
		table, ok := groupTables(key)
		if !ok {
			return nil, nil, &cerrors.ShapeError{Detail: "referenced output group has not been materialized", Node: v}
		}
		return sqlast.ColumnRef{Table: table, Column: out.OutputColumnName()}, []dag.GroupKey{key}, nil
	}
}

func functionExpr(fn *node.ValueFromFunction, groupTables GroupTableLookup, adapter dialect.Adapter) (sqlast.Expr, []dag.GroupKey, error) {
	var refs []dag.GroupKey
	args := make([]sqlast.Expr, 0, len(fn.Arguments))
	for _, arg := range fn.Arguments {
		expr, argRefs, err := ValueExpr(arg, groupTables, adapter)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, expr)
		refs = append(refs, argRefs...)
	}
	expr, err := adapter.LowerFunction(fn.FuncKind, args)
	if err != nil {
		return nil, nil, err
	}
	return expr, refs, nil
}

func categoryExpr(cat *node.ValueFromCategory, groupTables GroupTableLookup, adapter dialect.Adapter) (sqlast.Expr, []dag.GroupKey, error) {
	var refs []dag.GroupKey
	whens := make([]sqlast.CaseWhen, 0, len(cat.Definitions))
	for _, def := range cat.Definitions {
		cond, condRefs, err := comparatorExpr(def.When, groupTables, adapter)
		if err != nil {
			return nil, nil, err
		}
		refs = append(refs, condRefs...)
		whens = append(whens, sqlast.CaseWhen{Cond: cond, Result: sqlast.Literal{Value: def.Label}})
	}
	return sqlast.CaseExpr{Whens: whens, Else: sqlast.Literal{Value: cat.Default}}, refs, nil
}

// comparatorExpr lowers a Comparator's Boolean tree, per §4.3's categorise
// lowering: leaves bind lhs OP rhs, interior nodes apply AND/OR, Negated
// wraps with NOT.
func comparatorExpr(c *node.Comparator, groupTables GroupTableLookup, adapter dialect.Adapter) (sqlast.Expr, []dag.GroupKey, error) {
	if c == nil {
		return nil, nil, &cerrors.ShapeError{Detail: "categorise definition has a nil comparator"}
	}
	var expr sqlast.Expr
	var refs []dag.GroupKey

	if c.IsLeaf() {
		if c.LHS == nil {
			return nil, nil, &cerrors.ShapeError{Detail: "category comparator LHS must be a Value"}
		}
		lhsExpr, lhsRefs, err := ValueExpr(c.LHS, groupTables, adapter)
		if err != nil {
			return nil, nil, err
		}
		refs = append(refs, lhsRefs...)

		var rhsExpr sqlast.Expr
		if rhsVal, ok := c.RHS.(node.Value); ok {
			var rhsRefs []dag.GroupKey
			rhsExpr, rhsRefs, err = ValueExpr(rhsVal, groupTables, adapter)
			if err != nil {
				return nil, nil, err
			}
			refs = append(refs, rhsRefs...)
		} else {
			rhsExpr = sqlast.Literal{Value: c.RHS}
		}
		expr = binaryExpr(lhsExpr, c.Operator, rhsExpr)
	} else {
		leftExpr, leftRefs, err := comparatorExpr(c.Left, groupTables, adapter)
		if err != nil {
			return nil, nil, err
		}
		rightExpr, rightRefs, err := comparatorExpr(c.Right, groupTables, adapter)
		if err != nil {
			return nil, nil, err
		}
		refs = append(refs, leftRefs...)
		refs = append(refs, rightRefs...)
		op := "AND"
		if c.Connector == node.ConnOr {
			op = "OR"
		}
		expr = sqlast.BinaryOp{Left: leftExpr, Op: op, Right: rightExpr}
	}

	if c.Negated {
		expr = sqlast.Not{Expr: expr}
	}
	return expr, refs, nil
}

package lower

import (
	"github.com/cohortsql/compiler/catalog"
	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/dag"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// lowerFilter lowers one FilteredTable's predicate to a Boolean expression
// against baseAlias, per §4.3 step 2. The or_null widening is applied by
// the caller, since it composes with whichever branch below fires. te is
// the base table's resolved expression, needed to validate the filtered
// column exists and (for Codelist filters) to detect a `system` column.
func lowerFilter(f *node.FilteredTable, baseAlias string, te catalog.TableExpression, ensureJoin func(dag.GroupKey) (string, error), ctx *Context) (sqlast.Expr, error) {
	if err := checkColumn(te, f.Column); err != nil {
		return nil, err
	}
	lhs := sqlast.ColumnRef{Table: baseAlias, Column: f.Column}

	switch v := f.Value.(type) {
	case *node.Codelist:
		sub, err := codelistSubquery(v, baseAlias, te, ctx)
		if err != nil {
			return nil, err
		}
		return membershipExpr(lhs, f.Operator, sqlast.ScalarSubquery{Query: sub}), nil

	case *node.Column:
		sub, err := correlatedColumnSubquery(v, baseAlias, ctx)
		if err != nil {
			return nil, err
		}
		return membershipExpr(lhs, f.Operator, sqlast.ScalarSubquery{Query: sub}), nil

	case []any:
		values := make([]sqlast.Expr, len(v))
		for i, item := range v {
			values[i] = sqlast.Literal{Value: item}
		}
		return sqlast.InList{Expr: lhs, Values: values, Negated: f.Operator == node.OpNotIn}, nil

	case node.Value:
		key := dag.GroupKey{Kind: v.Kind(), Source: valueSourceNode(v)}
		alias, err := ensureJoin(key)
		if err != nil {
			return nil, err
		}
		col := columnNameFor(v)
		rhs := sqlast.ColumnRef{Table: alias, Column: col}
		return binaryExpr(lhs, f.Operator, rhs), nil

	default:
		return binaryExpr(lhs, f.Operator, sqlast.Literal{Value: v}), nil
	}
}

// codelistSubquery builds the `SELECT code FROM codelist_table_k` scalar
// subquery. When the filtered table exposes a `system` column, per §4.3 the
// subquery is additionally restricted to `<baseAlias>.system =
// <codelist.system>` so that a code shared across coding systems doesn't
// spuriously match.
func codelistSubquery(cl *node.Codelist, baseAlias string, te catalog.TableExpression, ctx *Context) (*sqlast.Select, error) {
	tableName, ok := ctx.CodelistTableName(cl)
	if !ok {
		return nil, codelistNotReadyError(cl)
	}
	sub := &sqlast.Select{
		Columns: []sqlast.SelectColumn{{Expr: sqlast.ColumnRef{Column: "code"}}},
		From:    sqlast.NamedTable{Name: tableName},
	}
	if te.HasSystemColumn {
		sub.Where = sqlast.BinaryOp{
			Left: sqlast.ColumnRef{Table: baseAlias, Column: "system"}, Op: "=", Right: sqlast.Literal{Value: cl.System},
		}
	}
	return sub, nil
}

// checkColumn validates that column is exposed by te, returning
// cerrors.UnknownColumnError otherwise.
func checkColumn(te catalog.TableExpression, column string) error {
	if te.Columns != nil && !te.Columns[column] {
		return &cerrors.UnknownColumnError{Table: te.Name, Column: column}
	}
	return nil
}

// correlatedColumnSubquery implements §4.3's `SELECT col FROM other WHERE
// other.patient_id = base.patient_id` for a Column used as a filter value.
// Any filters already applied to the column's own source chain are carried
// into the subquery's WHERE as literal-valued predicates; a further
// Value/Column/Codelist nested inside that chain is out of scope for this
// correlated form and is rejected with a ShapeError rather than silently
// ignored.
func correlatedColumnSubquery(col *node.Column, outerAlias string, ctx *Context) (*sqlast.Select, error) {
	chain, err := dag.Linearize(node.KindColumn, col.Source)
	if err != nil {
		return nil, err
	}
	te, err := ctx.Catalog.TableExpression(chain.Table.Name)
	if err != nil {
		return nil, err
	}
	if err := checkColumn(te, col.Column); err != nil {
		return nil, err
	}
	sub := &sqlast.Select{
		Columns: []sqlast.SelectColumn{{Expr: sqlast.ColumnRef{Table: "other", Column: col.Column}}},
		From:    sqlast.NamedTable{Name: te.Name, Alias: "other"},
	}
	where := sqlast.Expr(sqlast.BinaryOp{
		Left:  sqlast.ColumnRef{Table: "other", Column: te.PatientIDColumn},
		Op:    "=",
		Right: sqlast.ColumnRef{Table: outerAlias, Column: "patient_id"},
	})
	for _, f := range chain.Filters {
		lit, ok := f.Value.(node.Node)
		if ok {
			return nil, shapeErrorNestedFilterValue(f, lit)
		}
		otherCol := sqlast.ColumnRef{Table: "other", Column: f.Column}
		var pred sqlast.Expr
		if items, isList := f.Value.([]any); isList {
			values := make([]sqlast.Expr, len(items))
			for i, item := range items {
				values[i] = sqlast.Literal{Value: item}
			}
			pred = sqlast.InList{Expr: otherCol, Values: values, Negated: f.Operator == node.OpNotIn}
		} else {
			pred = binaryExpr(otherCol, f.Operator, sqlast.Literal{Value: f.Value})
		}
		where = sqlast.And(where, pred)
	}
	sub.Where = where
	return sub, nil
}

func membershipExpr(lhs sqlast.Expr, op node.Operator, sub sqlast.Expr) sqlast.Expr {
	switch op {
	case node.OpNotIn, node.OpNe:
		return sqlast.Not{Expr: sqlast.BinaryOp{Left: lhs, Op: "IN", Right: sub}}
	default:
		return sqlast.BinaryOp{Left: lhs, Op: "IN", Right: sub}
	}
}

func binaryExpr(lhs sqlast.Expr, op node.Operator, rhs sqlast.Expr) sqlast.Expr {
	if op == node.OpIn || op == node.OpNotIn {
		// rhs here is a single join/subquery target being compared, not a
		// literal list; fall back to IN/NOT IN against it directly.
		return membershipExpr(lhs, op, rhs)
	}
	return sqlast.BinaryOp{Left: lhs, Op: sqlOperator(op), Right: rhs}
}

func sqlOperator(op node.Operator) string {
	switch op {
	case node.OpEq:
		return "="
	case node.OpNe:
		return "<>"
	case node.OpLt:
		return "<"
	case node.OpLe:
		return "<="
	case node.OpGt:
		return ">"
	case node.OpGe:
		return ">="
	default:
		return "="
	}
}

func valueSourceNode(v node.Value) node.Node {
	if on, ok := v.(node.OutputNode); ok {
		return on.SourceNode()
	}
	return v
}

func columnNameFor(v node.Value) string {
	if on, ok := v.(node.OutputNode); ok {
		return on.OutputColumnName()
	}
	return ""
}

// Package lower implements SQL Lowering (§4.3): turning one output group's
// linear node chain into a dialect-neutral sqlast.Select, including filter,
// row-picker, and aggregate lowering. Categorise and function lowering
// (which read across group boundaries rather than compiling to their own
// SELECT) live in value.go and are invoked by the planner while building
// the final join.
package lower

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cohortsql/compiler/catalog"
	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/dag"
	"github.com/cohortsql/compiler/dialect"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// Context carries the lookups Build needs that go beyond the group itself:
// the catalog for table resolution, the dialect adapter for function
// lowering, and the already-assigned interim/codelist table names for
// groups and codelists materialized earlier in the plan.
type Context struct {
	Catalog           catalog.BackendCatalog
	Adapter           dialect.Adapter
	GroupTableName    func(dag.GroupKey) (string, bool)
	CodelistTableName func(*node.Codelist) (string, bool)
}

// Build lowers one output group to a dialect-neutral SELECT.
func Build(group *dag.OutputGroup, ctx *Context) (*sqlast.Select, error) {
	chain, err := dag.Linearize(group.Key.Kind, group.Key.Source)
	if err != nil {
		return nil, err
	}
	te, err := ctx.Catalog.TableExpression(chain.Table.Name)
	if err != nil {
		return nil, err
	}

	base := &sqlast.Select{From: sqlast.NamedTable{Name: te.Name, Alias: "base"}}

	joinAliasForKey := make(map[dag.GroupKey]string)
	joinIdx := 0
	ensureJoin := func(key dag.GroupKey) (string, error) {
		if alias, ok := joinAliasForKey[key]; ok {
			return alias, nil
		}
		tableName, ok := ctx.GroupTableName(key)
		if !ok {
			return "", fmt.Errorf("lower: group table for (%s, %p) is not yet materialized", key.Kind, key.Source)
		}
		joinIdx++
		alias := fmt.Sprintf("g%d", joinIdx)
		base.Joins = append(base.Joins, sqlast.Join{
			Kind:  sqlast.JoinLeft,
			Table: sqlast.NamedTable{Name: tableName, Alias: alias},
			On: sqlast.BinaryOp{
				Left:  sqlast.ColumnRef{Table: "base", Column: te.PatientIDColumn},
				Op:    "=",
				Right: sqlast.ColumnRef{Table: alias, Column: "patient_id"},
			},
		})
		joinAliasForKey[key] = alias
		return alias, nil
	}

	var where sqlast.Expr
	for _, f := range chain.Filters {
		cond, err := lowerFilter(f, "base", te, ensureJoin, ctx)
		if err != nil {
			return nil, err
		}
		if f.OrNull {
			cond = sqlast.Or(cond, sqlast.BinaryOp{
				Left: sqlast.ColumnRef{Table: "base", Column: f.Column}, Op: "IS", Right: sqlast.Raw{SQL: "NULL"},
			})
		}
		where = sqlast.And(where, cond)
	}
	base.Where = where

	for _, o := range group.Outputs {
		if col := outputSourceColumn(o); col != "" {
			if err := checkColumn(te, col); err != nil {
				return nil, err
			}
		}
	}

	switch group.Key.Kind {
	case node.KindValueFromAggregate:
		return buildAggregate(base, group, te)
	case node.KindColumn:
		return buildColumnSelect(base, group, te)
	case node.KindValueFromRow:
		return buildRowPicked(base, group, chain, te)
	default:
		return nil, &cerrors.ShapeError{Detail: fmt.Sprintf("output group has unsupported kind %s", group.Key.Kind)}
	}
}

// outputSourceColumn returns the base-table column name an output node
// reads, which for ValueFromAggregate is distinct from its
// OutputColumnName() (a derived "<col>_<fn>" label). Exists aggregates have
// no real source column to validate (patient_id is always present).
func outputSourceColumn(o node.OutputNode) string {
	switch v := o.(type) {
	case *node.ValueFromAggregate:
		if v.Function == node.AggExists {
			return ""
		}
		return v.Column
	default:
		return o.OutputColumnName()
	}
}

func outputColumns(outputs []node.OutputNode) []string {
	set := make(map[string]bool)
	for _, o := range outputs {
		var col string
		switch v := o.(type) {
		case *node.Column:
			col = v.Column
		case *node.ValueFromRow:
			col = v.Column
		}
		if col != "" {
			set[col] = true
		}
	}
	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func buildColumnSelect(base *sqlast.Select, group *dag.OutputGroup, te catalog.TableExpression) (*sqlast.Select, error) {
	cols := outputColumns(group.Outputs)
	selCols := []sqlast.SelectColumn{{Expr: sqlast.ColumnRef{Table: "base", Column: te.PatientIDColumn}, Alias: "patient_id"}}
	for _, c := range cols {
		selCols = append(selCols, sqlast.SelectColumn{Expr: sqlast.ColumnRef{Table: "base", Column: c}})
	}
	base.Columns = selCols
	return base, nil
}

func buildAggregate(base *sqlast.Select, group *dag.OutputGroup, te catalog.TableExpression) (*sqlast.Select, error) {
	cols := []sqlast.SelectColumn{{Expr: sqlast.ColumnRef{Table: "base", Column: te.PatientIDColumn}, Alias: "patient_id"}}
	for _, o := range group.Outputs {
		agg, ok := o.(*node.ValueFromAggregate)
		if !ok {
			return nil, &cerrors.ShapeError{Detail: "ValueFromAggregate group contains a non-aggregate output"}
		}
		var expr sqlast.Expr
		if agg.Function == node.AggExists {
			expr = sqlast.Literal{Value: true}
		} else {
			expr = sqlast.FuncCall{
				Name: strings.ToUpper(string(agg.Function)),
				Args: []sqlast.Expr{sqlast.ColumnRef{Table: "base", Column: agg.Column}},
			}
		}
		cols = append(cols, sqlast.SelectColumn{Expr: expr, Alias: agg.OutputColumnName()})
	}
	base.Columns = cols
	base.GroupBy = []sqlast.Expr{sqlast.ColumnRef{Table: "base", Column: te.PatientIDColumn}}
	return base, nil
}

func buildRowPicked(base *sqlast.Select, group *dag.OutputGroup, chain dag.Chain, te catalog.TableExpression) (*sqlast.Select, error) {
	cols := outputColumns(group.Outputs)
	inner := *base
	innerCols := []sqlast.SelectColumn{{Expr: sqlast.ColumnRef{Table: "base", Column: te.PatientIDColumn}, Alias: "patient_id"}}
	for _, c := range cols {
		innerCols = append(innerCols, sqlast.SelectColumn{Expr: sqlast.ColumnRef{Table: "base", Column: c}})
	}
	var orderTerms []sqlast.OrderTerm
	for _, sc := range chain.Row.SortColumns {
		orderTerms = append(orderTerms, sqlast.OrderTerm{Expr: sqlast.ColumnRef{Table: "base", Column: sc}, Desc: chain.Row.Descending})
	}
	innerCols = append(innerCols, sqlast.SelectColumn{
		Expr: sqlast.RowNumber{
			PartitionBy: []sqlast.Expr{sqlast.ColumnRef{Table: "base", Column: te.PatientIDColumn}},
			OrderBy:     orderTerms,
		},
		Alias: "_row_num",
	})
	inner.Columns = innerCols

	outerCols := []sqlast.SelectColumn{{Expr: sqlast.ColumnRef{Table: "picked", Column: "patient_id"}}}
	for _, c := range cols {
		outerCols = append(outerCols, sqlast.SelectColumn{Expr: sqlast.ColumnRef{Table: "picked", Column: c}})
	}
	return &sqlast.Select{
		Columns: outerCols,
		From:    sqlast.Subquery{Query: &inner, Alias: "picked"},
		Where: sqlast.BinaryOp{
			Left: sqlast.ColumnRef{Table: "picked", Column: "_row_num"}, Op: "=", Right: sqlast.Literal{Value: 1},
		},
	}, nil
}

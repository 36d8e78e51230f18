// Package planner implements the Plan Assembler (§4.4): it sequences
// codelist-table creation, per-output-group interim-table materialization,
// and the final join query into an ordered list of SQL statements, the way
// the reference query engine's get_queries/create_codelist_tables/
// create_output_group_tables/generate_results_query pipeline does
// (_examples/original_source/cohortextractor/query_engines/base_sql.py).
package planner

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/cohortsql/compiler/catalog"
	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/dag"
	"github.com/cohortsql/compiler/dialect"
	"github.com/cohortsql/compiler/lower"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/sqlast"
)

// maxCodeLength mirrors the canonical type map's "code" entry
// (dialect.canonicalTypeMap's VARCHAR(18)): the hard ceiling a codelist's
// longest code may not exceed, per §7's CodelistError "code longer than the
// column allows".
const maxCodeLength = 18

// Column is one declared output column: a name plus the Value node that
// produces it (a ValueFromRow, ValueFromAggregate, ValueFromCategory, or
// ValueFromFunction -- a bare Column cannot be a final output, since it
// does not guarantee one row per patient). The input is a slice, not a
// map, because §8's determinism property requires the final projection's
// column order to equal input insertion order -- something a Go map
// cannot preserve.
type Column struct {
	Name string
	Node node.Value
}

// Statement is one emitted SQL statement plus the interim table it creates,
// if any (empty for the final join, which creates nothing).
type Statement struct {
	SQL          string
	CreatesTable string
}

// Plan is the ordered statement list plus metadata describing the final
// result's shape, per §6's "Output from the core".
type Plan struct {
	Statements []Statement
	// ResultColumns is patient_id first, then each declared column in
	// insertion order.
	ResultColumns []string
	// CreatedTables lists every interim/codelist table a dialect's
	// PostExecuteCleanup hook should drop.
	CreatedTables []string
}

// Assemble builds the full statement list for columns against cat's
// dialect. population is the node driving WHERE population = TRUE; if nil,
// the core synthesizes ValueFromAggregate(Table("practice_registrations"),
// "exists", "patient_id") per §3's mandatory-population invariant.
func Assemble(columns []Column, population node.Value, cat catalog.BackendCatalog) (*Plan, error) {
	adapter := cat.DialectAdapter()
	if adapter == nil {
		return nil, &cerrors.DialectError{Dialect: "", Hook: "DialectAdapter"}
	}
	if population == nil {
		population = node.Exists(node.NewTable("practice_registrations"), "patient_id")
	}

	roots := make([]node.Node, 0, len(columns)+1)
	for _, c := range columns {
		roots = append(roots, c.Node)
	}
	roots = append(roots, population)

	topo := dag.Topological(roots)
	groups := dag.OutputGroups(topo)
	codelists := dag.Codelists(topo)

	slog.Debug("planner: analyzed DAG", "nodes", len(topo), "groups", len(groups), "codelists", len(codelists))

	var statements []Statement
	var createdTables []string

	codelistTableNames := make(map[*node.Codelist]string, len(codelists))
	for i, cl := range codelists {
		stmts, name, err := BuildCodelistStatements(cl, i, adapter)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmts...)
		codelistTableNames[cl] = name
		createdTables = append(createdTables, name)
		slog.Debug("planner: materialized codelist table", "table", name, "system", cl.System, "codes", len(cl.Codes))
	}

	groupTableNames := make(map[dag.GroupKey]string, len(groups))
	groupTableLookup := func(k dag.GroupKey) (string, bool) {
		v, ok := groupTableNames[k]
		return v, ok
	}
	codelistTableLookup := func(cl *node.Codelist) (string, bool) {
		v, ok := codelistTableNames[cl]
		return v, ok
	}
	lowerCtx := &lower.Context{
		Catalog:           cat,
		Adapter:           adapter,
		GroupTableName:    groupTableLookup,
		CodelistTableName: codelistTableLookup,
	}

	for i, g := range groups {
		sel, err := lower.Build(g, lowerCtx)
		if err != nil {
			return nil, err
		}
		name := adapter.TempTableName(fmt.Sprintf("group_table_%d", i))
		statements = append(statements, Statement{
			SQL:          adapter.WriteQueryToTable(name, sel),
			CreatesTable: name,
		})
		groupTableNames[g.Key] = name
		createdTables = append(createdTables, name)
		slog.Debug("planner: materialized output group", "table", name, "kind", g.Key.Kind, "outputs", len(g.Outputs))
	}

	finalSQL, resultColumns, err := BuildFinalQuery(columns, population, groupTableLookup, adapter)
	if err != nil {
		return nil, err
	}
	statements = append(statements, Statement{SQL: finalSQL})

	return &Plan{
		Statements:    statements,
		ResultColumns: resultColumns,
		CreatedTables: createdTables,
	}, nil
}

// BuildFinalQuery implements §4.4 step 3: start from the table(s) the
// population value reads, filter WHERE population = TRUE, then LEFT JOIN in
// whatever interim table(s) each declared column's value reads from.
// Exported for the same reason as BuildCodelistStatements above.
func BuildFinalQuery(columns []Column, population node.Value, groupTables lower.GroupTableLookup, adapter dialect.Adapter) (string, []string, error) {
	popExpr, popRefs, err := lower.ValueExpr(population, groupTables, adapter)
	if err != nil {
		return "", nil, err
	}
	if len(popRefs) == 0 {
		return "", nil, &cerrors.ShapeError{Detail: "population value does not resolve to any materialized output group"}
	}

	driving, ok := groupTables(popRefs[0])
	if !ok {
		return "", nil, &cerrors.ShapeError{Detail: "population's driving output group has not been materialized"}
	}

	joined := map[string]bool{driving: true}
	var joins []sqlast.Join
	ensureJoin := func(table string) {
		if joined[table] {
			return
		}
		joined[table] = true
		joins = append(joins, sqlast.Join{
			Kind:  sqlast.JoinLeft,
			Table: sqlast.NamedTable{Name: table},
			On: sqlast.BinaryOp{
				Left:  sqlast.ColumnRef{Table: driving, Column: "patient_id"},
				Op:    "=",
				Right: sqlast.ColumnRef{Table: table, Column: "patient_id"},
			},
		})
	}
	for _, key := range popRefs[1:] {
		table, ok := groupTables(key)
		if !ok {
			return "", nil, &cerrors.ShapeError{Detail: "population references an output group that has not been materialized"}
		}
		ensureJoin(table)
	}

	cols := []sqlast.SelectColumn{{Expr: sqlast.ColumnRef{Table: driving, Column: "patient_id"}, Alias: "patient_id"}}
	resultColumns := []string{"patient_id"}
	for _, c := range columns {
		expr, refs, err := lower.ValueExpr(c.Node, groupTables, adapter)
		if err != nil {
			return "", nil, err
		}
		for _, key := range refs {
			table, ok := groupTables(key)
			if !ok {
				return "", nil, &cerrors.ShapeError{Detail: fmt.Sprintf("column %q references an output group that has not been materialized", c.Name)}
			}
			ensureJoin(table)
		}
		cols = append(cols, sqlast.SelectColumn{Expr: expr, Alias: c.Name})
		resultColumns = append(resultColumns, c.Name)
	}

	final := &sqlast.Select{
		Columns: cols,
		From:    sqlast.NamedTable{Name: driving},
		Joins:   joins,
		Where:   sqlast.BinaryOp{Left: popExpr, Op: "=", Right: sqlast.Literal{Value: true}},
	}
	return sqlast.Render(adapter, final), resultColumns, nil
}

// sortedCodeLengths is only used to pick a deterministic max when codes
// share a length, so the generated VARCHAR(n) is reproducible regardless of
// the codelist's internal slice order.
func sortedCodeLengths(codes []string) []int {
	lens := make([]int, len(codes))
	for i, c := range codes {
		lens[i] = len(c)
	}
	sort.Ints(lens)
	return lens
}

// Package compiler ties QA, DA, SL, and PA together behind the
// Empty -> Analyzed -> Lowered -> Assembled state machine (§4.5's
// "Compiler instance lifecycle"), the way database/database.go's Database
// type gates dump/apply behind its own connection state, and
// database/logger.go's injectable Logger wraps a swappable sink around a
// fixed call shape.
package compiler

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/k0kubun/pp/v3"

	"github.com/cohortsql/compiler/catalog"
	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/dag"
	"github.com/cohortsql/compiler/lower"
	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/planner"
)

// State is one stage of the compiler's single-shot lifecycle. Each
// transition method below only succeeds from the state that precedes it;
// a Compiler is meant for one compile and is not reusable once Assembled.
type State int

const (
	StateEmpty State = iota
	StateAnalyzed
	StateLowered
	StateAssembled
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAnalyzed:
		return "analyzed"
	case StateLowered:
		return "lowered"
	case StateAssembled:
		return "assembled"
	default:
		return "unknown"
	}
}

// Column is one declared output column, re-exported from planner so
// callers need only import compiler.
type Column = planner.Column

// Plan is the finished statement list, re-exported from planner.
type Plan = planner.Plan

// Compiler drives one cohort spec from a raw column list through to an
// ordered statement plan. Build with New, then call Analyze, Lower, and
// Assemble in order -- or Compile, which runs all three.
type Compiler struct {
	cat    catalog.BackendCatalog
	logger *slog.Logger
	trace  *pp.PrettyPrinter

	state State

	columns    []Column
	population node.Value

	topo      []node.Node
	groups    []*dag.OutputGroup
	codelists []*node.Codelist

	codelistTableNames map[*node.Codelist]string
	groupTableNames    map[dag.GroupKey]string
	statements         []planner.Statement
	createdTables      []string
}

// Option configures a Compiler at construction time.
type Option func(*Compiler)

// WithLogger overrides the package default of slog.Default(), mirroring
// database/logger.go's injectable-Logger field.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithTraceSink routes a pp/v3 pretty-print of the DAG, the output
// groups, and every emitted SQL statement to w as each phase completes,
// replacing an environment-variable debug toggle with an injected sink
// (§9's "Debug trace" design note).
func WithTraceSink(w io.Writer) Option {
	return func(c *Compiler) {
		p := pp.New()
		p.SetOutput(w)
		c.trace = p
	}
}

// New builds a Compiler against cat, which supplies both table
// resolution and the dialect adapter (catalog.BackendCatalog.DialectAdapter).
func New(cat catalog.BackendCatalog, opts ...Option) *Compiler {
	c := &Compiler{cat: cat, logger: slog.Default(), state: StateEmpty}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State reports the compiler's current lifecycle stage.
func (c *Compiler) State() State { return c.state }

// Analyze runs the DAG Analyzer (§4.1): topological ordering,
// output-group partitioning, and codelist extraction over columns plus
// population. If population is nil, the core synthesizes the mandatory
// practice_registrations existence check per §3.
func (c *Compiler) Analyze(columns []Column, population node.Value) error {
	if c.state != StateEmpty {
		return fmt.Errorf("compiler: Analyze requires state %s, got %s", StateEmpty, c.state)
	}
	if population == nil {
		population = node.Exists(node.NewTable("practice_registrations"), "patient_id")
	}

	roots := make([]node.Node, 0, len(columns)+1)
	for _, col := range columns {
		roots = append(roots, col.Node)
	}
	roots = append(roots, population)

	c.columns = columns
	c.population = population
	c.topo = dag.Topological(roots)
	c.groups = dag.OutputGroups(c.topo)
	c.codelists = dag.Codelists(c.topo)
	c.state = StateAnalyzed

	c.logger.Debug("compiler: analyzed", "nodes", len(c.topo), "groups", len(c.groups), "codelists", len(c.codelists))
	if c.trace != nil {
		c.trace.Println("-- analyzed --")
		c.trace.Println(c.groups)
		c.trace.Println(c.codelists)
	}
	return nil
}

// Lower runs codelist materialization (§4.4 step 1) and SQL Lowering
// (§4.3) for every output group (§4.4 step 2), producing every statement
// but the final join.
func (c *Compiler) Lower() error {
	if c.state != StateAnalyzed {
		return fmt.Errorf("compiler: Lower requires state %s, got %s", StateAnalyzed, c.state)
	}
	adapter := c.cat.DialectAdapter()
	if adapter == nil {
		return &cerrors.DialectError{Dialect: "", Hook: "DialectAdapter"}
	}

	c.codelistTableNames = make(map[*node.Codelist]string, len(c.codelists))
	for i, cl := range c.codelists {
		stmts, name, err := planner.BuildCodelistStatements(cl, i, adapter)
		if err != nil {
			return err
		}
		c.statements = append(c.statements, stmts...)
		c.codelistTableNames[cl] = name
		c.createdTables = append(c.createdTables, name)
		c.logger.Debug("compiler: materialized codelist table", "table", name, "system", cl.System, "codes", len(cl.Codes))
		if c.trace != nil {
			for _, s := range stmts {
				c.trace.Println(s.SQL)
			}
		}
	}

	c.groupTableNames = make(map[dag.GroupKey]string, len(c.groups))
	groupLookup := func(k dag.GroupKey) (string, bool) { v, ok := c.groupTableNames[k]; return v, ok }
	codelistLookup := func(cl *node.Codelist) (string, bool) { v, ok := c.codelistTableNames[cl]; return v, ok }
	lowerCtx := &lower.Context{
		Catalog:           c.cat,
		Adapter:           adapter,
		GroupTableName:    groupLookup,
		CodelistTableName: codelistLookup,
	}

	for i, g := range c.groups {
		sel, err := lower.Build(g, lowerCtx)
		if err != nil {
			return err
		}
		name := adapter.TempTableName(fmt.Sprintf("group_table_%d", i))
		sql := adapter.WriteQueryToTable(name, sel)
		c.statements = append(c.statements, planner.Statement{SQL: sql, CreatesTable: name})
		c.groupTableNames[g.Key] = name
		c.createdTables = append(c.createdTables, name)
		c.logger.Debug("compiler: materialized output group", "table", name, "kind", g.Key.Kind, "outputs", len(g.Outputs))
		if c.trace != nil {
			c.trace.Println(sql)
		}
	}

	c.state = StateLowered
	return nil
}

// Assemble runs the final Plan Assembler step (§4.4 step 3): the joined
// result query over population plus every declared column, and returns
// the completed Plan.
func (c *Compiler) Assemble() (*Plan, error) {
	if c.state != StateLowered {
		return nil, fmt.Errorf("compiler: Assemble requires state %s, got %s", StateLowered, c.state)
	}
	adapter := c.cat.DialectAdapter()
	groupLookup := func(k dag.GroupKey) (string, bool) { v, ok := c.groupTableNames[k]; return v, ok }

	finalSQL, resultColumns, err := planner.BuildFinalQuery(c.columns, c.population, groupLookup, adapter)
	if err != nil {
		return nil, err
	}
	c.statements = append(c.statements, planner.Statement{SQL: finalSQL})
	c.state = StateAssembled

	c.logger.Debug("compiler: assembled", "statements", len(c.statements), "result_columns", len(resultColumns))
	if c.trace != nil {
		c.trace.Println("-- assembled --")
		c.trace.Println(finalSQL)
	}

	return &Plan{
		Statements:    c.statements,
		ResultColumns: resultColumns,
		CreatedTables: c.createdTables,
	}, nil
}

// Compile runs Analyze, Lower, and Assemble in sequence -- the common
// case for callers that don't need to inspect the intermediate DAG.
func (c *Compiler) Compile(columns []Column, population node.Value) (*Plan, error) {
	if err := c.Analyze(columns, population); err != nil {
		return nil, err
	}
	if err := c.Lower(); err != nil {
		return nil, err
	}
	return c.Assemble()
}

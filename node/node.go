// Package node defines the query algebra: an immutable, tagged-variant model
// of query nodes. Identity is by pointer, not structure — two
// structurally-identical nodes built separately are distinct nodes, because
// the DAG analyzer relies on shared sub-expressions being shared by
// construction, not by deduplication.
package node

import "fmt"

// Kind tags every concrete node type so the DAG analyzer and SQL lowering
// can switch on node identity without a type assertion ladder everywhere.
type Kind int

const (
	KindTable Kind = iota
	KindFilteredTable
	KindRow
	KindColumn
	KindValueFromRow
	KindValueFromAggregate
	KindValueFromCategory
	KindValueFromFunction
	KindCodelist
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "Table"
	case KindFilteredTable:
		return "FilteredTable"
	case KindRow:
		return "Row"
	case KindColumn:
		return "Column"
	case KindValueFromRow:
		return "ValueFromRow"
	case KindValueFromAggregate:
		return "ValueFromAggregate"
	case KindValueFromCategory:
		return "ValueFromCategory"
	case KindValueFromFunction:
		return "ValueFromFunction"
	case KindCodelist:
		return "Codelist"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is implemented by every query-algebra node.
type Node interface {
	Kind() Kind
}

// TableNode is the root of every output node's chain: either a bare Table or
// a FilteredTable chaining off one.
type TableNode interface {
	Node
	tableNode()
}

// Value is a per-patient single value: the result of a row-pick, an
// aggregate, a categorise expression, or a function over other Values.
type Value interface {
	Node
	valueNode()
}

// OutputNode is a node that can be a named output column: Column (one row
// per patient is NOT guaranteed — see Column's doc), ValueFromRow,
// ValueFromAggregate, ValueFromCategory, or ValueFromFunction.
type OutputNode interface {
	Node
	outputNode()
	// SourceNode is the (kind, source) grouping key's source half — see
	// dag.OutputGroups.
	SourceNode() Node
	// OutputColumnName is the SQL column name this node projects as.
	OutputColumnName() string
}

// Table is a named logical table in the backend catalog. It is the root of
// every chain; every backend-resolved table carries at least a patient_id
// column (the backend adapter injects it if the declared source lacks it).
type Table struct {
	Name string
}

func NewTable(name string) *Table { return &Table{Name: name} }

func (*Table) Kind() Kind  { return KindTable }
func (*Table) tableNode()  {}

// Operator is one of the normalized comparison predicates.
type Operator string

const (
	OpEq    Operator = "__eq__"
	OpNe    Operator = "__ne__"
	OpLt    Operator = "__lt__"
	OpLe    Operator = "__le__"
	OpGt    Operator = "__gt__"
	OpGe    Operator = "__ge__"
	OpIn    Operator = "in_"
	OpNotIn Operator = "not_in"
)

// FilteredTable chains a predicate onto a TableNode. Value is either a
// literal, a Value, a *Column, or a *Codelist. OrNull, when set, widens the
// predicate to also match rows where Column IS NULL.
type FilteredTable struct {
	Source   TableNode
	Column   string
	Operator Operator
	Value    any
	OrNull   bool
}

func (*FilteredTable) Kind() Kind { return KindFilteredTable }
func (*FilteredTable) tableNode() {}

// Filter builds a FilteredTable chaining the given predicate onto src.
func Filter(src TableNode, column string, op Operator, value any) *FilteredTable {
	return &FilteredTable{Source: src, Column: column, Operator: op, Value: value}
}

// FilterOrNull is Filter with the or_null widening flag set.
func FilterOrNull(src TableNode, column string, op Operator, value any) *FilteredTable {
	return &FilteredTable{Source: src, Column: column, Operator: op, Value: value, OrNull: true}
}

// Between desugars an inclusive range filter into two chained FilteredTables
// (on_or_after then on_or_before), per the "between silently desugars"
// design note — no SQL BETWEEN is ever emitted.
func Between(src TableNode, column string, start, end any) *FilteredTable {
	onOrAfter := Filter(src, column, OpGe, start)
	return Filter(onOrAfter, column, OpLe, end)
}

// DateInRange filters rows whose date falls inclusively between two other
// columns on the same table.
func DateInRange(src TableNode, date any, startColumn, endColumn string) *FilteredTable {
	after := Filter(src, startColumn, OpLe, date)
	return Filter(after, endColumn, OpGe, date)
}

// Row reduces a (possibly filtered) table to one row per patient by ordering
// on SortColumns (Descending ⇔ true) and picking the first row of each
// partition.
type Row struct {
	Source      TableNode
	SortColumns []string
	Descending  bool
}

func (*Row) Kind() Kind { return KindRow }

// FirstBy picks the first row per patient ordered ascending by columns.
func FirstBy(src TableNode, columns ...string) *Row {
	return &Row{Source: src, SortColumns: columns, Descending: false}
}

// LastBy picks the first row per patient ordered descending by columns.
func LastBy(src TableNode, columns ...string) *Row {
	return &Row{Source: src, SortColumns: columns, Descending: true}
}

// Earliest is FirstBy defaulting to ordering by "date" when no columns are given.
func Earliest(src TableNode, columns ...string) *Row {
	if len(columns) == 0 {
		columns = []string{"date"}
	}
	return FirstBy(src, columns...)
}

// Latest is LastBy defaulting to ordering by "date" when no columns are given.
func Latest(src TableNode, columns ...string) *Row {
	if len(columns) == 0 {
		columns = []string{"date"}
	}
	return LastBy(src, columns...)
}

// Get projects a column from a picked Row into a per-patient single value.
func (r *Row) Get(column string) *ValueFromRow {
	return &ValueFromRow{Source: r, Column: column}
}

// Column is a per-patient-multiple-values projection from a Table or
// FilteredTable with no row-picker applied; only usable as a filter source
// or via a row-picker/aggregate downstream.
type Column struct {
	Source TableNode
	Column string
}

func (*Column) Kind() Kind    { return KindColumn }
func (*Column) outputNode()   {}
func (c *Column) SourceNode() Node         { return c.Source }
func (c *Column) OutputColumnName() string { return c.Column }

// GetColumn projects an event-level column from a table chain.
func GetColumn(src TableNode, column string) *Column {
	return &Column{Source: src, Column: column}
}

// ValueFromRow is a per-patient single value taken from a picked row.
type ValueFromRow struct {
	Source *Row
	Column string
}

func (*ValueFromRow) Kind() Kind    { return KindValueFromRow }
func (*ValueFromRow) valueNode()    {}
func (*ValueFromRow) outputNode()   {}
func (v *ValueFromRow) SourceNode() Node         { return v.Source }
func (v *ValueFromRow) OutputColumnName() string { return v.Column }

// AggregateFunc names a SQL aggregate function, or the pseudo-aggregate
// "exists" (a constant TRUE per surviving group row).
type AggregateFunc string

const (
	AggExists AggregateFunc = "exists"
	AggCount  AggregateFunc = "count"
	AggSum    AggregateFunc = "sum"
	AggMin    AggregateFunc = "min"
	AggMax    AggregateFunc = "max"
)

// ValueFromAggregate is a per-patient single value computed by aggregating a
// column over a (possibly filtered) table, grouped by patient.
type ValueFromAggregate struct {
	Source   TableNode
	Function AggregateFunc
	Column   string
}

func (*ValueFromAggregate) Kind() Kind  { return KindValueFromAggregate }
func (*ValueFromAggregate) valueNode()  {}
func (*ValueFromAggregate) outputNode() {}
func (v *ValueFromAggregate) SourceNode() Node { return v.Source }
func (v *ValueFromAggregate) OutputColumnName() string {
	return fmt.Sprintf("%s_%s", v.Column, v.Function)
}

// Aggregate builds a ValueFromAggregate for an arbitrary function.
func Aggregate(src TableNode, function AggregateFunc, column string) *ValueFromAggregate {
	return &ValueFromAggregate{Source: src, Function: function, Column: column}
}

// Exists is Aggregate(src, AggExists, column), defaulting column to patient_id.
func Exists(src TableNode, column string) *ValueFromAggregate {
	if column == "" {
		column = "patient_id"
	}
	return Aggregate(src, AggExists, column)
}

func Count(src TableNode, column string) *ValueFromAggregate { return Aggregate(src, AggCount, column) }
func Sum(src TableNode, column string) *ValueFromAggregate   { return Aggregate(src, AggSum, column) }
func Min(src TableNode, column string) *ValueFromAggregate   { return Aggregate(src, AggMin, column) }
func Max(src TableNode, column string) *ValueFromAggregate   { return Aggregate(src, AggMax, column) }

// Connector combines two Comparator subtrees.
type Connector string

const (
	ConnNone Connector = ""
	ConnAnd  Connector = "and_"
	ConnOr   Connector = "or_"
)

// Comparator is a Boolean expression tree. Leaves bind LHS (a Value) against
// RHS (a literal or a Value) via Operator. Interior nodes combine two
// sub-comparators via Connector. Any node may be Negated.
type Comparator struct {
	// Leaf fields.
	LHS      Value
	Operator Operator
	RHS      any

	// Interior fields.
	Connector Connector
	Left      *Comparator
	Right     *Comparator

	Negated bool
}

func (c *Comparator) IsLeaf() bool { return c.Connector == ConnNone }

func leaf(lhs Value, op Operator, rhs any) *Comparator {
	return &Comparator{LHS: lhs, Operator: op, RHS: rhs}
}

func Eq(lhs Value, rhs any) *Comparator { return leaf(lhs, OpEq, rhs) }
func Ne(lhs Value, rhs any) *Comparator { return leaf(lhs, OpNe, rhs) }
func Lt(lhs Value, rhs any) *Comparator { return leaf(lhs, OpLt, rhs) }
func Le(lhs Value, rhs any) *Comparator { return leaf(lhs, OpLe, rhs) }
func Gt(lhs Value, rhs any) *Comparator { return leaf(lhs, OpGt, rhs) }
func Ge(lhs Value, rhs any) *Comparator { return leaf(lhs, OpGe, rhs) }
func In(lhs Value, rhs any) *Comparator { return leaf(lhs, OpIn, rhs) }
func NotIn(lhs Value, rhs any) *Comparator { return leaf(lhs, OpNotIn, rhs) }

func And(left, right *Comparator) *Comparator {
	return &Comparator{Connector: ConnAnd, Left: left, Right: right}
}

func Or(left, right *Comparator) *Comparator {
	return &Comparator{Connector: ConnOr, Left: left, Right: right}
}

// Not returns a new comparator with the negation flag toggled; comparators
// are immutable, so this never mutates c.
func Not(c *Comparator) *Comparator {
	cp := *c
	cp.Negated = !cp.Negated
	return &cp
}

// CategoryDefinition is one label → condition entry of a ValueFromCategory,
// evaluated in the order Definitions lists them.
type CategoryDefinition struct {
	Label string
	When  *Comparator
}

// ValueFromCategory yields the label of the first matching definition, else
// Default.
type ValueFromCategory struct {
	Definitions []CategoryDefinition
	Default     string
}

func (*ValueFromCategory) Kind() Kind  { return KindValueFromCategory }
func (*ValueFromCategory) valueNode()  {}
func (*ValueFromCategory) outputNode() {}
func (v *ValueFromCategory) SourceNode() Node {
	// ValueFromCategory has no single (kind, source) chain of its own and
	// forms no output group; it is computed in the final query from its
	// parents' group tables.
	return v
}
func (v *ValueFromCategory) OutputColumnName() string { return "" } // set by caller from the output name

func Categorise(definitions []CategoryDefinition, def string) *ValueFromCategory {
	return &ValueFromCategory{Definitions: definitions, Default: def}
}

// FunctionKind names an n-ary function over Values. The only kind specified
// is DateDifferenceInYears.
type FunctionKind string

const (
	FuncDateDifferenceInYears FunctionKind = "date_difference_in_years"
)

// ValueFromFunction is an n-ary function over other Values.
type ValueFromFunction struct {
	FuncKind  FunctionKind
	Arguments []Value
}

func (*ValueFromFunction) Kind() Kind  { return KindValueFromFunction }
func (*ValueFromFunction) valueNode()  {}
func (*ValueFromFunction) outputNode() {}
func (v *ValueFromFunction) SourceNode() Node         { return v }
func (v *ValueFromFunction) OutputColumnName() string { return "" }

func DateDifferenceInYears(start, end Value) *ValueFromFunction {
	return &ValueFromFunction{FuncKind: FuncDateDifferenceInYears, Arguments: []Value{start, end}}
}

// Codelist is a finite set of coded values over a terminology system,
// materialized as a temporary table of (code, system).
type Codelist struct {
	Codes  []string
	System string
}

func (*Codelist) Kind() Kind { return KindCodelist }

func NewCodelist(system string, codes ...string) *Codelist {
	return &Codelist{Codes: codes, System: system}
}

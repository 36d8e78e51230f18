// Package sqlast is a dialect-neutral SQL expression and query AST. The
// lower package builds trees of these types; the dialect package renders
// them to a specific dialect's textual SQL. Modeled on the donor project's
// struct-per-construct DDL AST (schema/ast.go), generalized from CREATE/ALTER
// statements to SELECT expressions.
package sqlast

// Expr is any SQL scalar or Boolean expression.
type Expr interface{ isExpr() }

// ColumnRef references a column, optionally qualified by a table alias.
type ColumnRef struct {
	Table  string // alias or table name; empty if unqualified
	Column string
}

func (ColumnRef) isExpr() {}

// Literal is a scalar literal value: string, bool, int64, float64, or nil.
type Literal struct {
	Value any
}

func (Literal) isExpr() {}

// Raw is an escape hatch for a dialect-specific fragment (e.g. MSSQL's
// DATEDIFF/DATEADD expressions) that the generic renderer has no node for.
type Raw struct {
	SQL string
}

func (Raw) isExpr() {}

// BinaryOp is `Left Op Right`, e.g. `a = b`, `a AND b`.
type BinaryOp struct {
	Left  Expr
	Op    string
	Right Expr
}

func (BinaryOp) isExpr() {}

// Not wraps an expression in SQL NOT (...).
type Not struct {
	Expr Expr
}

func (Not) isExpr() {}

// InList renders `Expr IN (v1, v2, ...)` or, when Negated, `Expr NOT IN (...)`.
type InList struct {
	Expr    Expr
	Values  []Expr
	Negated bool
}

func (InList) isExpr() {}

// FuncCall renders a named SQL function call.
type FuncCall struct {
	Name string
	Args []Expr
}

func (FuncCall) isExpr() {}

// CaseWhen is one WHEN/THEN arm of a CaseExpr.
type CaseWhen struct {
	Cond   Expr
	Result Expr
}

// CaseExpr renders a CASE WHEN ... THEN ... ELSE ... END expression, arms in
// declared order.
type CaseExpr struct {
	Whens []CaseWhen
	Else  Expr
}

func (CaseExpr) isExpr() {}

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Expr Expr
	Desc bool
}

// RowNumber renders `ROW_NUMBER() OVER (PARTITION BY ... ORDER BY ...)`.
type RowNumber struct {
	PartitionBy []Expr
	OrderBy     []OrderTerm
}

func (RowNumber) isExpr() {}

// ScalarSubquery embeds a full Select as a scalar-producing expression, used
// for codelist membership subqueries (`col IN (SELECT code FROM ...)`) and
// correlated Column subqueries.
type ScalarSubquery struct {
	Query *Select
}

func (ScalarSubquery) isExpr() {}

// TableExpr is anything usable in a FROM or JOIN clause.
type TableExpr interface{ isTableExpr() }

// NamedTable is a plain table reference, e.g. a backend-resolved table name
// or a previously materialized interim/codelist table.
type NamedTable struct {
	Name  string
	Alias string
}

func (NamedTable) isTableExpr() {}

// Subquery is a derived table: `(SELECT ...) AS alias`.
type Subquery struct {
	Query *Select
	Alias string
}

func (Subquery) isTableExpr() {}

// JoinKind distinguishes LEFT JOIN (the only kind this compiler emits, per
// §4.3/§4.4's "LEFT JOIN the interim table" language) from a plain
// correlated-subquery join, which is never a physical JOIN clause.
type JoinKind string

const (
	JoinLeft  JoinKind = "LEFT"
	JoinInner JoinKind = "INNER"
)

// Join is one JOIN clause against the base FROM.
type Join struct {
	Kind  JoinKind
	Table TableExpr
	On    Expr
}

// SelectColumn is one projected column, aliased if Alias is non-empty.
type SelectColumn struct {
	Expr  Expr
	Alias string
}

// Select is a single SELECT statement (no set operations -- the compiler
// never needs UNION/INTERSECT).
type Select struct {
	Columns []SelectColumn
	From    TableExpr
	Joins   []Join
	Where   Expr
	GroupBy []Expr
}

func (*Select) isTableExpr() {}

// And folds a slice of expressions with AND, skipping nil entries. Returns
// nil if no non-nil expressions remain.
func And(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = BinaryOp{Left: out, Op: "AND", Right: e}
	}
	return out
}

// Or folds a slice of expressions with OR, skipping nil entries.
func Or(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = BinaryOp{Left: out, Op: "OR", Right: e}
	}
	return out
}

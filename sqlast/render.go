package sqlast

import (
	"fmt"
	"strconv"
	"strings"
)

// Quoter supplies the dialect-specific identifier quoting a Render call
// needs; dialect adapters implement this (or delegate to a shared helper)
// to keep quoting rules (backtick/double-quote/bracket) out of this package.
type Quoter interface {
	QuoteIdent(name string) string
}

// Render renders a full SELECT statement as text.
func Render(q Quoter, s *Select) string {
	var b strings.Builder
	renderSelect(&b, q, s)
	return b.String()
}

// RenderExpr renders a single expression to text. Exported so dialects can
// embed an already-lowered sub-expression inside a Raw fragment when a
// dialect's syntax (e.g. MySQL's `INTERVAL n YEAR`) has no generic AST node.
func RenderExpr(q Quoter, e Expr) string {
	var b strings.Builder
	renderExpr(&b, q, e)
	return b.String()
}

// RenderInto renders `SELECT ... INTO <table> FROM ...`, the CTAS idiom used
// by dialects (MSSQL) that have no CREATE TABLE AS SELECT form.
func RenderInto(q Quoter, s *Select, intoTable string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		renderExpr(&b, q, c.Expr)
		if c.Alias != "" {
			fmt.Fprintf(&b, " AS %s", q.QuoteIdent(c.Alias))
		}
	}
	fmt.Fprintf(&b, " INTO %s", q.QuoteIdent(intoTable))
	b.WriteString(" FROM ")
	renderTableExpr(&b, q, s.From)
	for _, j := range s.Joins {
		fmt.Fprintf(&b, " %s JOIN ", j.Kind)
		renderTableExpr(&b, q, j.Table)
		b.WriteString(" ON ")
		renderExpr(&b, q, j.On)
	}
	if s.Where != nil {
		b.WriteString(" WHERE ")
		renderExpr(&b, q, s.Where)
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			renderExpr(&b, q, g)
		}
	}
	return b.String()
}

func renderSelect(b *strings.Builder, q Quoter, s *Select) {
	b.WriteString("SELECT ")
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		renderExpr(b, q, c.Expr)
		if c.Alias != "" {
			fmt.Fprintf(b, " AS %s", q.QuoteIdent(c.Alias))
		}
	}
	b.WriteString(" FROM ")
	renderTableExpr(b, q, s.From)
	for _, j := range s.Joins {
		fmt.Fprintf(b, " %s JOIN ", j.Kind)
		renderTableExpr(b, q, j.Table)
		b.WriteString(" ON ")
		renderExpr(b, q, j.On)
	}
	if s.Where != nil {
		b.WriteString(" WHERE ")
		renderExpr(b, q, s.Where)
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, q, g)
		}
	}
}

func renderTableExpr(b *strings.Builder, q Quoter, t TableExpr) {
	switch v := t.(type) {
	case NamedTable:
		b.WriteString(q.QuoteIdent(v.Name))
		if v.Alias != "" {
			fmt.Fprintf(b, " AS %s", q.QuoteIdent(v.Alias))
		}
	case Subquery:
		b.WriteString("(")
		renderSelect(b, q, v.Query)
		b.WriteString(")")
		if v.Alias != "" {
			fmt.Fprintf(b, " AS %s", q.QuoteIdent(v.Alias))
		}
	case *Select:
		b.WriteString("(")
		renderSelect(b, q, v)
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "/* unrenderable table expr %T */", t)
	}
}

func renderExpr(b *strings.Builder, q Quoter, e Expr) {
	switch v := e.(type) {
	case ColumnRef:
		if v.Table != "" {
			fmt.Fprintf(b, "%s.%s", q.QuoteIdent(v.Table), q.QuoteIdent(v.Column))
		} else {
			b.WriteString(q.QuoteIdent(v.Column))
		}
	case Literal:
		b.WriteString(renderLiteral(v.Value))
	case Raw:
		b.WriteString(v.SQL)
	case BinaryOp:
		b.WriteString("(")
		renderExpr(b, q, v.Left)
		fmt.Fprintf(b, " %s ", v.Op)
		renderExpr(b, q, v.Right)
		b.WriteString(")")
	case Not:
		b.WriteString("NOT (")
		renderExpr(b, q, v.Expr)
		b.WriteString(")")
	case InList:
		renderExpr(b, q, v.Expr)
		if v.Negated {
			b.WriteString(" NOT IN (")
		} else {
			b.WriteString(" IN (")
		}
		for i, val := range v.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, q, val)
		}
		b.WriteString(")")
	case FuncCall:
		fmt.Fprintf(b, "%s(", v.Name)
		for i, arg := range v.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, q, arg)
		}
		b.WriteString(")")
	case CaseExpr:
		b.WriteString("CASE")
		for _, w := range v.Whens {
			b.WriteString(" WHEN ")
			renderExpr(b, q, w.Cond)
			b.WriteString(" THEN ")
			renderExpr(b, q, w.Result)
		}
		if v.Else != nil {
			b.WriteString(" ELSE ")
			renderExpr(b, q, v.Else)
		}
		b.WriteString(" END")
	case RowNumber:
		b.WriteString("ROW_NUMBER() OVER (PARTITION BY ")
		for i, p := range v.PartitionBy {
			if i > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, q, p)
		}
		if len(v.OrderBy) > 0 {
			b.WriteString(" ORDER BY ")
			for i, o := range v.OrderBy {
				if i > 0 {
					b.WriteString(", ")
				}
				renderExpr(b, q, o.Expr)
				if o.Desc {
					b.WriteString(" DESC")
				}
			}
		}
		b.WriteString(")")
	case ScalarSubquery:
		b.WriteString("(")
		renderSelect(b, q, v.Query)
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "/* unrenderable expr %T */", e)
	}
}

func renderLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

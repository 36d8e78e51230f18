package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// testQuoter quotes identifiers with double quotes, the ANSI default;
// dialect-specific quoting is exercised in the dialect package's own tests.
type testQuoter struct{}

func (testQuoter) QuoteIdent(name string) string { return `"` + name + `"` }

func TestRenderSimpleSelect(t *testing.T) {
	s := &Select{
		Columns: []SelectColumn{{Expr: ColumnRef{Table: "base", Column: "patient_id"}, Alias: "patient_id"}},
		From:    NamedTable{Name: "events", Alias: "base"},
		Where:   BinaryOp{Left: ColumnRef{Table: "base", Column: "code"}, Op: "=", Right: Literal{Value: "123"}},
	}
	got := Render(testQuoter{}, s)
	assert.Equal(t, `SELECT "base"."patient_id" AS "patient_id" FROM "events" AS "base" WHERE ("base"."code" = '123')`, got)
}

func TestRenderJoinAndGroupBy(t *testing.T) {
	s := &Select{
		Columns: []SelectColumn{{Expr: ColumnRef{Table: "base", Column: "patient_id"}}},
		From:    NamedTable{Name: "events", Alias: "base"},
		Joins: []Join{
			{Kind: JoinLeft, Table: NamedTable{Name: "g1", Alias: "g1"}, On: BinaryOp{
				Left: ColumnRef{Table: "base", Column: "patient_id"}, Op: "=", Right: ColumnRef{Table: "g1", Column: "patient_id"},
			}},
		},
		GroupBy: []Expr{ColumnRef{Table: "base", Column: "patient_id"}},
	}
	got := Render(testQuoter{}, s)
	assert.Contains(t, got, "LEFT JOIN")
	assert.Contains(t, got, "GROUP BY")
}

func TestRenderCaseExpr(t *testing.T) {
	e := CaseExpr{
		Whens: []CaseWhen{
			{Cond: BinaryOp{Left: ColumnRef{Column: "age"}, Op: ">", Right: Literal{Value: int64(65)}}, Result: Literal{Value: "senior"}},
		},
		Else: Literal{Value: "other"},
	}
	got := RenderExpr(testQuoter{}, e)
	assert.Equal(t, `CASE WHEN ("age" > 65) THEN 'senior' ELSE 'other' END`, got)
}

func TestRenderRowNumber(t *testing.T) {
	e := RowNumber{
		PartitionBy: []Expr{ColumnRef{Table: "base", Column: "patient_id"}},
		OrderBy:     []OrderTerm{{Expr: ColumnRef{Table: "base", Column: "date"}, Desc: true}},
	}
	got := RenderExpr(testQuoter{}, e)
	assert.Equal(t, `ROW_NUMBER() OVER (PARTITION BY "base"."patient_id" ORDER BY "base"."date" DESC)`, got)
}

func TestRenderNotAndSubquery(t *testing.T) {
	sub := &Select{
		Columns: []SelectColumn{{Expr: ColumnRef{Column: "code"}}},
		From:    NamedTable{Name: "codelist_0"},
	}
	e := Not{Expr: BinaryOp{Left: ColumnRef{Table: "base", Column: "code"}, Op: "IN", Right: ScalarSubquery{Query: sub}}}
	got := RenderExpr(testQuoter{}, e)
	assert.Equal(t, `NOT (("base"."code" IN (SELECT "code" FROM "codelist_0")))`, got)
}

func TestRenderIntoCTAS(t *testing.T) {
	s := &Select{
		Columns: []SelectColumn{{Expr: ColumnRef{Table: "base", Column: "patient_id"}, Alias: "patient_id"}},
		From:    NamedTable{Name: "events", Alias: "base"},
	}
	got := RenderInto(testQuoter{}, s, "interim_1")
	assert.Equal(t, `SELECT "base"."patient_id" AS "patient_id" INTO "interim_1" FROM "events" AS "base"`, got)
}

func TestRenderLiteralTypes(t *testing.T) {
	assert.Equal(t, "NULL", renderLiteral(nil))
	assert.Equal(t, "TRUE", renderLiteral(true))
	assert.Equal(t, "FALSE", renderLiteral(false))
	assert.Equal(t, "42", renderLiteral(42))
	assert.Equal(t, "'it''s'", renderLiteral("it's"))
}

func TestAndOrFoldSkipsNil(t *testing.T) {
	a := BinaryOp{Left: ColumnRef{Column: "x"}, Op: "=", Right: Literal{Value: int64(1)}}
	assert.Equal(t, a, And(nil, a))
	assert.Equal(t, a, Or(a, nil))
	assert.Nil(t, And())
}

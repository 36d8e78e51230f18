// Package testutil is the scenario-fixture harness the S1-S6 scenarios in
// SPEC_FULL.md §8 run through: a YAML table of named scenarios (catalog
// tables, a cohort-spec document, the SQL-shape assertions it must satisfy)
// loaded the way the donor project's ReadTests/TestCase loads its own
// migration-idempotency fixtures, adapted from "diff two schemas" to
// "compile this cohort spec and check the statement list".
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite"

	"github.com/cohortsql/compiler/catalog"
	"github.com/cohortsql/compiler/compiler"
	"github.com/cohortsql/compiler/dialect"
	"github.com/cohortsql/compiler/specdsl"
)

// TableSpec is one catalog table mapping within a Scenario, the YAML
// counterpart of catalog.MockTable.
type TableSpec struct {
	BackendName     string   `yaml:"backend_name"`
	PatientIDColumn string   `yaml:"patient_id_column"`
	Columns         []string `yaml:"columns"`
	HasSystemColumn bool     `yaml:"has_system_column"`
}

// ExecutionSpec optionally runs a scenario's compiled plan against an
// in-process modernc.org/sqlite database to confirm the emitted SQL
// actually produces the claimed result shape, not just the claimed text
// (per AMBIENT STACK's test-tooling section).
type ExecutionSpec struct {
	// Seed is executed, in order, against a fresh in-memory sqlite
	// database before the compiled plan's own statements run.
	Seed []string `yaml:"seed"`
	// ExpectRows lists the expected final-query result rows, each keyed by
	// result column name; order is not significant.
	ExpectRows []map[string]any `yaml:"expect_rows"`
}

// Scenario is one named fixture: a dialect, a catalog, a cohort-spec
// document, and the assertions its compiled plan must satisfy.
type Scenario struct {
	Dialect string               `yaml:"dialect"`
	Tables  map[string]TableSpec `yaml:"tables"`
	Spec    specdsl.Document     `yaml:"spec"`

	// ExpectContains lists substrings that must each appear somewhere in
	// the joined statement list -- a loose shape assertion deliberately
	// resilient to whitespace/alias details that would make an
	// exact-string assertion brittle.
	ExpectContains []string `yaml:"expect_contains"`
	// ExpectStatementCount, if set, pins the exact number of statements
	// the plan must contain (codelist DDL/DML + per-group CTAS + final
	// join).
	ExpectStatementCount *int `yaml:"expect_statement_count"`

	Execute *ExecutionSpec `yaml:"execute"`
}

// ReadScenarios loads every YAML file matching pattern into a name ->
// Scenario map, rejecting duplicate scenario names across files the same
// way ReadTests rejects duplicate test-case names.
func ReadScenarios(pattern string) (map[string]Scenario, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	ret := map[string]Scenario{}
	seenIn := map[string]string{}

	for _, file := range files {
		buf, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		var scenarios map[string]Scenario
		dec := yaml.NewDecoder(bytes.NewReader(buf))
		if err := dec.Decode(&scenarios); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		for name, s := range scenarios {
			if existing, ok := seenIn[name]; ok {
				return nil, fmt.Errorf("duplicate scenario name %q: defined in both %q and %q", name, existing, file)
			}
			seenIn[name] = file
			ret[name] = s
		}
	}
	return ret, nil
}

func newAdapterFor(dialectName string) (dialect.Adapter, error) {
	switch dialectName {
	case "mysql":
		return dialect.NewMySQL(), nil
	case "postgres":
		return dialect.NewPostgres(), nil
	case "mssql":
		return dialect.NewMSSQL(), nil
	case "sqlite", "":
		return dialect.NewSQLite(), nil
	default:
		return nil, fmt.Errorf("testutil: unknown dialect %q", dialectName)
	}
}

func buildCatalog(s Scenario, adapter dialect.Adapter) (catalog.BackendCatalog, error) {
	tables := make(map[string]catalog.MockTable, len(s.Tables))
	for name, t := range s.Tables {
		tables[name] = catalog.MockTable{
			BackendName:     t.BackendName,
			PatientIDColumn: t.PatientIDColumn,
			Columns:         t.Columns,
			HasSystemColumn: t.HasSystemColumn,
		}
	}
	return catalog.NewMockCatalog(tables, adapter.TypeMap(), adapter.MaxRowsPerInsert(), adapter)
}

// Compile builds the scenario's catalog and spec and compiles it, failing t
// if any step errors.
func Compile(t *testing.T, s Scenario) *compiler.Plan {
	t.Helper()

	adapter, err := newAdapterFor(s.Dialect)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	cat, err := buildCatalog(s, adapter)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	columns, population, err := specdsl.Build(&s.Spec)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	var trace strings.Builder
	c := compiler.New(cat, compiler.WithTraceSink(&trace))
	plan, err := c.Compile(columns, population)
	if !assert.NoError(t, err, "trace:\n%s", trace.String()) {
		t.FailNow()
	}
	return plan
}

// AssertShape checks a compiled plan against the scenario's ExpectContains
// and ExpectStatementCount assertions.
func AssertShape(t *testing.T, s Scenario, plan *compiler.Plan) {
	t.Helper()

	if s.ExpectStatementCount != nil {
		assert.Equal(t, *s.ExpectStatementCount, len(plan.Statements), "statement count")
	}

	joined := joinStatements(plan)
	for _, want := range s.ExpectContains {
		assert.Contains(t, joined, want)
	}
}

func joinStatements(plan *compiler.Plan) string {
	stmts := make([]string, len(plan.Statements))
	for i, s := range plan.Statements {
		stmts[i] = s.SQL
	}
	return strings.Join(stmts, ";\n")
}

// RunAgainstSQLite executes a compiled plan's statements against a fresh
// in-memory modernc.org/sqlite database, having first run scenario's
// Execute.Seed DDL/DML, and asserts the final query's result rows match
// Execute.ExpectRows (order-independent).
func RunAgainstSQLite(t *testing.T, s Scenario, plan *compiler.Plan) {
	t.Helper()
	if s.Execute == nil {
		return
	}

	db, err := sql.Open("sqlite", ":memory:")
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer db.Close()
	ctx := context.Background()

	for _, stmt := range s.Execute.Seed {
		if _, err := db.ExecContext(ctx, stmt); !assert.NoError(t, err, "seed statement: %s", stmt) {
			t.FailNow()
		}
	}

	for i, stmt := range plan.Statements {
		isLast := i == len(plan.Statements)-1
		if isLast {
			rows, err := db.QueryContext(ctx, stmt.SQL)
			if !assert.NoError(t, err, "final statement: %s", stmt.SQL) {
				t.FailNow()
			}
			defer rows.Close()
			actual, err := scanRows(rows)
			if !assert.NoError(t, err) {
				t.FailNow()
			}
			assert.ElementsMatch(t, normalizeRows(s.Execute.ExpectRows), normalizeRows(actual))
			continue
		}
		if _, err := db.ExecContext(ctx, stmt.SQL); !assert.NoError(t, err, "statement %d: %s", i, stmt.SQL) {
			t.FailNow()
		}
	}
}

// normalizeRows collapses driver-specific and YAML-decode-specific numeric
// and byte-slice representations (int vs int64, []byte vs string) so
// ExpectRows fixtures can be written as plain YAML scalars instead of
// chasing modernc.org/sqlite's exact Go value types.
func normalizeRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		nr := make(map[string]any, len(r))
		for k, v := range r {
			nr[k] = normalizeValue(v)
		}
		out[i] = nr
	}
	return out
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	case []byte:
		return string(n)
	default:
		return v
	}
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

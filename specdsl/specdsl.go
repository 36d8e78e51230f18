// Package specdsl turns a YAML cohort-specification document into the
// compiler.Column list and population value the core compiler consumes.
// It is the serialization format for the external-interfaces input
// SPEC_FULL.md's §6 describes only as a Go-value mapping -- shared by
// cmd/cohortsql (real CLI input) and testutil (scenario fixtures), the way
// the donor project's YAML config loading is shared across its own
// binaries via database.ParseGeneratorConfig.
package specdsl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cohortsql/compiler/node"
	"github.com/cohortsql/compiler/planner"
)

// Document is the YAML shape of a cohort specification: a population
// definition plus an ordered list of named output columns. Columns is a
// slice, not a map, for the same reason planner.Column is a slice --
// §8's determinism property requires the final projection's column order
// to equal declaration order.
type Document struct {
	Population *ColumnSpec `yaml:"population"`
	Columns    []struct {
		Name string     `yaml:"name"`
		Spec ColumnSpec `yaml:",inline"`
	} `yaml:"columns"`
}

type ColumnSpec struct {
	Table     string        `yaml:"table"`
	Filters   []FilterSpec  `yaml:"filters"`
	Row       *RowSpec      `yaml:"row"`
	Column    string        `yaml:"column"`
	Aggregate string        `yaml:"aggregate"`
	Function  *FunctionSpec `yaml:"function"`
	Category  *CategorySpec `yaml:"category"`
}

type FilterSpec struct {
	Column      string           `yaml:"column"`
	Op          string           `yaml:"op"`
	Value       any              `yaml:"value"`
	Codelist    *CodelistSpec    `yaml:"codelist"`
	ValueRef    string           `yaml:"value_ref"`
	OtherColumn *OtherColumnSpec `yaml:"other_column"`
	OrNull      bool             `yaml:"or_null"`
}

type CodelistSpec struct {
	System string   `yaml:"system"`
	Codes  []string `yaml:"codes"`
}

type OtherColumnSpec struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

type RowSpec struct {
	OrderBy    []string `yaml:"order_by"`
	Descending bool     `yaml:"descending"`
}

type FunctionSpec struct {
	Kind string   `yaml:"kind"`
	Args []string `yaml:"args"`
}

type CategorySpec struct {
	Definitions []CategoryDefSpec `yaml:"definitions"`
	Default     string            `yaml:"default"`
}

type CategoryDefSpec struct {
	Label string          `yaml:"label"`
	When  *ComparatorSpec `yaml:"when"`
}

type ComparatorSpec struct {
	ColumnRef string          `yaml:"column_ref"`
	Op        string          `yaml:"op"`
	Value     any             `yaml:"value"`
	ValueRef  string          `yaml:"value_ref"`
	Connector string          `yaml:"connector"`
	Left      *ComparatorSpec `yaml:"left"`
	Right     *ComparatorSpec `yaml:"right"`
	Negated   bool            `yaml:"negated"`
}

// LoadFile reads path and builds the column list plus population value the
// compiler needs.
func LoadFile(path string) ([]planner.Column, node.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("specdsl: reading spec file: %w", err)
	}
	return Parse(raw)
}

// Parse builds the column list plus population value from an in-memory
// YAML document, for callers (tests) that keep fixtures inline rather than
// on disk.
func Parse(raw []byte) ([]planner.Column, node.Value, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("specdsl: parsing spec: %w", err)
	}
	return Build(&doc)
}

// Build builds every declared column in file order, threading already
// -built columns into a name -> Value lookup so a later `function` or
// `category` column can reference an earlier one by name and share the
// same node by pointer, the way the query algebra requires for DAG
// grouping to see the shared sub-expression.
func Build(doc *Document) ([]planner.Column, node.Value, error) {
	built := make(map[string]node.Value, len(doc.Columns))
	columns := make([]planner.Column, 0, len(doc.Columns))

	for _, entry := range doc.Columns {
		v, err := buildColumnValue(entry.Spec, built)
		if err != nil {
			return nil, nil, fmt.Errorf("specdsl: column %q: %w", entry.Name, err)
		}
		built[entry.Name] = v
		columns = append(columns, planner.Column{Name: entry.Name, Node: v})
	}

	var population node.Value
	if doc.Population != nil {
		v, err := buildColumnValue(*doc.Population, built)
		if err != nil {
			return nil, nil, fmt.Errorf("specdsl: population: %w", err)
		}
		population = v
	}
	return columns, population, nil
}

func buildColumnValue(spec ColumnSpec, built map[string]node.Value) (node.Value, error) {
	switch {
	case spec.Function != nil:
		return buildFunction(spec.Function, built)
	case spec.Category != nil:
		return buildCategory(spec.Category, built)
	default:
		return buildTableDerivedValue(spec, built)
	}
}

func buildTableDerivedValue(spec ColumnSpec, built map[string]node.Value) (node.Value, error) {
	if spec.Table == "" {
		return nil, fmt.Errorf("column has neither table, function, nor category")
	}
	var chain node.TableNode = node.NewTable(spec.Table)
	for _, f := range spec.Filters {
		filtered, err := applyFilter(chain, f, built)
		if err != nil {
			return nil, err
		}
		chain = filtered
	}

	switch {
	case spec.Row != nil:
		if spec.Column == "" {
			return nil, fmt.Errorf("row-picked column requires a column name")
		}
		var row *node.Row
		if spec.Row.Descending {
			row = node.LastBy(chain, spec.Row.OrderBy...)
		} else {
			row = node.FirstBy(chain, spec.Row.OrderBy...)
		}
		return row.Get(spec.Column), nil
	case spec.Aggregate != "":
		fn := node.AggregateFunc(spec.Aggregate)
		if fn == node.AggExists {
			return node.Exists(chain, spec.Column), nil
		}
		return node.Aggregate(chain, fn, spec.Column), nil
	default:
		return nil, fmt.Errorf("table column %q must declare either row or aggregate to be a usable output value", spec.Column)
	}
}

func applyFilter(chain node.TableNode, f FilterSpec, built map[string]node.Value) (*node.FilteredTable, error) {
	op := node.Operator(f.Op)
	var value any
	switch {
	case f.Codelist != nil:
		value = node.NewCodelist(f.Codelist.System, f.Codelist.Codes...)
	case f.ValueRef != "":
		v, ok := built[f.ValueRef]
		if !ok {
			return nil, fmt.Errorf("filter references unknown column %q", f.ValueRef)
		}
		value = v
	case f.OtherColumn != nil:
		value = node.GetColumn(node.NewTable(f.OtherColumn.Table), f.OtherColumn.Column)
	default:
		value = f.Value
	}
	ft := node.Filter(chain, f.Column, op, value)
	ft.OrNull = f.OrNull
	return ft, nil
}

func buildFunction(spec *FunctionSpec, built map[string]node.Value) (node.Value, error) {
	if node.FunctionKind(spec.Kind) != node.FuncDateDifferenceInYears {
		return nil, fmt.Errorf("unsupported function kind %q", spec.Kind)
	}
	if len(spec.Args) != 2 {
		return nil, fmt.Errorf("date_difference_in_years takes exactly 2 args, got %d", len(spec.Args))
	}
	args := make([]node.Value, len(spec.Args))
	for i, name := range spec.Args {
		v, ok := built[name]
		if !ok {
			return nil, fmt.Errorf("function references unknown column %q", name)
		}
		args[i] = v
	}
	return node.DateDifferenceInYears(args[0], args[1]), nil
}

func buildCategory(spec *CategorySpec, built map[string]node.Value) (node.Value, error) {
	defs := make([]node.CategoryDefinition, len(spec.Definitions))
	for i, d := range spec.Definitions {
		cmp, err := buildComparator(d.When, built)
		if err != nil {
			return nil, fmt.Errorf("category definition %q: %w", d.Label, err)
		}
		defs[i] = node.CategoryDefinition{Label: d.Label, When: cmp}
	}
	return node.Categorise(defs, spec.Default), nil
}

func buildComparator(spec *ComparatorSpec, built map[string]node.Value) (*node.Comparator, error) {
	if spec == nil {
		return nil, fmt.Errorf("missing comparator")
	}
	if spec.Connector != "" {
		left, err := buildComparator(spec.Left, built)
		if err != nil {
			return nil, err
		}
		right, err := buildComparator(spec.Right, built)
		if err != nil {
			return nil, err
		}
		var c *node.Comparator
		switch node.Connector(spec.Connector) {
		case node.ConnAnd:
			c = node.And(left, right)
		case node.ConnOr:
			c = node.Or(left, right)
		default:
			return nil, fmt.Errorf("unknown connector %q", spec.Connector)
		}
		if spec.Negated {
			c = node.Not(c)
		}
		return c, nil
	}

	lhs, ok := built[spec.ColumnRef]
	if !ok {
		return nil, fmt.Errorf("comparator references unknown column %q", spec.ColumnRef)
	}
	var rhs any
	if spec.ValueRef != "" {
		v, ok := built[spec.ValueRef]
		if !ok {
			return nil, fmt.Errorf("comparator references unknown column %q", spec.ValueRef)
		}
		rhs = v
	} else {
		rhs = spec.Value
	}
	return &node.Comparator{LHS: lhs, Operator: node.Operator(spec.Op), RHS: rhs, Negated: spec.Negated}, nil
}

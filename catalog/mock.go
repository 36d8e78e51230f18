package catalog

import (
	"fmt"

	"github.com/cohortsql/compiler/cerrors"
	"github.com/cohortsql/compiler/dialect"
)

// MockTable declares one logical table's mapping for MockCatalog.
type MockTable struct {
	// BackendName is the physical table name; defaults to the logical name
	// if empty.
	BackendName string
	// PatientIDColumn defaults to "patient_id" if empty.
	PatientIDColumn string
	Columns         []string
	HasSystemColumn bool
}

// MockCatalog is a BackendCatalog reference implementation for tests and the
// demo CLI. It validates its table mappings eagerly at construction time --
// every declared table must declare at least one column; a table with no
// patient-join column gets "patient_id" -- rather than deferring the check
// to first use, mirroring the
// reference backend's `__init_subclass__` validation (see SPEC_FULL.md
// SUPPLEMENTED FEATURES).
type MockCatalog struct {
	tables           map[string]TableExpression
	typeMap          map[string]string
	maxRowsPerInsert int
	adapter          dialect.Adapter
}

// NewMockCatalog validates and builds a MockCatalog. It returns an error
// immediately if any table mapping is malformed, instead of surfacing an
// UnknownColumn error later mid-compile.
func NewMockCatalog(tables map[string]MockTable, typeMap map[string]string, maxRowsPerInsert int, adapter dialect.Adapter) (*MockCatalog, error) {
	if adapter == nil {
		return nil, &cerrors.DialectError{Dialect: "", Hook: "adapter is required"}
	}
	resolved := make(map[string]TableExpression, len(tables))
	for name, t := range tables {
		backendName := t.BackendName
		if backendName == "" {
			backendName = name
		}
		patientIDColumn := t.PatientIDColumn
		if patientIDColumn == "" {
			patientIDColumn = "patient_id"
		}
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("catalog: table %q declares no columns", name)
		}
		cols := make(map[string]bool, len(t.Columns)+1)
		cols["patient_id"] = true
		for _, c := range t.Columns {
			cols[c] = true
		}
		resolved[name] = TableExpression{
			Name:            backendName,
			PatientIDColumn: patientIDColumn,
			Columns:         cols,
			HasSystemColumn: t.HasSystemColumn,
		}
	}
	return &MockCatalog{
		tables:           resolved,
		typeMap:          typeMap,
		maxRowsPerInsert: maxRowsPerInsert,
		adapter:          adapter,
	}, nil
}

func (c *MockCatalog) TableExpression(name string) (TableExpression, error) {
	t, ok := c.tables[name]
	if !ok {
		return TableExpression{}, &cerrors.UnknownTableError{Table: name}
	}
	return t, nil
}

func (c *MockCatalog) TypeMap() map[string]string { return c.typeMap }
func (c *MockCatalog) MaxRowsPerInsert() int       { return c.maxRowsPerInsert }
func (c *MockCatalog) DialectAdapter() dialect.Adapter { return c.adapter }

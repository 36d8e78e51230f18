package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cohortsql/compiler/catalog"
	"github.com/cohortsql/compiler/dialect"
)

// catalogDocument is the YAML shape of a catalog-mapping document: for each
// logical table name the cohort spec references, the backend-native table
// it projects to plus the columns it exposes. This is the YAML counterpart
// of catalog.MockCatalog, which it builds directly.
type catalogDocument struct {
	MaxRowsPerInsert int                         `yaml:"max_rows_per_insert"`
	TypeMap          map[string]string           `yaml:"type_map"`
	Tables           map[string]catalogTableSpec `yaml:"tables"`
}

type catalogTableSpec struct {
	BackendName     string   `yaml:"backend_name"`
	PatientIDColumn string   `yaml:"patient_id_column"`
	Columns         []string `yaml:"columns"`
	HasSystemColumn bool     `yaml:"has_system_column"`
}

// parseCatalogFile reads and parses path without yet binding it to a
// dialect adapter, so the same parsed document can build a fresh
// BackendCatalog (and fresh Adapter, per §5's "construct a fresh Adapter
// per run") for each spec in a concurrent multi-spec compile.
func parseCatalogFile(path string) (*catalogDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cohortsql: reading catalog file: %w", err)
	}
	var doc catalogDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("cohortsql: parsing catalog file %s: %w", path, err)
	}
	return &doc, nil
}

// buildCatalog binds a parsed catalog document to adapter.
func buildCatalog(doc *catalogDocument, adapter dialect.Adapter) (catalog.BackendCatalog, error) {
	tables := make(map[string]catalog.MockTable, len(doc.Tables))
	for name, t := range doc.Tables {
		tables[name] = catalog.MockTable{
			BackendName:     t.BackendName,
			PatientIDColumn: t.PatientIDColumn,
			Columns:         t.Columns,
			HasSystemColumn: t.HasSystemColumn,
		}
	}

	typeMap := doc.TypeMap
	if typeMap == nil {
		typeMap = adapter.TypeMap()
	}
	maxRows := doc.MaxRowsPerInsert
	if maxRows == 0 {
		maxRows = adapter.MaxRowsPerInsert()
	}

	return catalog.NewMockCatalog(tables, typeMap, maxRows, adapter)
}

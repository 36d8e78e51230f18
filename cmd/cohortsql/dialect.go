package main

import (
	"fmt"

	"github.com/cohortsql/compiler/dialect"
)

// newAdapter constructs a fresh Adapter for name. Concurrent runs'
// temporary-table names stay disjoint (§5) because newTempTableName draws
// fresh randomness per call; callers still get one Adapter per run rather
// than sharing one across concurrent compiles.
func newAdapter(name string) (dialect.Adapter, error) {
	switch name {
	case "mysql":
		return dialect.NewMySQL(), nil
	case "postgres":
		return dialect.NewPostgres(), nil
	case "mssql":
		return dialect.NewMSSQL(), nil
	case "sqlite":
		return dialect.NewSQLite(), nil
	default:
		return nil, fmt.Errorf("cohortsql: unknown dialect %q (want mysql, postgres, mssql, or sqlite)", name)
	}
}

package dialect

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// newTempTableName builds a name per §6: tmp_<YYYYMMDD>_<12 hex chars>_<hint>.
// Fresh randomness per call, rather than a per-adapter counter, is what
// keeps concurrent runs' temp names disjoint (§5) without requiring any
// cross-run coordination.
func newTempTableName(now time.Time, hint string) string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("tmp_%s_%s_%s", now.Format("20060102"), hex.EncodeToString(buf[:]), hint)
}

// canonicalTypeMap is the base name -> SQL type map §4.5 names; dialects
// start from a copy of this and override entries as needed.
func canonicalTypeMap() map[string]string {
	return map[string]string{
		"boolean":  "BOOLEAN",
		"date":     "DATE",
		"datetime": "DATETIME",
		"float":    "FLOAT",
		"integer":  "INTEGER",
		"varchar":  "VARCHAR(255)",
		"code":     "VARCHAR(18)",
	}
}

func mergeTypeMap(overrides map[string]string) map[string]string {
	m := canonicalTypeMap()
	for k, v := range overrides {
		m[k] = v
	}
	return m
}

// CaseSensitiveCollation returns the per-dialect collation name the Plan
// Assembler uses for the codelist table's `code` column (§6: "Case-sensitive
// collation is essential because coding systems are case-sensitive").
func CaseSensitiveCollation(dialectName string) string {
	switch dialectName {
	case "mysql":
		return "utf8mb4_bin"
	case "postgres":
		return "C"
	case "mssql":
		return "Latin1_General_BIN"
	case "sqlite":
		return "BINARY"
	default:
		return "BINARY"
	}
}

// dropAllIgnoringErrors drops every table in names with DROP TABLE IF EXISTS
// using dropStmt to render the per-dialect statement, continuing past
// individual failures and returning the last error seen (if any) so cleanup
// makes a best effort rather than aborting on the first missing object.
func dropAllIgnoringErrors(exec func(stmt string) error, dropStmt func(name string) string, names []string) error {
	var lastErr error
	for _, n := range names {
		if err := exec(dropStmt(n)); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

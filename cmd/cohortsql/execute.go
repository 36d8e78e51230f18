package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cohortsql/compiler/compiler"
	"github.com/cohortsql/compiler/dialect"
)

// executePlan runs plan's statements in order on a single connection. If a
// statement fails, it runs the dialect's cleanup hook before returning the
// error. On success it returns the final statement's *sql.Rows so the
// caller can stream the result, mirroring §5's "yield the final cursor to
// the caller"; it does not run cleanup on that path, since the cursor still
// reads the interim tables, and the caller runs the hook once it is done
// with the rows (see runPlan).
func executePlan(ctx context.Context, db *sql.DB, adapter dialect.Adapter, plan *compiler.Plan) (*sql.Rows, error) {
	var rows *sql.Rows
	cleanup := func() {
		if err := adapter.PostExecuteCleanup(ctx, db, plan.CreatedTables); err != nil {
			slog.Warn("cohortsql: cleanup failed", "error", err)
		}
	}

	for i, stmt := range plan.Statements {
		isLast := i == len(plan.Statements)-1
		if isLast {
			var err error
			rows, err = db.QueryContext(ctx, stmt.SQL)
			if err != nil {
				cleanup()
				return nil, &backendErrorAt{stmt: i, err: err}
			}
			continue
		}
		if _, err := db.ExecContext(ctx, stmt.SQL); err != nil {
			cleanup()
			return nil, &backendErrorAt{stmt: i, err: err}
		}
	}
	return rows, nil
}

// backendErrorAt reports which statement in the plan failed, wrapping the
// driver error verbatim per §7's "surfaced verbatim" BackendError contract.
type backendErrorAt struct {
	stmt int
	err  error
}

func (e *backendErrorAt) Error() string {
	return fmt.Sprintf("cohortsql: statement %d failed: %v", e.stmt, e.err)
}

func (e *backendErrorAt) Unwrap() error { return e.err }

// connOptions is the structured connection detail --host/--port/--user/
// --password/--db-name/--ssl-mode resolve to, mirroring cmd/mysqldef's
// database.Config shape rather than a single opaque DSN string.
type connOptions struct {
	host, user, password, dbName, sslMode string
	port                                  int
}

// openAdapterDB opens a *sql.DB for dialectName via the dialect package's
// own Open* functions, each of which builds that dialect's DSN and knows
// its own database/sql driver name.
func openAdapterDB(dialectName string, conn connOptions) (*sql.DB, error) {
	switch dialectName {
	case "mysql":
		return dialect.OpenMySQL(conn.host, conn.port, conn.user, conn.password, conn.dbName)
	case "postgres":
		return dialect.OpenPostgres(conn.host, conn.port, conn.user, conn.password, conn.dbName, conn.sslMode)
	case "mssql":
		return dialect.OpenMSSQL(conn.host, conn.port, conn.user, conn.password, conn.dbName)
	case "sqlite":
		return dialect.OpenSQLite(conn.dbName)
	default:
		return nil, fmt.Errorf("cohortsql: unknown dialect %q", dialectName)
	}
}

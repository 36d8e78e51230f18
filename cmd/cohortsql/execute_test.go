package main

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	_ "modernc.org/sqlite"

	"github.com/cohortsql/compiler/compiler"
	"github.com/cohortsql/compiler/dialect"
	"github.com/cohortsql/compiler/planner"
)

type cleanupTrackingAdapter struct {
	dialect.SQLite
	calls int
}

func (a *cleanupTrackingAdapter) PostExecuteCleanup(ctx context.Context, db *sql.DB, createdTables []string) error {
	a.calls++
	return a.SQLite.PostExecuteCleanup(ctx, db, createdTables)
}

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestExecutePlanReturnsFinalCursor(t *testing.T) {
	db := openMemDB(t)
	adapter := &cleanupTrackingAdapter{}
	plan := &compiler.Plan{
		Statements: []planner.Statement{
			{SQL: "SELECT 1 AS patient_id"},
		},
	}
	rows, err := executePlan(context.Background(), db, adapter, plan)
	assert.NoError(t, err)
	defer rows.Close()
	assert.True(t, rows.Next())
	var id int
	assert.NoError(t, rows.Scan(&id))
	assert.Equal(t, 1, id)
}

func TestExecutePlanRunsCleanupOnStatementError(t *testing.T) {
	db := openMemDB(t)
	adapter := &cleanupTrackingAdapter{}
	plan := &compiler.Plan{
		Statements: []planner.Statement{
			{SQL: "CREATE TABLE nope_this_is_not_valid_sql ("},
			{SQL: "SELECT 1"},
		},
	}
	_, err := executePlan(context.Background(), db, adapter, plan)
	assert.Error(t, err)
	var beErr *backendErrorAt
	assert.ErrorAs(t, err, &beErr)
	assert.Equal(t, 0, beErr.stmt)
	assert.Equal(t, 1, adapter.calls, "cleanup must run on the error exit path")
}

func TestExecutePlanRunsCleanupOnFinalQueryError(t *testing.T) {
	db := openMemDB(t)
	adapter := &cleanupTrackingAdapter{}
	plan := &compiler.Plan{
		Statements: []planner.Statement{
			{SQL: "SELECT * FROM no_such_table"},
		},
	}
	_, err := executePlan(context.Background(), db, adapter, plan)
	assert.Error(t, err)
	assert.Equal(t, 1, adapter.calls)
}

func TestBackendErrorAtUnwrapsDriverError(t *testing.T) {
	driverErr := errors.New("driver exploded")
	e := &backendErrorAt{stmt: 2, err: driverErr}
	assert.ErrorIs(t, e, driverErr)
	assert.Contains(t, e.Error(), "statement 2")
}

func TestOpenAdapterDBUnknownDialect(t *testing.T) {
	_, err := openAdapterDB("oracle", connOptions{dbName: "dsn"})
	assert.Error(t, err)
}

func TestOpenAdapterDBKnownDialectLazy(t *testing.T) {
	db, err := openAdapterDB("sqlite", connOptions{dbName: ":memory:"})
	assert.NoError(t, err)
	defer db.Close()
}

// Package cerrors defines the compiler's error taxonomy: every failure mode
// a caller needs to distinguish is its own exported type, carrying the
// offending node/table/column, rather than a string-matched error.
package cerrors

import "fmt"

// ShapeError reports a lowered chain that does not match
// Table -> Filter* -> Row?, a base node that is not a Table, or a category
// LHS that is not a Value.
type ShapeError struct {
	Detail string
	Node   any
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape error: %s", e.Detail)
}

// UnknownTableError reports a table name absent from the BackendCatalog.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q", e.Table)
}

// UnknownColumnError reports a column absent from a resolved table.
type UnknownColumnError struct {
	Table  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("table %q has no column %q", e.Table, e.Column)
}

// UnsupportedFunctionError reports a ValueFromFunction kind with no
// registered lowering strategy for the active dialect.
type UnsupportedFunctionError struct {
	Dialect string
	Kind    string
}

func (e *UnsupportedFunctionError) Error() string {
	return fmt.Sprintf("dialect %q has no lowering for function %q", e.Dialect, e.Kind)
}

// CodelistError reports an empty codelist, or a code too long for the
// codelist table's column.
type CodelistError struct {
	Detail string
}

func (e *CodelistError) Error() string {
	return fmt.Sprintf("codelist error: %s", e.Detail)
}

// DialectError reports a missing required dialect hook.
type DialectError struct {
	Dialect string
	Hook    string
}

func (e *DialectError) Error() string {
	return fmt.Sprintf("dialect %q is missing required hook %q", e.Dialect, e.Hook)
}

// BackendError wraps a database/sql execution error verbatim. Per the error
// taxonomy, a BackendError is never itself wrapped by a further layer --
// it is the terminal node in any error chain the compiler produces, though
// it wraps the underlying driver error with %w so callers can still use
// errors.Is/errors.Unwrap against the original driver error.
type BackendError struct {
	Statement string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error executing %q: %v", e.Statement, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

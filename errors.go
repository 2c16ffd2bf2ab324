package loom

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a write targets a row that does not exist.
	ErrNotFound = errors.New("loom: record not found")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("loom: cannot start a transaction within a transaction")
)

// SchemaError represents malformed or missing table or relation
// configuration. It is fatal, surfaced immediately, and never retried.
type SchemaError struct {
	Table string
	Msg   string
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("loom: schema: %s: %s", e.Table, e.Msg)
}

// NewSchemaError returns a new SchemaError for the given table.
func NewSchemaError(table, format string, args ...any) *SchemaError {
	return &SchemaError{Table: table, Msg: fmt.Sprintf(format, args...)}
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}

// ValidationError reports fields that make a write invalid before any
// statement executes: required fields missing on create, or fields that
// are not declared in the schema. The offending fields are listed
// exactly, in sorted order.
type ValidationError struct {
	Table   string
	Op      string
	Missing []string // required fields absent from the write set
	Invalid []string // fields not declared on the table
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required fields [%s]", strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("undeclared fields [%s]", strings.Join(e.Invalid, ", ")))
	}
	if len(parts) == 0 {
		parts = append(parts, "invalid input")
	}
	return fmt.Sprintf("loom: validating %s (%s): %s", e.Table, e.Op, strings.Join(parts, "; "))
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// NotFoundError represents an error when a keyed write targets a record
// that does not exist. Single-record reads and delete-by-key represent
// absence as a nil record instead.
type NotFoundError struct {
	table string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("loom: %s not found (id=%v)", e.table, e.id)
	}
	return fmt.Sprintf("loom: %s not found", e.table)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Table returns the table the lookup targeted.
func (e *NotFoundError) Table() string {
	return e.table
}

// ID returns the key that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given table and key.
func NewNotFoundError(table string, id any) *NotFoundError {
	return &NotFoundError{table: table, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// QueryError wraps a read failure from the backing store with table and
// operation context. Raw backing-store errors are never surfaced without it.
type QueryError struct {
	Table string
	Op    string
	Err   error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return fmt.Sprintf("loom: querying %s (%s): %v", e.Table, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(table, op string, err error) *QueryError {
	return &QueryError{Table: table, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a write failure from the backing store with table
// and operation context.
type MutationError struct {
	Table string
	Op    string
	Err   error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("loom: %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(table, op string, err error) *MutationError {
	return &MutationError{Table: table, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// RollbackError wraps a rollback failure together with the error that
// triggered the rollback, so neither is lost.
type RollbackError struct {
	Cause error // original error that triggered the rollback
	Err   error // error returned by the rollback itself
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("loom: rolling back after %v: %v", e.Cause, e.Err)
}

// Unwrap returns the original error that triggered the rollback.
func (e *RollbackError) Unwrap() error {
	return e.Cause
}

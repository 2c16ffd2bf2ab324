package dialect

import "context"

// Dialect names supported by the engine.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two standard database operations used by the engine.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. For example,
	// in SQL: INSERT or UPDATE. It scans the result into v when v is a
	// non-nil *sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows, typically a SELECT,
	// and scans the rows into v.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all database operations.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transactional behavior on top of an active connection.
type Tx interface {
	ExecQuerier
	// Commit commits the transaction.
	Commit() error
	// Rollback discards the transaction.
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx with a no-op Commit / Rollback operations.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

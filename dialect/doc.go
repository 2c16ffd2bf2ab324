// Package dialect provides the database abstraction used by the Loom engine.
//
// It defines the interfaces and constants for database-specific operations,
// allowing Loom to target multiple backends from one schema definition.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The Driver interface is the engine's only view of the backing store:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback, scoping a
// unit of work to a single connection so that statements inside the scope
// observe each other's uncommitted writes.
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/syssam/loom/dialect"
//	    "github.com/syssam/loom/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: database/sql-backed driver implementation, statement
//     statistics and constraint-error classification.
package dialect

// Package sql implements the dialect.Driver interface on top of database/sql.
//
// It is the execution transport of the Loom engine: statement text is built
// elsewhere (see package sqlgen) and handed to this package for execution
// against PostgreSQL, MySQL or SQLite.
//
// # Driver
//
// Open a driver directly, or wrap an existing *sql.DB:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	drv := sql.OpenDB(dialect.SQLite, db)
//
// # Instrumentation
//
// Two wrappers compose over any *Driver:
//
//   - StatsDriver collects query counters and detects slow queries,
//     optionally logging them through log/slog.
//   - DebugDriver logs every statement and transaction boundary.
//
// # Constraint Errors
//
// IsUniqueConstraintError, IsForeignKeyConstraintError and
// IsCheckConstraintError classify backend errors across the supported
// dialects using SQLSTATE codes, MySQL error numbers and string fallbacks.
package sql

// Package store connects query execution to a database.
//
// A Store wraps an sqlx handle and a dialect dictionary and implements the
// connection boundary the sql package executes through: every statement
// runs on its own pooled connection, which the result closes.
//
// # Database Configuration
//
// SQLite databases are opened with:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// In-memory databases use a shared cache so that a statement running while
// another result is still open sees the same data.
//
// SyncSchema creates the tables of a mapping repository, and Insert and
// InsertEntity load rows. They exist for tests, scenarios and the CLI; the
// query core never writes.
package store

// Package store manages the SQLite connection that executes generated
// statements locally.
//
// # Database Configuration
//
//   - WAL mode for file databases: concurrent reads during writes
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - a single open connection, so ":memory:" databases are not split
//     across connections
//
// Statements are read-only; the store never creates tables. Result values
// are returned as the driver produced them and typed by the caller.
package store

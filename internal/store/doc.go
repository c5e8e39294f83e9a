// Package store writes the mirror into a SQLite database.
//
// A run creates every table in one transaction, then writes each endpoint's
// records in one transaction of its own. A failure part way through leaves
// the endpoints already written committed and the failing one empty.
//
// # Database Configuration
//
//   - synchronous=OFF: the mirror is rebuilt, not recovered
//   - foreign_keys=OFF: constraints are declared, not enforced on insert
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// The file is vacuumed at the end of a run.
package store

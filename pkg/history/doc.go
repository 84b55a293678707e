// Package history records install and update passes in a SQL database.
//
// Each pass produces one row: its ID, operation, outcome, counts and a JSON
// document with the plugin names behind those counts. Rows are written when a
// pass ends, whether it succeeded, failed before touching disk, or was rolled
// back.
//
// SQLite (github.com/mattn/go-sqlite3) and PostgreSQL (github.com/lib/pq) are
// supported. Open picks the driver from the DSN scheme:
//
//	sqlite3:///var/lib/pluginsync/history.db
//	postgres://user:pass@db:5432/pluginsync?sslmode=disable
//
// The binary imports both drivers; this package only refers to them by name.
package history

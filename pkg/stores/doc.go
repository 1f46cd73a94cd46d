// Package stores provides the SQLite-backed reference persistence layer.
//
// One SQLiteStore implements every collaborator interface the decision
// packages consume. The schema is managed by embedded golang-migrate
// migrations and the connection runs in WAL mode so decision reads are
// never blocked by audit appends.
package stores

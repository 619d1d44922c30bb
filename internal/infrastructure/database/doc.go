// Package database manages the SQLite connection and schema migrations for
// Sugarline Core.
//
// The database file is opened in WAL mode with a busy timeout and restricted
// permissions. Schema migrations are embedded into the binary by the
// top-level migrations package and applied at startup, each in its own
// transaction.
package database

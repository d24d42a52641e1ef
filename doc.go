// Package liteorm maps Go record types onto SQLite tables and gives them a
// small object/relational session API.
//
// First, a record type describes itself. Each mapped type T has a pointer
// method Schema returning a Schema[T]: the table name, the columns with
// their affinity, nullability, default and key flags, and a Field accessor
// per column returning a pointer to the struct field behind it. There is no
// struct-tag reflection; the accessor pointer is bound directly as the
// statement argument on writes and used as the scan destination on reads.
// The Schema is turned once into an immutable TableMapping, which is where
// every statement's text comes from.
//
// A Session owns one connection to a database file. CreateTable brings a
// table in line with its mapping: it renames a table from a previous name,
// creates a missing table, or adds missing columns to an existing one, and
// creates declared indexes. Migration only ever adds columns. Insert,
// Update, Delete and friends bind the mapped fields of one record;
// DeferredQuery returns an iter.Seq2 that runs its query each time it is
// ranged over and builds one record per row.
//
// Transactions are explicit BEGIN, COMMIT and ROLLBACK statements on the
// session's connection, with a stack of named savepoints. RunInTransaction
// composes: called while a transaction is active it runs inside an
// anonymous savepoint instead, so operations that manage their own
// transaction, like CreateTable and InsertAll, nest inside a caller's.
//
// A Session is not safe for concurrent use. A Pool keeps one Session per
// database target and runs operations on them in the background, returning
// a Future per operation. Each operation holds a worker slot and the
// Session's guard for its whole duration, so operations on one target are
// serialized while different targets proceed in parallel.
//
// Finally, Snapshot copies tables into a fresh database file written page by
// page, without the engine, one writer goroutine per table.
//
// Configuration comes from LITEORM_* environment variables (see Config);
// logging goes through log/slog and every statement is an OpenTelemetry
// span. The default build uses the pure Go driver modernc.org/sqlite; build
// with -tags cgo_sqlite to use github.com/mattn/go-sqlite3 instead.
package liteorm

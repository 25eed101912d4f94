// Package sqlite implements the db.KVDB interface on top of a sqlite database file
// (github.com/mattn/go-sqlite3).
//
// Entries live in a single table (key, value, expire_at). Conditional writes
// (SetEIfUnset and CompareAndSwap) are single statements whose WHERE clause performs
// the comparison, so they are atomic without explicit transactions. Expired rows are
// invisible to reads and removed by a background collector.
//
// The engine does not implement Save and Load: the database file already is the
// persistent state. It is therefore only usable for local (non replicated) stores.
package sqlite

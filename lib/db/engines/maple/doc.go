// Package maple implements an in-memory key-value database (KVDB) with
// fine-grained concurrency control and time-based expiration. It provides a complete
// implementation of the db.KVDB interface with a focus on thread safety and
// predictable memory usage.
//
// The package focuses on:
//   - Concurrent access through sharding and per-key atomic map operations
//   - Expiration in whole seconds with a pluggable clock
//   - Garbage collection of expired entries without blocking readers or writers
//   - Compressed binary snapshots for persistence and raft state transfer
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages shards,
//     coordinates garbage collection, and provides the public API for key-value
//     operations. Writes that set an expiration receive the current time from the
//     caller; reads use the clock configured in DBOptions.
//
//   - Shard: A partition of the database that manages a subset of the key space.
//     Each shard contains its own data map and an expiry heap of deadlines. Shards
//     operate independently to minimize contention.
//
//   - Entry: The stored value together with its absolute expiration (unix seconds,
//     0 = never).
//
// Internal Mechanisms:
//
//   - Sharding Strategy: keys are hashed with FNV-1a and the hash is right-shifted by
//     7 bits before taking the modulo, to use higher-quality bits for distribution.
//
//   - Conditional Writes: SetEIfUnset and CompareAndSwap run inside the atomic compute
//     callback of the shard map, so the comparison and the write can't be interleaved
//     with another writer of the same key. Expired entries are treated as absent.
//
//   - Garbage Collection: a single background goroutine pops due deadlines from every
//     shard's expiry heap at GCInterval and removes the entries after re-checking them.
//     Entries that were rewritten with a later deadline are re-scheduled.
//
//   - Snapshots: Save writes the magic number "MAPLEDB\x00" and a version byte followed
//     by a zstd compressed stream of (key, expireAt, value) records. Expired entries are
//     skipped. Load replaces the whole database only after the snapshot was read.
//
// Thread Safety:
//
//	All operations except Load are safe for concurrent use.
//
// Usage Example:
//
//	database := maple.NewMapleDB(nil)
//	defer database.Close()
//
//	now := uint64(time.Now().Unix())
//	_ = database.SetE("session:123", data, now, 300)
//	value, ok, _ := database.Get("session:123")
package maple

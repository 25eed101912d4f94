// Package db provides a standardized interface for key-value database implementations.
// It defines a KVDB interface that allows for consistent interaction with various
// database backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for key-value operations
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Set, Get, Delete),
//     time-based operations (SetE, TTL), conditional operations (SetEIfUnset,
//     CompareAndSwap), prefix enumeration (Keys), metadata retrieval (GetInfo),
//     and persistence operations (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. This allows clients to
//     discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the different database backends ("maple", "sqlite").
//
// Note on Time-Based Operations:
//   - Expiration is expressed in whole seconds. Writes that set an expiration receive
//     the current unix time from the caller. This keeps replicated state machines
//     deterministic: every replica computes the same expiration timestamp.
//   - Reads compare against the clock the database was created with. An expired entry
//     is never returned by Get, never listed by Keys and reports TTLMissing.
//   - Conditional writes (SetEIfUnset, CompareAndSwap) treat expired entries as absent.
//
// Note on Garbage Collection:
//   - Implementations must ensure that expired entries are eventually removed to prevent
//     memory leaks. Logical expiry and physical removal are separate: an entry may still
//     exist internally pending collection, but it must be invisible to every read.
//
// Related Packages:
//
// The engines/maple package provides a sharded in-memory implementation with background
// garbage collection and zstd compressed snapshots. The engines/sqlite package provides a
// durable single-node implementation. The testing package provides a conformance suite
// (RunKVDBTests) every implementation is expected to pass.
package db

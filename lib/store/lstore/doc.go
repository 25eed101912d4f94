// Package lstore implements a local, single-node key-value store based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB
// implementation that supplies the current time to writes with an expiration.
//
// Key Features:
//   - Direct integration with db.KVDB implementations (maple in memory, sqlite on disk)
//   - Pluggable clock, so expiration can be tested deterministically
//   - Feature detection to handle unsupported operations gracefully
//   - Thread-safe operations for concurrent access
//
// Implementation Details:
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.KVDB implementation supports the requested feature through the SupportsFeature
//     method. Unsupported operations return store.RetCUnsupportedOperation.
//
//   - Error Mapping: Errors of the database are reported as store.Error with the code
//     store.RetCInternalError.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	// Store a value with 5-minute expiration
//	err := s.SetE("session:123", sessionData, 300)
//
//	// Retrieve the value
//	value, exists, err := s.Get("session:123")
//
// For distributed scenarios requiring consensus across multiple nodes, use
// the dstore package instead, which provides a RAFT-based implementation
// of the same interface.
package lstore

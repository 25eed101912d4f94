// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - functions: Hash functions used for shard selection and stable node identifiers
//   - expiryheap: A priority queue of expiration deadlines that also supports key-based access
package util

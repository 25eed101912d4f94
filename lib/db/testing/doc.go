// Package testing provides a standardised conformance suite for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A test suite for validating conformance to the KVDB interface contract,
//     including expiration, conditional writes and prefix enumeration
//   - clock: A manually advanced clock, so expiration can be tested without sleeping
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(clock func() time.Time) db.KVDB {
//		return NewMyDatabase(clock)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
package testing

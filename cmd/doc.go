// Package cmd implements the dcov command-line interface.
//
// The package is organized into several subpackages:
//
//   - serve: starts a dcov server hosting store and lock manager shards
//   - report: saves, shows and clears coverage reports
//   - kv: raw key inspection of a store shard
//   - lock: lock operations (acquire, release)
//   - util: shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables with the DCOV_ prefix
// (e.g. DCOV_TRANSPORT_ENDPOINTS), .env and .env.local files are loaded.
// See dcov -help for a list of all commands.
package cmd

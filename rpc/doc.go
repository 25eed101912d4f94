// Package rpc is the communication layer between dcov clients and servers.
// It lets the coverage store run against a key-value store hosted by a
// remote process.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, configuration structures and logging.
//
//   - transport: network communication abstractions, implemented over HTTP.
//
//   - serializer: Message serialization (JSON, GOB).
//
//   - client: store.IStore and lockmgr.ILockManager implementations that forward
//     every call to a server.
//
//   - server: hosts store and lock manager shards and routes requests to them.
package rpc

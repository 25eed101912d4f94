// Package common provides the data structures shared by the RPC client and server.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Which fields are used
//     depends on the MessageType; factory functions create the requests and responses
//     of every store and lock manager operation.
//
//   - ServerConfig: configuration of a server node, including the shards, the storage
//     engine, RAFT parameters and the listen address. Provides the conversion to
//     Dragonboat configurations.
//
//   - ClientConfig: endpoints, timeouts and retry behavior of clients.
//
//   - Logger: logging implementation that plugs into Dragonboat's logger factory, so
//     that every package logs in the same format (LEVEL | package | message).
package common

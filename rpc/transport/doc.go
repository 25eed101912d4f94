// Package transport defines the interfaces for RPC communication between
// clients and servers. Implementations only move opaque byte slices; the
// serializer package turns them into messages.
//
// Key Components:
//
//   - IRPCClientTransport: client side, handles connection management and request sending.
//
//   - IRPCServerTransport: server side, receives requests and routes them by shard id to
//     the registered ServerHandleFunc.
//
// The only implementation is the http subpackage.
package transport

// Package http implements the HTTP transport layer for RPC communication.
// It provides the concrete implementations of the transport interfaces defined
// in the parent package.
//
// Requests are sent as POST /{shardId} with the serialized message as body. The
// server routes the body to the registered handler and writes the serialized
// response back. The same listener serves GET /metrics in the Prometheus text
// format (github.com/VictoriaMetrics/metrics), including the counters of the
// coverage store.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Endpoints are selected
//     round-robin and failed requests are retried RetryCount times.
//
//   - httpServerTransport: Implements IRPCServerTransport on top of NewHandler.
//
//   - NewHandler: The http.Handler of the server transport. Exposed so that it can be
//     mounted in an existing server or in a httptest.Server.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
package http

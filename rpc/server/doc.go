// Package server implements the RPC server. It hosts store and lock manager
// shards and routes incoming requests to them.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface with the Handle method that processes an incoming
//     request against a store.IStore.
//
//   - NewIStoreServerAdapter: translates requests to store.IStore calls, including the
//     conditional writes (SetEIfUnset, CompareAndSwap) and prefix enumeration the
//     coverage store depends on.
//
//   - NewLockManagerServerAdapter: creates a lockmgr.ILockManager on top of the shard's store.
//
//   - NewRPCServer: creates a server with the given transport and serializer.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalIStore},
//	    {ShardID: 200, Type: common.ShardTypeLocalILockManager},
//	  },
//	  Engine:        common.EngineSQLite,
//	  SQLitePath:    "/var/lib/dcov",
//	  Endpoint:      "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewJSONSerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Shard types can be mixed within a single server:
//
//   - ShardTypeLocalIStore and ShardTypeLocalILockManager: backed by a local store on the
//     configured engine (maple or sqlite).
//
//   - ShardTypeRemoteIStore and ShardTypeRemoteILockManager: replicated with raft. The raft
//     settings (RTTMillisecond, SnapshotEntries, CompactionOverhead, DataDir, ReplicaID and
//     ClusterMembers) must be configured. Remote shards always use the maple engine because
//     raft needs snapshots.
//
// Thread Safety:
//
//	Requests are processed concurrently. Init and Serve must be called only once.
package server

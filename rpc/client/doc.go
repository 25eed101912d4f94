// Package client implements RPC clients for the store.IStore and
// lockmgr.ILockManager interfaces. A client forwards every operation to a
// shard of a remote server; errors reported by the server are returned as
// plain errors.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	kv, _ := client.NewRPCStore(100, config, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
//	coverage, _ := covstore.New(kv, covstore.WithNamespace("app"))
//
//	locks, _ := client.NewRPCLockMgr(200, config, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
//	acquired, ownerID, _ := locks.AcquireLock("mylock", 30)
//	if acquired {
//	  locks.ReleaseLock("mylock", ownerID)
//	}
//
// Thread Safety:
//
//	All client implementations are safe for concurrent use.
package client

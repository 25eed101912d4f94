package server

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/ValentinKolb/dcov/lib/db/engines/maple"
	"github.com/ValentinKolb/dcov/lib/db/engines/sqlite"
	"github.com/ValentinKolb/dcov/lib/store"
	"github.com/ValentinKolb/dcov/lib/store/dstore"
	"github.com/ValentinKolb/dcov/lib/store/lstore"
	"github.com/ValentinKolb/dcov/rpc/common"
	"github.com/ValentinKolb/dcov/rpc/serializer"
	"github.com/ValentinKolb/dcov/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the shard ID, the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// RPCServer hosts a set of store and lock manager shards behind a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	nodeHost   *dragonboat.NodeHost
}

// handle decodes a request, lets the shard's adapter handle it and encodes the response
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response for shard %d: %v", shardId, err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// dbFactory returns the factory of the configured engine for the given shard.
// sqlite databases are opened here so that a bad path fails the server start.
func (s *RPCServer) dbFactory(shardId uint64) (store.DBFactory, error) {
	if s.config.Engine != common.EngineSQLite {
		return func() db.KVDB { return maple.NewMapleDB(nil) }, nil
	}

	opts := sqlite.DefaultOptions()
	if s.config.SQLitePath != "" {
		opts.Path = filepath.Join(s.config.SQLitePath, "shard-"+strconv.FormatUint(shardId, 10)+".db")
	}
	database, err := sqlite.NewSQLiteDB(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database for shard %d: %w", shardId, err)
	}
	return func() db.KVDB { return database }, nil
}

// Init creates all configured shards and registers the request handler at the transport.
// Serve calls Init, it only needs to be called directly when the transport is driven by
// the caller (e.g. in tests).
func (s *RPCServer) Init() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	common.InitLoggers(s.config.LogLevel)
	Logger.Infof(s.config.String())

	// Only create the NodeHost if we have remote shards
	if s.config.HasRemoteShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// Configure the timeout for the distributed store
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	/*
		Note: A single RPC Server can have any number of remote and or local shards.
		Each shard can be a store or a lock manager. The following loop creates all
		the shards and stores them for the RPC server.
	*/

	for _, shardConfig := range s.config.Shards {
		factory, err := s.dbFactory(shardConfig.ShardID)
		if err != nil {
			return err
		}

		var adapter IRPCServerAdapter
		switch shardConfig.Type {
		case common.ShardTypeLocalIStore, common.ShardTypeRemoteIStore:
			adapter = NewIStoreServerAdapter()
		case common.ShardTypeLocalILockManager, common.ShardTypeRemoteILockManager:
			adapter = NewLockManagerServerAdapter()
		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}

		var shardStore store.IStore
		if shardConfig.Type.IsRemote() {
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, dstore.CreateStateMaschineFactory(factory), s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			shardStore = dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout)
		} else {
			shardStore = lstore.NewLocalStore(factory)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{Store: shardStore, Adapter: adapter})
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	Logger.Infof("dcov setup completed successfully")

	s.transport.RegisterHandler(s.handle)
	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer
func (s *RPCServer) Serve() error {
	if err := s.Init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the raft node host if one was started
func (s *RPCServer) Close() {
	if s.nodeHost != nil {
		s.nodeHost.Close()
	}
}

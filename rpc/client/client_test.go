package client

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/dcov/lib/coverage"
	"github.com/ValentinKolb/dcov/lib/covstore"
	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/ValentinKolb/dcov/lib/lockmgr"
	"github.com/ValentinKolb/dcov/lib/store"
	"github.com/ValentinKolb/dcov/rpc/common"
	"github.com/ValentinKolb/dcov/rpc/serializer"
	"github.com/ValentinKolb/dcov/rpc/server"
	"github.com/ValentinKolb/dcov/rpc/transport"
	rpchttp "github.com/ValentinKolb/dcov/rpc/transport/http"
)

const (
	storeShard = 100
	lockShard  = 200
)

// captureTransport keeps the handler registered by the server so the test can
// mount it in a httptest.Server
type captureTransport struct {
	handler transport.ServerHandleFunc
}

func (c *captureTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	c.handler = handler
}

func (c *captureTransport) Listen(common.ServerConfig) error {
	return errors.New("not used")
}

// startServer runs an RPC server with a local store and a local lock manager shard
func startServer(t *testing.T, engine string, ser serializer.IRPCSerializer) *httptest.Server {
	t.Helper()
	tr := &captureTransport{}
	s := server.NewRPCServer(common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: storeShard, Type: common.ShardTypeLocalIStore},
			{ShardID: lockShard, Type: common.ShardTypeLocalILockManager},
		},
		Engine:        engine,
		TimeoutSecond: 5,
		LogLevel:      "error",
	}, tr, ser)
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	ts := httptest.NewServer(rpchttp.NewHandler(tr.handler, false))
	t.Cleanup(ts.Close)
	return ts
}

func clientConfig(ts *httptest.Server) common.ClientConfig {
	return common.ClientConfig{
		Endpoints:     []string{ts.URL},
		TimeoutSecond: 5,
		RetryCount:    1,
	}
}

func newStoreClient(t *testing.T, ts *httptest.Server, ser serializer.IRPCSerializer, shard uint64) store.IStore {
	t.Helper()
	kv, err := NewRPCStore(shard, clientConfig(ts), rpchttp.NewHttpClientTransport(), ser)
	if err != nil {
		t.Fatalf("NewRPCStore failed: %v", err)
	}
	return kv
}

var testSerializers = map[string]func() serializer.IRPCSerializer{
	"JSON": serializer.NewJSONSerializer,
	"GOB":  serializer.NewGOBSerializer,
}

func TestRPCStore(t *testing.T) {
	for _, engine := range []string{common.EngineMaple, common.EngineSQLite} {
		for name, factory := range testSerializers {
			t.Run(engine+"/"+name, func(t *testing.T) {
				ser := factory()
				kv := newStoreClient(t, startServer(t, engine, ser), ser, storeShard)

				if err := kv.Set("a", []byte("1")); err != nil {
					t.Fatalf("Set failed: %v", err)
				}
				if value, ok, err := kv.Get("a"); err != nil || !ok || string(value) != "1" {
					t.Errorf("Get = %q, %v, %v", value, ok, err)
				}
				if _, ok, _ := kv.Get("missing"); ok {
					t.Errorf("Get of a missing key should not be ok")
				}

				if ok, err := kv.SetEIfUnset("a", []byte("2"), 0); err != nil || ok {
					t.Errorf("SetEIfUnset on an existing key = %v, %v", ok, err)
				}
				if ok, err := kv.SetEIfUnset("b", []byte("2"), 60); err != nil || !ok {
					t.Errorf("SetEIfUnset on a new key = %v, %v", ok, err)
				}

				if ttl, err := kv.TTL("a"); err != nil || ttl != db.TTLNoExpiry {
					t.Errorf("TTL(a) = %d, %v", ttl, err)
				}
				if ttl, err := kv.TTL("b"); err != nil || ttl <= 0 || ttl > 60 {
					t.Errorf("TTL(b) = %d, %v", ttl, err)
				}
				if ttl, err := kv.TTL("missing"); err != nil || ttl != db.TTLMissing {
					t.Errorf("TTL(missing) = %d, %v", ttl, err)
				}

				if ok, err := kv.CompareAndSwap("a", []byte("x"), []byte("3"), 0); err != nil || ok {
					t.Errorf("CompareAndSwap with a wrong old value = %v, %v", ok, err)
				}
				if ok, err := kv.CompareAndSwap("a", []byte("1"), []byte("3"), 0); err != nil || !ok {
					t.Errorf("CompareAndSwap with the right old value = %v, %v", ok, err)
				}
				if ok, err := kv.CompareAndSwap("c", nil, []byte("new"), 0); err != nil || !ok {
					t.Errorf("CompareAndSwap on an absent key = %v, %v", ok, err)
				}
				if ok, err := kv.CompareAndSwap("c", nil, []byte("again"), 0); err != nil || ok {
					t.Errorf("CompareAndSwap expecting absence on an existing key = %v, %v", ok, err)
				}

				keys, err := kv.Keys("")
				if err != nil {
					t.Fatalf("Keys failed: %v", err)
				}
				if want := []string{"a", "b", "c"}; !reflect.DeepEqual(keys, want) {
					t.Errorf("Keys = %v, want %v", keys, want)
				}

				if err := kv.Delete("a"); err != nil {
					t.Errorf("Delete failed: %v", err)
				}
				if _, ok, _ := kv.Get("a"); ok {
					t.Errorf("deleted key still present")
				}

				info, err := kv.GetDBInfo()
				if err != nil {
					t.Fatalf("GetDBInfo failed: %v", err)
				}
				if string(info.DbType) != engine || info.KeyCount != 2 {
					t.Errorf("GetDBInfo = %+v", info)
				}
			})
		}
	}
}

func TestRPCStoreEmptyValue(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	kv := newStoreClient(t, startServer(t, common.EngineMaple, ser), ser, storeShard)

	if err := kv.Set("empty", []byte{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := kv.Get("empty")
	if err != nil || !ok || value == nil || len(value) != 0 {
		t.Errorf("Get = %v, %v, %v, want empty non-nil value", value, ok, err)
	}
	if ok, err := kv.CompareAndSwap("empty", []byte{}, []byte("full"), 0); err != nil || !ok {
		t.Errorf("CompareAndSwap against an empty value = %v, %v", ok, err)
	}
}

func TestRPCErrors(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	ts := startServer(t, common.EngineMaple, ser)

	// unknown shard
	kv := newStoreClient(t, ts, ser, 999)
	if err := kv.Set("a", []byte("1")); err == nil || !strings.Contains(err.Error(), "shard 999 not found") {
		t.Errorf("expected shard not found error, got %v", err)
	}

	// lock operations are not served by store shards
	locks, err := NewRPCLockMgr(storeShard, clientConfig(ts), rpchttp.NewHttpClientTransport(), ser)
	if err != nil {
		t.Fatalf("NewRPCLockMgr failed: %v", err)
	}
	if _, _, err := locks.AcquireLock("l", 10); err == nil {
		t.Errorf("expected unsupported message type error")
	}

	// unreachable server
	ts.Close()
	if _, _, err := newStoreClient(t, ts, ser, storeShard).Get("a"); err == nil {
		t.Errorf("expected transport error after the server was closed")
	}
}

func TestRPCLockMgr(t *testing.T) {
	ser := serializer.NewGOBSerializer()
	ts := startServer(t, common.EngineMaple, ser)

	locks, err := NewRPCLockMgr(lockShard, clientConfig(ts), rpchttp.NewHttpClientTransport(), ser)
	if err != nil {
		t.Fatalf("NewRPCLockMgr failed: %v", err)
	}

	ok, owner, err := locks.AcquireLock("record", 30)
	if err != nil || !ok || len(owner) == 0 {
		t.Fatalf("AcquireLock = %v, %q, %v", ok, owner, err)
	}
	if ok, _, _ := locks.AcquireLock("record", 30); ok {
		t.Errorf("lock acquired twice")
	}
	if ok, _ := locks.ReleaseLock("record", []byte("someone else")); ok {
		t.Errorf("lock released by a foreign owner")
	}
	if ok, err := locks.ReleaseLock("record", owner); err != nil || !ok {
		t.Errorf("ReleaseLock = %v, %v", ok, err)
	}
	if ok, _, _ := locks.AcquireLock("record", 30); !ok {
		t.Errorf("lock could not be acquired after release")
	}
}

// TestCoverageOverRPC runs the coverage store against a remote store shard, with
// record locks served by the lock manager shard
func TestCoverageOverRPC(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	ts := startServer(t, common.EngineSQLite, ser)
	kv := newStoreClient(t, ts, ser, storeShard)

	locks, err := NewRPCLockMgr(lockShard, clientConfig(ts), rpchttp.NewHttpClientTransport(), ser)
	if err != nil {
		t.Fatalf("NewRPCLockMgr failed: %v", err)
	}

	testCases := []struct {
		name string
		opts []covstore.Option
	}{
		{"cas", []covstore.Option{covstore.WithMaxRetries(10_000)}},
		{"locks", []covstore.Option{covstore.WithRecordLocks(locks)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := append([]covstore.Option{covstore.WithNamespace("rpc_" + tc.name)}, tc.opts...)
			cov, err := covstore.New(kv, opts...)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			const workers, saves = 4, 10
			var wg sync.WaitGroup
			errs := make(chan error, workers*saves)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < saves; i++ {
						errs <- cov.SaveReport(map[string][]coverage.Line{"./dog.rb": coverage.Lines(1, -1, 0)})
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("SaveReport failed: %v", err)
				}
			}

			records, err := cov.Coverage()
			if err != nil {
				t.Fatalf("Coverage failed: %v", err)
			}
			want := coverage.Lines(workers*saves, -1, 0)
			if got := records["./dog.rb"].Data; !reflect.DeepEqual(got, want) {
				t.Errorf("merged lines = %v, want %v", got, want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ser := serializer.NewJSONSerializer()
	ts := startServer(t, common.EngineMaple, ser)
	kv := newStoreClient(t, ts, ser, storeShard)
	cov, err := covstore.New(kv, covstore.WithNamespace("metrics"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := cov.SaveReport(map[string][]coverage.Line{"./a.rb": coverage.Lines(1)}); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, metric := range []string{"dcov_rpc_requests_total", `dcov_files_merged_total{type="runtime"}`} {
		if !bytes.Contains(body, []byte(metric)) {
			t.Errorf("metrics output does not contain %s", metric)
		}
	}
}

var _ lockmgr.ILockManager = (*rpcLockMgr)(nil)

package lstore

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/ValentinKolb/dcov/lib/db/engines/maple"
	dbtesting "github.com/ValentinKolb/dcov/lib/db/testing"
	"github.com/ValentinKolb/dcov/lib/store"
)

func newTestStore(clock *dbtesting.ManualClock) store.IStore {
	return NewLocalStoreWithClock(func() db.KVDB {
		return maple.NewMapleDB(&maple.DBOptions{Clock: clock.Now})
	}, clock.Now)
}

func TestExpirationUsesStoreClock(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	s := newTestStore(clock)

	if err := s.SetE("k", []byte("v"), 10); err != nil {
		t.Fatalf("SetE failed: %v", err)
	}
	if ttl, _ := s.TTL("k"); ttl != 10 {
		t.Errorf("Expected TTL 10, got %d", ttl)
	}

	clock.Advance(10 * time.Second)
	if _, ok, _ := s.Get("k"); ok {
		t.Errorf("Key should be expired")
	}
}

func TestConditionalWrites(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	s := newTestStore(clock)

	if ok, err := s.SetEIfUnset("lock", []byte("a"), 5); err != nil || !ok {
		t.Fatalf("Expected first SetEIfUnset to succeed, got ok=%v err=%v", ok, err)
	}
	if ok, _ := s.SetEIfUnset("lock", []byte("b"), 5); ok {
		t.Errorf("Expected second SetEIfUnset to fail")
	}
	if swapped, _ := s.CompareAndSwap("lock", []byte("a"), []byte("c"), 0); !swapped {
		t.Errorf("Expected swap to succeed")
	}
	if ttl, _ := s.TTL("lock"); ttl != db.TTLNoExpiry {
		t.Errorf("Swap should reset the expiration, got TTL %d", ttl)
	}

	keys, _ := s.Keys("lo")
	if len(keys) != 1 || keys[0] != "lock" {
		t.Errorf("Expected [lock], got %v", keys)
	}

	_ = s.Delete("lock")
	if ttl, _ := s.TTL("lock"); ttl != db.TTLMissing {
		t.Errorf("Expected missing key after Delete, got TTL %d", ttl)
	}
}

// readOnlyDB is a database that supports nothing but Get
type readOnlyDB struct {
	db.KVDB
}

func (readOnlyDB) SupportsFeature(feature db.Feature) bool { return feature == db.FeatureGet }
func (readOnlyDB) Get(string) ([]byte, bool, error)        { return nil, false, io.ErrUnexpectedEOF }

func TestUnsupportedAndInternalErrors(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return readOnlyDB{} })

	var storeErr *store.Error
	err := s.Set("k", []byte("v"))
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCUnsupportedOperation {
		t.Errorf("Expected unsupported operation error, got %v", err)
	}

	_, _, err = s.Get("k")
	if !errors.As(err, &storeErr) || storeErr.Code != store.RetCInternalError {
		t.Errorf("Expected internal error, got %v", err)
	}
}

package lstore

import (
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/ValentinKolb/dcov/lib/store"
)

type storeImpl struct {
	db    db.KVDB
	clock store.Clock
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return NewLocalStoreWithClock(factory, time.Now)
}

// NewLocalStoreWithClock creates a local store that reads the current time from clock.
// The clock should be the same one the database created by factory uses.
func NewLocalStoreWithClock(factory store.DBFactory, clock store.Clock) store.IStore {
	if clock == nil {
		clock = time.Now
	}
	return &storeImpl{
		db:    factory(),
		clock: clock,
	}
}

func (s *storeImpl) now() uint64 {
	return uint64(s.clock().Unix())
}

func unsupported(op string) error {
	return store.NewError(store.RetCUnsupportedOperation, op+" operation is not supported")
}

func internalError(err error) error {
	if err == nil {
		return nil
	}
	return store.NewError(store.RetCInternalError, err.Error())
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return unsupported("Set")
	}
	return internalError(s.db.Set(key, value))
}

func (s *storeImpl) SetE(key string, value []byte, expireIn uint64) error {
	if !s.db.SupportsFeature(db.FeatureSetE) {
		return unsupported("SetE")
	}
	return internalError(s.db.SetE(key, value, s.now(), expireIn))
}

func (s *storeImpl) SetEIfUnset(key string, value []byte, expireIn uint64) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureSetEIfUnset) {
		return false, unsupported("SetEIfUnset")
	}
	ok, err := s.db.SetEIfUnset(key, value, s.now(), expireIn)
	return ok, internalError(err)
}

func (s *storeImpl) CompareAndSwap(key string, old, value []byte, expireIn uint64) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureCompareAndSwap) {
		return false, unsupported("CompareAndSwap")
	}
	swapped, err := s.db.CompareAndSwap(key, old, value, s.now(), expireIn)
	return swapped, internalError(err)
}

func (s *storeImpl) Delete(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return unsupported("Delete")
	}
	return internalError(s.db.Delete(key))
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, unsupported("Get")
	}
	val, ok, err := s.db.Get(key)
	return val, ok, internalError(err)
}

func (s *storeImpl) TTL(key string) (int64, error) {
	if !s.db.SupportsFeature(db.FeatureTTL) {
		return 0, unsupported("TTL")
	}
	ttl, err := s.db.TTL(key)
	return ttl, internalError(err)
}

func (s *storeImpl) Keys(prefix string) ([]string, error) {
	if !s.db.SupportsFeature(db.FeatureKeys) {
		return nil, unsupported("Keys")
	}
	keys, err := s.db.Keys(prefix)
	return keys, internalError(err)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

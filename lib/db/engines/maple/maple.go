package maple

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/ValentinKolb/dcov/lib/db/engines/maple/internal"
	"github.com/klauspost/compress/zstd"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum          = "MAPLEDB\x00"          // File format identifier
	mapleVersion      = 4                      // Database version
	defaultGCInterval = 100 * time.Millisecond // Default interval between GC runs
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a high-performance database with sharded data
type mapleImpl struct {
	shards []*internal.Shard // Array of shards
	clock  func() time.Time  // Source of the current time for reads

	// garbage collection
	gcInterval  time.Duration
	gcIsRunning atomic.Bool
	gcStop      chan struct{}
	gcDone      sync.WaitGroup
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards  int              // Number of shards (0 = auto)
	GCInterval time.Duration    // Time between GC runs (0 = use default)
	Clock      func() time.Time // Clock used for reads and GC (nil = time.Now)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:  runtime.NumCPU(),  // Auto-determine based on CPU count
		GCInterval: defaultGCInterval, // Default GC interval
		Clock:      time.Now,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}
	if opts.NumShards <= 0 {
		opts.NumShards = defaults.NumShards
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = defaults.GCInterval
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}

	newDB := &mapleImpl{
		shards:     newShards(opts.NumShards),
		clock:      opts.Clock,
		gcInterval: opts.GCInterval,
	}

	// start garbage collection
	newDB.startGC()

	return newDB
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	return shards
}

// now returns the current unix second according to the configured clock
func (maple *mapleImpl) now() uint64 {
	return uint64(maple.clock().Unix())
}

// expireAt converts a relative expiration into an absolute deadline (0 = never)
func expireAt(now, expireIn uint64) uint64 {
	if expireIn == 0 {
		return 0
	}
	return now + expireIn
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key and value.
// If the key already exists, the old value and its expiration are overwritten.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte) error {
	maple.compute(key, maple.now(), func(internal.Entry, bool) (internal.Entry, action) {
		return internal.Entry{Value: copyBytes(value)}, actionWrite
	})
	return nil
}

// SetE stores a value for a key that expires expireIn seconds after now.
// If the key already exists, the old value and old expiration are overwritten.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetE(key string, value []byte, now, expireIn uint64) error {
	maple.compute(key, now, func(internal.Entry, bool) (internal.Entry, action) {
		return internal.Entry{Value: copyBytes(value), ExpireAt: expireAt(now, expireIn)}, actionWrite
	})
	return nil
}

// SetEIfUnset inserts an entry only if no live entry exists for the key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetEIfUnset(key string, value []byte, now, expireIn uint64) (bool, error) {
	written := false
	maple.compute(key, now, func(_ internal.Entry, loaded bool) (internal.Entry, action) {
		if loaded {
			return internal.Entry{}, actionKeep
		}
		written = true
		return internal.Entry{Value: copyBytes(value), ExpireAt: expireAt(now, expireIn)}, actionWrite
	})
	return written, nil
}

// CompareAndSwap replaces the value of key if the current live value equals old.
// A nil old value requires the key to be absent (or expired).
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) CompareAndSwap(key string, old, value []byte, now, expireIn uint64) (bool, error) {
	swapped := false
	maple.compute(key, now, func(current internal.Entry, loaded bool) (internal.Entry, action) {
		if old == nil {
			if loaded {
				return internal.Entry{}, actionKeep
			}
		} else if !loaded || !bytes.Equal(current.Value, old) {
			return internal.Entry{}, actionKeep
		}
		swapped = true
		return internal.Entry{Value: copyBytes(value), ExpireAt: expireAt(now, expireIn)}, actionWrite
	})
	return swapped, nil
}

// Delete removes an entry with the specified key. This change is immediate.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string) error {
	maple.compute(key, maple.now(), func(internal.Entry, bool) (internal.Entry, action) {
		return internal.Entry{}, actionDelete
	})
	return nil
}

// action tells compute what to do with the entry returned by the callback
type action int

const (
	actionKeep action = iota
	actionWrite
	actionDelete
)

// compute is a helper method for shared implementation between all write operations.
// It atomically loads the current entry, hands it to fn and stores the result.
// The loaded flag passed to fn is false for expired entries, so fn only ever sees
// a consistent view of the entry.
//
// Thread-safety: This function uses the per-key atomicity of the shard map.
func (maple *mapleImpl) compute(key string, now uint64, fn func(old internal.Entry, loaded bool) (internal.Entry, action)) {
	shard := internal.GetShard(key, maple.shards)

	var (
		scheduled bool
		deadline  uint64
	)

	shard.Data.Compute(key, func(oldEntry internal.Entry, oldEntryExists bool) (internal.Entry, bool) {
		loaded := oldEntryExists && !oldEntry.Expired(now)

		entry, act := fn(oldEntry, loaded)
		switch act {
		case actionWrite:
			scheduled, deadline = true, entry.ExpireAt
			return entry, false
		case actionDelete:
			if oldEntryExists {
				scheduled, deadline = true, 0
			}
			return oldEntry, true
		default:
			// delete=true for a missing key keeps the map free of empty entries
			return oldEntry, !oldEntryExists
		}
	})

	/*
		Note: The expiry schedule is updated after the map operation. Concurrent writers
		may therefore register deadlines in a different order than they wrote the entries.
		The garbage collector re-checks every entry before removing it and re-schedules
		entries whose real deadline is later, so the schedule converges.
	*/
	if scheduled {
		shard.Schedule(key, deadline)
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The boolean indicates whether a (not expired) value for the key was found.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool, error) {
	shard := internal.GetShard(key, maple.shards)

	e, ok := shard.Data.Load(key)
	if !ok || e.Expired(maple.now()) {
		return nil, false, nil
	}
	return copyBytes(e.Value), true, nil
}

// TTL returns the remaining lifetime of the key in seconds.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) TTL(key string) (int64, error) {
	shard := internal.GetShard(key, maple.shards)
	now := maple.now()

	e, ok := shard.Data.Load(key)
	if !ok || e.Expired(now) {
		return db.TTLMissing, nil
	}
	if e.ExpireAt == 0 {
		return db.TTLNoExpiry, nil
	}
	return int64(e.ExpireAt - now), nil
}

// Keys returns all live keys with the given prefix in lexical order.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// The result is a snapshot; concurrent writes may or may not be reflected.
func (maple *mapleImpl) Keys(prefix string) ([]string, error) {
	now := maple.now()
	keys := make([]string, 0)
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, e internal.Entry) bool {
			if strings.HasPrefix(key, prefix) && !e.Expired(now) {
				keys = append(keys, key)
			}
			return true
		})
	}
	sort.Strings(keys)
	return keys, nil
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// startGC starts the garbage collector
// if the GC is already running, this function does nothing
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) startGC() {
	if maple.gcIsRunning.CompareAndSwap(false, true) {
		maple.gcStop = make(chan struct{})
		maple.gcDone.Add(1)
		go maple.garbageCollector(maple.gcStop)
	}
}

// stopGC stops the garbage collector and waits until the current cycle finished.
// if the GC is not running, this function does nothing.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) stopGC() {
	if maple.gcIsRunning.CompareAndSwap(true, false) {
		close(maple.gcStop)
		maple.gcDone.Wait()
	}
}

// garbageCollector is the main garbage collection loop
// WARNING: this method should never be called! to enable GC, use startGC() and stopGC()
func (maple *mapleImpl) garbageCollector(stop <-chan struct{}) {
	defer maple.gcDone.Done()

	ticker := time.NewTicker(maple.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			maple.collect()
		}
	}
}

// collect removes all entries whose deadline passed
func (maple *mapleImpl) collect() {
	/*
		Note: We only get the time once at the beginning of one gc cycle to ensure that
		we don't end up in an endless loop if the clock moves during the gc cycle.
	*/
	now := maple.now()

	for _, shard := range maple.shards {
		for _, key := range shard.PopDue(now) {
			var reschedule uint64
			shard.Data.Compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
				if !loaded {
					return e, true
				}

				// double-check the entry is expired, it could have been rewritten in the meantime
				if !e.Expired(now) {
					reschedule = e.ExpireAt
					return e, false
				}

				// help the go gc
				e.Value = nil
				return internal.Entry{}, true
			})
			if reschedule != 0 {
				shard.Schedule(key, reschedule)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer.
// The file starts with an uncompressed header (magic number and version) followed by a
// zstd compressed stream of all live entries.
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. It takes snapshots of the data without blocking modifications.
func (maple *mapleImpl) Save(w io.Writer) error {
	now := maple.now()

	type entryToSave struct {
		key   string
		entry internal.Entry
	}

	var dataEntries []entryToSave
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			// skip entries that are already expired
			if entry.Expired(now) {
				return true
			}
			dataEntries = append(dataEntries, entryToSave{
				key:   key,
				entry: internal.Entry{Value: copyBytes(entry.Value), ExpireAt: entry.ExpireAt},
			})
			return true
		})
	}

	// Write file header
	if _, err := io.WriteString(w, magicNum); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(zw, 1024*1024) // 1 MB buffer

	// Write total data entries count
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(dataEntries))); err != nil {
		return err
	}

	for _, item := range dataEntries {
		// Write key
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.key); err != nil {
			return err
		}

		// Write expiration timestamp
		if err := binary.Write(bw, binary.LittleEndian, item.entry.ExpireAt); err != nil {
			return err
		}

		// Write value
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(item.entry.Value); err != nil {
			return err
		}
	}

	// Flush buffer and finish the compressed frame
	if err := bw.Flush(); err != nil {
		return err
	}
	return zw.Close()
}

// Load restores a database from the reader, replacing all current entries.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {

	// stop gc during load
	maple.stopGC()
	defer maple.startGC()

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(r, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(zr, 1024*1024) // 1 MB buffer

	var dataCount uint64
	if err := binary.Read(br, binary.LittleEndian, &dataCount); err != nil {
		return err
	}

	shards := newShards(len(maple.shards))
	for i := uint64(0); i < dataCount; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var expire uint64
		if err := binary.Read(br, binary.LittleEndian, &expire); err != nil {
			return err
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		shard := internal.GetShard(string(key), shards)
		shard.Data.Store(string(key), internal.Entry{Value: value, ExpireAt: expire})
		if expire != 0 {
			shard.Schedule(string(key), expire)
		}
	}

	// Note: the shards are swapped only after the whole snapshot was read successfully
	maple.shards = shards
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	now := maple.now()

	keyCount, sizeBytes, scheduled := 0, 0, 0
	shardSizes := make([]int, len(maple.shards))
	for i, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			if !entry.Expired(now) {
				keyCount++
				sizeBytes += len(key) + len(entry.Value) + 8 // 8 bytes for expireAt
			}
			return true
		})
		shardSizes[i] = shard.Data.Size()
		scheduled += shard.Scheduled()
	}

	// Metadata for this specific database implementation
	meta := &struct {
		ShardCount        int   `json:"shard_count"`
		ShardSizes        []int `json:"shard_sizes"`
		ScheduledExpiries int   `json:"scheduled_expiries"`
	}{
		ShardCount:        len(maple.shards),
		ShardSizes:        shardSizes,
		ScheduledExpiries: scheduled,
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		KeyCount:  keyCount,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetE, db.FeatureSetEIfUnset, db.FeatureCompareAndSwap,
			db.FeatureGet, db.FeatureDelete, db.FeatureTTL, db.FeatureKeys,
			db.FeatureSave, db.FeatureLoad,
			db.FeatureGarbageCollect,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureSetE |
		db.FeatureSetEIfUnset |
		db.FeatureCompareAndSwap |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureTTL |
		db.FeatureKeys |
		db.FeatureSave |
		db.FeatureLoad |
		db.FeatureGarbageCollect
	return supportedFeatures&feature == feature
}

// Close stops the garbage collector
func (maple *mapleImpl) Close() error {
	maple.stopGC()
	return nil
}

// copyBytes copies a value to prevent memory corruption through shared slices.
// The result is never nil, so a stored empty value stays distinguishable from "absent".
func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

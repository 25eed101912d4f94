package internal

import (
	"sync"

	"github.com/ValentinKolb/dcov/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (key-value pair with metadata)
// --------------------------------------------------------------------------

// Entry stores a value with its expiration metadata
type Entry struct {
	Value    []byte // Stored data
	ExpireAt uint64 // Unix second at which the entry expires (0 = never)
}

// Expired returns whether the entry is expired at the given unix second
func (e Entry) Expired(now uint64) bool {
	return e.ExpireAt != 0 && now >= e.ExpireAt
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
// Each shard has its own map and its own expiry schedule
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of active key-value entries

	mu     sync.Mutex // guards Expiry
	Expiry *util.ExpiryHeap[string]
}

// NewShard creates a new, empty shard
func NewShard() *Shard {
	return &Shard{
		Data:   xsync.NewMapOf[string, Entry](),
		Expiry: util.NewExpiryHeap[string](),
	}
}

// Schedule registers (or replaces) the expiration deadline of key for garbage collection.
// A zero deadline removes the key from the schedule.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Shard) Schedule(key string, expireAt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expireAt == 0 {
		s.Expiry.Cancel(key)
		return
	}
	s.Expiry.Schedule(key, expireAt)
}

// PopDue removes all keys whose deadline passed from the schedule and returns them.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Shard) PopDue(now uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Expiry.PopDue(now)
}

// Scheduled returns the number of keys waiting for expiration
func (s *Shard) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Expiry.Len()
}

// GetShard returns the appropriate shard for a given key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard(key string, shards []*Shard) *Shard {
	return shards[util.ShardIndex(key, len(shards))]
}

package covstore

import (
	"time"

	"github.com/ValentinKolb/dcov/lib/coverage"
	"github.com/ValentinKolb/dcov/lib/lockmgr"
)

const (
	DefaultMaxRetries  = 16
	DefaultLockTimeout = 30               // seconds after which an abandoned record lock expires
	DefaultLockWait    = 10 * time.Second // how long a save waits for a record lock
	lockRetryInterval  = 5 * time.Millisecond
)

// Option configures a Store
type Option func(*Store)

// WithNamespace isolates the records of one application. The namespace must not contain '.'.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		s.namespace = namespace
	}
}

// WithTTL lets every record expire ttl seconds after it was last saved (0 = never)
func WithTTL(ttl uint64) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithType sets the default type used by SaveReport and Coverage
func WithType(t coverage.Type) Option {
	return func(s *Store) {
		s.typ = t
	}
}

// WithRecordLocks guards every read-modify-write with a per-record lock instead of
// optimistic compare-and-swap.
func WithRecordLocks(locks lockmgr.ILockManager) Option {
	return func(s *Store) {
		s.locks = locks
	}
}

// WithLockWait sets how long a save waits for a record lock
func WithLockWait(wait time.Duration) Option {
	return func(s *Store) {
		if wait > 0 {
			s.lockWait = wait
		}
	}
}

// WithMaxRetries bounds the compare-and-swap attempts per file
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock sets the clock used for record timestamps
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPathResolver resolves reported paths to canonical paths before they are stored.
// Without it paths are used as given.
func WithPathResolver(resolver coverage.PathResolver) Option {
	return func(s *Store) {
		s.resolver = &resolver
	}
}

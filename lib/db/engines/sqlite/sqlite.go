package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	_ "github.com/mattn/go-sqlite3"
)

var log = logger.GetLogger("sqlite")

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    expire_at  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_kv_expire_at ON kv(expire_at) WHERE expire_at != 0;
`

// ErrNotSupported is returned by operations the sqlite engine does not implement
var ErrNotSupported = errors.New("sqlite: operation not supported")

// DBOptions holds the configuration of a sqlite database
type DBOptions struct {
	// Path of the database file. An empty path creates a private in-memory database.
	Path string
	// GCInterval is the interval in which expired rows are deleted (0 disables the collector)
	GCInterval time.Duration
	// Clock returns the current time used by read operations (defaults to time.Now)
	Clock func() time.Time
}

// DefaultOptions returns the default options for an in-memory sqlite database
func DefaultOptions() *DBOptions {
	return &DBOptions{
		GCInterval: time.Minute,
		Clock:      time.Now,
	}
}

type sqliteImpl struct {
	db    *sql.DB
	path  string
	clock func() time.Time

	gcStop chan struct{}
	gcDone chan struct{}
	once   sync.Once
}

// NewSQLiteDB opens (or creates) a sqlite backed key value database
func NewSQLiteDB(opts *DBOptions) (db.KVDB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	dsn := ":memory:"
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = opts.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows a single writer; one connection also keeps an in-memory database alive
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	impl := &sqliteImpl{db: conn, path: opts.Path, clock: clock}
	if opts.GCInterval > 0 {
		impl.gcStop = make(chan struct{})
		impl.gcDone = make(chan struct{})
		go impl.garbageCollector(opts.GCInterval)
	}
	return impl, nil
}

func (s *sqliteImpl) now() uint64 {
	return uint64(s.clock().Unix())
}

func expireAt(now, expireIn uint64) uint64 {
	if expireIn == 0 {
		return 0
	}
	return now + expireIn
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Set(key string, value []byte) error {
	return s.SetE(key, value, 0, 0)
}

func (s *sqliteImpl) SetE(key string, value []byte, now, expireIn uint64) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, expire_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expire_at = excluded.expire_at`,
		key, nonNil(value), int64(expireAt(now, expireIn)))
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *sqliteImpl) SetEIfUnset(key string, value []byte, now, expireIn uint64) (bool, error) {
	// the upsert only overwrites rows that are already expired
	result, err := s.db.Exec(`
		INSERT INTO kv (key, value, expire_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expire_at = excluded.expire_at
		WHERE kv.expire_at != 0 AND kv.expire_at <= ?`,
		key, nonNil(value), int64(expireAt(now, expireIn)), int64(now))
	if err != nil {
		return false, fmt.Errorf("set if unset %q: %w", key, err)
	}
	return affected(result)
}

func (s *sqliteImpl) CompareAndSwap(key string, old, value []byte, now, expireIn uint64) (bool, error) {
	if old == nil {
		return s.SetEIfUnset(key, value, now, expireIn)
	}
	result, err := s.db.Exec(`
		UPDATE kv SET value = ?, expire_at = ?
		WHERE key = ? AND value = ? AND (expire_at = 0 OR expire_at > ?)`,
		nonNil(value), int64(expireAt(now, expireIn)), key, old, int64(now))
	if err != nil {
		return false, fmt.Errorf("compare and swap %q: %w", key, err)
	}
	return affected(result)
}

func (s *sqliteImpl) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ? AND (expire_at = 0 OR expire_at > ?)`,
		key, int64(s.now())).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return nonNil(value), true, nil
}

func (s *sqliteImpl) TTL(key string) (int64, error) {
	now := int64(s.now())
	var at int64
	err := s.db.QueryRow(`SELECT expire_at FROM kv WHERE key = ? AND (expire_at = 0 OR expire_at > ?)`,
		key, now).Scan(&at)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return db.TTLMissing, nil
	case err != nil:
		return 0, fmt.Errorf("ttl %q: %w", key, err)
	case at == 0:
		return db.TTLNoExpiry, nil
	default:
		return at - now, nil
	}
}

func (s *sqliteImpl) Keys(prefix string) ([]string, error) {
	// keys use the BINARY collation, so all keys with the prefix follow the prefix itself
	rows, err := s.db.Query(`SELECT key FROM kv WHERE key >= ? AND (expire_at = 0 OR expire_at > ?) ORDER BY key`,
		prefix, int64(s.now()))
	if err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("keys %q: %w", prefix, err)
		}
		if !strings.HasPrefix(key, prefix) {
			break
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save is not supported, the database file is the persistent state
func (s *sqliteImpl) Save(io.Writer) error {
	return ErrNotSupported
}

// Load is not supported, the database file is the persistent state
func (s *sqliteImpl) Load(io.Reader) error {
	return ErrNotSupported
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

func (s *sqliteImpl) garbageCollector(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			if n, err := s.collect(); err != nil {
				log.Warningf("garbage collection failed: %v", err)
			} else if n > 0 {
				log.Debugf("garbage collection removed %d expired entries", n)
			}
		}
	}
}

func (s *sqliteImpl) collect() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM kv WHERE expire_at != 0 AND expire_at <= ?`, int64(s.now()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --------------------------------------------------------------------------
// Utility Operations
// --------------------------------------------------------------------------

// Metadata contains sqlite specific database information
type Metadata struct {
	Path string `json:"path"`
}

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:   db.ImplSQLite,
		Metadata: Metadata{Path: s.path},
	}
	for _, feature := range allFeatures {
		if s.SupportsFeature(feature) {
			info.SupportedFeatures = append(info.SupportedFeatures, feature)
		}
	}

	if err := s.db.QueryRow(`SELECT count(*) FROM kv WHERE expire_at = 0 OR expire_at > ?`,
		int64(s.now())).Scan(&info.KeyCount); err != nil {
		log.Warningf("failed to count keys: %v", err)
	}
	if err := s.db.QueryRow(`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`).
		Scan(&info.SizeBytes); err != nil {
		log.Warningf("failed to read database size: %v", err)
	}
	return info
}

var allFeatures = []db.Feature{
	db.FeatureSet, db.FeatureSetE, db.FeatureSetEIfUnset, db.FeatureCompareAndSwap,
	db.FeatureGet, db.FeatureDelete, db.FeatureTTL, db.FeatureKeys,
	db.FeatureSave, db.FeatureLoad, db.FeatureGarbageCollect,
}

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	switch feature {
	case db.FeatureSave, db.FeatureLoad:
		return false
	case db.FeatureGarbageCollect:
		return s.gcStop != nil
	default:
		return true
	}
}

func (s *sqliteImpl) Close() error {
	var err error
	s.once.Do(func() {
		if s.gcStop != nil {
			close(s.gcStop)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

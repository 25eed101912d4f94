package covstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dcov/lib/coverage"
	"github.com/ValentinKolb/dcov/lib/lockmgr"
	"github.com/ValentinKolb/dcov/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("covstore")

// Store persists coverage records in a key-value store.
//
// Saves merge the incoming line arrays into the stored records, so any number of
// processes can report to the same namespace concurrently.
type Store struct {
	kv        store.IStore
	namespace string
	ttl       uint64

	locks      lockmgr.ILockManager
	lockWait   time.Duration
	maxRetries int

	clock    func() time.Time
	resolver *coverage.PathResolver

	mu  sync.RWMutex // guards typ
	typ coverage.Type
}

// New creates a coverage store on top of kv
func New(kv store.IStore, opts ...Option) (*Store, error) {
	s := &Store{
		kv:         kv,
		typ:        coverage.DefaultType,
		lockWait:   DefaultLockWait,
		maxRetries: DefaultMaxRetries,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if strings.Contains(s.namespace, separator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, s.namespace)
	}
	if !s.typ.Stored() {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyType, s.typ)
	}
	return s, nil
}

// Namespace returns the namespace of the store
func (s *Store) Namespace() string {
	return s.namespace
}

// Type returns the default type of SaveReport and Coverage
func (s *Store) Type() coverage.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typ
}

// SetType changes the default type. Stored data is not affected.
func (s *Store) SetType(t coverage.Type) error {
	if !t.Stored() {
		return fmt.Errorf("%w: %s", ErrReadOnlyType, t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typ = t
	return nil
}

// Types returns all types records are stored under
func (s *Store) Types() []coverage.Type {
	return append([]coverage.Type(nil), coverage.KnownTypes...)
}

func (s *Store) canonical(path string) string {
	if s.resolver == nil {
		return path
	}
	return s.resolver.Relative(path)
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// SaveReport merges files into the records of the default type
func (s *Store) SaveReport(files map[string][]coverage.Line) error {
	return s.SaveReportFor(s.Type(), files)
}

// SaveReportFor merges the line arrays of files into the stored records of type t.
//
// Every file is merged independently: a failing file doesn't prevent the others from
// being saved. The returned error is a *multierror.Error of *FileError values,
// one per failed file.
func (s *Store) SaveReportFor(t coverage.Type, files map[string][]coverage.Line) error {
	if !t.Stored() {
		return fmt.Errorf("%w: %s", ErrReadOnlyType, t)
	}
	var result *multierror.Error
	if s.resolver != nil {
		var rejected map[string]error
		files, rejected = s.resolver.RelativeAll(files)
		for _, path := range sortedKeys(rejected) {
			metrics.GetOrCreateCounter(fmt.Sprintf(`dcov_save_errors_total{type=%q}`, t)).Inc()
			log.Warningf("rejected coverage of %s (%s): %v", path, t, rejected[path])
			result = multierror.Append(result, &FileError{File: path, Err: rejected[path]})
		}
	}

	for _, path := range sortedKeys(files) {
		if err := s.saveFile(t, path, files[path]); err != nil {
			metrics.GetOrCreateCounter(fmt.Sprintf(`dcov_save_errors_total{type=%q}`, t)).Inc()
			log.Warningf("failed to save coverage of %s (%s): %v", path, t, err)
			result = multierror.Append(result, &FileError{File: path, Err: err})
			continue
		}
		metrics.GetOrCreateCounter(fmt.Sprintf(`dcov_files_merged_total{type=%q}`, t)).Inc()
	}
	return result.ErrorOrNil()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// saveFile performs a single read-modify-write of a record
func (s *Store) saveFile(t coverage.Type, path string, lines []coverage.Line) error {
	if err := coverage.Validate(lines); err != nil {
		return err
	}
	key := RecordKey(s.namespace, t, path)

	if s.locks != nil {
		return s.saveLocked(key, lines)
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		raw, existing, err := s.load(key)
		if err != nil {
			return err
		}
		merged, err := coverage.Merge(existing, lines, s.clock())
		if err != nil {
			return err
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}

		swapped, err := s.kv.CompareAndSwap(key, raw, data, s.ttl)
		if err != nil {
			return unavailable(err)
		}
		if swapped {
			return nil
		}
		metrics.GetOrCreateCounter(`dcov_merge_conflicts_total`).Inc()
		log.Debugf("concurrent update of %s, retrying (%d/%d)", key, attempt+1, s.maxRetries)
	}
	return fmt.Errorf("%w: %s changed %d times during merge", ErrMergeConflict, key, s.maxRetries)
}

func (s *Store) saveLocked(key string, lines []coverage.Line) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockWait)
	defer cancel()

	lk := lockKey(key)
	owner, err := lockmgr.AcquireLockWait(ctx, s.locks, lk, DefaultLockTimeout, lockRetryInterval)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: lock %s not acquired within %s", ErrMergeConflict, lk, s.lockWait)
	}
	if err != nil {
		return unavailable(err)
	}
	defer func() {
		if _, err := s.locks.ReleaseLock(lk, owner); err != nil {
			log.Warningf("failed to release lock %s: %v", lk, err)
		}
	}()

	_, existing, err := s.load(key)
	if err != nil {
		return err
	}
	merged, err := coverage.Merge(existing, lines, s.clock())
	if err != nil {
		return err
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return unavailable(s.kv.SetE(key, data, s.ttl))
}

// load reads a record. raw is nil if the record does not exist.
func (s *Store) load(key string) (raw []byte, record *coverage.Record, err error) {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return nil, nil, unavailable(err)
	}
	if !ok {
		return nil, nil, nil
	}
	if raw == nil {
		raw = []byte{}
	}
	record = &coverage.Record{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, nil, fmt.Errorf("%w: stored record %s: %v", coverage.ErrMalformedInput, key, err)
	}
	return raw, record, nil
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Coverage returns the records of the default type
func (s *Store) Coverage() (map[string]coverage.Record, error) {
	return s.CoverageFor(s.Type())
}

// CoverageFor returns all records of type t by canonical path.
// coverage.TypeMerged returns the fold of all stored types.
// A type without records yields an empty map.
func (s *Store) CoverageFor(t coverage.Type) (map[string]coverage.Record, error) {
	if t == coverage.TypeMerged {
		report, err := s.GetCoverageReport()
		if err != nil {
			return nil, err
		}
		return report.Merged, nil
	}
	if !t.Stored() {
		return map[string]coverage.Record{}, nil
	}

	keys, err := s.kv.Keys(typePrefix(s.namespace, t))
	if err != nil {
		return nil, unavailable(err)
	}

	records := make(map[string]coverage.Record, len(keys))
	for _, key := range keys {
		typ, path, err := parseKey(s.namespace, key)
		if err != nil {
			return nil, err
		}
		if typ != t {
			return nil, fmt.Errorf("%w: %q listed for type %s", ErrKeyCollision, key, t)
		}
		if _, ok := records[path]; ok {
			return nil, fmt.Errorf("%w: %q listed twice", ErrKeyCollision, key)
		}

		_, record, err := s.load(key)
		if errors.Is(err, coverage.ErrMalformedInput) {
			log.Warningf("skipping %v", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if record == nil {
			// cleared or expired since it was listed
			continue
		}
		records[path] = *record
	}
	return records, nil
}

// Report contains the records of every stored type and their merged view
type Report struct {
	Types  map[coverage.Type]map[string]coverage.Record
	Merged map[string]coverage.Record
}

// MarshalJSON encodes the report as {"eager_loading": {...}, "runtime": {...}, "merged": {...}}
func (r Report) MarshalJSON() ([]byte, error) {
	flat := make(map[string]map[string]coverage.Record, len(r.Types)+1)
	for t, records := range r.Types {
		flat[string(t)] = records
	}
	flat[string(coverage.TypeMerged)] = r.Merged
	return json.Marshal(flat)
}

// GetCoverageReport returns the records of every type and the merged view across all types
func (s *Store) GetCoverageReport() (Report, error) {
	report := Report{Types: make(map[coverage.Type]map[string]coverage.Record, len(coverage.KnownTypes))}
	views := make([]map[string]coverage.Record, 0, len(coverage.KnownTypes))
	for _, t := range coverage.KnownTypes {
		records, err := s.CoverageFor(t)
		if err != nil {
			return Report{}, err
		}
		report.Types[t] = records
		views = append(views, records)
	}
	report.Merged = coverage.MergeReports(views...)
	return report, nil
}

// Files returns the sorted canonical paths stored for type t
func (s *Store) Files(t coverage.Type) ([]string, error) {
	keys, err := s.kv.Keys(typePrefix(s.namespace, t))
	if err != nil {
		return nil, unavailable(err)
	}
	files := make([]string, 0, len(keys))
	for _, key := range keys {
		_, path, err := parseKey(s.namespace, key)
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

// Size returns the number of bytes stored for the namespace (record values only)
func (s *Store) Size() (int64, error) {
	keys, err := s.kv.Keys(namespacePrefix(s.namespace))
	if err != nil {
		return 0, unavailable(err)
	}
	var size int64
	for _, key := range keys {
		value, ok, err := s.kv.Get(key)
		if err != nil {
			return 0, unavailable(err)
		}
		if ok {
			size += int64(len(value))
		}
	}
	return size, nil
}

// TTL returns the remaining lifetime of the record of path in seconds
// (-1 if it never expires, -2 if there is no such record)
func (s *Store) TTL(t coverage.Type, path string) (int64, error) {
	ttl, err := s.kv.TTL(RecordKey(s.namespace, t, s.canonical(path)))
	return ttl, unavailable(err)
}

// --------------------------------------------------------------------------
// Clearing
// --------------------------------------------------------------------------
//
// Clearing is not atomic with concurrent saves. A save that read a record before
// it was cleared may write it back afterwards, the last operation wins.

// Clear deletes every record of the namespace across all types.
// Keys outside the namespace are never touched.
func (s *Store) Clear() error {
	keys, err := s.kv.Keys(namespacePrefix(s.namespace))
	if err != nil {
		return unavailable(err)
	}

	var result *multierror.Error
	for _, key := range keys {
		if err := s.kv.Delete(key); err != nil {
			result = multierror.Append(result, unavailable(err))
		}
	}
	if len(keys) > 0 {
		log.Infof("cleared %d records of namespace %q", len(keys), s.namespace)
	}
	return result.ErrorOrNil()
}

// ClearFile deletes the records of path for all types. Missing records are ignored.
func (s *Store) ClearFile(path string) error {
	path = s.canonical(path)
	var result *multierror.Error
	for _, t := range coverage.KnownTypes {
		if err := s.kv.Delete(RecordKey(s.namespace, t, path)); err != nil {
			result = multierror.Append(result, unavailable(err))
		}
	}
	return result.ErrorOrNil()
}

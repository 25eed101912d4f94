package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple  Implementation = "maple"
	ImplSQLite Implementation = "sqlite"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet            Feature = 1 << iota // Support for Set operations
	FeatureSetE                               // Support for SetE operations
	FeatureSetEIfUnset                        // Support for SetEIfUnset operations
	FeatureCompareAndSwap                     // Support for CompareAndSwap operations
	FeatureGet                                // Support for Get operations
	FeatureDelete                             // Support for Delete operations
	FeatureTTL                                // Support for TTL operations
	FeatureKeys                               // Support for prefix enumeration
	FeatureSave                               // Support for Save operations
	FeatureLoad                               // Support for Load operations
	FeatureGarbageCollect                     // Support for GarbageCollect operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetE:
		return "SetE"
	case FeatureSetEIfUnset:
		return "SetEIfUnset"
	case FeatureCompareAndSwap:
		return "CompareAndSwap"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureTTL:
		return "TTL"
	case FeatureKeys:
		return "Keys"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureGarbageCollect:
		return "GarbageCollect"
	default:
		return "Unknown"
	}
}

// TTL sentinel values, mirroring the conventions of common network key-value stores.
const (
	TTLMissing  int64 = -2 // the key does not exist (or is expired)
	TTLNoExpiry int64 = -1 // the key exists and never expires
)

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	KeyCount          int            `json:"key_count"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations.
// It provides methods for basic operations like Set, Get, Delete, and various utility functions.
// Any implementation of this interface must manage keys in a consistent way.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
//
// Time is expressed in unix seconds. Write operations that set an expiration take the
// current time as a parameter, so that replicated callers (e.g. a raft state machine)
// apply the exact same expiration on every replica. Read operations use the clock
// the database was created with.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key and value.
	// If the key already exists, the old value and any expiration are overwritten.
	Set(key string, value []byte) (err error)

	// SetE inserts or updates an entry with the given key and value that expires expireIn seconds after now.
	// If the key already exists, the old value should be overwritten.
	// Note: expireIn=0 means no expiration.
	SetE(key string, value []byte, now, expireIn uint64) (err error)

	// SetEIfUnset inserts an entry only if the key does not exist (or is expired).
	// If the key already exists, the old value is not updated. The boolean reports whether the value was written.
	SetEIfUnset(key string, value []byte, now, expireIn uint64) (ok bool, err error)

	// CompareAndSwap replaces the value of key with value if the current value equals old.
	// A nil old value means the key must not exist. The expiration is reset like SetE.
	// The boolean reports whether the swap happened.
	CompareAndSwap(key string, old, value []byte, now, expireIn uint64) (swapped bool, err error)

	// Delete removes an entry with the specified key.
	// Deleting a missing key is not an error.
	Delete(key string) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a (not expired) value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)

	// TTL returns the remaining lifetime of a key in seconds,
	// TTLNoExpiry if the key never expires and TTLMissing if there is no such key.
	TTL(key string) (ttl int64, err error)

	// Keys returns all live keys starting with prefix, in lexical order.
	Keys(prefix string) (keys []string, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}

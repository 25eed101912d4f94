package store

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// Clock returns the current time. Stores use it to compute expiration deadlines.
type Clock func() time.Time

// IStore is the generic interface for interacting with a key–value store.
// Expiration times are given in seconds relative to the moment the store applies the write.
type IStore interface {
	// Set inserts or updates a key–value pair. Any previous expiration is removed.
	Set(key string, value []byte) (err error)
	// SetE inserts or updates a key–value pair that expires expireIn seconds from now.
	// A zero value for expireIn means no expiration.
	SetE(key string, value []byte, expireIn uint64) (err error)
	// SetEIfUnset inserts a key–value pair if the key does not exist (or is expired).
	// If the key already exists, the old value is not updated and ok is false.
	SetEIfUnset(key string, value []byte, expireIn uint64) (ok bool, err error)
	// CompareAndSwap replaces the value of key with value if the stored value equals old.
	// A nil old value requires the key to be absent. On success the expiration is reset to expireIn.
	CompareAndSwap(key string, old, value []byte, expireIn uint64) (swapped bool, err error)
	// Delete deletes a key–value pair. Deleting a missing key is not an error.
	Delete(key string) (err error)
	// Get return the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// TTL returns the remaining lifetime of a key in seconds,
	// db.TTLNoExpiry (-1) for keys without expiration and db.TTLMissing (-2) for missing keys.
	TTL(key string) (ttl int64, err error)
	// Keys returns all live keys with the given prefix in lexical order.
	Keys(prefix string) (keys []string, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key      string `json:"key,omitempty"`      // Used for: all store and lock operations
	ExpireIn uint64 `json:"expireIn,omitempty"` // Used for: SetE, SetEIfUnset, CAS, Acquire
	Value    []byte `json:"value,omitempty"`    // Used for: Set (request), Get (response), Acquire (response), Release (request)
	Old      []byte `json:"old,omitempty"`      // Used for: CAS (expected value)
	HasOld   bool   `json:"hasOld,omitempty"`   // Used for: CAS, false means the key must be absent

	// Response only fields
	Ok   bool     `json:"ok,omitempty"`   // Used for: Get, SetEIfUnset, CAS, Acquire, Release responses
	TTL  int64    `json:"ttl,omitempty"`  // Used for: TTL responses
	Keys []string `json:"keys,omitempty"` // Used for: Keys responses
	Err  string   `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// newResponse creates a response of the given type and fills the error field
func newResponse(t MessageType, err error) *Message {
	msg := &Message{MsgType: t}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSet,
		Key:     key,
		Value:   value,
	}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	return newResponse(MsgTKVSet, err)
}

// NewSetERequest creates a new SetE request
func NewSetERequest(key string, value []byte, expireIn uint64) *Message {
	return &Message{
		MsgType:  MsgTKVSetE,
		Key:      key,
		Value:    value,
		ExpireIn: expireIn,
	}
}

// NewSetEResponse creates a new SetE response
func NewSetEResponse(err error) *Message {
	return newResponse(MsgTKVSetE, err)
}

// NewSetEIfUnsetRequest creates a new SetEIfUnset request
func NewSetEIfUnsetRequest(key string, value []byte, expireIn uint64) *Message {
	return &Message{
		MsgType:  MsgTKVSetEIfUnset,
		Key:      key,
		Value:    value,
		ExpireIn: expireIn,
	}
}

// NewSetEIfUnsetResponse creates a new SetEIfUnset response
func NewSetEIfUnsetResponse(ok bool, err error) *Message {
	msg := newResponse(MsgTKVSetEIfUnset, err)
	msg.Ok = ok
	return msg
}

// NewCompareAndSwapRequest creates a new CompareAndSwap request.
// A nil old value requests that the key is absent.
func NewCompareAndSwapRequest(key string, old, value []byte, expireIn uint64) *Message {
	return &Message{
		MsgType:  MsgTKVCompareAndSwap,
		Key:      key,
		Old:      old,
		HasOld:   old != nil,
		Value:    value,
		ExpireIn: expireIn,
	}
}

// ExpectedOld returns the expected value of a CompareAndSwap request.
// Serializers may turn an empty slice into nil, so HasOld is authoritative.
func (m *Message) ExpectedOld() []byte {
	if !m.HasOld {
		return nil
	}
	if m.Old == nil {
		return []byte{}
	}
	return m.Old
}

// NewCompareAndSwapResponse creates a new CompareAndSwap response
func NewCompareAndSwapResponse(ok bool, err error) *Message {
	msg := newResponse(MsgTKVCompareAndSwap, err)
	msg.Ok = ok
	return msg
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	return newResponse(MsgTKVDelete, err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	msg := newResponse(MsgTKVGet, err)
	msg.Ok = ok
	msg.Value = value
	return msg
}

// NewTTLRequest creates a new TTL request
func NewTTLRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVTTL,
		Key:     key,
	}
}

// NewTTLResponse creates a new TTL response
func NewTTLResponse(ttl int64, err error) *Message {
	msg := newResponse(MsgTKVTTL, err)
	msg.TTL = ttl
	return msg
}

// NewKeysRequest creates a new Keys request for all keys starting with prefix
func NewKeysRequest(prefix string) *Message {
	return &Message{
		MsgType: MsgTKVKeys,
		Key:     prefix,
	}
}

// NewKeysResponse creates a new Keys response
func NewKeysResponse(keys []string, err error) *Message {
	msg := newResponse(MsgTKVKeys, err)
	msg.Keys = keys
	return msg
}

// NewDBInfoRequest creates a new DBInfo request
func NewDBInfoRequest() *Message {
	return &Message{MsgType: MsgTKVDBInfo}
}

// NewDBInfoResponse creates a new DBInfo response, the info is carried json encoded in Value
func NewDBInfoResponse(info []byte, err error) *Message {
	msg := newResponse(MsgTKVDBInfo, err)
	msg.Value = info
	return msg
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(key string, timeout uint64) *Message {
	return &Message{
		MsgType:  MsgTLCKAcquire,
		Key:      key,
		ExpireIn: timeout,
	}
}

// NewAcquireResponse creates a new Acquire response
func NewAcquireResponse(ok bool, value []byte, err error) *Message {
	msg := newResponse(MsgTLCKAcquire, err)
	msg.Ok = ok
	msg.Value = value
	return msg
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(key string, ownerId []byte) *Message {
	return &Message{
		MsgType: MsgTLCKRelease,
		Key:     key,
		Value:   ownerId,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(ok bool, err error) *Message {
	msg := newResponse(MsgTLCKRelease, err)
	msg.Ok = ok
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:          "success",
	MsgTError:            "error",
	MsgTKVSet:            "set",
	MsgTKVSetE:           "setE",
	MsgTKVSetEIfUnset:    "setEIfUnset",
	MsgTKVCompareAndSwap: "cas",
	MsgTKVDelete:         "delete",
	MsgTKVGet:            "get",
	MsgTKVTTL:            "ttl",
	MsgTKVKeys:           "keys",
	MsgTKVDBInfo:         "dbinfo",
	MsgTLCKAcquire:       "acquire",
	MsgTLCKRelease:       "release",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVSet            // Set a key-value pair
	MsgTKVSetE           // Set a key-value pair with expiration
	MsgTKVSetEIfUnset    // Set a key-value pair if not already set
	MsgTKVCompareAndSwap // Replace a value if it still equals the expected one
	MsgTKVDelete         // Delete a key-value pair
	MsgTKVGet            // Get a value by key
	MsgTKVTTL            // Remaining lifetime of a key
	MsgTKVKeys           // Enumerate keys by prefix
	MsgTKVDBInfo         // Information about the underlying database

	// ILockProvider operations

	MsgTLCKAcquire // Acquire a lock
	MsgTLCKRelease // Release a lock
)

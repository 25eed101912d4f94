package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dcov/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTSet            CommandType = iota // Insert or update an entry.
	CommandTSetE                              // Insert or update an entry with an expiration.
	CommandTSetIfUnset                        // Insert an entry if it does not exist.
	CommandTCompareAndSwap                    // Replace an entry if it holds the expected value.
	CommandTDelete                            // Delete an entry.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTSetE:
		return "SetE"
	case CommandTSetIfUnset:
		return "SetIfUnset"
	case CommandTCompareAndSwap:
		return "CompareAndSwap"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTSet:
		return db.FeatureSet, nil
	case CommandTSetE:
		return db.FeatureSetE, nil
	case CommandTSetIfUnset:
		return db.FeatureSetEIfUnset, nil
	case CommandTCompareAndSwap:
		return db.FeatureCompareAndSwap, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// noOld marks a command without an expected old value
const noOld = ^uint32(0)

const headerSize = 1 + 8 + 8 + 4 // Type + Now + ExpireIn + KeyLen

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type     CommandType
	Key      string
	Now      uint64 // unix second at which the command was proposed
	ExpireIn uint64
	Old      []byte // expected value for CompareAndSwap, nil = key must be absent
	Value    []byte
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Key) + 4 + len(command.Old) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for now,
// 8 bytes for expireIn,
// 4 bytes for key length (big endian),
// N bytes for key data,
// 4 bytes for old value length (0xFFFFFFFF if there is no old value),
// M bytes for old value data,
// rest for value data
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], command.Now)
	binary.BigEndian.PutUint64(result[9:17], command.ExpireIn)
	binary.BigEndian.PutUint32(result[17:21], uint32(len(command.Key)))

	offset := headerSize
	offset += copy(result[offset:], command.Key)

	if command.Old == nil {
		binary.BigEndian.PutUint32(result[offset:offset+4], noOld)
	} else {
		binary.BigEndian.PutUint32(result[offset:offset+4], uint32(len(command.Old)))
	}
	offset += 4
	offset += copy(result[offset:], command.Old)

	copy(result[offset:], command.Value)
	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.Now = binary.BigEndian.Uint64(data[1:9])
	command.ExpireIn = binary.BigEndian.Uint64(data[9:17])
	keyLen := int(binary.BigEndian.Uint32(data[17:21]))

	offset := headerSize
	if len(data) < offset+keyLen+4 {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	command.Key = string(data[offset : offset+keyLen])
	offset += keyLen

	oldLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	if oldLen == noOld {
		command.Old = nil
	} else {
		if len(data) < offset+int(oldLen) {
			return fmt.Errorf("data too short for old value of length %d", oldLen)
		}
		command.Old = make([]byte, oldLen)
		copy(command.Old, data[offset:offset+int(oldLen)])
		offset += int(oldLen)
	}

	if len(data) > offset {
		command.Value = make([]byte, len(data)-offset)
		copy(command.Value, data[offset:])
	} else {
		command.Value = nil
	}

	return nil
}

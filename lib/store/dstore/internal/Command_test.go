package internal

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Command with key and value",
			command:  Command{Type: CommandTSetE, Key: "testkey", Now: 1, ExpireIn: 100, Value: []byte("testvalue")},
			expected: 21 + 7 + 4 + 9, // Header + Key + OldLen + Value
		},
		{
			name:     "Compare and swap with old value",
			command:  Command{Type: CommandTCompareAndSwap, Key: "k", Old: []byte("old"), Value: []byte("new")},
			expected: 21 + 1 + 4 + 3 + 3,
		},
		{
			name:     "Delete",
			command:  Command{Type: CommandTDelete, Key: ""},
			expected: 21 + 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size := tt.command.SizeBytes(); size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
			if size := len(tt.command.Serialize()); size != tt.expected {
				t.Errorf("len(Serialize()) = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestOldValueSurvivesSerialization checks that a nil old value (key must be absent)
// stays distinguishable from an empty one
func TestOldValueSurvivesSerialization(t *testing.T) {
	tests := []struct {
		name string
		old  []byte
	}{
		{"nil old value", nil},
		{"empty old value", []byte{}},
		{"binary old value", []byte{0, 1, 2, 254, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Command{
				Type:     CommandTCompareAndSwap,
				Key:      "你好世界",
				Now:      1_700_000_000,
				ExpireIn: 3600,
				Old:      tt.old,
				Value:    []byte(`{"data":[1,null,2]}`),
			}

			var decoded Command
			if err := decoded.Deserialize(cmd.Serialize()); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if (decoded.Old == nil) != (tt.old == nil) {
				t.Errorf("Old nil-ness mismatch: got %v, want %v", decoded.Old, tt.old)
			}
			if !bytes.Equal(decoded.Old, tt.old) {
				t.Errorf("Old mismatch: got %v, want %v", decoded.Old, tt.old)
			}
			if decoded.Key != cmd.Key || decoded.Now != cmd.Now || decoded.ExpireIn != cmd.ExpireIn {
				t.Errorf("Header mismatch: got %+v, want %+v", decoded, cmd)
			}
			if !bytes.Equal(decoded.Value, cmd.Value) {
				t.Errorf("Value mismatch: got %q, want %q", decoded.Value, cmd.Value)
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name:        "Data too short (less than header)",
			data:        []byte{1, 2, 3, 4, 5},
			expectedErr: "data too short for command",
		},
		{
			name: "Invalid key length",
			data: func() []byte {
				data := make([]byte, 21)
				data[0] = byte(CommandTSetE)
				binary.BigEndian.PutUint32(data[17:21], 1000)
				return data
			}(),
			expectedErr: "data too short for key of length 1000",
		},
		{
			name: "Invalid old value length",
			data: func() []byte {
				data := make([]byte, 21+1+4)
				data[0] = byte(CommandTCompareAndSwap)
				binary.BigEndian.PutUint32(data[17:21], 1)
				binary.BigEndian.PutUint32(data[22:26], 50)
				return data
			}(),
			expectedErr: "data too short for old value of length 50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	cmd := Command{
		Type:     CommandTSetE,
		Key:      "testkey",
		Now:      67890,
		ExpireIn: 12345,
		Value:    []byte("testvalue"),
	}

	expected := make([]byte, cmd.SizeBytes())
	expected[0] = byte(CommandTSetE)
	binary.BigEndian.PutUint64(expected[1:9], 67890)
	binary.BigEndian.PutUint64(expected[9:17], 12345)
	binary.BigEndian.PutUint32(expected[17:21], 7)
	copy(expected[21:28], "testkey")
	binary.BigEndian.PutUint32(expected[28:32], 0xFFFFFFFF)
	copy(expected[32:], "testvalue")

	if serialized := cmd.Serialize(); !bytes.Equal(serialized, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", serialized, expected)
	}
}

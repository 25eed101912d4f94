package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dcov/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		{MsgType: common.MsgTSuccess},
		*common.NewSetERequest("coverband_3_3.app.runtime../dog.rb", []byte(`{"data":[1,null,0]}`), 3600),
		*common.NewGetResponse([]byte("test-value"), true, nil),
		*common.NewTTLResponse(42, nil),
		*common.NewKeysResponse([]string{"a", "b"}, nil),
		*common.NewCompareAndSwapRequest("key", []byte("old"), []byte("new"), 60),
		*common.NewAcquireResponse(true, []byte("owner"), nil),
		*common.NewErrorResponse("test error message"),
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range testMessages() {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown is not tested since json rejects it
			for msgType := common.MsgTSuccess; msgType <= common.MsgTLCKRelease; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

// TestCompareAndSwapExpectedOld checks that "must be absent" and "must be empty"
// survive serialization, even though both serializers drop empty slices
func TestCompareAndSwapExpectedOld(t *testing.T) {
	testCases := []struct {
		name string
		old  []byte
	}{
		{"absent", nil},
		{"empty", []byte{}},
		{"value", []byte("v1")},
	}

	for name, factory := range testSerializers {
		serializer := factory()
		for _, tc := range testCases {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				data, err := serializer.Serialize(*common.NewCompareAndSwapRequest("k", tc.old, []byte("v2"), 0))
				if err != nil {
					t.Fatalf("Failed to serialize: %v", err)
				}
				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Fatalf("Failed to deserialize: %v", err)
				}

				got := result.ExpectedOld()
				if (got == nil) != (tc.old == nil) {
					t.Fatalf("Expected old nil=%v, got nil=%v", tc.old == nil, got == nil)
				}
				if !bytes.Equal(got, tc.old) {
					t.Errorf("Expected old %q, got %q", tc.old, got)
				}
			})
		}
	}
}

// TestInvalidData tests that corrupt input is rejected
func TestInvalidData(t *testing.T) {
	testCases := map[string][]byte{
		"Empty data":   {},
		"Garbage":      []byte("\x00\xff\x13garbage"),
		"Unknown type": []byte(`{"msg_type":"expire"}`),
	}

	for name, factory := range testSerializers {
		serializer := factory()
		for tcName, data := range testCases {
			t.Run(name+"/"+tcName, func(t *testing.T) {
				var msg common.Message
				if err := serializer.Deserialize(data, &msg); err == nil {
					t.Errorf("Expected error but got none")
				}
			})
		}
	}
}

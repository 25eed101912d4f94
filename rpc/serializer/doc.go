// Package serializer converts RPC messages to and from bytes.
//
// Key Components:
//
//   - IRPCSerializer: interface all serializers satisfy.
//
//   - jsonSerializerImpl: encoding/json, human readable and the default. Message types are
//     encoded by name.
//
//   - gobSerializerImpl: Go's gob encoding.
//
// Both serializers drop empty byte slices, which is why CompareAndSwap requests carry
// HasOld next to Old (see common.Message.ExpectedOld).
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use.
package serializer

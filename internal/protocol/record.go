// Package protocol defines the fixed-size, trivially-copyable request and
// response records exchanged between clients and workers over the shared
// memory rings. Every type here must remain comparable and pointer-free so
// that a byte-for-byte copy between processes is a valid copy of the value.
package protocol

import "fmt"

const (
	// KeyCapacity is the inline capacity of a Key in bytes.
	KeyCapacity = 64
	// ValueCapacity is the inline capacity of a Value in bytes.
	ValueCapacity = 64
	// BucketInlineCapacity is the number of (Key, Value) pairs a
	// BucketContent response can carry inline before Overflow applies.
	BucketInlineCapacity = 32
)

// Key is a fixed-capacity inline string. It carries no heap pointer, so it
// copies safely across the shared memory boundary.
type Key struct {
	Len  uint8
	Data [KeyCapacity]byte
}

// NewKey builds a Key from a Go string, failing if it exceeds KeyCapacity.
func NewKey(s string) (Key, error) {
	var k Key
	if len(s) > KeyCapacity {
		return k, fmt.Errorf("protocol: key %q exceeds %d bytes", s, KeyCapacity)
	}
	k.Len = uint8(len(s))
	copy(k.Data[:], s)
	return k, nil
}

// String renders the Key's valid prefix as a Go string.
func (k Key) String() string {
	return string(k.Data[:k.Len])
}

// Value is a fixed-capacity inline byte string, sized identically to Key.
type Value struct {
	Len  uint8
	Data [ValueCapacity]byte
}

// NewValue builds a Value from a Go byte slice.
func NewValue(b []byte) (Value, error) {
	var v Value
	if len(b) > ValueCapacity {
		return v, fmt.Errorf("protocol: value exceeds %d bytes", ValueCapacity)
	}
	v.Len = uint8(len(b))
	copy(v.Data[:], b)
	return v, nil
}

// Bytes returns the Value's valid prefix.
func (v Value) Bytes() []byte {
	return v.Data[:v.Len]
}

// RequestKind tags the RequestData payload union.
type RequestKind uint8

const (
	RequestInsert RequestKind = iota + 1
	RequestReadBucket
	RequestDelete
)

func (k RequestKind) String() string {
	switch k {
	case RequestInsert:
		return "Insert"
	case RequestReadBucket:
		return "ReadBucket"
	case RequestDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// RequestData is the fixed-size record a client stamps with its client_id
// and enqueues on the request ring. Value is only meaningful for Insert.
type RequestData struct {
	ClientID  uint32
	RequestID uint32
	Kind      RequestKind
	_         [3]byte // explicit padding after Kind: Key starts at byte offset 12
	Key       Key
	Value     Value
}

// ResponseKind tags the ResponseData payload union.
type ResponseKind uint8

const (
	ResponseInserted ResponseKind = iota + 1
	ResponseBucketContent
	ResponseDeleted
	ResponseNotFound
	ResponseOverflow
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseInserted:
		return "Inserted"
	case ResponseBucketContent:
		return "BucketContent"
	case ResponseDeleted:
		return "Deleted"
	case ResponseNotFound:
		return "NotFound"
	case ResponseOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// Entry is one (Key, Value) pair inside a BucketContent response.
type Entry struct {
	Key   Key
	Value Value
}

// ResponseData is the fixed-size record a worker stamps with the
// originating client_id and request_id and publishes to the broadcast ring.
type ResponseData struct {
	ClientID  uint32
	RequestID uint32
	Kind      ResponseKind
	_         [3]byte
	Len       uint8
	_         [7]byte
	Entries   [BucketInlineCapacity]Entry
}

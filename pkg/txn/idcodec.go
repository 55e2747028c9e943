package txn

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Comparator orders two entity identifiers the way upper layers need
// edits ordered within a transaction. It returns a negative number if
// a < b, zero if equal, positive if a > b — the same contract as
// bytes.Compare / sort.Interface.Less composed into a three-way
// result.
type Comparator[K any] func(a, b K) int

// Serializer turns an entity identifier into bytes for logging and
// back.
type Serializer[K any] interface {
	Marshal(id K) ([]byte, error)
	Unmarshal(data []byte) (K, error)
}

// EntityIDCodec bundles the identifier ordering and serialization a
// Manager is configured with at construction.
type EntityIDCodec[K any] struct {
	Compare    Comparator[K]
	Serializer Serializer[K]
}

// MsgpackIDSerializer serializes identifiers with msgpack, the same
// codec a wire protocol layer would use for query parameters,
// re-homed here since this module has no wire protocol of its own to
// exercise it with.
type MsgpackIDSerializer[K any] struct{}

func (MsgpackIDSerializer[K]) Marshal(id K) ([]byte, error) {
	return msgpack.Marshal(id)
}

func (MsgpackIDSerializer[K]) Unmarshal(data []byte) (K, error) {
	var id K
	err := msgpack.Unmarshal(data, &id)
	return id, err
}

// BytesComparator compares identifiers that are themselves byte
// slices lexicographically, the common case for directory-style
// entity keys (DNs, RDNs) this subsystem sits under.
func BytesComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}

// StringComparator compares string identifiers lexicographically.
func StringComparator(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

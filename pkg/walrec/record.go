// Package walrec encodes and decodes the state-change log records a
// transaction manager writes for BEGIN, COMMIT, and ABORT markers.
// The wire layout is fixed and versioned: an encoding/binary header
// with a hash/crc32 trailer — see pkg/storage for the log that
// actually carries these bytes.
package walrec

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/cobaltdb/txnmanager/pkg/lsn"
)

// ErrCorrupted is returned when a record's checksum does not match
// its payload, or its version byte is unrecognized.
var ErrCorrupted = errors.New("walrec: record corrupted or unsupported version")

// State is the transaction state a record announces.
type State int32

const (
	Begin  State = 0
	Commit State = 1
	Abort  State = 2
)

func (s State) String() string {
	switch s {
	case Begin:
		return "BEGIN"
	case Commit:
		return "COMMIT"
	case Abort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// version1 is the only framing version this package currently emits.
// A future incompatible layout would bump this and Decode would reject
// anything it doesn't recognize, rather than silently misparsing it.
const version1 = 1

// Size is the encoded length of a Record: 1 version byte, 8 bytes
// txnId, 4 bytes state, 4 bytes CRC32.
const Size = 1 + 8 + 4 + 4

// Record is the in-memory form of a state-change marker. TxnID is the
// start LSN for Commit/Abort records, and lsn.Unknown for Begin
// records: the manager does not know its own start LSN until the
// Begin record itself has been appended and assigned one.
type Record struct {
	TxnID lsn.LSN
	State State
}

// Encode serializes r into a fixed Size-byte big-endian frame with a
// trailing CRC32 checksum over the version+payload bytes.
func Encode(r Record) []byte {
	buf := make([]byte, Size)
	buf[0] = version1
	binary.BigEndian.PutUint64(buf[1:9], uint64(r.TxnID))
	binary.BigEndian.PutUint32(buf[9:13], uint32(r.State))
	crc := crc32.ChecksumIEEE(buf[:13])
	binary.BigEndian.PutUint32(buf[13:17], crc)
	return buf
}

// Decode parses a Size-byte frame produced by Encode, verifying its
// checksum.
func Decode(buf []byte) (Record, error) {
	if len(buf) != Size {
		return Record{}, ErrCorrupted
	}
	if buf[0] != version1 {
		return Record{}, ErrCorrupted
	}
	crc := crc32.ChecksumIEEE(buf[:13])
	if binary.BigEndian.Uint32(buf[13:17]) != crc {
		return Record{}, ErrCorrupted
	}
	return Record{
		TxnID: lsn.LSN(binary.BigEndian.Uint64(buf[1:9])),
		State: State(int32(binary.BigEndian.Uint32(buf[9:13]))),
	}, nil
}

package txn

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Verifier is the conflict-detection hook the transaction core calls
// during commit. It is deliberately policy-free: the core decides
// when verification runs, not which predicates constitute a conflict.
// Verify must be pure — it must not mutate current or predecessors.
type Verifier[K comparable] interface {
	Verify(current *ReadWriteTxn[K], predecessors []*ReadWriteTxn[K]) error
}

// Mode selects which of the transaction's own sets DefaultVerifier
// checks against predecessors' write sets: snapshot isolation or full
// serializability.
type Mode int

const (
	// WriteSetOnly checks only for write-write conflicts: snapshot
	// isolation.
	WriteSetOnly Mode = iota
	// ReadAndWriteSet additionally checks the transaction's read set
	// against predecessors' writes: full serializability.
	ReadAndWriteSet
)

// sketchSize is the width, in bytes, of the Bloom-style fingerprint
// DefaultVerifier uses to reject non-overlapping write sets before
// paying for an exact comparison. 32 bytes (256 bits) keeps the false
// positive rate low for the edit-set sizes a single transaction
// realistically accumulates.
const sketchSize = 32

// sketchHashes is the number of bit positions set per key (a
// standard small-k Bloom filter trade-off).
const sketchHashes = 3

type sketch [sketchSize]byte

func (s *sketch) add(h [blake2b.Size256]byte) {
	for i := 0; i < sketchHashes; i++ {
		pos := int(h[i]) % (sketchSize * 8)
		s[pos/8] |= 1 << uint(pos%8)
	}
}

func (s sketch) mayOverlap(other sketch) bool {
	for i := range s {
		if s[i]&other[i] != 0 {
			return true
		}
	}
	return false
}

// DefaultVerifier checks write-write conflicts only, or read-write
// conflicts too, depending on its configured Mode. It fingerprints
// each side's key set with blake2b ahead of the exact check: a cheap
// membership rejection before paying for the precise comparison.
type DefaultVerifier[K comparable] struct {
	mode       Mode
	serializer Serializer[K]
}

// NewDefaultVerifier builds a DefaultVerifier. serializer must produce
// a stable byte encoding for K — the same one configured as the
// Manager's idSerializer, typically.
func NewDefaultVerifier[K comparable](mode Mode, serializer Serializer[K]) *DefaultVerifier[K] {
	return &DefaultVerifier[K]{mode: mode, serializer: serializer}
}

func (v *DefaultVerifier[K]) keySet(keys []K) (map[string]struct{}, sketch, error) {
	set := make(map[string]struct{}, len(keys))
	var sk sketch
	for _, k := range keys {
		encoded, err := v.serializer.Marshal(k)
		if err != nil {
			return nil, sk, fmt.Errorf("txn: verify: marshal key: %w", err)
		}
		set[string(encoded)] = struct{}{}
		sk.add(blake2b.Sum256(encoded))
	}
	return set, sk, nil
}

// Verify implements Verifier.
func (v *DefaultVerifier[K]) Verify(current *ReadWriteTxn[K], predecessors []*ReadWriteTxn[K]) error {
	ownKeys := make([]K, 0)
	for _, e := range current.Edits() {
		ownKeys = append(ownKeys, e.Key)
	}
	if v.mode == ReadAndWriteSet {
		ownKeys = append(ownKeys, current.ReadKeys()...)
	}
	if len(ownKeys) == 0 {
		return nil
	}

	ownSet, ownSketch, err := v.keySet(ownKeys)
	if err != nil {
		return err
	}

	for _, pred := range predecessors {
		writeKeys := make([]K, 0)
		for _, e := range pred.Edits() {
			writeKeys = append(writeKeys, e.Key)
		}
		if len(writeKeys) == 0 {
			continue
		}
		predSet, predSketch, err := v.keySet(writeKeys)
		if err != nil {
			return err
		}
		if !ownSketch.mayOverlap(predSketch) {
			continue // Bloom filter: no false negatives, safe to skip
		}
		for k := range predSet {
			if _, ok := ownSet[k]; ok {
				return fmt.Errorf("%w: overlaps transaction committed at lsn %d", ErrConflictDetected, pred.CommitLSN())
			}
		}
	}

	return nil
}

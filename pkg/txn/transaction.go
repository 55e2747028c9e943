package txn

import (
	"sync"
	"sync/atomic"

	"github.com/cobaltdb/txnmanager/pkg/lsn"
)

// State is a ReadWriteTxn's position in its lifecycle state machine:
// Active → {Committed, Aborted}, both terminal.
type State uint32

const (
	Active State = iota
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Edit is one accumulated modification: an entity identifier and its
// new value. Ordering and identity of K are governed by the
// EntityIDCodec the Manager was constructed with. The Manager itself
// never compares or serializes K; DefaultVerifier serializes keys with
// its own configured Serializer to compare write sets.
type Edit[K comparable] struct {
	Key   K
	Value []byte
}

// Transaction is implemented by both ReadOnlyTxn and ReadWriteTxn. It
// is sealed to this package: upper layers are only ever handed a
// concrete *ReadOnlyTxn[K] or *ReadWriteTxn[K] via Current.
type Transaction[K comparable] interface {
	StartLSN() lsn.LSN
	Snapshot() []*ReadWriteTxn[K]
	sealedTransaction()
}

// ReadOnlyTxn is an immutable snapshot view. Once built at
// begin, nothing about it changes except the refcount it pins on its
// high-water-mark predecessor, released when the transaction ends.
type ReadOnlyTxn[K comparable] struct {
	startLSN lsn.LSN
	snapshot []*ReadWriteTxn[K]
	pinned   *ReadWriteTxn[K]
	ended    atomic.Bool
}

func (t *ReadOnlyTxn[K]) StartLSN() lsn.LSN            { return t.startLSN }
func (t *ReadOnlyTxn[K]) Snapshot() []*ReadWriteTxn[K] { return t.snapshot }
func (t *ReadOnlyTxn[K]) sealedTransaction()           {}

// ReadWriteTxn is a mutable, single-owner transaction. Its
// edits slice is owned by the goroutine that created it until commit
// enqueues the transaction; refCount and state are atomic because
// other goroutines' begin/retirement-sweep paths observe them
// concurrently.
type ReadWriteTxn[K comparable] struct {
	startLSN  lsn.LSN
	commitLSN atomic.Uint64
	state     atomic.Uint32
	snapshot  []*ReadWriteTxn[K]
	pinned    *ReadWriteTxn[K]
	refCount  atomic.Int32

	editsMu sync.Mutex
	edits   []Edit[K]

	readMu  sync.Mutex
	readSet []K
}

func newReadWriteTxn[K comparable](startLSN lsn.LSN, snapshot []*ReadWriteTxn[K], pinned *ReadWriteTxn[K]) *ReadWriteTxn[K] {
	t := &ReadWriteTxn[K]{
		startLSN: startLSN,
		snapshot: snapshot,
		pinned:   pinned,
	}
	t.state.Store(uint32(Active))
	return t
}

func (t *ReadWriteTxn[K]) StartLSN() lsn.LSN            { return t.startLSN }
func (t *ReadWriteTxn[K]) Snapshot() []*ReadWriteTxn[K] { return t.snapshot }
func (t *ReadWriteTxn[K]) sealedTransaction()           {}

// CommitLSN returns lsn.Unknown until the transaction has committed.
func (t *ReadWriteTxn[K]) CommitLSN() lsn.LSN {
	return lsn.LSN(t.commitLSN.Load())
}

// State returns the transaction's current lifecycle state.
func (t *ReadWriteTxn[K]) State() State {
	return State(t.state.Load())
}

// RefCount returns the current reference count — the number of live
// readers/writers pinning this transaction in CommittedQueue.
func (t *ReadWriteTxn[K]) RefCount() int32 {
	return t.refCount.Load()
}

// AddEdit buffers a modification on the transaction. Upper layers call
// this to accumulate writes; the manager never calls it itself.
func (t *ReadWriteTxn[K]) AddEdit(key K, value []byte) error {
	if t.State() != Active {
		return ErrNoActiveTxn
	}
	t.editsMu.Lock()
	defer t.editsMu.Unlock()
	t.edits = append(t.edits, Edit[K]{Key: key, Value: value})
	return nil
}

// Edits returns a snapshot copy of the transaction's accumulated
// write set, in accumulation order.
func (t *ReadWriteTxn[K]) Edits() []Edit[K] {
	t.editsMu.Lock()
	defer t.editsMu.Unlock()
	out := make([]Edit[K], len(t.edits))
	copy(out, t.edits)
	return out
}

func (t *ReadWriteTxn[K]) discardEdits() {
	t.editsMu.Lock()
	t.edits = nil
	t.editsMu.Unlock()
}

// AddRead records that the transaction observed key, for verifiers
// configured to check full serializability rather than snapshot
// isolation.
func (t *ReadWriteTxn[K]) AddRead(key K) error {
	if t.State() != Active {
		return ErrNoActiveTxn
	}
	t.readMu.Lock()
	defer t.readMu.Unlock()
	t.readSet = append(t.readSet, key)
	return nil
}

// ReadKeys returns a snapshot copy of the transaction's recorded read set.
func (t *ReadWriteTxn[K]) ReadKeys() []K {
	t.readMu.Lock()
	defer t.readMu.Unlock()
	out := make([]K, len(t.readSet))
	copy(out, t.readSet)
	return out
}

package txn

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/cobaltdb/txnmanager/pkg/lsn"
	"github.com/cobaltdb/txnmanager/pkg/walrec"
)

// LogHandle is the WAL collaborator contract: append an opaque record
// and get back a strictly increasing LSN, optionally forcing
// durability before returning. *storage.Log satisfies this directly;
// it is spelled out here as its own interface so this package never
// imports pkg/storage and stays agnostic of framing, checksums, or
// the backend underneath.
type LogHandle interface {
	Append(record []byte, sync bool) (lsn.LSN, error)
}

// Manager is the single shared coordinator for begin/commit/abort
// across every execution context.
// Construct one with NewManager and call it concurrently from as many
// goroutines as needed — read-write Begin and Commit serialize
// internally through writeTxnsLock and verifyLock, read-only
// Begin/Commit and Abort touch shared state only through atomics, and
// Current is purely context-local.
type Manager[K comparable] struct {
	log      LogHandle
	codec    EntityIDCodec[K]
	verifier Verifier[K]
	logger   *log.Logger

	// writeTxnsLock guards BEGIN/COMMIT appends and publication of the
	// two frontiers below. verifyLock wraps it during commit. Lock
	// order is always verifyLock → writeTxnsLock, never reversed.
	writeTxnsLock sync.Mutex
	verifyLock    sync.Mutex

	latestCommitted atomic.Pointer[ReadWriteTxn[K]]
	latestVerified  atomic.Pointer[ReadWriteTxn[K]]
	flushedBaseline atomic.Uint64

	queue *CommittedQueue[K]
}

// NewManager constructs a Manager bound to logHandle, using codec to
// order and serialize entity identifiers and verifier as the conflict
// predicate run during commit. A nil logger falls back to the
// standard logger.
func NewManager[K comparable](logHandle LogHandle, codec EntityIDCodec[K], verifier Verifier[K], logger *log.Logger) *Manager[K] {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager[K]{
		log:      logHandle,
		codec:    codec,
		verifier: verifier,
		logger:   logger,
		queue:    NewCommittedQueue[K](),
	}
}

// IDComparator exposes the identifier ordering configured at
// construction.
func (m *Manager[K]) IDComparator() Comparator[K] { return m.codec.Compare }

// IDSerializer exposes the identifier codec configured at
// construction.
func (m *Manager[K]) IDSerializer() Serializer[K] { return m.codec.Serializer }

// FlushedBaseline returns the latest LSN whose effects are considered
// merged into base storage. The manager only ever reads this value;
// advancing it is an external responsibility.
func (m *Manager[K]) FlushedBaseline() lsn.LSN {
	return lsn.LSN(m.flushedBaseline.Load())
}

// AdvanceBaseline moves flushedBaselineLsn forward, ignoring calls
// that would move it backward. It is safe to call concurrently with
// Begin/Commit/Abort and with RetirementSweep.
func (m *Manager[K]) AdvanceBaseline(l lsn.LSN) {
	for {
		cur := lsn.LSN(m.flushedBaseline.Load())
		if l <= cur {
			return
		}
		if m.flushedBaseline.CompareAndSwap(uint64(cur), uint64(l)) {
			return
		}
	}
}

// RetirementSweep walks CommittedQueue from the head and drops every
// entry whose refCount is zero and whose commitLsn is at or below the
// current baseline. It only takes the queue's own internal lock, never
// either of the manager's two mutexes; a committing writer's Enqueue
// waits on that queue lock while a sweep holds it.
func (m *Manager[K]) RetirementSweep() {
	baseline := m.FlushedBaseline()
	m.queue.RemoveIf(func(t *ReadWriteTxn[K]) bool {
		return t.RefCount() == 0 && t.CommitLSN() <= baseline
	})
}

// stableRead acquires a strong reference to whatever slot currently
// points at without racing retirement: read, increment refCount,
// re-read; if the slot moved between reads, back off and retry.
// Returning with a non-nil ref guarantees the referenced transaction
// cannot be retired until the caller releases the pin.
func stableRead[K comparable](slot *atomic.Pointer[ReadWriteTxn[K]]) *ReadWriteTxn[K] {
	for {
		ref := slot.Load()
		if ref == nil {
			return nil
		}
		ref.refCount.Add(1)
		if slot.Load() == ref {
			return ref
		}
		ref.refCount.Add(-1)
	}
}

// buildSnapshot collects every CommittedQueue entry up to and
// including hwm, then trims from the front anything already merged
// into the baseline.
func (m *Manager[K]) buildSnapshot(hwm *ReadWriteTxn[K]) []*ReadWriteTxn[K] {
	if hwm == nil {
		return nil
	}

	var snapshot []*ReadWriteTxn[K]
	it := m.queue.Iterator()
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		if t.CommitLSN() > hwm.CommitLSN() {
			break
		}
		snapshot = append(snapshot, t)
	}

	baseline := m.FlushedBaseline()
	i := 0
	for i < len(snapshot) && snapshot[i].CommitLSN() <= baseline {
		i++
	}
	return snapshot[i:]
}

// predecessorsSince returns every CommittedQueue entry that committed
// after startLSN — the set verification checks a committing writer
// against.
func (m *Manager[K]) predecessorsSince(startLSN lsn.LSN) []*ReadWriteTxn[K] {
	var preds []*ReadWriteTxn[K]
	it := m.queue.Iterator()
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		if t.CommitLSN() > startLSN {
			preds = append(preds, t)
		}
	}
	return preds
}

// releasePin releases the pin acquired at begin. Only the last
// snapshot element was strong-acquired at begin, so only it is
// decremented at end. If the high-water-mark transaction was trimmed
// out of the snapshot by baseline advancement, the snapshot may be
// empty while pinned is still non-nil — the pin is released
// regardless; the invariant assertion against the snapshot's last
// element only applies when there is one to compare against.
func (m *Manager[K]) releasePin(snapshot []*ReadWriteTxn[K], pinned *ReadWriteTxn[K]) error {
	if pinned == nil {
		return nil
	}
	if len(snapshot) > 0 {
		last := snapshot[len(snapshot)-1]
		if last != pinned || last.RefCount() <= 0 {
			return ErrInvariantViolated
		}
	}
	pinned.refCount.Add(-1)
	return nil
}

// Begin attaches a new transaction to ctx and returns the context that
// carries it. Callers must use the returned context for all further
// Commit/Abort/Current calls: at most one transaction may be bound
// per execution context.
func (m *Manager[K]) Begin(ctx context.Context, readOnly bool) (context.Context, error) {
	b, exists := boundFrom[K](ctx)
	if exists && (b.ro != nil || b.rw != nil) {
		return ctx, ErrAlreadyActive
	}

	if readOnly {
		return m.beginReadOnly(ctx, b, exists)
	}
	return m.beginReadWrite(ctx, b, exists)
}

func attach[K comparable](ctx context.Context, b *bound[K], exists bool) context.Context {
	if exists {
		return ctx
	}
	return withBound(ctx, b)
}

func (m *Manager[K]) beginReadOnly(ctx context.Context, b *bound[K], exists bool) (context.Context, error) {
	ref := stableRead(&m.latestCommitted)

	var startLSN lsn.LSN
	if ref != nil {
		startLSN = ref.CommitLSN()
	}
	snapshot := m.buildSnapshot(ref)

	t := &ReadOnlyTxn[K]{startLSN: startLSN, snapshot: snapshot, pinned: ref}

	if !exists {
		b = &bound[K]{}
	}
	b.ro = t
	return attach(ctx, b, exists), nil
}

func (m *Manager[K]) beginReadWrite(ctx context.Context, b *bound[K], exists bool) (context.Context, error) {
	beginRecord := walrec.Encode(walrec.Record{TxnID: lsn.Unknown, State: walrec.Begin})

	m.writeTxnsLock.Lock()
	startLSN, err := m.log.Append(beginRecord, false)
	if err != nil {
		m.writeTxnsLock.Unlock()
		return ctx, &WalIoError{Cause: err}
	}

	// Stable-read against latestVerifiedTxn, not latestCommittedTxn: a
	// writer must see every predecessor accepted by verification even
	// if that predecessor's COMMIT record hasn't reached readers yet.
	ref := stableRead(&m.latestVerified)
	snapshot := m.buildSnapshot(ref)
	m.writeTxnsLock.Unlock()

	t := newReadWriteTxn[K](startLSN, snapshot, ref)

	if !exists {
		b = &bound[K]{}
	}
	b.rw = t
	return attach(ctx, b, exists), nil
}

// Commit finalizes the transaction bound to ctx. Fails with
// ErrNoActiveTxn if none is bound. For read-write transactions it may
// fail with ErrConflictDetected, in which case the transaction has
// already been aborted internally (an ABORT record written) before
// the error surfaces.
func (m *Manager[K]) Commit(ctx context.Context) error {
	b, exists := boundFrom[K](ctx)
	if !exists {
		return ErrNoActiveTxn
	}

	switch {
	case b.rw != nil:
		return m.commitReadWrite(b)
	case b.ro != nil:
		return m.commitReadOnly(b)
	default:
		return ErrNoActiveTxn
	}
}

func (m *Manager[K]) commitReadOnly(b *bound[K]) error {
	t := b.ro
	if !t.ended.CompareAndSwap(false, true) {
		return ErrNoActiveTxn
	}
	err := m.releasePin(t.snapshot, t.pinned)
	b.ro = nil
	return err
}

func (m *Manager[K]) commitReadWrite(b *bound[K]) error {
	t := b.rw
	if t.State() != Active {
		return ErrNoActiveTxn
	}

	m.verifyLock.Lock()

	predecessors := m.predecessorsSince(t.StartLSN())
	if err := m.verifier.Verify(t, predecessors); err != nil {
		m.verifyLock.Unlock()
		_ = m.abortReadWrite(b, t)
		return ErrConflictDetected
	}

	m.writeTxnsLock.Lock()

	commitRecord := walrec.Encode(walrec.Record{TxnID: t.StartLSN(), State: walrec.Commit})
	commitLSN, err := m.log.Append(commitRecord, true)
	if err != nil {
		m.writeTxnsLock.Unlock()
		m.verifyLock.Unlock()
		return &WalIoError{Cause: err}
	}

	t.commitLSN.Store(uint64(commitLSN))
	t.state.Store(uint32(Committed))
	m.queue.Enqueue(t)

	// Both slots are published before either lock is released, so
	// retirement can never observe the verified slot pointing at a
	// transaction not yet reachable via the committed slot.
	m.latestVerified.Store(t)
	m.latestCommitted.Store(t)

	m.writeTxnsLock.Unlock()
	m.verifyLock.Unlock()

	err = m.releasePin(t.snapshot, t.pinned)
	b.rw = nil
	return err
}

// Abort terminates the transaction bound to ctx. It is a silent no-op
// if none is bound. Aborts are best-effort on the
// logging side: if the ABORT record cannot be written, the in-memory
// transaction is still torn down and the I/O error is only logged.
func (m *Manager[K]) Abort(ctx context.Context) error {
	b, exists := boundFrom[K](ctx)
	if !exists {
		return nil
	}

	switch {
	case b.rw != nil:
		return m.abortReadWrite(b, b.rw)
	case b.ro != nil:
		return m.abortReadOnly(b)
	default:
		return nil
	}
}

func (m *Manager[K]) abortReadOnly(b *bound[K]) error {
	t := b.ro
	var err error
	if t.ended.CompareAndSwap(false, true) {
		err = m.releasePin(t.snapshot, t.pinned)
	}
	b.ro = nil
	return err
}

func (m *Manager[K]) abortReadWrite(b *bound[K], t *ReadWriteTxn[K]) error {
	if t.State() == Active {
		abortRecord := walrec.Encode(walrec.Record{TxnID: t.StartLSN(), State: walrec.Abort})
		if _, err := m.log.Append(abortRecord, false); err != nil {
			m.logger.Printf("txn: best-effort abort record failed for start lsn %d: %v", t.StartLSN(), err)
		}
		t.discardEdits()
		t.state.Store(uint32(Aborted))
	}
	err := m.releasePin(t.snapshot, t.pinned)
	b.rw = nil
	return err
}

// Current returns the transaction bound to ctx, if any.
func (m *Manager[K]) Current(ctx context.Context) (Transaction[K], bool) {
	b, exists := boundFrom[K](ctx)
	if !exists {
		return nil, false
	}
	if b.rw != nil {
		return b.rw, true
	}
	if b.ro != nil {
		return b.ro, true
	}
	return nil, false
}

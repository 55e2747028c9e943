package txn

import (
	"fmt"

	"github.com/cobaltdb/txnmanager/pkg/lsn"
	"github.com/cobaltdb/txnmanager/pkg/storage"
	"github.com/cobaltdb/txnmanager/pkg/walrec"
)

// RecoveryLog is the subset of *storage.Log recovery needs: the
// ability to replay every frame written so far. Spelled out as its
// own interface for the same reason LogHandle is: this package stays
// decoupled from the concrete storage backend.
type RecoveryLog interface {
	Replay(fn storage.ReplayFunc) error
}

// RecoveryShape is a reconstruction of transaction outcomes purely
// from state-change markers on the log, without any replay policy. It
// exists so an operator or test can inspect what a future recovery
// implementation would see; the Manager never calls this itself.
type RecoveryShape struct {
	// Committed maps a transaction's start LSN to its commit LSN.
	Committed map[lsn.LSN]lsn.LSN
	// Aborted is the set of start LSNs whose transaction was aborted.
	Aborted map[lsn.LSN]struct{}
	// Dangling is the set of start LSNs with a BEGIN marker but no
	// matching COMMIT or ABORT — transactions in flight when the log
	// was last written.
	Dangling map[lsn.LSN]struct{}
}

// ReconstructRecoveryShape replays every record on log and classifies
// each BEGIN start LSN as committed, aborted, or dangling.
func ReconstructRecoveryShape(log RecoveryLog) (RecoveryShape, error) {
	shape := RecoveryShape{
		Committed: make(map[lsn.LSN]lsn.LSN),
		Aborted:   make(map[lsn.LSN]struct{}),
		Dangling:  make(map[lsn.LSN]struct{}),
	}

	err := log.Replay(func(assigned lsn.LSN, payload []byte) error {
		rec, err := walrec.Decode(payload)
		if err != nil {
			return fmt.Errorf("txn: recovery: decode record at lsn %d: %w", assigned, err)
		}

		switch rec.State {
		case walrec.Begin:
			shape.Dangling[assigned] = struct{}{}
		case walrec.Commit:
			delete(shape.Dangling, rec.TxnID)
			shape.Committed[rec.TxnID] = assigned
		case walrec.Abort:
			delete(shape.Dangling, rec.TxnID)
			shape.Aborted[rec.TxnID] = struct{}{}
		default:
			return fmt.Errorf("txn: recovery: unrecognized state %v at lsn %d", rec.State, assigned)
		}
		return nil
	})
	if err != nil {
		return RecoveryShape{}, err
	}

	return shape, nil
}

// Package lsn defines the log-sequence-number type shared by the WAL
// collaborator, the state-change record codec, and the transaction
// manager. An LSN is a 64-bit value assigned by the log on every
// append; it is never interpreted by this package beyond ordering.
package lsn

// LSN is a monotonic, non-decreasing log position.
type LSN uint64

// Unknown denotes "no log position" — a transaction that has not yet
// been assigned a start or commit timestamp, or a reference that
// points at nothing.
const Unknown LSN = 0

// Known reports whether l is an assigned log position.
func (l LSN) Known() bool {
	return l != Unknown
}

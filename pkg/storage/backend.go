// Package storage provides the physical byte store the transaction
// manager's log sits on top of: a Backend abstraction (disk or
// in-memory) and a Log that frames opaque records onto it and assigns
// each one an increasing LSN.
package storage

import (
	"errors"
)

var (
	ErrInvalidOffset = errors.New("storage: invalid offset")
	ErrInvalidSize   = errors.New("storage: invalid size")
	ErrBackendClosed = errors.New("storage: backend is closed")

	// ErrNonContiguousWrite is returned by WriteAt when offset does
	// not land exactly at the backend's current size. A page store
	// backing random-access edits would allow writes anywhere; a
	// backend under an append-only log never has a reason to leave a
	// gap, so implementations reject one instead of silently
	// zero-filling it.
	ErrNonContiguousWrite = errors.New("storage: write would leave a gap before the log's current end")
)

// Backend is the raw byte-addressable store a Log is built on. It
// knows nothing about records, LSNs, or transactions — just bytes at
// offsets, narrowed here to what an append-only log needs: every
// WriteAt must start exactly at Size(), since a log's callers only
// ever append a frame and never patch one already written.
type Backend interface {
	// ReadAt reads len(buf) bytes from the backend at the given offset.
	ReadAt(buf []byte, offset int64) (int, error)

	// WriteAt writes len(buf) bytes at offset, which must equal the
	// backend's current Size() — any other offset returns
	// ErrNonContiguousWrite.
	WriteAt(buf []byte, offset int64) (int, error)

	// Sync persists all written data durably.
	Sync() error

	// Size returns the current extent of the backend in bytes.
	Size() int64

	// Truncate resizes the backend, used when a checkpoint compacts
	// the log.
	Truncate(size int64) error

	// Close releases the backend's resources.
	Close() error
}

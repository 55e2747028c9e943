package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltdb/txnmanager/pkg/lsn"
)

func TestLogAppendAssignsIncreasingLSNs(t *testing.T) {
	l, err := OpenLog(NewMemory())
	require.NoError(t, err)
	defer l.Close()

	first, err := l.Append([]byte("begin"), false)
	require.NoError(t, err)
	second, err := l.Append([]byte("commit"), true)
	require.NoError(t, err)

	require.Equal(t, lsn.LSN(1), first)
	require.Equal(t, lsn.LSN(2), second)
	require.Equal(t, second, l.LSN())
}

func TestLogAppendOnClosedFails(t *testing.T) {
	l, err := OpenLog(NewMemory())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = l.Append([]byte("x"), false)
	require.ErrorIs(t, err, ErrLogClosed)
}

func TestLogReplayReturnsRecordsInOrder(t *testing.T) {
	l, err := OpenLog(NewMemory())
	require.NoError(t, err)
	defer l.Close()

	payloads := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	for _, p := range payloads {
		_, err := l.Append(p, false)
		require.NoError(t, err)
	}

	var seen [][]byte
	var lsns []lsn.LSN
	err = l.Replay(func(assigned lsn.LSN, payload []byte) error {
		lsns = append(lsns, assigned)
		cp := append([]byte(nil), payload...)
		seen = append(seen, cp)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, payloads, seen)
	require.Equal(t, []lsn.LSN{1, 2, 3}, lsns)
}

func TestLogCheckpointTruncatesAndIsSkippedByReplay(t *testing.T) {
	backend := NewMemory()
	l, err := OpenLog(backend)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append([]byte("begin"), false)
	require.NoError(t, err)
	_, err = l.Append([]byte("commit"), true)
	require.NoError(t, err)

	ckptLSN, err := l.Checkpoint()
	require.NoError(t, err)
	require.Equal(t, lsn.LSN(3), ckptLSN)
	require.Equal(t, ckptLSN, l.CheckpointLSN())
	require.Equal(t, int64(0), backend.Size())

	var count int
	err = l.Replay(func(lsn.LSN, []byte) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestOpenLogRecoversSequenceFromExistingData(t *testing.T) {
	backend := NewMemory()
	l, err := OpenLog(backend)
	require.NoError(t, err)

	_, err = l.Append([]byte("one"), true)
	require.NoError(t, err)
	_, err = l.Append([]byte("two"), true)
	require.NoError(t, err)

	// Simulate a process restart: a fresh Log scanning the same
	// already-flushed backend must recover the same sequence number.
	reopened, err := OpenLog(backend)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, lsn.LSN(2), reopened.LSN())

	third, err := reopened.Append([]byte("three"), true)
	require.NoError(t, err)
	require.Equal(t, lsn.LSN(3), third)
}

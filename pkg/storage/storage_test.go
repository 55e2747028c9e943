package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskBackendReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	backend, err := OpenDisk(path)
	require.NoError(t, err)
	defer backend.Close()

	data := []byte("hello, txnmanager")
	n, err := backend.WriteAt(data, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = backend.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)

	require.Equal(t, int64(len(data)), backend.Size())
	require.NoError(t, backend.Truncate(100))
	require.Equal(t, int64(100), backend.Size())
	require.NoError(t, backend.Sync())
	require.Equal(t, path, backend.Path())
}

func TestDiskBackendClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	backend, err := OpenDisk(path)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	_, err = backend.ReadAt(make([]byte, 1), 0)
	require.ErrorIs(t, err, ErrBackendClosed)

	_, err = backend.WriteAt([]byte{1}, 0)
	require.ErrorIs(t, err, ErrBackendClosed)
}

func TestMemoryBackendReadWrite(t *testing.T) {
	backend := NewMemory()
	defer backend.Close()

	data := []byte("in-memory record")
	n, err := backend.WriteAt(data, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = backend.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, data, buf[:n])
	require.Equal(t, int64(len(data)), backend.Size())
}

func TestMemoryBackendClosed(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Close())

	_, err := backend.WriteAt([]byte{1}, 0)
	require.ErrorIs(t, err, ErrBackendClosed)
}

func TestMemoryBackendTruncateGrowsAndShrinks(t *testing.T) {
	backend := NewMemory()
	defer backend.Close()

	require.NoError(t, backend.Truncate(10))
	require.Equal(t, int64(10), backend.Size())

	require.NoError(t, backend.Truncate(2))
	require.Equal(t, int64(2), backend.Size())
}

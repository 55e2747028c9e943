package storage

import (
	"fmt"
	"os"
	"sync"
)

const diskFileMode = 0644

// DiskBackend is a Backend over a single on-disk file.
type DiskBackend struct {
	file *os.File
	path string
	size int64
	mu   sync.RWMutex
}

// OpenDisk opens or creates the log file at path.
func OpenDisk(path string) (*DiskBackend, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, diskFileMode)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}

	return &DiskBackend{
		file: file,
		path: path,
		size: stat.Size(),
	}, nil
}

// Path returns the file path this backend was opened with.
func (d *DiskBackend) Path() string {
	return d.path
}

func (d *DiskBackend) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, ErrInvalidOffset
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.file == nil {
		return 0, ErrBackendClosed
	}

	return d.file.ReadAt(buf, offset)
}

func (d *DiskBackend) WriteAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, ErrInvalidOffset
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, ErrBackendClosed
	}
	if offset != d.size {
		return 0, ErrNonContiguousWrite
	}

	n, err := d.file.WriteAt(buf, offset)
	if err != nil {
		return n, err
	}

	d.size += int64(n)
	return n, nil
}

func (d *DiskBackend) Sync() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.file == nil {
		return ErrBackendClosed
	}

	return d.file.Sync()
}

func (d *DiskBackend) Size() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}

func (d *DiskBackend) Truncate(size int64) error {
	if size < 0 {
		return ErrInvalidSize
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return ErrBackendClosed
	}

	if err := d.file.Truncate(size); err != nil {
		return err
	}

	d.size = size
	return nil
}

func (d *DiskBackend) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}

	err := d.file.Close()
	d.file = nil
	return err
}

// Package mmap provides memory-mapped file access for zero-copy reads. The
// whole file is mapped once; ranged reads hand out views into the mapping,
// so callers must not retain slices past Close.
package mmap

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// Reader is a read-only memory-mapped file.
type Reader struct {
	file     *os.File
	data     []byte
	size     int64
	pageSize int

	bytesRead atomic.Int64
	pagesRead atomic.Int64

	mu sync.RWMutex
}

// NewReader opens and maps path. The mapping is advised for sequential
// access, which matches how the chunk phases walk a source.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
			WithDetail("path", path)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").
			WithDetail("path", path)
	}

	size := stat.Size()
	if size == 0 {
		file.Close()
		return nil, errors.New(errors.ErrorTypeFile, "cannot map an empty file").
			WithDetail("path", path)
	}

	data, err := mmap(int(file.Fd()), 0, int(size), ProtRead, MapShared)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to map file").
			WithDetail("path", path).
			WithDetail("size", size)
	}

	// Best effort: the kernel read-ahead hint is not load-bearing.
	_ = madvise(data, MadvSequential)

	return &Reader{
		file:     file,
		data:     data,
		size:     size,
		pageSize: os.Getpagesize(),
	}, nil
}

// Size returns the mapped file's size in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// ReadAll returns the entire mapping without copying.
func (r *Reader) ReadAll() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.bytesRead.Add(r.size)
	r.pagesRead.Add(r.pages(r.size))
	return r.data
}

// ReadRange returns a zero-copy view of [offset, offset+length), clamped to
// the file end.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.data == nil {
		return nil, errors.New(errors.ErrorTypeFile, "reader is closed")
	}
	if offset < 0 || offset >= r.size {
		return nil, errors.New(errors.ErrorTypeFile, "read offset out of range").
			WithDetail("offset", offset).
			WithDetail("size", r.size)
	}

	end := offset + length
	if end > r.size {
		end = r.size
	}

	r.bytesRead.Add(end - offset)
	r.pagesRead.Add(r.pages(end - offset))
	return r.data[offset:end], nil
}

// Prefetch advises the kernel that [offset, offset+length) will be needed
// soon. Page-aligned, best effort.
func (r *Reader) Prefetch(offset, length int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.data == nil || length <= 0 {
		return
	}

	ps := int64(r.pageSize)
	start := (offset / ps) * ps
	end := ((offset + length + ps - 1) / ps) * ps
	if start < 0 {
		start = 0
	}
	if end > r.size {
		end = r.size
	}
	if end <= start {
		return
	}
	_ = madvise(r.data[start:end], MadvWillneed)
}

// Stats returns cumulative read counters.
func (r *Reader) Stats() (bytesRead, pagesRead int64) {
	return r.bytesRead.Load(), r.pagesRead.Load()
}

// Close unmaps and closes the file. Outstanding views become invalid.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.data != nil {
		err = munmap(r.data)
		r.data = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}

func (r *Reader) pages(n int64) int64 {
	return (n + int64(r.pageSize) - 1) / int64(r.pageSize)
}

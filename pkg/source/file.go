package source

import (
	"context"
	"io"
	"os"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// FileSource reads a local file with positioned reads. Slices share the
// open descriptor, so concurrent chunk loads need no extra file handles.
type FileSource struct {
	f    *os.File
	path string
	size int64
}

// NewFileSource opens path read-only.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "open source file").
			WithDetail("path", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "stat source file").
			WithDetail("path", path)
	}
	return &FileSource{f: f, path: path, size: st.Size()}, nil
}

func (s *FileSource) Size() int64 {
	return s.size
}

func (s *FileSource) Slice(start, end int64) ByteSource {
	start, end = clampRange(start, end, s.size)
	return &fileRange{f: s.f, path: s.path, off: start, length: end - start}
}

func (s *FileSource) Load(ctx context.Context) ([]byte, error) {
	return readAt(ctx, s.f, s.path, 0, s.size)
}

func (s *FileSource) Close() error {
	return s.f.Close()
}

type fileRange struct {
	f      *os.File
	path   string
	off    int64
	length int64
}

func (r *fileRange) Size() int64 {
	return r.length
}

func (r *fileRange) Slice(start, end int64) ByteSource {
	start, end = clampRange(start, end, r.length)
	return &fileRange{f: r.f, path: r.path, off: r.off + start, length: end - start}
}

func (r *fileRange) Load(ctx context.Context) ([]byte, error) {
	return readAt(ctx, r.f, r.path, r.off, r.length)
}

func readAt(ctx context.Context, f *os.File, path string, off, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, off)
	if err == io.EOF && int64(n) == length {
		err = nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read source range").
			WithDetail("path", path).
			WithDetail("offset", off).
			WithDetail("length", length)
	}
	return buf, nil
}

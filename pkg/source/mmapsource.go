package source

import (
	"context"

	"github.com/ajitpratap0/comet/pkg/mmap"
)

// MmapSource serves a local file through a shared read-only mapping. Slices
// and loads are zero-copy views into the mapping, which is why Close must
// wait until every chunk built on those views has been unloaded.
type MmapSource struct {
	r    *mmap.Reader
	data []byte
}

// NewMmapSource maps path. Fails on empty files and filesystems that refuse
// mapping; callers fall back to FileSource.
func NewMmapSource(path string) (*MmapSource, error) {
	r, err := mmap.NewReader(path)
	if err != nil {
		return nil, err
	}
	return &MmapSource{r: r, data: r.ReadAll()}, nil
}

func (s *MmapSource) Size() int64 {
	return int64(len(s.data))
}

func (s *MmapSource) Slice(start, end int64) ByteSource {
	start, end = clampRange(start, end, s.Size())
	return NewBytesSource(s.data[start:end])
}

func (s *MmapSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.data, nil
}

// Prefetch hints the kernel to page in [start, end) ahead of the next load.
func (s *MmapSource) Prefetch(start, end int64) {
	start, end = clampRange(start, end, s.Size())
	s.r.Prefetch(start, end-start)
}

func (s *MmapSource) Close() error {
	s.data = nil
	return s.r.Close()
}

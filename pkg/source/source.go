// Package source abstracts where delimited bytes come from. A ByteSource is
// a sized, sliceable window of bytes; the pipeline computes chunk boundaries
// against Size and materializes each chunk with Slice(start, end).Load(ctx),
// so implementations only ever read the ranges the planner asks for.
//
// Roots are Sources (ByteSource plus Close) and come in five flavors:
// BytesSource over an in-memory buffer, FileSource over pread, MmapSource
// over a shared mapping, and S3Source/GCSSource over ranged blob reads.
// Open picks one from a path or URL and transparently decompresses
// recognized extensions (.gz, .zst, .lz4, .sz, ...). Compressed streams are
// not random-access, so a compressed source is decompressed to memory once
// and served as a BytesSource.
//
// Slice offsets are relative to the receiver, not the root: for any source
// s, valid offsets are [0, s.Size()). Out-of-range requests are clamped.
package source

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/ajitpratap0/comet/pkg/compression"
	"github.com/ajitpratap0/comet/pkg/errors"
)

// ByteSource is a sized window of bytes that can be narrowed and loaded.
// Implementations are safe for concurrent Slice and Load calls.
type ByteSource interface {
	// Size reports the window length in bytes.
	Size() int64

	// Slice narrows the window to [start, end) relative to this source.
	// Slicing never performs I/O.
	Slice(start, end int64) ByteSource

	// Load reads the full window into memory. Memory-backed sources return
	// a view of their backing buffer; reading sources return a fresh copy.
	Load(ctx context.Context) ([]byte, error)
}

// Source is a root ByteSource that owns an underlying resource. Closing a
// root invalidates any zero-copy views previously returned by Load.
type Source interface {
	ByteSource
	Close() error
}

// Prefetcher is implemented by sources that can hint an upcoming read range
// to the OS. The pipeline prefetches the next chunk while the current one
// parses.
type Prefetcher interface {
	Prefetch(start, end int64)
}

// clampRange normalizes a requested window against a source size.
func clampRange(start, end, size int64) (int64, int64) {
	if start < 0 {
		start = 0
	}
	if start > size {
		start = size
	}
	if end > size {
		end = size
	}
	if end < start {
		end = start
	}
	return start, end
}

// BytesSource serves a byte slice already in memory. Slice and Load are
// zero-copy.
type BytesSource struct {
	data []byte
}

// NewBytesSource wraps data without copying it.
func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{data: data}
}

func (s *BytesSource) Size() int64 {
	return int64(len(s.data))
}

func (s *BytesSource) Slice(start, end int64) ByteSource {
	start, end = clampRange(start, end, s.Size())
	return &BytesSource{data: s.data[start:end]}
}

func (s *BytesSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.data, nil
}

// Close releases nothing; the buffer belongs to the caller.
func (s *BytesSource) Close() error { return nil }

// Open resolves a path or URL into a root source. s3:// and gs:// URLs get
// cloud-backed sources with clients built from ambient credentials; local
// paths are memory-mapped, falling back to plain file reads when mapping
// fails. A recognized compression extension switches to materialize-once
// mode: the whole blob is read, decompressed, and served from memory.
func Open(ctx context.Context, path string) (Source, error) {
	root, err := openRaw(ctx, path)
	if err != nil {
		return nil, err
	}

	algo, ok := compression.ForExtension(path)
	if !ok {
		return root, nil
	}

	raw, err := root.Load(ctx)
	if err != nil {
		root.Close()
		return nil, err
	}

	comp, err := compression.NewCompressor(&compression.Config{Algorithm: algo, Level: compression.Default})
	if err != nil {
		root.Close()
		return nil, err
	}

	// Files carry the framed/stream flavor of each codec, so decompress as
	// a stream rather than a block.
	var buf bytes.Buffer
	buf.Grow(len(raw) * 3)
	if err := comp.DecompressStream(&buf, bytes.NewReader(raw)); err != nil {
		root.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decompress source").
			WithDetail("path", path).
			WithDetail("algorithm", string(algo))
	}
	if err := root.Close(); err != nil {
		return nil, err
	}
	return NewBytesSource(buf.Bytes()), nil
}

func openRaw(ctx context.Context, path string) (Source, error) {
	if strings.Contains(path, "://") {
		scheme, bucket, key, err := parseBlobURL(path)
		if err != nil {
			return nil, err
		}
		switch scheme {
		case "s3":
			return openS3(ctx, bucket, key)
		case "gs":
			return openGCS(ctx, bucket, key)
		default:
			return nil, errors.New(errors.ErrorTypeConfig, "unsupported source scheme").
				WithDetail("scheme", scheme).
				WithDetail("path", path)
		}
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "stat source").
			WithDetail("path", path)
	}
	if st.Size() == 0 {
		return NewBytesSource(nil), nil
	}

	if src, err := NewMmapSource(path); err == nil {
		return src, nil
	}
	return NewFileSource(path)
}

// parseBlobURL splits scheme://bucket/key, requiring a non-empty bucket and
// key.
func parseBlobURL(raw string) (scheme, bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", errors.Wrap(err, errors.ErrorTypeConfig, "parse source url").
			WithDetail("url", raw)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", "", errors.New(errors.ErrorTypeConfig, "blob url needs bucket and key").
			WithDetail("url", raw)
	}
	return u.Scheme, bucket, key, nil
}

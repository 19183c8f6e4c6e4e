package source

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// GCSObject is the slice of the GCS object API this package needs, shaped
// for faking: the real *storage.ObjectHandle is wrapped by NewGCSObject.
type GCSObject interface {
	// Size reports the object's byte length.
	Size(ctx context.Context) (int64, error)

	// RangeReader streams [offset, offset+length). A negative length means
	// read to the end of the object.
	RangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// NewGCSObject adapts a storage object handle to the GCSObject seam.
func NewGCSObject(h *storage.ObjectHandle) GCSObject {
	return objectHandle{h: h}
}

type objectHandle struct {
	h *storage.ObjectHandle
}

func (o objectHandle) Size(ctx context.Context) (int64, error) {
	attrs, err := o.h.Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (o objectHandle) RangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return o.h.NewRangeReader(ctx, offset, length)
}

// GCSSource reads a GCS object with range readers, one request per slice
// load.
type GCSSource struct {
	obj    GCSObject
	size   int64
	closer io.Closer
}

// NewGCSSource resolves the object size up front.
func NewGCSSource(ctx context.Context, obj GCSObject) (*GCSSource, error) {
	size, err := obj.Size(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "stat gcs object")
	}
	return &GCSSource{obj: obj, size: size}, nil
}

func openGCS(ctx context.Context, bucket, key string) (*GCSSource, error) {
	// Ingest only reads blobs.
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadOnly))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "create gcs client")
	}
	src, err := NewGCSSource(ctx, NewGCSObject(client.Bucket(bucket).Object(key)))
	if err != nil {
		client.Close()
		return nil, err
	}
	src.closer = client
	return src, nil
}

func (s *GCSSource) Size() int64 {
	return s.size
}

func (s *GCSSource) Slice(start, end int64) ByteSource {
	start, end = clampRange(start, end, s.size)
	return &gcsRange{obj: s.obj, off: start, length: end - start}
}

func (s *GCSSource) Load(ctx context.Context) ([]byte, error) {
	return readRange(ctx, s.obj, 0, s.size)
}

func (s *GCSSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

type gcsRange struct {
	obj    GCSObject
	off    int64
	length int64
}

func (r *gcsRange) Size() int64 {
	return r.length
}

func (r *gcsRange) Slice(start, end int64) ByteSource {
	start, end = clampRange(start, end, r.length)
	return &gcsRange{obj: r.obj, off: r.off + start, length: end - start}
}

func (r *gcsRange) Load(ctx context.Context) ([]byte, error) {
	return readRange(ctx, r.obj, r.off, r.length)
}

func readRange(ctx context.Context, obj GCSObject, off, length int64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	rc, err := obj.RangeReader(ctx, off, length)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "open gcs range reader").
			WithDetail("offset", off).
			WithDetail("length", length)
	}
	defer rc.Close()

	buf := make([]byte, length)
	if _, err := io.ReadFull(rc, buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "read gcs range").
			WithDetail("offset", off).
			WithDetail("length", length)
	}
	return buf, nil
}

package source

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajitpratap0/comet/pkg/errors"
)

const (
	s3DownloadPartSize    = 8 * 1024 * 1024
	s3DownloadConcurrency = 4
)

// S3Client is the slice of the S3 API this package needs. *s3.Client
// satisfies it; tests substitute fakes.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Source reads an S3 object with ranged GetObject calls. Each slice load
// is one request, so chunk loads stream independently without downloading
// the whole object.
type S3Source struct {
	client S3Client
	bucket string
	key    string
	size   int64
}

// NewS3Source resolves the object size with HeadObject.
func NewS3Source(ctx context.Context, client S3Client, bucket, key string) (*S3Source, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "head s3 object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return &S3Source{
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

func openS3(ctx context.Context, bucket, key string) (*S3Source, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load aws config")
	}
	return NewS3Source(ctx, s3.NewFromConfig(cfg), bucket, key)
}

func (s *S3Source) Size() int64 {
	return s.size
}

func (s *S3Source) Slice(start, end int64) ByteSource {
	start, end = clampRange(start, end, s.size)
	return &s3Range{client: s.client, bucket: s.bucket, key: s.key, off: start, length: end - start}
}

// Load downloads the whole object with the concurrent part downloader.
func (s *S3Source) Load(ctx context.Context) ([]byte, error) {
	if s.size == 0 {
		return nil, nil
	}
	downloader := manager.NewDownloader(s.client, func(d *manager.Downloader) {
		d.PartSize = s3DownloadPartSize
		d.Concurrency = s3DownloadConcurrency
	})
	buf := manager.NewWriteAtBuffer(make([]byte, 0, s.size))
	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "download s3 object").
			WithDetail("bucket", s.bucket).
			WithDetail("key", s.key)
	}
	return buf.Bytes(), nil
}

// Close releases nothing; the client is owned by the caller.
func (s *S3Source) Close() error { return nil }

type s3Range struct {
	client S3Client
	bucket string
	key    string
	off    int64
	length int64
}

func (r *s3Range) Size() int64 {
	return r.length
}

func (r *s3Range) Slice(start, end int64) ByteSource {
	start, end = clampRange(start, end, r.length)
	return &s3Range{client: r.client, bucket: r.bucket, key: r.key, off: r.off + start, length: end - start}
}

func (r *s3Range) Load(ctx context.Context) ([]byte, error) {
	if r.length == 0 {
		return nil, nil
	}
	// HTTP ranges are inclusive on both ends.
	rng := fmt.Sprintf("bytes=%d-%d", r.off, r.off+r.length-1)
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "get s3 range").
			WithDetail("bucket", r.bucket).
			WithDetail("key", r.key).
			WithDetail("range", rng)
	}
	defer out.Body.Close()

	buf := make([]byte, r.length)
	if _, err := io.ReadFull(out.Body, buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "read s3 range body").
			WithDetail("bucket", r.bucket).
			WithDetail("key", r.key).
			WithDetail("range", rng)
	}
	return buf, nil
}

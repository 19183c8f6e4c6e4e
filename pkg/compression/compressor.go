// Package compression wraps the codecs comet accepts on its edges: sources
// ending in a recognized extension are decompressed transparently before
// slicing, and the convert command can compress its binary output. Gzip,
// Snappy, LZ4, Zstd, S2, and Deflate are supported with pooled codec
// instances.
//
// Compressed streams are not random-access, so a compressed source is always
// materialized to memory once before chunking; see the source package.
package compression

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/comet/pkg/errors"
	stringpool "github.com/ajitpratap0/comet/pkg/strings"
)

// Algorithm names a compression codec.
type Algorithm string

const (
	None    Algorithm = "none"
	Gzip    Algorithm = "gzip"
	Snappy  Algorithm = "snappy"
	LZ4     Algorithm = "lz4"
	Zstd    Algorithm = "zstd"
	S2      Algorithm = "s2"
	Deflate Algorithm = "deflate"
)

// Level trades compression speed against ratio.
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

// extensions maps file suffixes to the codec that produced them.
var extensions = map[string]Algorithm{
	".gz":     Gzip,
	".gzip":   Gzip,
	".zst":    Zstd,
	".zstd":   Zstd,
	".lz4":    LZ4,
	".sz":     Snappy,
	".snappy": Snappy,
	".s2":     S2,
}

// ForExtension reports the codec implied by a path's suffix, if any.
func ForExtension(path string) (Algorithm, bool) {
	lower := strings.ToLower(path)
	for ext, algo := range extensions {
		if strings.HasSuffix(lower, ext) {
			return algo, true
		}
	}
	return None, false
}

// ParseAlgorithm resolves a user-supplied codec name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(name)) {
	case None, "":
		return None, nil
	case Gzip:
		return Gzip, nil
	case Snappy:
		return Snappy, nil
	case LZ4:
		return LZ4, nil
	case Zstd:
		return Zstd, nil
	case S2:
		return S2, nil
	case Deflate:
		return Deflate, nil
	default:
		return None, errors.New(errors.ErrorTypeConfig, "unknown compression algorithm").
			WithDetail("algorithm", name)
	}
}

// Compressor compresses and decompresses byte blocks and streams. All
// implementations are safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	CompressStream(dst io.Writer, src io.Reader) error
	DecompressStream(dst io.Writer, src io.Reader) error
	Algorithm() Algorithm
	Level() Level
}

// Config selects a codec and its level.
type Config struct {
	Algorithm  Algorithm
	Level      Level
	BufferSize int
}

// DefaultConfig favors speed: Snappy with 64 KiB stream buffers.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:  Snappy,
		Level:      Default,
		BufferSize: 64 * 1024,
	}
}

// NewCompressor builds a compressor for the configured algorithm. A nil
// config means DefaultConfig.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Algorithm {
	case None:
		return &noneCompressor{}, nil
	case Gzip:
		return newGzipCompressor(config), nil
	case Snappy:
		return &snappyCompressor{baseFor(config)}, nil
	case LZ4:
		return newLZ4Compressor(config), nil
	case Zstd:
		return newZstdCompressor(config), nil
	case S2:
		return &s2Compressor{baseFor(config)}, nil
	case Deflate:
		return newDeflateCompressor(config), nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", string(config.Algorithm))
	}
}

// Pool reuses compressor instances; worth it for codecs with expensive
// setup like zstd.
type Pool struct {
	pool   sync.Pool
	config *Config
}

// NewPool creates a compressor pool for the given config.
func NewPool(config *Config) *Pool {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Pool{config: config}
	p.pool.New = func() interface{} {
		c, _ := NewCompressor(config)
		return c
	}
	return p
}

// Get borrows a compressor from the pool.
func (p *Pool) Get() Compressor {
	return p.pool.Get().(Compressor)
}

// Put returns a compressor to the pool.
func (p *Pool) Put(c Compressor) {
	p.pool.Put(c)
}

// Compress compresses data with a pooled instance.
func (p *Pool) Compress(data []byte) ([]byte, error) {
	c := p.Get()
	defer p.Put(c)
	return c.Compress(data)
}

// Decompress decompresses data with a pooled instance.
func (p *Pool) Decompress(data []byte) ([]byte, error) {
	c := p.Get()
	defer p.Put(c)
	return c.Decompress(data)
}

type base struct {
	algorithm  Algorithm
	level      Level
	bufferSize int
}

func baseFor(config *Config) base {
	return base{
		algorithm:  config.Algorithm,
		level:      config.Level,
		bufferSize: config.BufferSize,
	}
}

func (b *base) Algorithm() Algorithm { return b.algorithm }
func (b *base) Level() Level         { return b.level }

type noneCompressor struct {
	base
}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

func (nc *noneCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (nc *noneCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

type gzipCompressor struct {
	base
	writers sync.Pool
	readers sync.Pool
}

func newGzipCompressor(config *Config) *gzipCompressor {
	level := mapGzipLevel(config.Level)
	gc := &gzipCompressor{base: baseFor(config)}
	gc.writers.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, level)
		return w
	}
	gc.readers.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	w := gc.writers.Get().(*gzip.Writer)
	defer gc.writers.Put(w)

	w.Reset(builder)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), builder.Bytes()...), nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r := gc.readers.Get().(*gzip.Reader)
	defer gc.readers.Put(r)

	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	if _, err := io.Copy(builder, r); err != nil {
		return nil, err
	}
	return append([]byte(nil), builder.Bytes()...), nil
}

func (gc *gzipCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := gc.writers.Get().(*gzip.Writer)
	defer gc.writers.Put(w)

	w.Reset(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (gc *gzipCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := gc.readers.Get().(*gzip.Reader)
	defer gc.readers.Put(r)

	if err := r.Reset(src); err != nil {
		return err
	}
	_, err := io.Copy(dst, r)
	return err
}

type snappyCompressor struct {
	base
}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

func (sc *snappyCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := snappy.NewBufferedWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (sc *snappyCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := snappy.NewReader(src)
	_, err := io.Copy(dst, r)
	return err
}

type lz4Compressor struct {
	base
	compressionLevel lz4.CompressionLevel
}

func newLZ4Compressor(config *Config) *lz4Compressor {
	return &lz4Compressor{
		base:             baseFor(config),
		compressionLevel: mapLZ4Level(config.Level),
	}
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	w := lz4.NewWriter(builder)
	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), builder.Bytes()...), nil
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))

	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	if _, err := io.Copy(builder, r); err != nil {
		return nil, err
	}
	return append([]byte(nil), builder.Bytes()...), nil
}

func (lc *lz4Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := lz4.NewWriter(dst)
	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (lc *lz4Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := lz4.NewReader(src)
	_, err := io.Copy(dst, r)
	return err
}

type zstdCompressor struct {
	base
	encoders sync.Pool
	decoders sync.Pool
}

func newZstdCompressor(config *Config) *zstdCompressor {
	level := mapZstdLevel(config.Level)
	zc := &zstdCompressor{base: baseFor(config)}
	zc.encoders.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		return enc
	}
	zc.decoders.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	return zc
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoders.Get().(*zstd.Encoder)
	defer zc.encoders.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoders.Get().(*zstd.Decoder)
	defer zc.decoders.Put(dec)
	return dec.DecodeAll(data, nil)
}

func (zc *zstdCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	enc := zc.encoders.Get().(*zstd.Encoder)
	defer zc.encoders.Put(enc)

	enc.Reset(dst)
	if _, err := io.Copy(enc, src); err != nil {
		return err
	}
	return enc.Close()
}

func (zc *zstdCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	dec := zc.decoders.Get().(*zstd.Decoder)
	defer zc.decoders.Put(dec)

	if err := dec.Reset(src); err != nil {
		return err
	}
	_, err := io.Copy(dst, dec)
	return err
}

type s2Compressor struct {
	base
}

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

func (sc *s2Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := s2.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (sc *s2Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := s2.NewReader(src)
	_, err := io.Copy(dst, r)
	return err
}

type deflateCompressor struct {
	base
	level int
}

func newDeflateCompressor(config *Config) *deflateCompressor {
	return &deflateCompressor{
		base:  baseFor(config),
		level: mapDeflateLevel(config.Level),
	}
}

func (dc *deflateCompressor) Compress(data []byte) ([]byte, error) {
	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	w, err := flate.NewWriter(builder, dc.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), builder.Bytes()...), nil
}

func (dc *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	if _, err := io.Copy(builder, r); err != nil {
		return nil, err
	}
	return append([]byte(nil), builder.Bytes()...), nil
}

func (dc *deflateCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := flate.NewWriter(dst, dc.level)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (dc *deflateCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := flate.NewReader(src)
	defer r.Close()

	_, err := io.Copy(dst, r)
	return err
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

package config

import (
	"runtime"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// Default limits. Chunk windows must be able to hold at least one complete
// row, and field offsets reserve the top bit of a uint32, which caps the
// chunk size well below 2GiB.
const (
	// DefaultMaxRowSize is the largest distance a row may span, 128KiB.
	DefaultMaxRowSize = 128 * 1024
	// DefaultChunkSize is the tentative chunk window, 4MiB.
	DefaultChunkSize = 4 * 1024 * 1024
	// DefaultMaxLoadedChunks bounds chunks resident during streaming.
	DefaultMaxLoadedChunks = 32
	// MaxChunkSize is the hard ceiling on a single chunk window.
	MaxChunkSize = 1 << 30
)

// Config is the single configuration structure for a parse run. All phases
// (slice, profile, stream, encode, merge) read the same immutable Config;
// mutating it after handing it to a pipeline is not supported.
type Config struct {
	// Format describes the delimited-text dialect of the input
	Format FormatConfig `yaml:"format" json:"format" mapstructure:"format"`

	// Limits bound row and chunk geometry
	Limits LimitsConfig `yaml:"limits" json:"limits" mapstructure:"limits"`

	// Runtime controls worker parallelism and merge strategy
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime" mapstructure:"runtime"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`

	// Output optionally embeds the merged binary buffer in caller memory.
	// Runtime-only; never loaded from a file.
	Output OutputConfig `yaml:"-" json:"-" mapstructure:"-"`
}

// FormatConfig describes the delimited-text dialect. Delimiter values are
// single-byte strings; the escape spellings \t, \n and \r are accepted so
// the values survive YAML and flag round-trips.
type FormatConfig struct {
	// Separator splits fields within a row
	Separator string `yaml:"separator" json:"separator" mapstructure:"separator"`
	// Qualifier quotes fields that contain structural bytes
	Qualifier string `yaml:"qualifier" json:"qualifier" mapstructure:"qualifier"`
	// LineBreak terminates rows
	LineBreak string `yaml:"line_break" json:"line_break" mapstructure:"line_break"`
	// FirstRowHeader treats the first row as column names
	FirstRowHeader bool `yaml:"first_row_header" json:"first_row_header" mapstructure:"first_row_header"`
	// Encoding names the character encoding of the input (IANA name).
	// Only ASCII-compatible encodings are supported; the scanner works on
	// raw bytes and values are transcoded on read.
	Encoding string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
}

// LimitsConfig bounds row and chunk geometry.
type LimitsConfig struct {
	// MaxRowSize is the maximum distance in bytes a single row may span,
	// including its line break
	MaxRowSize int `yaml:"max_row_size" json:"max_row_size" mapstructure:"max_row_size"`
	// ChunkSize is the tentative chunk window before boundary resolution
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" mapstructure:"chunk_size"`
	// MaxLoadedChunks bounds how many chunks may be resident at once
	// during streaming iteration
	MaxLoadedChunks int `yaml:"max_loaded_chunks" json:"max_loaded_chunks" mapstructure:"max_loaded_chunks"`
}

// RuntimeConfig controls worker parallelism and the merge strategy.
type RuntimeConfig struct {
	// Workers is the worker pool size; 0 means one per CPU
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// ParallelMerge forces the merge strategy when set; when nil the
	// detected capability decides
	ParallelMerge *bool `yaml:"parallel_merge" json:"parallel_merge" mapstructure:"parallel_merge"`
	// Capabilities is the capability snapshot taken when the Config was
	// built. Decisions read this value, never ambient process state.
	Capabilities Capabilities `yaml:"-" json:"-" mapstructure:"-"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus collectors
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// EnableTracing activates span emission around pipeline phases
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
}

// OutputConfig lets a caller supply the destination buffer for the merge
// phase, embedding the binary result in memory it owns.
type OutputConfig struct {
	// Buffer receives the merged row data when non-nil
	Buffer []byte
	// Offset is the write position of the first merged row within Buffer
	Offset int
}

// Capabilities is an explicit snapshot of what the host supports. It is
// computed once and threaded through the run so strategy choices stay
// stable even if the environment changes mid-run.
type Capabilities struct {
	// ParallelMerge reports whether concurrent writers into disjoint
	// regions of one buffer are worthwhile on this host
	ParallelMerge bool
	// CPUs is the usable processor count at detection time
	CPUs int
}

// DetectCapabilities inspects the host once and returns the capability
// snapshot used for strategy defaults.
func DetectCapabilities() Capabilities {
	cpus := runtime.GOMAXPROCS(0)
	return Capabilities{
		ParallelMerge: cpus > 1,
		CPUs:          cpus,
	}
}

// New creates a Config with the default dialect (comma separator, double
// quote qualifier, newline line break, header row present, UTF-8) and
// default limits. Capabilities are detected at construction.
func New() *Config {
	return &Config{
		Format: FormatConfig{
			Separator:      ",",
			Qualifier:      "\"",
			LineBreak:      "\n",
			FirstRowHeader: true,
			Encoding:       "utf-8",
		},
		Limits: LimitsConfig{
			MaxRowSize:      DefaultMaxRowSize,
			ChunkSize:       DefaultChunkSize,
			MaxLoadedChunks: DefaultMaxLoadedChunks,
		},
		Runtime: RuntimeConfig{
			Workers:       0,
			ParallelMerge: nil,
			Capabilities:  DetectCapabilities(),
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableTracing: false,
			LogLevel:      "info",
		},
	}
}

// delimiterByte interprets a configured delimiter string as a single byte,
// accepting the escape spellings \t, \n and \r.
func delimiterByte(name, value string) (byte, error) {
	switch value {
	case "\\t":
		return '\t', nil
	case "\\n":
		return '\n', nil
	case "\\r":
		return '\r', nil
	}
	if len(value) != 1 {
		return 0, errors.New(errors.ErrorTypeConfig, "delimiter must be a single byte").
			WithDetail("field", name).
			WithDetail("value", value)
	}
	return value[0], nil
}

// DelimiterBytes returns the separator, qualifier and line-break bytes
// after escape interpretation.
func (f *FormatConfig) DelimiterBytes() (sep, qual, lb byte, err error) {
	if sep, err = delimiterByte("separator", f.Separator); err != nil {
		return 0, 0, 0, err
	}
	if qual, err = delimiterByte("qualifier", f.Qualifier); err != nil {
		return 0, 0, 0, err
	}
	if lb, err = delimiterByte("line_break", f.LineBreak); err != nil {
		return 0, 0, 0, err
	}
	return sep, qual, lb, nil
}

// GetWorkers returns the worker count, defaulting to one per CPU.
func (r *RuntimeConfig) GetWorkers() int {
	if r.Workers <= 0 {
		return runtime.NumCPU()
	}
	return r.Workers
}

// MergeInParallel reports whether the merge phase should use concurrent
// region writers. An explicit ParallelMerge setting wins; otherwise the
// capability snapshot decides.
func (r *RuntimeConfig) MergeInParallel() bool {
	if r.ParallelMerge != nil {
		return *r.ParallelMerge
	}
	return r.Capabilities.ParallelMerge
}

// Validate checks the configuration for correctness: delimiters must be
// three distinct single bytes, and chunk geometry must be able to hold at
// least one complete row.
func (c *Config) Validate() error {
	sep, qual, lb, err := c.Format.DelimiterBytes()
	if err != nil {
		return err
	}
	if sep == qual || sep == lb || qual == lb {
		return errors.New(errors.ErrorTypeConfig, "separator, qualifier and line break must be distinct").
			WithDetail("separator", c.Format.Separator).
			WithDetail("qualifier", c.Format.Qualifier).
			WithDetail("line_break", c.Format.LineBreak)
	}
	if c.Format.Encoding == "" {
		return errors.New(errors.ErrorTypeConfig, "encoding is required")
	}
	if c.Limits.MaxRowSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "max_row_size must be positive").
			WithDetail("max_row_size", c.Limits.MaxRowSize)
	}
	if c.Limits.ChunkSize < c.Limits.MaxRowSize {
		return errors.New(errors.ErrorTypeConfig, "chunk_size must be at least max_row_size").
			WithDetail("chunk_size", c.Limits.ChunkSize).
			WithDetail("max_row_size", c.Limits.MaxRowSize)
	}
	if c.Limits.ChunkSize > MaxChunkSize {
		return errors.New(errors.ErrorTypeConfig, "chunk_size exceeds maximum").
			WithDetail("chunk_size", c.Limits.ChunkSize).
			WithDetail("max", MaxChunkSize)
	}
	if c.Limits.MaxLoadedChunks < 1 {
		return errors.New(errors.ErrorTypeConfig, "max_loaded_chunks must be at least 1").
			WithDetail("max_loaded_chunks", c.Limits.MaxLoadedChunks)
	}
	if c.Runtime.Workers < 0 {
		return errors.New(errors.ErrorTypeConfig, "workers cannot be negative").
			WithDetail("workers", c.Runtime.Workers)
	}
	if c.Output.Offset < 0 {
		return errors.New(errors.ErrorTypeConfig, "output offset cannot be negative").
			WithDetail("offset", c.Output.Offset)
	}
	if c.Output.Buffer != nil && c.Output.Offset > len(c.Output.Buffer) {
		return errors.New(errors.ErrorTypeConfig, "output offset exceeds buffer length").
			WithDetail("offset", c.Output.Offset).
			WithDetail("buffer_len", len(c.Output.Buffer))
	}
	return nil
}

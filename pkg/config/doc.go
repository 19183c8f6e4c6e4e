// Package config provides unified configuration management for the comet
// ingestion engine.
//
// A single Config structure drives every phase of a run: the dialect of the
// delimited input, the chunking limits that bound memory, the runtime knobs
// that control parallelism, and the observability switches. All entry points
// (library callers, the CLI, config files) funnel into the same structure so
// there is exactly one set of defaults and one validation pass.
//
// # Key Features
//
// - Config: single structure covering format, limits, runtime, and observability
// - Structured sections: Format, Limits, Runtime, Observability, Output
// - Environment variable substitution with ${VAR_NAME} syntax
// - COMET_-prefixed environment overrides via viper
// - Automatic defaults and validation
//
// # Usage
//
// ## Programmatic Creation
//
//	cfg := config.New()
//	cfg.Format.Separator = "\\t"
//	cfg.Format.FirstRowHeader = false
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// ## Loading From a File
//
//	cfg, err := config.LoadFile("comet.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// ## Environment Variable Substitution
//
//	# comet.yaml
//	format:
//	  separator: "${COMET_SEPARATOR}"
//	limits:
//	  chunk_size: 4194304
//
// # Configuration Structure
//
//	type Config struct {
//		Format        FormatConfig        `yaml:"format" json:"format"`
//		Limits        LimitsConfig        `yaml:"limits" json:"limits"`
//		Runtime       RuntimeConfig       `yaml:"runtime" json:"runtime"`
//		Observability ObservabilityConfig `yaml:"observability" json:"observability"`
//		Output        OutputConfig        `yaml:"-" json:"-"`
//	}
//
// Each section provides structured, validated configuration:
//
// - Format: separator, qualifier, line break, header row, text encoding
// - Limits: max row size, chunk size, loaded-chunk window
// - Runtime: worker count, merge strategy, detected capabilities
// - Observability: metrics, tracing, log level
// - Output: caller-provided destination buffer for in-place encoding
//
// Delimiters are held as strings so that escape spellings like "\\t" survive
// YAML files and command-line flags; DelimiterBytes converts them to the
// single bytes the tokenizer consumes and rejects multi-byte values.
//
// Validation enforces the structural invariants the rest of the engine
// assumes: the three delimiters are pairwise distinct, chunk_size is at least
// max_row_size (a chunk must be able to hold any single row), and chunk_size
// stays under 1 GiB so field offsets fit in 32 bits.
package config

// Package comet is a parallel ingestion engine for delimited text. It
// slices a CSV byte range into row-aligned chunks, parses the chunks
// concurrently, and folds the results into column profiles, ordered row
// streams, or a fixed-width binary columnar encoding.
//
// # Architecture
//
// A run moves through fixed phases, all coordinated by internal/pipeline:
//
// 1. Slice: tentative cut points every ChunkSize bytes are resolved to the
// next row boundary by scanning forward for an unquoted line break, so
// every chunk holds whole rows and workers never communicate mid-parse.
//
// 2. Parse: each chunk is tokenized once by a byte-level scanner that
// handles quoting, escaped qualifiers, and malformed-row recovery without
// allocating per field.
//
// 3. Fold: per-chunk outputs merge on the coordinating goroutine.
// Column tallies add up, streamed chunks drain strictly in source order
// under a bounded memory window, and fixed-width payloads are stitched
// into one buffer whose layout packs numeric columns first.
//
// The encoded result can be persisted as a comet binary container with
// zero-copy column accessors, or exported as an Arrow IPC file or an Avro
// object container file.
//
// # Quick Start
//
// Profile a file and encode it:
//
//	import (
//	    "context"
//
//	    "github.com/ajitpratap0/comet/internal/pipeline"
//	    "github.com/ajitpratap0/comet/pkg/config"
//	)
//
//	cfg := config.New()
//	p, err := pipeline.New(cfg, logger, nil)
//	if err != nil {
//	    return err
//	}
//
//	profile, err := p.Analyze(context.Background(), "orders.csv")
//	// per-column type tallies and length ranges
//
//	encoded, err := p.EncodeBinary(context.Background(), "orders.csv")
//	// encoded.Header describes the layout of encoded.Buffer
//
// Stream rows in order with bounded memory:
//
//	_, err = p.Each(ctx, "orders.csv", func(v *chunk.RowView) error {
//	    name, err := v.Value(0)
//	    ...
//	})
//
// # Key Packages
//
//	pkg/scan         - byte-level row and field scanner
//	pkg/chunk        - chunk descriptors, loaded chunks, row views
//	pkg/schema       - value classification, column stats, binary layout
//	pkg/task         - worker pool and the per-chunk task kinds
//	pkg/source       - file, mmap, S3, GCS and in-memory byte sources
//	pkg/formats      - binary container, Arrow and Avro writers
//	pkg/compression  - gzip/zstd/lz4/snappy/s2 codecs for inputs and outputs
//	pkg/config       - configuration with viper file loading
//	pkg/errors       - typed, wrapped errors
//	pkg/logger       - structured logging
//	internal/pipeline- run orchestration across the phases
//
// # Command Line
//
// The comet CLI drives the same pipeline:
//
//	comet analyze orders.csv
//	comet convert orders.csv -o orders.cbc
//	comet convert orders.csv -o orders.arrow --format arrow
//	comet stream orders.csv --limit 100
//	comet inspect orders.cbc
package comet

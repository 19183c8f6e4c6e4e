// Package pipeline orchestrates parse runs: it opens the source, reads the
// header, slices the byte range into row-aligned chunks, and drives the
// worker pool through the profile, stream, encode and merge phases. All
// cross-chunk coordination lives here, on the orchestrating goroutine;
// workers only ever see self-contained tasks.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/ajitpratap0/comet/pkg/chunk"
	"github.com/ajitpratap0/comet/pkg/config"
	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/observability"
	"github.com/ajitpratap0/comet/pkg/scan"
	"github.com/ajitpratap0/comet/pkg/source"
	stringpool "github.com/ajitpratap0/comet/pkg/strings"
	"github.com/ajitpratap0/comet/pkg/task"
)

// Pipeline runs parse operations against delimited sources using one
// validated Config. It is safe for concurrent runs; each run gets its own
// source handle and worker pool.
type Pipeline struct {
	cfg     *config.Config
	logger  *zap.Logger
	tracing *observability.Tracing
}

// New validates cfg and builds a pipeline. A nil cfg means defaults; nil
// logger and tracing disable logging and spans.
func New(cfg *config.Config, logger *zap.Logger, tracing *observability.Tracing) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracing == nil {
		tracing, _ = observability.Setup(false, "comet", nil)
	}
	return &Pipeline{cfg: cfg, logger: logger, tracing: tracing}, nil
}

// run carries one invocation's resolved inputs: the opened source, the
// byte-level dialect, resolved column names, and the row-aligned chunk
// plan.
type run struct {
	id        string
	logger    *zap.Logger
	src       source.Source
	profile   scan.Profile
	encoding  encoding.Encoding
	columns   []string
	dataStart int64
	chunks    []chunk.Descriptor
	pool      *task.Pool
}

func (r *run) close() {
	r.pool.Close()
	if err := r.src.Close(); err != nil {
		r.logger.Warn("closing source", zap.Error(err))
	}
}

// Analyze profiles the whole source: per-column value-class tallies and raw
// length ranges, plus row and malformed counts.
func (p *Pipeline) Analyze(ctx context.Context, path string) (*ProfileResult, error) {
	r, err := p.begin(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.close()
	if err := p.slicePhase(ctx, r); err != nil {
		return nil, err
	}
	return p.profilePhase(ctx, r)
}

// EncodeBinary parses the whole source into the merged fixed-width binary
// layout described by the returned header.
func (p *Pipeline) EncodeBinary(ctx context.Context, path string) (*BinaryResult, error) {
	r, err := p.begin(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.close()
	if err := p.slicePhase(ctx, r); err != nil {
		return nil, err
	}
	return p.encodePhase(ctx, r)
}

// Each streams every row of the source through fn in row order. The view
// passed to fn is reused; copy out anything kept past the callback.
func (p *Pipeline) Each(ctx context.Context, path string, fn RowFunc) (*StreamResult, error) {
	r, err := p.begin(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.close()
	if err := p.slicePhase(ctx, r); err != nil {
		return nil, err
	}
	return p.streamPhase(ctx, r, fn)
}

// Columns reports the resolved column names of the source, reading only its
// head.
func (p *Pipeline) Columns(ctx context.Context, path string) ([]string, error) {
	r, err := p.begin(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.close()
	return r.columns, nil
}

// begin opens the source and resolves the dialect, encoding and header.
// Chunk slicing is deferred to slicePhase so header-only operations never
// touch the rest of the source.
func (p *Pipeline) begin(ctx context.Context, path string) (*run, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID), zap.String("source", path))

	sep, qual, lb, err := p.cfg.Format.DelimiterBytes()
	if err != nil {
		return nil, err
	}
	enc, err := scan.ResolveEncoding(p.cfg.Format.Encoding)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	r := &run{
		id:     runID,
		logger: logger,
		src:    src,
		profile: scan.Profile{
			Separator:  sep,
			Qualifier:  qual,
			LineBreak:  lb,
			MaxRowSize: p.cfg.Limits.MaxRowSize,
		},
		encoding: enc,
		pool:     task.NewPool(p.cfg.Runtime.GetWorkers(), logger),
	}

	if err := p.readHeader(ctx, r); err != nil {
		r.close()
		return nil, err
	}

	logger.Info("run prepared",
		zap.Int64("size", src.Size()),
		zap.Int("columns", len(r.columns)),
		zap.Int("workers", r.pool.Workers()))
	return r, nil
}

// readHeader tokenizes the first row of the source head. With
// FirstRowHeader the fields become column names and data starts after the
// row; otherwise names are synthesized and data starts at zero.
func (p *Pipeline) readHeader(ctx context.Context, r *run) error {
	size := r.src.Size()
	if size == 0 {
		return nil
	}

	window := int64(p.cfg.Limits.MaxRowSize)
	if window > size {
		window = size
	}
	head, err := r.src.Slice(0, window).Load(ctx)
	if err != nil {
		return err
	}

	fields, next, res := scan.FirstRow(head, r.profile)
	if next >= len(head) && window < size && head[len(head)-1] != r.profile.LineBreak {
		return errors.New(errors.ErrorTypeData, "header row exceeds max row size").
			WithDetail("max_row_size", p.cfg.Limits.MaxRowSize)
	}
	if res.Malformed {
		r.logger.Warn("header row recovered from malformed quoting")
	}

	if p.cfg.Format.FirstRowHeader {
		r.columns = columnNames(fields, false)
		r.dataStart = int64(next)
	} else {
		r.columns = columnNames(fields, true)
		r.dataStart = 0
	}
	return nil
}

// columnNames cleans raw header fields into usable column names: synthetic
// field_N names when there is no header row or a name is empty, numeric
// suffixes when names collide.
func columnNames(fields []string, synthesize bool) []string {
	names := make([]string, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, field := range fields {
		name := field
		if synthesize || name == "" {
			name = stringpool.Sprintf("field_%d", i+1)
		}
		base := name
		for n := 2; ; n++ {
			if _, taken := seen[name]; !taken {
				break
			}
			name = stringpool.Sprintf("%s_%d", base, n)
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	return names
}

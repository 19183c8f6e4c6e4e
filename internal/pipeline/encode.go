package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/pool"
	"github.com/ajitpratap0/comet/pkg/schema"
	"github.com/ajitpratap0/comet/pkg/task"
)

// BinaryResult is the merged fixed-width encoding of a source. Header
// describes the layout of Buffer; len(Buffer) equals Header.DataLength.
// When Config.Output.Buffer was set, Buffer aliases that memory.
type BinaryResult struct {
	RunID     string
	Header    *schema.BinaryHeader
	Buffer    []byte
	Rows      int64
	Malformed int64
}

// encodePhase parses every chunk into a locally packed payload, folds the
// per-chunk types and widths into one global layout, and merges the
// payloads into a single contiguous buffer.
func (p *Pipeline) encodePhase(ctx context.Context, r *run) (*BinaryResult, error) {
	ctx, span := p.tracing.StartSpan(ctx, "encode")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	futures := make([]*task.Future, len(r.chunks))
	for i, desc := range r.chunks {
		futures[i] = r.pool.Schedule(ctx, &task.ParseBinary{
			Source:  r.src,
			Desc:    desc,
			Columns: r.columns,
			Profile: r.profile,
		})
	}
	results := make([]*task.BinaryChunkResult, len(futures))
	for _, fut := range futures {
		res, err := task.Await[*task.BinaryChunkResult](ctx, fut)
		if err != nil {
			return nil, err
		}
		results[res.Seq] = res
	}

	// The first chunk decides types and packing order; later chunks only
	// widen string columns. A column that drifts to another class past the
	// first chunk keeps the first chunk's type and encodes byte-safely,
	// because merge never copies more than the global width.
	var rows, malformed int64
	n := len(r.columns)
	types := make([]schema.ColumnType, n)
	widths := make([]int, n)
	var order []int
	if len(results) == 0 {
		for i := range types {
			types[i] = schema.TypeString
			widths[i] = 1
		}
	} else {
		copy(types, results[0].Types)
		order = results[0].Order
		for _, res := range results {
			rows += int64(res.Rows)
			malformed += int64(res.Malformed)
			for c, w := range res.Widths {
				if c < n && w > widths[c] {
					widths[c] = w
				}
			}
		}
		for c, t := range types {
			if t != schema.TypeString {
				widths[c] = schema.NumericWidth
			}
		}
	}

	global, err := schema.Layout(r.columns, types, widths, order)
	if err != nil {
		return nil, err
	}
	global.SetRowCount(rows)

	dst, err := p.outputRegion(global.DataLength)
	if err != nil {
		return nil, err
	}
	if p.cfg.Output.Buffer != nil {
		// The header alone must locate the rows inside the caller's buffer.
		global.DataOffset = int64(p.cfg.Output.Offset)
	}

	regions := make([]task.MergeRegion, len(results))
	var rowsBefore int64
	for i, res := range results {
		local, err := schema.Layout(r.columns, res.Types, res.Widths, res.Order)
		if err != nil {
			return nil, err
		}
		regions[i] = task.MergeRegion{
			Payload: res.Payload,
			Local:   local,
			Global:  global,
			Rows:    res.Rows,
			Dst:     dst,
			Offset:  rowsBefore * int64(global.RowLength),
		}
		rowsBefore += int64(res.Rows)
	}
	if err := p.mergeRegions(ctx, r, regions); err != nil {
		return nil, err
	}
	// Every region has been re-strided into dst; the chunk payloads can go
	// back to the pool.
	for _, res := range results {
		pool.GlobalBufferPool.Put(res.Payload)
	}

	span.SetAttribute("rows", rows)
	span.SetAttribute("row_length", global.RowLength)
	r.logger.Info("binary encode complete",
		zap.Int64("rows", rows),
		zap.Int64("malformed", malformed),
		zap.Int("row_length", global.RowLength),
		zap.Int64("bytes", global.DataLength))
	return &BinaryResult{
		RunID:     r.id,
		Header:    global,
		Buffer:    dst,
		Rows:      rows,
		Malformed: malformed,
	}, nil
}

// outputRegion returns the destination for merged row data: a slice of the
// caller's Output.Buffer when one was supplied, a fresh allocation
// otherwise.
func (p *Pipeline) outputRegion(need int64) ([]byte, error) {
	out := p.cfg.Output
	if out.Buffer == nil {
		return make([]byte, need), nil
	}
	off := int64(out.Offset)
	if int64(len(out.Buffer))-off < need {
		return nil, errors.New(errors.ErrorTypeValidation, "output buffer too small for merged data").
			WithDetail("buffer_len", len(out.Buffer)).
			WithDetail("offset", out.Offset).
			WithDetail("need", need)
	}
	return out.Buffer[off : off+need], nil
}

// mergeRegions re-strides every chunk payload into the shared output
// buffer, in parallel when the runtime allows it. Regions cover disjoint
// byte ranges, so parallel merges never overlap.
func (p *Pipeline) mergeRegions(ctx context.Context, r *run, regions []task.MergeRegion) error {
	ctx, span := p.tracing.StartSpan(ctx, "merge")
	defer span.End()
	span.SetAttribute("regions", len(regions))
	span.SetAttribute("parallel", p.cfg.Runtime.MergeInParallel())

	if len(regions) == 0 {
		return nil
	}
	if !p.cfg.Runtime.MergeInParallel() || len(regions) == 1 {
		fut := r.pool.Schedule(ctx, &task.MergeAggregate{Regions: regions})
		_, err := task.Await[*task.MergeResult](ctx, fut)
		return err
	}

	futures := make([]*task.Future, len(regions))
	for i := range regions {
		futures[i] = r.pool.Schedule(ctx, &regions[i])
	}
	// Await every region even after a failure so no merge is still writing
	// into the output buffer when this returns.
	var firstErr error
	for _, fut := range futures {
		if _, err := task.Await[*task.MergeResult](ctx, fut); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

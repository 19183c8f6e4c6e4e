package task

import (
	"context"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/metrics"
	"github.com/ajitpratap0/comet/pkg/schema"
)

// MergeRegion copies one chunk's locally packed rows into its region of the
// global buffer, re-striding each row from the chunk's local layout into
// the global one. Regions are disjoint by construction (offset = data start
// + rows before this chunk × global row length), so parallel merge tasks
// never overlap.
type MergeRegion struct {
	Payload []byte
	Local   *schema.BinaryHeader
	Global  *schema.BinaryHeader
	Rows    int

	// Dst is the whole output buffer; Offset is the absolute byte position
	// of this chunk's first row within it.
	Dst    []byte
	Offset int64
}

// MergeResult reports bytes written into the output buffer.
type MergeResult struct {
	Bytes int64
}

func (t *MergeRegion) Kind() Kind { return KindMergeRegion }

func (t *MergeRegion) Run(ctx context.Context) (interface{}, error) {
	n, err := t.merge(ctx)
	if err != nil {
		return nil, err
	}
	metrics.MergeBytes.Add(float64(n))
	return &MergeResult{Bytes: n}, nil
}

// columnCopy is one column's precomputed re-striding plan. Destination
// cells can be wider than the source (global string widths are maxima);
// the tail is zeroed so reused output buffers stay clean.
type columnCopy struct {
	srcOff   int
	dstOff   int
	srcWidth int
	dstWidth int
}

func (t *MergeRegion) plan() ([]columnCopy, error) {
	plan := make([]columnCopy, 0, len(t.Global.Columns))
	for i := range t.Global.Columns {
		gc := &t.Global.Columns[i]
		lc, ok := t.Local.Lookup(gc.Name)
		if !ok {
			return nil, errors.New(errors.ErrorTypeInternal, "merge layouts disagree on columns").
				WithDetail("column", gc.Name)
		}
		w := lc.Width
		if gc.Width < w {
			w = gc.Width
		}
		plan = append(plan, columnCopy{
			srcOff:   lc.Offset,
			dstOff:   gc.Offset,
			srcWidth: w,
			dstWidth: gc.Width,
		})
	}
	return plan, nil
}

func (t *MergeRegion) merge(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	plan, err := t.plan()
	if err != nil {
		return 0, err
	}

	localLen := t.Local.RowLength
	globalLen := t.Global.RowLength
	var written int64
	for r := 0; r < t.Rows; r++ {
		src := t.Payload[r*localLen : (r+1)*localLen]
		dst := t.Dst[t.Offset+int64(r)*int64(globalLen):]
		for _, c := range plan {
			copy(dst[c.dstOff:c.dstOff+c.srcWidth], src[c.srcOff:c.srcOff+c.srcWidth])
			if c.srcWidth < c.dstWidth {
				tail := dst[c.dstOff+c.srcWidth : c.dstOff+c.dstWidth]
				for i := range tail {
					tail[i] = 0
				}
			}
			written += int64(c.dstWidth)
		}
	}
	return written, nil
}

// MergeAggregate runs every region serially on one worker. It is the
// fallback when parallel merge capability is off.
type MergeAggregate struct {
	Regions []MergeRegion
}

func (t *MergeAggregate) Kind() Kind { return KindMergeAggregate }

func (t *MergeAggregate) Run(ctx context.Context) (interface{}, error) {
	var total int64
	for i := range t.Regions {
		n, err := t.Regions[i].merge(ctx)
		if err != nil {
			return nil, err
		}
		total += n
	}
	metrics.MergeBytes.Add(float64(total))
	return &MergeResult{Bytes: total}, nil
}

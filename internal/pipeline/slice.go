package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/chunk"
	"github.com/ajitpratap0/comet/pkg/task"
)

// slicePhase splits [dataStart, size) into row-aligned chunks. Tentative
// cut points fall every ChunkSize bytes; a boundary-scan task nudges each
// one forward to the next line break so no row ever spans two chunks.
func (p *Pipeline) slicePhase(ctx context.Context, r *run) error {
	ctx, span := p.tracing.StartSpan(ctx, "slice")
	defer span.End()

	size := r.src.Size()
	if r.dataStart >= size {
		span.SetAttribute("chunks", 0)
		return nil
	}

	chunkSize := int64(p.cfg.Limits.ChunkSize)
	n := int((size - r.dataStart + chunkSize - 1) / chunkSize)

	bounds := make([]int64, n+1)
	bounds[0] = r.dataStart
	bounds[n] = size

	if n > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i := 1; i < n; i++ {
			i := i
			fut := r.pool.Schedule(gctx, &task.BoundaryScan{
				Source:     r.src,
				Offset:     r.dataStart + int64(i)*chunkSize,
				MaxRowSize: p.cfg.Limits.MaxRowSize,
				LineBreak:  r.profile.LineBreak,
			})
			g.Go(func() error {
				b, err := task.Await[*task.Boundary](gctx, fut)
				if err != nil {
					return err
				}
				bounds[i] = b.Offset
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	// Boundary scans can push a cut point to or past the next one; empty
	// windows collapse and survivors are reindexed.
	descs := make([]chunk.Descriptor, 0, n)
	prev := bounds[0]
	for i := 1; i <= n; i++ {
		end := bounds[i]
		if end > size {
			end = size
		}
		if end > prev {
			descs = append(descs, chunk.Descriptor{Index: len(descs), Start: prev, End: end})
			prev = end
		}
	}
	r.chunks = descs

	span.SetAttribute("chunks", len(descs))
	span.SetAttribute("bytes", size-r.dataStart)
	r.logger.Debug("sliced source",
		zap.Int("tentative", n),
		zap.Int("chunks", len(descs)))
	return nil
}

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/chunk"
	"github.com/ajitpratap0/comet/pkg/performance"
	"github.com/ajitpratap0/comet/pkg/source"
	"github.com/ajitpratap0/comet/pkg/task"
)

// RowFunc receives each row of the source in order. The view is reused
// between calls; field bytes kept past the callback must be copied out.
type RowFunc func(*chunk.RowView) error

// StreamResult reports a completed streaming pass.
type StreamResult struct {
	RunID     string
	Rows      int64
	Malformed int64
}

type loadDone struct {
	seq    int
	loaded *chunk.LoadedChunk
	err    error
}

// prefetchNext hints the byte range of the next pending chunk to sources
// that can page ahead, so its pages are warm by the time it dispatches.
// Sources without prefetch support are left alone.
func prefetchNext(src source.ByteSource, chunks []chunk.Descriptor, next int) {
	if next >= len(chunks) {
		return
	}
	if pf, ok := src.(source.Prefetcher); ok {
		pf.Prefetch(chunks[next].Start, chunks[next].End)
	}
}

// streamPhase loads chunks ahead of the iterator and hands rows to fn in
// source order. At most MaxLoadedChunks chunks are resident at once,
// counting both loads in flight and completed chunks still waiting for a
// slower predecessor.
func (p *Pipeline) streamPhase(ctx context.Context, r *run, fn RowFunc) (*StreamResult, error) {
	ctx, span := p.tracing.StartSpan(ctx, "stream")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	window := performance.ClampWindow(p.cfg.Limits.MaxLoadedChunks, p.cfg.Limits.ChunkSize)
	if window < p.cfg.Limits.MaxLoadedChunks {
		r.logger.Debug("clamped chunk window to available memory",
			zap.Int("configured", p.cfg.Limits.MaxLoadedChunks),
			zap.Int("window", window))
	}
	maxInFlight := r.pool.Workers()
	if maxInFlight > window {
		maxInFlight = window
	}

	done := make(chan loadDone, maxInFlight)

	var (
		next       int
		dispatched int
		inFlight   int
	)
	buffered := make(map[int]*chunk.LoadedChunk)

	dispatch := func() {
		desc := r.chunks[dispatched]
		fut := r.pool.Schedule(ctx, &task.ParseLoad{
			Source:  r.src,
			Desc:    desc,
			Columns: len(r.columns),
			Profile: r.profile,
		})
		seq := desc.Index
		go func() {
			loaded, err := task.Await[*chunk.LoadedChunk](ctx, fut)
			done <- loadDone{seq: seq, loaded: loaded, err: err}
		}()
		dispatched++
		inFlight++
		prefetchNext(r.src, r.chunks, dispatched)
	}

	// fail cancels outstanding loads and waits for every dispatched
	// completion, so nothing keeps a chunk resident after return.
	fail := func(err error) (*StreamResult, error) {
		cancel()
		for inFlight > 0 {
			d := <-done
			inFlight--
			if d.loaded != nil {
				d.loaded.Unload()
			}
		}
		for _, lc := range buffered {
			lc.Unload()
		}
		return nil, err
	}

	fill := func() {
		for dispatched < len(r.chunks) && inFlight < maxInFlight && inFlight+len(buffered) < window {
			dispatch()
		}
	}

	out := &StreamResult{RunID: r.id}
	var view *chunk.RowView

	fill()
	for next < len(r.chunks) {
		d := <-done
		inFlight--
		if d.err != nil {
			return fail(d.err)
		}
		buffered[d.seq] = d.loaded

		// Drain the in-order prefix. Out-of-order completions stay
		// buffered until their predecessors have streamed.
		for {
			lc, ok := buffered[next]
			if !ok {
				break
			}
			delete(buffered, next)

			if view == nil {
				view = chunk.NewRowView(lc, r.profile.Qualifier, r.encoding)
			} else {
				view.Reset(lc)
			}
			rows := lc.RowCount()
			for i := 0; i < rows; i++ {
				view.SetIndex(i)
				if err := fn(view); err != nil {
					lc.Unload()
					return fail(err)
				}
			}
			out.Rows += int64(rows)
			out.Malformed += int64(lc.Malformed())
			lc.Unload()
			next++
		}
		fill()
	}

	span.SetAttribute("rows", out.Rows)
	span.SetAttribute("malformed", out.Malformed)
	r.logger.Info("stream complete",
		zap.Int64("rows", out.Rows),
		zap.Int64("malformed", out.Malformed))
	return out, nil
}

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/schema"
	"github.com/ajitpratap0/comet/pkg/task"
)

// ProfileResult is the merged outcome of analyzing every chunk of a source.
type ProfileResult struct {
	RunID     string
	Columns   []schema.ColumnStat
	Rows      int64
	Malformed int64
}

func (p *Pipeline) profilePhase(ctx context.Context, r *run) (*ProfileResult, error) {
	ctx, span := p.tracing.StartSpan(ctx, "profile")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	futures := make([]*task.Future, len(r.chunks))
	for i, desc := range r.chunks {
		futures[i] = r.pool.Schedule(ctx, &task.ParseAnalyze{
			Source:  r.src,
			Desc:    desc,
			Columns: r.columns,
			Profile: r.profile,
		})
	}

	out := &ProfileResult{
		RunID:   r.id,
		Columns: schema.NewColumnStats(r.columns),
	}
	for _, fut := range futures {
		res, err := task.Await[*task.AnalyzeResult](ctx, fut)
		if err != nil {
			return nil, err
		}
		schema.MergeStats(out.Columns, res.Stats)
		out.Rows += res.Rows
		out.Malformed += res.Malformed
	}

	span.SetAttribute("rows", out.Rows)
	span.SetAttribute("malformed", out.Malformed)
	r.logger.Info("profile complete",
		zap.Int64("rows", out.Rows),
		zap.Int64("malformed", out.Malformed))
	return out, nil
}

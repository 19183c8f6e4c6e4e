// Package task defines the unit of parallel work in comet and the fixed
// worker pool that executes it. Each processing mode has its own request
// type (BoundaryScan, ParseAnalyze, ParseBinary, ParseLoad, MergeRegion,
// MergeAggregate) carrying exactly the fields that mode needs, so a task is
// fully described by its struct and owns no shared mutable state. Workers
// communicate results only through Futures; coordination stays with the
// scheduling goroutine.
//
//	pool := task.NewPool(cfg.GetWorkers(), logger)
//	defer pool.Close()
//
//	fut := pool.Schedule(ctx, &task.ParseLoad{Source: src, Desc: desc, Columns: 4, Profile: prof})
//	loaded, err := task.Await[*chunk.LoadedChunk](ctx, fut)
package task

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/metrics"
	"github.com/ajitpratap0/comet/pkg/pool"
)

// Kind names a task type; it labels task duration metrics and log lines.
type Kind string

const (
	KindBoundaryScan   Kind = "boundary-scan"
	KindParseAnalyze   Kind = "parse-analyze"
	KindParseBinary    Kind = "parse-binary"
	KindParseLoad      Kind = "parse-load"
	KindMergeRegion    Kind = "merge-region"
	KindMergeAggregate Kind = "merge-aggregate"
)

// Task is a self-contained unit of work. Run executes on a pool worker and
// must not touch state shared with other tasks.
type Task interface {
	Kind() Kind
	Run(ctx context.Context) (interface{}, error)
}

// Future resolves to a task's result. It completes exactly once.
type Future struct {
	task  Task
	id    string
	done  chan struct{}
	value interface{}
	err   error
}

func newFuture(t Task) *Future {
	return &Future{
		task: t,
		id:   pool.GenerateID(string(t.Kind())),
		done: make(chan struct{}),
	}
}

// ID returns the task's unique identifier, "kind-N" with N drawn from a
// process-wide counter. Failure log lines carry it, so a result can be
// matched to its log entry.
func (f *Future) ID() string {
	return f.id
}

func (f *Future) complete(value interface{}, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Wait blocks until the task finishes or ctx is canceled. Canceling the wait
// does not cancel the task; cancel the scheduling context for that.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Await waits for f and asserts the result to T.
func Await[T any](ctx context.Context, f *Future) (T, error) {
	var zero T
	value, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	result, ok := value.(T)
	if !ok {
		return zero, errors.New(errors.ErrorTypeInternal, "unexpected task result type").
			WithDetail("kind", string(f.task.Kind()))
	}
	return result, nil
}

type submission struct {
	ctx    context.Context
	future *Future
}

// Pool runs tasks on a fixed set of worker goroutines. The submit queue is
// bounded, so Schedule applies backpressure once every worker is busy.
type Pool struct {
	workers   int
	submit    chan *submission
	quit      chan struct{}
	wg        sync.WaitGroup
	logger    *zap.Logger
	closeOnce sync.Once
}

// NewPool starts workers goroutines. A nil logger disables pool logging.
func NewPool(workers int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		workers: workers,
		submit:  make(chan *submission, workers*2),
		quit:    make(chan struct{}),
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Workers reports the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Schedule queues t for execution and returns its future. When the queue is
// full Schedule blocks until a slot frees, ctx is canceled, or the pool
// closes; in the last two cases the future completes with the error.
func (p *Pool) Schedule(ctx context.Context, t Task) *Future {
	f := newFuture(t)
	sub := &submission{ctx: ctx, future: f}
	select {
	case p.submit <- sub:
	case <-ctx.Done():
		f.complete(nil, ctx.Err())
	case <-p.quit:
		f.complete(nil, errPoolClosed())
	}
	return f
}

// Close stops the workers and fails any still-queued tasks. It is safe to
// call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
		for {
			select {
			case sub := <-p.submit:
				sub.future.complete(nil, errPoolClosed())
			default:
				return
			}
		}
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case sub := <-p.submit:
			p.execute(sub)
		}
	}
}

func (p *Pool) execute(sub *submission) {
	t := sub.future.task
	if err := sub.ctx.Err(); err != nil {
		sub.future.complete(nil, err)
		return
	}
	timer := metrics.NewTimer(metrics.TaskDuration.WithLabelValues(string(t.Kind())))
	value, err := t.Run(sub.ctx)
	timer.Stop()
	if err != nil {
		p.logger.Warn("task failed",
			zap.String("task", sub.future.id),
			zap.Error(err))
	}
	sub.future.complete(value, err)
}

func errPoolClosed() error {
	return errors.New(errors.ErrorTypeInternal, "task pool closed")
}

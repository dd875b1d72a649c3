package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/spms/internal/adapters/mq/queue"
	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/winners"
	"github.com/okian/spms/pkg/logger"
	"github.com/okian/spms/pkg/metrics"
)

const (
	defaultJobTimeout   = 30 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Resolver resolves quarter winners.
type Resolver interface {
	ResolveQuarterWinners(ctx context.Context, quarterID int64) ([]model.Winner, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// DoneFunc observes the result of one job.
type DoneFunc func(ctx context.Context, job queue.Job, created []model.Winner, err error)

// Worker processes resolution jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for resolution jobs.
type InMemoryWorker struct {
	queue      Queue
	resolver   Resolver
	name       string
	jobTimeout time.Duration
	onDone     DoneFunc

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, resolver Resolver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		resolver:   resolver,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		onDone:     func(context.Context, queue.Job, []model.Winner, error) {},
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// stop signals Run to return; safe to call more than once.
func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job. Expected outcomes (nothing new to award, unknown
// quarter) are logged at info; everything else is an error.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	created, err := w.resolver.ResolveQuarterWinners(jobCtx, job.QuarterID)
	outcome := outcomeOf(err)
	metrics.RecordJobProcessed(outcome, float64(time.Since(start).Milliseconds()))

	fields := []logger.Field{
		logger.String("job_id", job.ID),
		logger.Int64("quarter_id", job.QuarterID),
		logger.String("reason", job.Reason),
		logger.Int("created", len(created)),
		logger.String("outcome", outcome),
	}
	switch outcome {
	case "created", "no_winners", "quarter_not_found":
		w.logger.Info(ctx, "resolution job done", fields...)
	default:
		metrics.RecordErrorByComponent("worker", outcome)
		w.logger.Error(ctx, "resolution job failed", append(fields, logger.Error(err))...)
	}

	w.onDone(ctx, job, created, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, winners.ErrNoWinnersAvailable):
		return "no_winners"
	case errors.Is(err, winners.ErrQuarterNotFound):
		return "quarter_not_found"
	case errors.Is(err, winners.ErrPrizeNotFound):
		return "prize_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers; opts apply to each of them.
func NewPool(workerCount int, q Queue, resolver Resolver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, resolver, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue when it supports closing, then waits for the
// workers to finish their current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	for _, w := range p.workers {
		w.stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}

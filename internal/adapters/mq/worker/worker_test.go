package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/spms/internal/adapters/mq/queue"
	worker "github.com/okian/spms/internal/adapters/mq/worker"
	model "github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/winners"
	logging "github.com/okian/spms/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockResolver struct {
	mu    sync.Mutex
	errs  map[int64]error
	calls []int64
	delay time.Duration
}

func newMockResolver() *mockResolver {
	return &mockResolver{errs: map[int64]error{}}
}

func (mr *mockResolver) ResolveQuarterWinners(ctx context.Context, quarterID int64) ([]model.Winner, error) {
	if mr.delay > 0 {
		select {
		case <-time.After(mr.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.calls = append(mr.calls, quarterID)
	if err := mr.errs[quarterID]; err != nil {
		return nil, err
	}
	return []model.Winner{{QuarterID: quarterID, Category: model.CategoryTop}}, nil
}

type result struct {
	job     queue.Job
	created int
	err     error
}

func collect() (worker.DoneFunc, chan result) {
	results := make(chan result, 10)
	return func(_ context.Context, job queue.Job, created []model.Winner, err error) {
		results <- result{job: job, created: len(created), err: err}
	}, results
}

func waitResult(results chan result) (result, error) {
	select {
	case r := <-results:
		return r, nil
	case <-time.After(2 * time.Second):
		return result{}, fmt.Errorf("no result")
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a mock queue", t, func() {
		convey.So(logging.Init(logging.WithOutput(io.Discard)), convey.ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := newMockQueue()
		resolver := newMockResolver()
		onDone, results := collect()
		w := worker.NewInMemoryWorker(q, resolver, worker.WithName("w-test"), worker.WithOnDone(onDone))
		go w.Run(ctx)

		convey.Convey("When a job resolves winners", func() {
			q.jobs <- queue.NewJob(1, queue.ReasonManual)
			r, err := waitResult(results)

			convey.Convey("Then the callback sees the created records", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.job.QuarterID, convey.ShouldEqual, 1)
				convey.So(r.created, convey.ShouldEqual, 1)
				convey.So(r.err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the resolver reports an outcome error", func() {
			resolver.errs[2] = fmt.Errorf("%w: quarter 2", winners.ErrNoWinnersAvailable)
			q.jobs <- queue.NewJob(2, queue.ReasonQuarterEnded)
			r, err := waitResult(results)

			convey.Convey("Then the error reaches the callback and the worker keeps running", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(errors.Is(r.err, winners.ErrNoWinnersAvailable), convey.ShouldBeTrue)

				q.jobs <- queue.NewJob(3, queue.ReasonManual)
				next, err := waitResult(results)
				convey.So(err, convey.ShouldBeNil)
				convey.So(next.job.QuarterID, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()

			convey.Convey("Then it stops cleanly", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})

			convey.Convey("Then a second shutdown does not panic", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(func() { _ = w.Shutdown(shutdownCtx) }, convey.ShouldNotPanic)
			})
		})
	})
}

func TestJobTimeout(t *testing.T) {
	convey.Convey("Given a slow resolver and a short job timeout", t, func() {
		convey.So(logging.Init(logging.WithOutput(io.Discard)), convey.ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := newMockQueue()
		resolver := newMockResolver()
		resolver.delay = time.Second
		onDone, results := collect()
		w := worker.NewInMemoryWorker(q, resolver, worker.WithJobTimeout(20*time.Millisecond), worker.WithOnDone(onDone))
		go w.Run(ctx)

		q.jobs <- queue.NewJob(5, queue.ReasonManual)
		r, err := waitResult(results)

		convey.Convey("Then the job ends with a deadline error", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(errors.Is(r.err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		convey.So(logging.Init(logging.WithOutput(io.Discard)), convey.ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := newMockQueue()
		resolver := newMockResolver()
		onDone, results := collect()
		pool := worker.NewPool(3, q, resolver, worker.WithOnDone(onDone))
		pool.Start(ctx)

		convey.Convey("When several jobs are queued", func() {
			for i := int64(1); i <= 5; i++ {
				q.jobs <- queue.NewJob(i, queue.ReasonManual)
			}
			seen := map[int64]bool{}
			for i := 0; i < 5; i++ {
				r, err := waitResult(results)
				convey.So(err, convey.ShouldBeNil)
				seen[r.job.QuarterID] = true
			}

			convey.Convey("Then every job is processed once and the pool shuts down", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(seen, convey.ShouldHaveLength, 5)
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(func() { _ = pool.Shutdown(context.Background()) }, convey.ShouldNotPanic)
			})
		})
	})
}

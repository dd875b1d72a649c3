package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/spms/pkg/logger"
	"github.com/okian/spms/pkg/metrics"
)

const (
	defaultRedisKey    = "spms:resolutions"
	defaultPollTimeout = 2 * time.Second
	requeueTimeout     = 5 * time.Second
)

// RedisQueue implements Queue on a Redis list with LPUSH/BRPOP semantics.
// The client is owned by the caller.
type RedisQueue struct {
	client      *redis.Client
	key         string
	maxLen      int
	pollTimeout time.Duration
	logger      logger.Logger

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	consumers sync.WaitGroup
}

// NewRedisQueue builds a queue on client.
func NewRedisQueue(client *redis.Client, opts ...RedisOption) *RedisQueue {
	q := &RedisQueue{
		client:      client,
		key:         defaultRedisKey,
		maxLen:      defaultQueueCapacity,
		pollTimeout: defaultPollTimeout,
		logger:      logger.Get().Named("redis-queue"),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.maxLen > 0 {
		metrics.UpdateQueueCapacity(q.maxLen)
	}
	return q
}

// Enqueue pushes j onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, j Job) error {
	if q.IsClosed() {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if q.maxLen > 0 {
		n, err := q.client.LLen(ctx, q.key).Result()
		if err != nil {
			metrics.RecordQueueEnqueueError("backend")
			return fmt.Errorf("queue length: %w", err)
		}
		if n >= int64(q.maxLen) {
			metrics.RecordQueueEnqueueError("full")
			return ErrQueueFull
		}
	}

	payload, err := encodeJob(j)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		metrics.RecordQueueEnqueueError("backend")
		return fmt.Errorf("push job: %w", err)
	}
	metrics.RecordQueueEnqueue()
	return nil
}

// Dequeue streams jobs using BRPOP until ctx ends or the queue closes.
// Malformed payloads are logged and dropped. A job popped but not taken by
// the consumer before it stops is pushed back to the consumer end of the
// list.
func (q *RedisQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		close(out)
		return out
	}
	q.consumers.Add(1)
	q.mu.RUnlock()

	go func() {
		defer q.consumers.Done()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.done:
				return
			default:
			}

			res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				q.logger.Warn(ctx, "brpop failed", logger.Error(err))
				select {
				case <-time.After(q.pollTimeout):
				case <-ctx.Done():
					return
				case <-q.done:
					return
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			j, err := decodeJob(res[1])
			if err != nil {
				q.logger.Warn(ctx, "dropping malformed job", logger.Error(err))
				continue
			}
			select {
			case out <- j:
				metrics.RecordQueueDequeue()
			case <-ctx.Done():
				q.requeue(ctx, j.ID, res[1])
				return
			case <-q.done:
				q.requeue(ctx, j.ID, res[1])
				return
			}
		}
	}()
	return out
}

// requeue returns payload to the end BRPOP reads from, so it is the next
// job served.
func (q *RedisQueue) requeue(ctx context.Context, jobID, payload string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()
	if err := q.client.RPush(rctx, q.key, payload).Err(); err != nil {
		metrics.RecordErrorByComponent("queue", "requeue")
		q.logger.Error(rctx, "job lost on requeue", logger.String("job_id", jobID), logger.Error(err))
		return
	}
	q.logger.Debug(rctx, "job requeued", logger.String("job_id", jobID))
}

// Len returns the list length, or 0 when Redis is unreachable.
func (q *RedisQueue) Len(ctx context.Context) int {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0
	}
	metrics.UpdateQueueSize(int(n))
	return int(n)
}

// Close stops consumers of this instance and waits until each has returned
// any job it was holding. Jobs left in Redis stay there for the next
// consumer.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()

	q.consumers.Wait()
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *RedisQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

package queue

import "time"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of buffered jobs.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// RedisOption applies a configuration option to the RedisQueue.
type RedisOption func(*RedisQueue)

// WithKey sets the Redis list holding jobs.
func WithKey(key string) RedisOption {
	return func(q *RedisQueue) {
		if key != "" {
			q.key = key
		}
	}
}

// WithMaxLen caps the list length; 0 leaves it unbounded.
func WithMaxLen(n int) RedisOption {
	return func(q *RedisQueue) {
		if n >= 0 {
			q.maxLen = n
		}
	}
}

// WithPollTimeout sets how long one BRPOP blocks before re-checking for shutdown.
func WithPollTimeout(d time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if d > 0 {
			q.pollTimeout = d
		}
	}
}

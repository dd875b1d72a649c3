package service

import (
	"time"

	"github.com/okian/spms/internal/adapters/mq/queue"
	"github.com/okian/spms/internal/config"
	"github.com/okian/spms/internal/domain/draw"
	"github.com/okian/spms/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects an already opened store; Start then skips opening one
// and Stop leaves it open.
func WithStore(store Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.ownsStore = false
		}
	}
}

// WithDatabase selects the driver and DSN Start opens.
func WithDatabase(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" {
			s.dbDriver = driver
		}
		if dsn != "" {
			s.dbDSN = dsn
		}
	}
}

// WithQueue injects the resolution queue.
func WithQueue(q queue.Queue) Option {
	return func(s *Service) {
		if q != nil {
			s.queue = q
		}
	}
}

// WithRedisQueue makes Start connect to Redis and queue jobs under key.
func WithRedisQueue(addr, key string) Option {
	return func(s *Service) {
		if addr != "" {
			s.redisAddr = addr
		}
		if key != "" {
			s.redisKey = key
		}
	}
}

// WithWorkerCount sets the number of resolution workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many quarter keys the dedupers remember.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCloserInterval sets the ended-quarter scan period; 0 disables it.
func WithCloserInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.closerInterval = d
		}
	}
}

// WithSource sets the random source for draws.
func WithSource(src draw.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxPageLimit caps limit on paged queries.
func WithMaxPageLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// OptionsFromConfig maps process configuration onto service options.
func OptionsFromConfig(cfg *config.Config) []Option {
	opts := []Option{
		WithDatabase(cfg.DatabaseDriver, cfg.DatabaseURL),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithCloserInterval(cfg.CloserInterval()),
		WithSource(draw.NewSource(cfg.RandomSeed)),
		WithMaxPageLimit(cfg.MaxPageLimit),
	}
	if cfg.QueueBackend == config.QueueRedis {
		opts = append(opts, WithRedisQueue(cfg.RedisAddr, cfg.QueueKey))
	}
	return opts
}

// Package service wires the winner engine together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/spms/internal/adapters/mq/queue"
	"github.com/okian/spms/internal/adapters/mq/worker"
	"github.com/okian/spms/internal/adapters/repository"
	"github.com/okian/spms/internal/domain/dedupe"
	"github.com/okian/spms/internal/domain/draw"
	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/tier"
	"github.com/okian/spms/internal/domain/types"
	"github.com/okian/spms/internal/domain/winners"
	"github.com/okian/spms/pkg/logger"
	"github.com/okian/spms/pkg/metrics"
)

const (
	defaultQueueSize      = 1000
	defaultDedupeSize     = 10000
	defaultCloserInterval = time.Minute
	defaultMaxPageLimit   = 100
	defaultRedisKey       = "spms:resolutions"
)

// Store is everything the service reads and writes.
type Store interface {
	winners.Store

	ListWinners(ctx context.Context, f types.WinnerFilter) (types.Page[model.Winner], error)
	DeleteWinner(ctx context.Context, id int64) error
	PastWinners(ctx context.Context, quarterID int64) ([]model.Winner, error)
	PastQuarter(ctx context.Context, now time.Time) (model.Quarter, error)
	EndedQuarters(ctx context.Context, now time.Time) ([]model.Quarter, error)
	Leaderboard(ctx context.Context, quarterID int64, grade *int, limit, offset int) (types.Page[types.LeaderboardEntry], error)
	UserPoints(ctx context.Context, quarterID, userID int64) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Service implements the API dependencies for the winner engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    Store
	queue    queue.Queue
	resolver *winners.Resolver
	pool     *worker.Pool
	closer   *closer
	redis    *redis.Client

	// pending holds quarters with a queued job; settled holds quarters the
	// closer no longer needs to schedule.
	pending dedupe.Deduper
	settled dedupe.Deduper

	// Configuration
	ownsStore      bool
	ownsQueue      bool
	dbDriver       string
	dbDSN          string
	redisAddr      string
	redisKey       string
	workerCount    int
	queueSize      int
	dedupeSize     int
	closerInterval time.Duration
	maxPageLimit   int
	source         draw.Source
	now            func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbDriver:       repository.DriverSQLite,
		dbDSN:          "spms.db",
		redisKey:       defaultRedisKey,
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		closerInterval: defaultCloserInterval,
		maxPageLimit:   defaultMaxPageLimit,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and queue when none were injected, then starts the
// worker pool and the quarter closer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.source == nil {
		s.source = draw.NewSource(0)
	}

	s.logger.Info(ctx, "starting winner service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.dbDriver, s.dbDSN)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}
	if seeder, ok := s.store.(interface{ EnsureDefaultPrizes(context.Context) error }); ok {
		if err := seeder.EnsureDefaultPrizes(ctx); err != nil {
			s.releaseStore()
			return fmt.Errorf("seed prizes: %w", err)
		}
	}

	if s.queue == nil {
		q, err := s.buildQueue(ctx)
		if err != nil {
			s.releaseStore()
			return err
		}
		s.queue = q
		s.ownsQueue = true
	}

	s.resolver = winners.NewResolver(s.store, winners.WithSource(s.source))
	s.pending = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.settled = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.pool = worker.NewPool(s.workerCount, s.queue, s.resolver, worker.WithOnDone(s.jobDone))
	s.pool.Start(runCtx)

	if s.closerInterval > 0 {
		s.closer = newCloser(s, s.closerInterval, s.logger.Named("closer"))
		go s.closer.run(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "winner service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("closerInterval", s.closerInterval),
	)
	return nil
}

func (s *Service) buildQueue(ctx context.Context) (queue.Queue, error) {
	if s.redisAddr == "" {
		return queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize)), nil
	}
	client := redis.NewClient(&redis.Options{Addr: s.redisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", s.redisAddr, err)
	}
	s.redis = client
	s.logger.Info(ctx, "using redis queue", logger.String("addr", s.redisAddr), logger.String("key", s.redisKey))
	return queue.NewRedisQueue(client, queue.WithKey(s.redisKey), queue.WithMaxLen(s.queueSize)), nil
}

func (s *Service) releaseStore() {
	if s.ownsStore && s.store != nil {
		_ = s.store.Close()
		s.store = nil
		s.ownsStore = false
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping winner service...")

	var errs []error
	if s.closer != nil {
		s.closer.stop()
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		s.redis = nil
	}
	if s.ownsQueue {
		s.queue = nil
		s.ownsQueue = false
	}
	s.releaseStore()

	s.started = false
	s.logger.Info(ctx, "winner service stopped")
	return errors.Join(errs...)
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// ResolveQuarterWinners resolves the quarter synchronously.
func (s *Service) ResolveQuarterWinners(ctx context.Context, quarterID int64) ([]model.Winner, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.resolver.ResolveQuarterWinners(ctx, quarterID)
}

// ReassignPrize swaps the prize of an existing winner.
func (s *Service) ReassignPrize(ctx context.Context, winnerID, prizeID int64) (model.Winner, error) {
	if !s.running() {
		return model.Winner{}, ErrNotStarted
	}
	return s.resolver.ReassignPrize(ctx, winnerID, prizeID)
}

// ScheduleResolution queues an asynchronous resolution of the quarter. A
// quarter that already has a job waiting is reported as a duplicate and not
// queued twice.
func (s *Service) ScheduleResolution(ctx context.Context, quarterID int64, reason string) (types.JobAck, error) {
	if !s.running() {
		return types.JobAck{}, ErrNotStarted
	}
	return s.schedule(ctx, quarterID, reason)
}

// schedule runs without the service lock so the closer can call it while
// Stop waits for it.
func (s *Service) schedule(ctx context.Context, quarterID int64, reason string) (types.JobAck, error) {
	if _, err := s.store.GetQuarter(ctx, quarterID); err != nil {
		return types.JobAck{}, notFoundAs(err, winners.ErrQuarterNotFound, "quarter", quarterID)
	}

	key := quarterKey(quarterID)
	ack := types.JobAck{QuarterID: quarterID}
	if s.pending.SeenAndRecord(ctx, key) {
		ack.Duplicate = true
		return ack, nil
	}

	job := queue.NewJob(quarterID, reason)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.pending.Unrecord(ctx, key)
		return types.JobAck{}, fmt.Errorf("enqueue quarter %d: %w", quarterID, err)
	}
	metrics.UpdateQueueSize(s.queue.Len(ctx))
	s.logger.Debug(ctx, "resolution scheduled",
		logger.String("job_id", job.ID),
		logger.Int64("quarter_id", quarterID),
		logger.String("reason", reason),
	)
	ack.JobID = job.ID
	return ack, nil
}

// jobDone releases the pending slot and settles quarters the closer has
// nothing more to do for.
func (s *Service) jobDone(ctx context.Context, job queue.Job, _ []model.Winner, err error) {
	key := quarterKey(job.QuarterID)
	// Settle before releasing so a concurrent closer scan cannot requeue.
	if job.Reason == queue.ReasonQuarterEnded {
		switch {
		case err == nil,
			errors.Is(err, winners.ErrNoWinnersAvailable),
			errors.Is(err, winners.ErrQuarterNotFound):
			s.settled.SeenAndRecord(ctx, key)
		}
	}
	s.pending.Unrecord(ctx, key)
}

// ListWinners returns a page of winner records.
func (s *Service) ListWinners(ctx context.Context, f types.WinnerFilter) (types.Page[model.Winner], error) {
	if !s.running() {
		return types.Page[model.Winner]{}, ErrNotStarted
	}
	f.Limit, f.Offset = types.ClampPage(f.Limit, f.Offset, s.maxPageLimit)
	return s.store.ListWinners(ctx, f)
}

// GetWinner returns one winner record.
func (s *Service) GetWinner(ctx context.Context, id int64) (model.Winner, error) {
	if !s.running() {
		return model.Winner{}, ErrNotStarted
	}
	w, err := s.store.GetWinner(ctx, id)
	if err != nil {
		return model.Winner{}, notFoundAs(err, winners.ErrWinnerNotFound, "winner", id)
	}
	return w, nil
}

// DeleteWinner removes a winner record, reopening its category.
func (s *Service) DeleteWinner(ctx context.Context, id int64) error {
	if !s.running() {
		return ErrNotStarted
	}
	if err := s.store.DeleteWinner(ctx, id); err != nil {
		return notFoundAs(err, winners.ErrWinnerNotFound, "winner", id)
	}
	s.logger.Info(ctx, "winner deleted", logger.Int64("winner_id", id))
	return nil
}

// PastWinners returns the leading winner records of a quarter.
func (s *Service) PastWinners(ctx context.Context, quarterID int64) ([]model.Winner, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.store.PastWinners(ctx, quarterID)
}

// PastQuarter returns the most recently ended quarter.
func (s *Service) PastQuarter(ctx context.Context) (model.Quarter, error) {
	if !s.running() {
		return model.Quarter{}, ErrNotStarted
	}
	q, err := s.store.PastQuarter(ctx, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Quarter{}, fmt.Errorf("%w: no ended quarter", winners.ErrQuarterNotFound)
		}
		return model.Quarter{}, err
	}
	return q, nil
}

// Leaderboard returns a ranked page of point counts for the quarter.
func (s *Service) Leaderboard(ctx context.Context, quarterID int64, grade *int, limit, offset int) (types.Page[types.LeaderboardEntry], error) {
	if !s.running() {
		return types.Page[types.LeaderboardEntry]{}, ErrNotStarted
	}
	limit, offset = types.ClampPage(limit, offset, s.maxPageLimit)
	return s.store.Leaderboard(ctx, quarterID, grade, limit, offset)
}

// UserPoints returns the user's points in the quarter and the tier they
// would be awarded at.
func (s *Service) UserPoints(ctx context.Context, quarterID, userID int64) (types.UserPoints, error) {
	if !s.running() {
		return types.UserPoints{}, ErrNotStarted
	}
	if _, err := s.store.GetQuarter(ctx, quarterID); err != nil {
		return types.UserPoints{}, notFoundAs(err, winners.ErrQuarterNotFound, "quarter", quarterID)
	}
	points, err := s.store.UserPoints(ctx, quarterID, userID)
	if err != nil {
		return types.UserPoints{}, err
	}
	return types.UserPoints{
		QuarterID: quarterID,
		UserID:    userID,
		Points:    points,
		Level:     int(tier.For(points)),
	}, nil
}

// Ping checks the store connection.
func (s *Service) Ping(ctx context.Context) error {
	if !s.running() {
		return ErrNotStarted
	}
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"closerInterval": s.closerInterval.String(),
	}

	if s.started {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["pendingQuarters"] = s.pending.Size()
		stats["settledQuarters"] = s.settled.Size()
		stats["workers"] = s.pool.Size()

		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

func quarterKey(id int64) string {
	return "quarter-" + strconv.FormatInt(id, 10)
}

func notFoundAs(err, kind error, what string, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", kind, what, id)
	}
	return err
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/spms/internal/adapters/mq/queue"
	"github.com/okian/spms/pkg/logger"
	"github.com/okian/spms/pkg/metrics"
)

// closer periodically schedules resolution of quarters that have ended.
type closer struct {
	svc      *Service
	interval time.Duration
	logger   logger.Logger

	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newCloser(svc *Service, interval time.Duration, log logger.Logger) *closer {
	return &closer{
		svc:      svc,
		interval: interval,
		logger:   log,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *closer) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.scan(ctx)
		}
	}
}

func (c *closer) stop() {
	c.once.Do(func() { close(c.stopCh) })
	<-c.done
}

// scan schedules every ended quarter that is not settled yet and returns how
// many jobs it queued.
func (c *closer) scan(ctx context.Context) int {
	ended, err := c.svc.store.EndedQuarters(ctx, c.svc.now())
	if err != nil {
		metrics.RecordErrorByComponent("closer", "store")
		c.logger.Error(ctx, "list ended quarters", logger.Error(err))
		return 0
	}

	var scheduled int
	for _, q := range ended {
		if c.svc.settled.Seen(ctx, quarterKey(q.ID)) {
			continue
		}
		ack, err := c.svc.schedule(ctx, q.ID, queue.ReasonQuarterEnded)
		if errors.Is(err, queue.ErrQueueFull) {
			c.logger.Warn(ctx, "queue full, deferring remaining quarters", logger.Int64("quarter_id", q.ID))
			break
		}
		if err != nil {
			metrics.RecordErrorByComponent("closer", "schedule")
			c.logger.Error(ctx, "schedule quarter", logger.Int64("quarter_id", q.ID), logger.Error(err))
			continue
		}
		if !ack.Duplicate {
			scheduled++
		}
	}

	metrics.RecordCloserRun(scheduled)
	if scheduled > 0 {
		c.logger.Info(ctx, "scheduled ended quarters", logger.Int("count", scheduled))
	}
	return scheduled
}

package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/spms/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given an in-memory queue with capacity 2", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		Convey("When jobs are enqueued", func() {
			So(q.Enqueue(ctx, queue.NewJob(1, queue.ReasonManual)), ShouldBeNil)
			So(q.Enqueue(ctx, queue.NewJob(2, queue.ReasonQuarterEnded)), ShouldBeNil)

			Convey("Then they are delivered in order", func() {
				So(q.Len(ctx), ShouldEqual, 2)
				jobs := q.Dequeue(ctx)
				first := <-jobs
				second := <-jobs
				So(first.QuarterID, ShouldEqual, 1)
				So(first.Reason, ShouldEqual, queue.ReasonManual)
				So(second.QuarterID, ShouldEqual, 2)
				So(first.ID, ShouldNotEqual, second.ID)
			})

			Convey("Then a third job is rejected as full", func() {
				err := q.Enqueue(ctx, queue.NewJob(3, queue.ReasonManual))
				So(errors.Is(err, queue.ErrQueueFull), ShouldBeTrue)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, queue.NewJob(1, queue.ReasonManual)), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails and buffered jobs drain before the channel closes", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(errors.Is(q.Enqueue(ctx, queue.NewJob(2, queue.ReasonManual)), queue.ErrClosed), ShouldBeTrue)

				jobs := q.Dequeue(ctx)
				j, ok := <-jobs
				So(ok, ShouldBeTrue)
				So(j.QuarterID, ShouldEqual, 1)
				_, ok = <-jobs
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the consumer context ends", func() {
			consumerCtx, stop := context.WithCancel(ctx)
			jobs := q.Dequeue(consumerCtx)
			stop()

			Convey("Then the channel is closed", func() {
				select {
				case _, ok := <-jobs:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					So("dequeue channel still open", ShouldBeEmpty)
				}
			})
		})
	})
}

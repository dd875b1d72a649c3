package draw_test

import (
	"sync"
	"testing"

	"github.com/okian/spms/internal/domain/draw"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewSource(t *testing.T) {
	Convey("Given two sources with the same seed", t, func() {
		a := draw.NewSource(42)
		b := draw.NewSource(42)

		Convey("Then they produce the same sequence in range", func() {
			for i := 0; i < 50; i++ {
				x := a.Intn(7)
				So(x, ShouldEqual, b.Intn(7))
				So(x, ShouldBeBetweenOrEqual, 0, 6)
			}
		})
	})

	Convey("Given a clock seeded source used concurrently", t, func() {
		src := draw.NewSource(0)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_ = src.Intn(3)
				}
			}()
		}
		wg.Wait()
		So(src.Intn(1), ShouldEqual, 0)
	})
}

func TestPick(t *testing.T) {
	Convey("Given a fixed source", t, func() {
		src := draw.NewFixed(1, 5)

		Convey("When picking from a slice", func() {
			first, ok1 := draw.Pick(src, []string{"a", "b", "c"})
			second, ok2 := draw.Pick(src, []string{"a", "b", "c"})

			Convey("Then indexes are replayed modulo the length", func() {
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeTrue)
				So(first, ShouldEqual, "b")
				So(second, ShouldEqual, "c")
			})
		})

		Convey("When picking from an empty slice", func() {
			_, ok := draw.Pick(src, []int{})

			Convey("Then nothing is drawn", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/vnclub/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInFlight(t *testing.T) {
	Convey("Given a new in-flight guard", t, func() {
		ctx := context.Background()
		d := dedupe.NewInFlight()

		Convey("Then it should start empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When acquiring a key twice", func() {
			first := d.Acquire(ctx, dedupe.Key("u1", "v17"))
			second := d.Acquire(ctx, dedupe.Key("u1", "v17"))

			Convey("Then only the first should succeed", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When releasing a held key", func() {
			d.Acquire(ctx, "k")
			d.Release(ctx, "k")

			Convey("Then it can be acquired again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.Acquire(ctx, "k"), ShouldBeTrue)
			})
		})

		Convey("When releasing a key that is not held", func() {
			d.Release(ctx, "missing")

			Convey("Then the size is unaffected", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When keys differ only by user or title", func() {
			So(d.Acquire(ctx, dedupe.Key("u1", "v1")), ShouldBeTrue)
			So(d.Acquire(ctx, dedupe.Key("u2", "v1")), ShouldBeTrue)
			So(d.Acquire(ctx, dedupe.Key("u1", "v2")), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 3)
		})
	})

	Convey("Given many distinct pairs in flight at once", t, func() {
		ctx := context.Background()
		d := dedupe.NewInFlight()

		Convey("Then none of them is refused", func() {
			for i := 0; i < 1000; i++ {
				So(d.Acquire(ctx, dedupe.Key(fmt.Sprintf("u%d", i), "v1")), ShouldBeTrue)
			}
			So(d.Acquire(ctx, dedupe.Key("bob", "v2")), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 1001)
		})
	})
}

func TestInFlightConcurrent(t *testing.T) {
	Convey("Given many goroutines racing for the same key", t, func() {
		ctx := context.Background()
		d := dedupe.NewInFlight()

		var wins atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if d.Acquire(ctx, dedupe.Key("u1", "v17")) {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one should win", func() {
			So(wins.Load(), ShouldEqual, 1)
		})
	})
}

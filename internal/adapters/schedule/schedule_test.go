package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/echochamber/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler with a healthy, a failing and a panicking task", t, func() {
		So(logger.Init(), ShouldBeNil)
		s := New()

		var healthy, failing, panicking atomic.Int32
		s.Add("healthy", 5*time.Millisecond, func(context.Context) error {
			healthy.Add(1)
			return nil
		})
		s.Add("failing", 5*time.Millisecond, func(context.Context) error {
			failing.Add(1)
			return errors.New("boom")
		})
		s.Add("panicking", 5*time.Millisecond, func(context.Context) error {
			panicking.Add(1)
			panic("bad cycle")
		})
		s.Add("disabled", 0, func(context.Context) error { return nil })

		Convey("When it runs for a while", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			s.Start(ctx)
			time.Sleep(60 * time.Millisecond)
			s.Stop()

			Convey("Then every task keeps cycling despite failures", func() {
				So(healthy.Load(), ShouldBeGreaterThan, 1)
				So(failing.Load(), ShouldBeGreaterThan, 1)
				So(panicking.Load(), ShouldBeGreaterThan, 1)
				So(s.tasks, ShouldHaveLength, 3)
			})

			Convey("Then no cycle runs after Stop", func() {
				n := healthy.Load()
				time.Sleep(20 * time.Millisecond)
				So(healthy.Load(), ShouldEqual, n)
				s.Stop()
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			s.Start(ctx)
			cancel()

			Convey("Then Stop returns promptly", func() {
				done := make(chan struct{})
				go func() { s.Stop(); close(done) }()
				select {
				case <-done:
				case <-time.After(time.Second):
					So("stop hung", ShouldBeEmpty)
				}
			})
		})
	})

	Convey("Given a single cycle", t, func() {
		So(logger.Init(), ShouldBeNil)
		s := New()

		So(s.runOnce(context.Background(), task{name: "ok", fn: func(context.Context) error { return nil }}), ShouldBeTrue)
		So(s.runOnce(context.Background(), task{name: "err", fn: func(context.Context) error { return errors.New("x") }}), ShouldBeFalse)
		So(s.runOnce(context.Background(), task{name: "panic", fn: func(context.Context) error { panic("x") }}), ShouldBeFalse)
	})
}

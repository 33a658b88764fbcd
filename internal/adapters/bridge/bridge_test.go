package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/echochamber/internal/adapters/bridge"
	"github.com/okian/echochamber/internal/adapters/repository"
	"github.com/okian/echochamber/internal/domain/attraction"
	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const tech = "topic:tech"

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestFlusher(t *testing.T) {
	Convey("Given a store, a memory repository and a running flusher", t, func() {
		So(logger.Init(), ShouldBeNil)
		store := attraction.New()
		repo := repository.NewMemory()
		f := bridge.NewFlusher(store, repo, "node-a", bridge.WithFlushInterval(20*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go f.Run(ctx)

		Convey("When edges become dirty", func() {
			store.Apply("a", tech, 3)
			store.Apply("b", tech, 1)

			Convey("Then they are written in one debounced batch", func() {
				So(eventually(func() bool { return repo.Len() == 2 }), ShouldBeTrue)
				So(store.DirtyCount(), ShouldEqual, 0)
				changes, _ := repo.ChangesSince(ctx, 0, 0)
				So(changes[0].Writer, ShouldEqual, "node-a")
			})
		})

		Convey("When an edge is removed after being flushed", func() {
			store.Apply("a", tech, 3)
			So(eventually(func() bool { return repo.Len() == 1 }), ShouldBeTrue)
			store.Apply("a", tech, -3)

			Convey("Then the row is deleted", func() {
				So(eventually(func() bool { return repo.Len() == 0 }), ShouldBeTrue)
			})
		})

		Convey("When storage fails once", func() {
			repo.FailWrites(1)
			store.Apply("a", tech, 3)

			Convey("Then the batch is retried on the next window", func() {
				So(eventually(func() bool { return repo.Len() == 1 }), ShouldBeTrue)
			})
		})

		Convey("When the flusher is stopped with pending edges", func() {
			store.Apply("late", tech, 2)
			So(f.Stop(context.Background()), ShouldBeNil)

			Convey("Then the final flush writes them", func() {
				So(repo.Len(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a volatile actor", t, func() {
		So(logger.Init(), ShouldBeNil)
		store := attraction.New()
		repo := repository.NewMemory()
		f := bridge.NewFlusher(store, repo, "node-a")
		store.MarkVolatile("guest")
		store.Apply("guest", tech, 2)

		Convey("Then its edges are never written", func() {
			So(f.Flush(context.Background()), ShouldBeNil)
			So(repo.Len(), ShouldEqual, 0)
		})
	})
}

func TestRehydrateAndListen(t *testing.T) {
	Convey("Given two instances sharing one repository", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		repo := repository.NewMemory()

		storeA := attraction.New()
		flushA := bridge.NewFlusher(storeA, repo, "a")
		storeA.Apply("u", tech, 3)
		So(flushA.Flush(ctx), ShouldBeNil)

		storeB := attraction.New()
		seq, loaded, err := bridge.Rehydrate(ctx, repo, storeB)
		So(err, ShouldBeNil)
		listenB := bridge.NewChangeListener(repo, storeB, "b", bridge.WithChangeBatch(1))
		listenB.SetCursor(seq)

		Convey("Then B starts from A's durable state", func() {
			So(loaded, ShouldEqual, 1)
			So(storeB.Snapshot("u")[tech], ShouldEqual, 3)
		})

		Convey("When A writes again", func() {
			storeA.Apply("u", tech, 2)
			storeA.Apply("v", tech, 1)
			So(flushA.Flush(ctx), ShouldBeNil)
			n, err := listenB.Poll(ctx)

			Convey("Then B merges by absolute weight", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(storeB.Snapshot("u")[tech], ShouldEqual, 5)
				So(storeB.Snapshot("v")[tech], ShouldEqual, 1)
				So(storeB.DirtyCount(), ShouldEqual, 0)
			})
		})

		Convey("When B's own writes come back through the feed", func() {
			flushB := bridge.NewFlusher(storeB, repo, "b")
			storeB.Apply("w", tech, 4)
			So(flushB.Flush(ctx), ShouldBeNil)
			n, err := listenB.Poll(ctx)

			Convey("Then they are skipped", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				So(listenB.Cursor(), ShouldBeGreaterThan, seq)
			})
		})

		Convey("When A deletes an edge", func() {
			storeA.RemoveActor("u")
			So(flushA.Flush(ctx), ShouldBeNil)
			_, err := listenB.Poll(ctx)

			Convey("Then B drops it too", func() {
				So(err, ShouldBeNil)
				So(storeB.Snapshot("u"), ShouldBeEmpty)
			})
		})
	})

	Convey("Given a listener with a small retention", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		repo := repository.NewMemory()
		for i := 0; i < 5; i++ {
			So(repo.UpsertBatch(ctx, "x", []model.Edge{{Source: "u", Target: tech, Weight: float64(i + 1)}}), ShouldBeNil)
		}
		l := bridge.NewChangeListener(repo, attraction.New(), "y", bridge.WithChangeRetention(2))

		Convey("Then old change records are pruned after a poll", func() {
			n, err := l.Poll(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 5)
			left, _ := repo.ChangesSince(ctx, 0, 0)
			So(left, ShouldHaveLength, 3)
		})
	})
}

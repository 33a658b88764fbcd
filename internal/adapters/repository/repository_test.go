package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/echochamber/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var at = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func edge(src, dst string, w, p float64) model.Edge {
	return model.Edge{Source: src, Target: dst, Weight: w, Passive: p, UpdatedAt: at}
}

func tombstone(src, dst string) model.Edge {
	return model.Edge{Source: src, Target: dst, UpdatedAt: at, Deleted: true}
}

func repositories(t *testing.T) map[string]func() EdgeRepository {
	return map[string]func() EdgeRepository{
		"sqlite": func() EdgeRepository {
			s, err := OpenMemory(context.Background())
			if err != nil {
				t.Fatalf("OpenMemory: %v", err)
			}
			return s
		},
		"memory": func() EdgeRepository { return NewMemory() },
	}
}

func TestEdgeRepositoryContract(t *testing.T) {
	ctx := context.Background()

	for name, open := range repositories(t) {
		Convey("Given an empty "+name+" repository", t, func() {
			repo := open()
			defer repo.Close()

			batch := []model.Edge{
				edge("a", "topic:tech", 3, 0),
				edge("a", "actor:b", 0.5, 0),
				edge("b", "topic:food", 1.5, 0.5),
			}

			Convey("When a batch is written", func() {
				So(repo.UpsertBatch(ctx, "w1", batch), ShouldBeNil)

				Convey("Then every edge loads back", func() {
					rows, err := repo.LoadAll(ctx)
					So(err, ShouldBeNil)
					So(rows, ShouldHaveLength, 3)
					So(rows[0].Source, ShouldEqual, "a")
					So(rows[2].Passive, ShouldEqual, 0.5)
					So(rows[2].UpdatedAt.Equal(at), ShouldBeTrue)
				})

				Convey("Then each row is in the change feed with its writer", func() {
					changes, err := repo.ChangesSince(ctx, 0, 0)
					So(err, ShouldBeNil)
					So(changes, ShouldHaveLength, 3)
					So(changes[0].Writer, ShouldEqual, "w1")
					So(changes[0].Seq, ShouldBeLessThan, changes[2].Seq)
				})

				Convey("And the same batch is written again", func() {
					first, _ := repo.LoadAll(ctx)
					seq, _ := repo.LatestSeq(ctx)
					So(repo.UpsertBatch(ctx, "w1", batch), ShouldBeNil)

					Convey("Then the stored rows are identical and no change is logged", func() {
						second, err := repo.LoadAll(ctx)
						So(err, ShouldBeNil)
						So(second, ShouldResemble, first)
						again, _ := repo.LatestSeq(ctx)
						So(again, ShouldEqual, seq)
					})
				})

				Convey("And an updated weight is written by another instance", func() {
					seq, _ := repo.LatestSeq(ctx)
					So(repo.UpsertBatch(ctx, "w2", []model.Edge{edge("a", "topic:tech", 4, 0)}), ShouldBeNil)

					Convey("Then the change carries the absolute weight and the new writer", func() {
						changes, err := repo.ChangesSince(ctx, seq, 10)
						So(err, ShouldBeNil)
						So(changes, ShouldHaveLength, 1)
						So(changes[0].Edge.Weight, ShouldEqual, 4)
						So(changes[0].Writer, ShouldEqual, "w2")
					})
				})

				Convey("And a tombstone is written", func() {
					seq, _ := repo.LatestSeq(ctx)
					So(repo.UpsertBatch(ctx, "w2", []model.Edge{tombstone("a", "actor:b"), tombstone("x", "topic:none")}), ShouldBeNil)

					Convey("Then the row is gone and a deletion is logged once", func() {
						rows, _ := repo.LoadAll(ctx)
						So(rows, ShouldHaveLength, 2)
						changes, _ := repo.ChangesSince(ctx, seq, 0)
						So(changes, ShouldHaveLength, 1)
						So(changes[0].Edge.Deleted, ShouldBeTrue)
						So(changes[0].Writer, ShouldEqual, "w2")
					})
				})

				Convey("And old changes are pruned", func() {
					seq, _ := repo.LatestSeq(ctx)
					So(repo.PruneChanges(ctx, seq), ShouldBeNil)

					Convey("Then only the newest remains", func() {
						changes, _ := repo.ChangesSince(ctx, 0, 0)
						So(changes, ShouldHaveLength, 1)
						So(changes[0].Seq, ShouldEqual, seq)
					})
				})

				Convey("Then changes can be paged", func() {
					page, _ := repo.ChangesSince(ctx, 0, 2)
					So(page, ShouldHaveLength, 2)
					rest, _ := repo.ChangesSince(ctx, page[1].Seq, 2)
					So(rest, ShouldHaveLength, 1)
				})
			})

			Convey("When the repository is closed", func() {
				So(repo.Close(), ShouldBeNil)

				Convey("Then writes fail with ErrClosed", func() {
					err := repo.UpsertBatch(ctx, "w1", batch)
					So(errors.Is(err, ErrClosed), ShouldBeTrue)
				})
			})
		})
	}
}

func TestSQLiteSchema(t *testing.T) {
	Convey("Given a freshly opened database", t, func() {
		ctx := context.Background()
		s, err := OpenMemory(ctx)
		So(err, ShouldBeNil)
		defer s.Close()

		Convey("Then every migration is applied", func() {
			v, err := s.SchemaVersion(ctx)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, len(migrations))
		})

		Convey("Then migrating again is a no-op", func() {
			So(s.migrate(ctx), ShouldBeNil)
			v, _ := s.SchemaVersion(ctx)
			So(v, ShouldEqual, len(migrations))
		})

		Convey("Then negative weights are rejected", func() {
			err := s.UpsertBatch(ctx, "w", []model.Edge{edge("a", "topic:x", -1, 0)})
			So(errors.Is(err, ErrStorage), ShouldBeTrue)
		})
	})

	Convey("Given a database file on disk", t, func() {
		ctx := context.Background()
		path := t.TempDir() + "/nested/edges.db"
		s, err := Open(ctx, path)
		So(err, ShouldBeNil)
		So(s.UpsertBatch(ctx, "w", []model.Edge{edge("a", "topic:tech", 2, 0)}), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then reopening it keeps the rows", func() {
			again, err := Open(ctx, path)
			So(err, ShouldBeNil)
			defer again.Close()
			rows, err := again.LoadAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
			So(again.Path(), ShouldEqual, path)
		})
	})
}

func TestMemoryFailures(t *testing.T) {
	Convey("Given a memory repository set to fail once", t, func() {
		m := NewMemory()
		m.FailWrites(1)

		Convey("Then the first write fails and the second succeeds", func() {
			err := m.UpsertBatch(context.Background(), "w", []model.Edge{edge("a", "topic:x", 1, 0)})
			So(errors.Is(err, ErrStorage), ShouldBeTrue)
			So(m.UpsertBatch(context.Background(), "w", []model.Edge{edge("a", "topic:x", 1, 0)}), ShouldBeNil)
			So(m.Len(), ShouldEqual, 1)
		})
	})
}

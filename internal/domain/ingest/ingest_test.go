package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/echochamber/internal/domain/attraction"
	"github.com/okian/echochamber/internal/domain/catalog"
	"github.com/okian/echochamber/internal/domain/ingest"
	"github.com/okian/echochamber/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fixture struct {
	store   *attraction.Store
	actors  *catalog.Actors
	content *catalog.Content
	ing     *ingest.Ingestor
}

func newFixture() fixture {
	f := fixture{
		store:   attraction.New(),
		actors:  catalog.NewActors(),
		content: catalog.NewContent(0),
	}
	f.ing = ingest.New(f.store, f.actors, f.content)
	_ = f.actors.Register(model.Actor{ID: "alice", Kind: model.ActorHuman})
	_ = f.actors.Register(model.Actor{ID: "drift", Kind: model.ActorDrifter, PassiveDrift: true})
	_ = f.actors.Register(model.Actor{ID: "persona", Kind: model.ActorPersona})
	f.content.Put(model.ContentItem{ID: "c1", AuthorID: "persona", Topics: []string{"conspiracy", "politics"}})
	return f
}

func TestReaction(t *testing.T) {
	ctx := context.Background()

	Convey("Given a human and a two-topic item", t, func() {
		f := newFixture()

		Convey("When the human reacts", func() {
			So(f.ing.Ingest(ctx, model.Event{EventID: "e1", Kind: model.EventReaction, ActorID: "alice", ItemID: "c1"}), ShouldBeNil)

			Convey("Then each topic and the author gain weight", func() {
				snap := f.store.Snapshot("alice")
				So(snap[model.TopicTarget("conspiracy")], ShouldAlmostEqual, 1.0)
				So(snap[model.TopicTarget("politics")], ShouldAlmostEqual, 1.0)
				So(snap[model.ActorTarget("persona")], ShouldAlmostEqual, 0.5)
			})

			Convey("And then retracts", func() {
				So(f.ing.Ingest(ctx, model.Event{Kind: model.EventReaction, ActorID: "alice", ItemID: "c1", Retract: true}), ShouldBeNil)

				Convey("Then the weights are gone", func() {
					So(f.store.Snapshot("alice"), ShouldBeEmpty)
				})
			})
		})

		Convey("When the actor is unknown", func() {
			err := f.ing.Ingest(ctx, model.Event{Kind: model.EventReaction, ActorID: "ghost", ItemID: "c1"})

			Convey("Then the event is dropped without mutation", func() {
				So(ingest.Dropped(err), ShouldBeTrue)
				So(f.store.EdgeCount(), ShouldEqual, 0)
			})
		})

		Convey("When the item is unknown", func() {
			err := f.ing.Ingest(ctx, model.Event{Kind: model.EventReaction, ActorID: "alice", ItemID: "nope"})

			Convey("Then the event is dropped without mutation", func() {
				So(ingest.Dropped(err), ShouldBeTrue)
				So(f.store.EdgeCount(), ShouldEqual, 0)
			})
		})

		Convey("When the kind is unknown", func() {
			err := f.ing.Ingest(ctx, model.Event{Kind: "share", ActorID: "alice", ItemID: "c1"})
			So(ingest.Dropped(err), ShouldBeTrue)
		})
	})
}

func TestExposure(t *testing.T) {
	ctx := context.Background()

	Convey("Given a passive-drift drifter and a human", t, func() {
		f := newFixture()

		Convey("When both are exposed to an item twice", func() {
			for _, actor := range []string{"alice", "drift"} {
				for n := 0; n < 2; n++ {
					So(f.ing.Ingest(ctx, model.Event{Kind: model.EventExposure, ActorID: actor, ItemID: "c1"}), ShouldBeNil)
				}
			}

			Convey("Then only the drifter accumulates passive weight", func() {
				So(f.store.Snapshot("alice"), ShouldBeEmpty)
				So(f.store.Snapshot("drift")[model.TopicTarget("conspiracy")], ShouldAlmostEqual, 0.2)
				So(f.store.AffirmativeSnapshot("drift"), ShouldBeEmpty)
			})
		})
	})
}

func TestAuthored(t *testing.T) {
	ctx := context.Background()

	Convey("Given a persona authoring content", t, func() {
		f := newFixture()
		post := func(id string, tags ...string) error {
			return f.ing.Ingest(ctx, model.Event{
				Kind:    model.EventAuthored,
				ActorID: "persona",
				TS:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Item:    &model.ContentItem{ID: id, Topics: tags},
			})
		}

		Convey("When posting twice on the same topic", func() {
			So(post("p1", "Election", "Cooking"), ShouldBeNil)
			So(post("p2", "politics"), ShouldBeNil)

			Convey("Then the item is registered with canonical topics", func() {
				item, err := f.content.Get("p1")
				So(err, ShouldBeNil)
				So(item.Topics, ShouldResemble, []string{"politics", "food"})
				So(item.AuthorID, ShouldEqual, "persona")
				So(item.CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then self-reinforcement is seeded once per topic", func() {
				snap := f.store.Snapshot("persona")
				So(snap[model.TopicTarget("politics")], ShouldAlmostEqual, ingest.DefaultAuthoredWeight)
				So(snap[model.TopicTarget("food")], ShouldAlmostEqual, ingest.DefaultAuthoredWeight)
			})
		})

		Convey("When identity seeding repeats", func() {
			f.ing.SeedIdentity("alice", []string{"tech"})
			f.ing.SeedIdentity("alice", []string{"tech", "music"})

			Convey("Then nothing compounds", func() {
				snap := f.store.Snapshot("alice")
				So(snap[model.TopicTarget("tech")], ShouldAlmostEqual, ingest.DefaultAuthoredWeight)
				So(snap[model.TopicTarget("music")], ShouldAlmostEqual, ingest.DefaultAuthoredWeight)
			})

			Convey("And after forgetting the actor seeding applies again", func() {
				f.ing.Forget("alice")
				f.ing.SeedIdentity("alice", []string{"tech"})
				So(f.store.Snapshot("alice")[model.TopicTarget("tech")], ShouldAlmostEqual, 2*ingest.DefaultAuthoredWeight)
			})
		})

		Convey("When weighted seeds repeat", func() {
			f.ing.SeedWeighted("drift", "Election", 0.8)
			f.ing.SeedWeighted("drift", "politics", 1.2)
			f.ing.SeedIdentity("drift", []string{"politics"})
			f.ing.SeedWeighted("drift", "no-such-topic", 1)

			Convey("Then only the first seed per topic lands", func() {
				snap := f.store.Snapshot("drift")
				So(snap, ShouldHaveLength, 1)
				So(snap[model.TopicTarget("politics")], ShouldAlmostEqual, 0.8)
			})
		})

		Convey("When another actor posts under an existing item id", func() {
			err := f.ing.Ingest(ctx, model.Event{
				Kind:    model.EventAuthored,
				ActorID: "alice",
				Item:    &model.ContentItem{ID: "c1", Topics: []string{"food"}},
			})

			Convey("Then the post is dropped and the item keeps its author", func() {
				So(errors.Is(err, ingest.ErrItemConflict), ShouldBeTrue)
				So(ingest.Dropped(err), ShouldBeTrue)
				item, _ := f.content.Get("c1")
				So(item.AuthorID, ShouldEqual, "persona")
				So(item.Topics, ShouldResemble, []string{"conspiracy", "politics"})
				So(f.store.Snapshot("alice"), ShouldBeEmpty)
			})

			Convey("Then reactions still credit the original author", func() {
				So(f.ing.Ingest(ctx, model.Event{Kind: model.EventReaction, ActorID: "drift", ItemID: "c1"}), ShouldBeNil)
				snap := f.store.Snapshot("drift")
				So(snap[model.ActorTarget("persona")], ShouldAlmostEqual, 0.5)
				So(snap, ShouldNotContainKey, model.ActorTarget("alice"))
				So(snap, ShouldNotContainKey, model.TopicTarget("food"))
			})
		})

		Convey("When the author reposts its own item", func() {
			So(post("p1", "politics"), ShouldBeNil)
			So(post("p1", "food"), ShouldBeNil)

			Convey("Then the first version stands", func() {
				item, _ := f.content.Get("p1")
				So(item.Topics, ShouldResemble, []string{"politics"})
				So(f.store.Snapshot("persona"), ShouldNotContainKey, model.TopicTarget("food"))
			})
		})

		Convey("When the authored event carries no item", func() {
			err := f.ing.Ingest(ctx, model.Event{Kind: model.EventAuthored, ActorID: "persona"})
			So(ingest.Dropped(err), ShouldBeTrue)
		})
	})
}

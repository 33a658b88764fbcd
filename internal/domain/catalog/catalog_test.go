package catalog_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/echochamber/internal/domain/catalog"
	"github.com/okian/echochamber/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestContent(t *testing.T) {
	Convey("Given a catalog with capacity 2", t, func() {
		c := catalog.NewContent(2)
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c.Put(model.ContentItem{ID: "i1", AuthorID: "p", CreatedAt: base})
		c.Put(model.ContentItem{ID: "i2", AuthorID: "p", CreatedAt: base.Add(time.Minute)})

		Convey("Then items resolve by id", func() {
			item, err := c.Get("i1")
			So(err, ShouldBeNil)
			So(item.AuthorID, ShouldEqual, "p")
		})

		Convey("Then unknown ids fail with ErrItemNotFound", func() {
			_, err := c.Get("nope")
			So(errors.Is(err, catalog.ErrItemNotFound), ShouldBeTrue)
		})

		Convey("Then recent lists newest first", func() {
			recent := c.Recent(0)
			So(recent, ShouldHaveLength, 2)
			So(recent[0].ID, ShouldEqual, "i2")
		})

		Convey("When a third item arrives", func() {
			added := c.Put(model.ContentItem{ID: "i3", CreatedAt: base})

			Convey("Then the oldest insertion is evicted", func() {
				So(added, ShouldBeTrue)
				So(c.Len(), ShouldEqual, 2)
				_, err := c.Get("i1")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When an item is re-registered", func() {
			So(c.Put(model.ContentItem{ID: "i1", AuthorID: "q"}), ShouldBeFalse)

			Convey("Then the first registration is kept without growing", func() {
				item, _ := c.Get("i1")
				So(item.AuthorID, ShouldEqual, "p")
				So(c.Len(), ShouldEqual, 2)
			})
		})
	})
}

func TestActors(t *testing.T) {
	Convey("Given an actor registry", t, func() {
		r := catalog.NewActors()
		now := time.Now()
		So(r.Register(model.Actor{ID: "h", Kind: model.ActorHuman}), ShouldBeNil)
		So(r.Register(model.Actor{ID: "d", Kind: model.ActorDrifter, ExpiresAt: now.Add(-time.Second)}), ShouldBeNil)

		Convey("Then duplicates and invalid actors are rejected", func() {
			So(errors.Is(r.Register(model.Actor{ID: "h", Kind: model.ActorHuman}), catalog.ErrActorExists), ShouldBeTrue)
			So(errors.Is(r.Register(model.Actor{ID: "x", Kind: "bot"}), catalog.ErrInvalidActor), ShouldBeTrue)
		})

		Convey("Then expired drifters are listed", func() {
			expired := r.Expired(now)
			So(expired, ShouldHaveLength, 1)
			So(expired[0].ID, ShouldEqual, "d")
		})

		Convey("When an actor is updated", func() {
			a, err := r.Update("h", func(a *model.Actor) { a.Durable = true })

			Convey("Then the change is stored", func() {
				So(err, ShouldBeNil)
				So(a.Durable, ShouldBeTrue)
				got, _ := r.Get("h")
				So(got.Durable, ShouldBeTrue)
			})
		})

		Convey("When an actor is removed", func() {
			So(r.Remove("d"), ShouldBeTrue)
			So(r.Remove("d"), ShouldBeFalse)

			Convey("Then lookups fail", func() {
				_, err := r.Get("d")
				So(errors.Is(err, catalog.ErrActorNotFound), ShouldBeTrue)
				So(r.Count()[model.ActorHuman], ShouldEqual, 1)
				So(r.ByKind(model.ActorDrifter), ShouldBeEmpty)
				So(r.IDs(), ShouldResemble, []string{"h"})
			})
		})
	})
}

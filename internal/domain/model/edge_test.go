package model_test

import (
	"testing"
	"time"

	"github.com/okian/echochamber/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTargets(t *testing.T) {
	Convey("Given edge targets", t, func() {
		Convey("Topic targets round-trip", func() {
			topic, ok := model.TopicOf(model.TopicTarget("tech"))
			So(ok, ShouldBeTrue)
			So(topic, ShouldEqual, "tech")
		})

		Convey("Actor targets are not topics", func() {
			_, ok := model.TopicOf(model.ActorTarget("u1"))
			So(ok, ShouldBeFalse)
		})
	})
}

func TestActorExpiry(t *testing.T) {
	Convey("Given actors with and without expiry", t, func() {
		now := time.Now()
		human := model.Actor{ID: "h", Kind: model.ActorHuman}
		drifter := model.Actor{ID: "d", Kind: model.ActorDrifter, ExpiresAt: now.Add(time.Minute)}

		So(human.Ephemeral(), ShouldBeFalse)
		So(human.Expired(now.Add(time.Hour)), ShouldBeFalse)
		So(drifter.Ephemeral(), ShouldBeTrue)
		So(drifter.Expired(now), ShouldBeFalse)
		So(drifter.Expired(now.Add(time.Minute)), ShouldBeTrue)
	})

	Convey("Given event and actor kinds", t, func() {
		So(model.EventReaction.Valid(), ShouldBeTrue)
		So(model.EventKind("share").Valid(), ShouldBeFalse)
		So(model.ActorPersona.Valid(), ShouldBeTrue)
		So(model.ActorKind("bot").Valid(), ShouldBeFalse)
	})
}

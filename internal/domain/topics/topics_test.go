package topics_test

import (
	"testing"

	"github.com/okian/echochamber/internal/domain/topics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalizer(t *testing.T) {
	Convey("Given the default normalizer", t, func() {
		n := topics.NewNormalizer(nil)

		Convey("When normalizing a synonym", func() {
			topic, ok := n.Normalize("  UFO ")

			Convey("Then it maps to the canonical topic", func() {
				So(ok, ShouldBeTrue)
				So(topic, ShouldEqual, topics.Conspiracy)
			})
		})

		Convey("When normalizing a canonical topic in another case", func() {
			topic, ok := n.Normalize("Tech")
			So(ok, ShouldBeTrue)
			So(topic, ShouldEqual, topics.Tech)
		})

		Convey("When normalizing an unknown tag", func() {
			topic, ok := n.Normalize("Knitting")

			Convey("Then it passes through lower-cased and is not canonical", func() {
				So(ok, ShouldBeFalse)
				So(topic, ShouldEqual, "knitting")
				So(topics.IsCanonical(topic), ShouldBeFalse)
			})
		})

		Convey("When normalizing a tag list", func() {
			out := n.NormalizeAll([]string{"recipes", "Cooking", "", "knitting", "food"})

			Convey("Then duplicates and blanks are dropped in first-seen order", func() {
				So(out, ShouldResemble, []string{"food", "knitting"})
			})
		})
	})

	Convey("Given extra synonyms", t, func() {
		n := topics.NewNormalizer(map[string]string{"Pickleball": "sports", "quilting": "not-a-topic"})

		Convey("Then canonical targets are added and others ignored", func() {
			topic, ok := n.Normalize("pickleball")
			So(ok, ShouldBeTrue)
			So(topic, ShouldEqual, topics.Sports)

			_, ok = n.Normalize("quilting")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given the canonical set", t, func() {
		all := topics.All()
		So(len(all), ShouldEqual, 12)
		So(all[0], ShouldEqual, topics.Conspiracy)
	})
}

package main

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestLoadEventsFlags(t *testing.T) {
	convey.Convey("Given the load-events command", t, func() {
		cmd := newRootCmd()

		convey.Convey("When flags are parsed", func() {
			err := cmd.ParseFlags([]string{"--actors", "12", "--bias", "0.5", "--topics", "food,tech", "--url", "http://svc:1"})

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				actors, _ := cmd.Flags().GetInt("actors")
				bias, _ := cmd.Flags().GetFloat64("bias")
				tp, _ := cmd.Flags().GetStringSlice("topics")
				u, _ := cmd.Flags().GetString("url")
				convey.So(actors, convey.ShouldEqual, 12)
				convey.So(bias, convey.ShouldEqual, 0.5)
				convey.So(tp, convey.ShouldResemble, []string{"food", "tech"})
				convey.So(u, convey.ShouldEqual, "http://svc:1")
			})
		})

		convey.Convey("Then unset flags keep their defaults", func() {
			posts, _ := cmd.Flags().GetInt("posts")
			settle, _ := cmd.Flags().GetDuration("settle")
			convey.So(posts, convey.ShouldEqual, defaultPostsPerActor)
			convey.So(settle, convey.ShouldBeGreaterThan, 0)
		})
	})
}

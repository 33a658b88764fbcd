package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorClass(t *testing.T) {
	Convey("Given response statuses", t, func() {
		So(errorClass(http.StatusOK), ShouldEqual, "")
		So(errorClass(http.StatusAccepted), ShouldEqual, "")
		So(errorClass(http.StatusBadRequest), ShouldEqual, "client_error")
		So(errorClass(http.StatusNotFound), ShouldEqual, "not_found")
		So(errorClass(http.StatusConflict), ShouldEqual, "conflict")
		So(errorClass(http.StatusTooManyRequests), ShouldEqual, "backpressure")
		So(errorClass(http.StatusInternalServerError), ShouldEqual, "server_error")
		So(errorClass(http.StatusServiceUnavailable), ShouldEqual, "unavailable")
	})
}

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented route", t, func() {
		var pattern string
		r := chi.NewRouter()
		r.With(Instrument).Get("/feed/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("ok"))
			pattern = routeLabel(r)
		})

		Convey("When it is called", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed/alice", http.NoBody))

			Convey("Then the response passes through untouched", func() {
				So(w.Code, ShouldEqual, http.StatusTeapot)
				So(w.Body.String(), ShouldEqual, "ok")
			})

			Convey("Then the route is labeled by its pattern", func() {
				So(pattern, ShouldEqual, "/feed/{id}")
			})
		})

		Convey("Then requests outside a router are unmatched", func() {
			So(routeLabel(httptest.NewRequest(http.MethodGet, "/x", http.NoBody)), ShouldEqual, "unmatched")
		})
	})
}

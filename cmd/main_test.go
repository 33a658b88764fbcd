package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	app "github.com/okian/echochamber/internal/app"
	"github.com/okian/echochamber/internal/config"
	"github.com/okian/echochamber/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it exposes serve, config and version", func() {
			names := make([]string, 0, len(root.Commands()))
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "serve")
			convey.So(names, convey.ShouldContain, "config")
			convey.So(names, convey.ShouldContain, "version")
		})

		convey.Convey("When running version", func() {
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs([]string{"version"})
			err := root.Execute()

			convey.Convey("Then the version is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(strings.TrimSpace(out.String()), convey.ShouldEqual, version)
			})
		})

		convey.Convey("When running config with environment overrides", func() {
			_ = os.Setenv("ECHO_ADDR", ":8181")
			_ = os.Setenv("ECHO_WORKER_COUNT", "3")
			defer func() {
				_ = os.Unsetenv("ECHO_ADDR")
				_ = os.Unsetenv("ECHO_WORKER_COUNT")
			}()

			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs([]string{"config"})
			err := root.Execute()

			convey.Convey("Then the effective values are printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "Addr::8181")
				convey.So(out.String(), convey.ShouldContainSubstring, "WorkerCount:3")
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			_ = os.Setenv("ECHO_DECAY_FACTOR", "1.5")
			defer func() { _ = os.Unsetenv("ECHO_DECAY_FACTOR") }()

			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs([]string{"config"})

			convey.Convey("Then the command fails", func() {
				convey.So(root.Execute(), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestHTTPServerWiring(t *testing.T) {
	convey.Convey("Given a started in-memory service", t, func() {
		cfg := config.New()
		cfg.WorkerCount = 1
		cfg.EventQueueSize = 100
		cfg.DedupeSize = 100

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		svc := app.New(app.WithConfig(cfg))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := newHTTPServer(ctx, cfg, svc)

		convey.Convey("Then the server carries the configured address and timeouts", func() {
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(srv.ReadTimeout, convey.ShouldEqual, readTimeout)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, writeTimeout)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
		})

		convey.Convey("Then API and documentation routes are mounted", func() {
			for _, path := range []string{"/healthz", "/stats", "/clusters", "/openapi.yaml", "/api-docs", "/metrics"} {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then unknown actors are reported as missing", func() {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed/nobody", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loop returns once the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()

			select {
			case <-done:
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("updater still running", convey.ShouldBeEmpty)
			}
		})
	})
}

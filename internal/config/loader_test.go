package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/echochamber/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DecayFactor, convey.ShouldEqual, 0.95)
				convey.So(cfg.PickPolicy, convey.ShouldEqual, "top")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ECHO_ADDR", ":8080")
			_ = os.Setenv("ECHO_QUEUE_SIZE", "1000")
			_ = os.Setenv("ECHO_DOMINANCE_RATIO", "1.8")
			_ = os.Setenv("ECHO_SIMULATION_ENABLED", "true")
			_ = os.Setenv("ECHO_PICK_POLICY", "weighted")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.DominanceRatio, convey.ShouldEqual, 1.8)
				convey.So(cfg.SimulationEnabled, convey.ShouldBeTrue)
				convey.So(cfg.PickPolicy, convey.ShouldEqual, "weighted")
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			yamlContent := `
addr: ":9090"
db_path: "/tmp/echo.db"
flush_interval_ms: 500
decay_factor: 0.9
topic_synonyms:
  crypto: finance
  nba: sports
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("ECHO_CONFIG", tmpFile)
			_ = os.Setenv("ECHO_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over file and file wins over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/echo.db")
				convey.So(cfg.FlushIntervalMS, convey.ShouldEqual, 500)
				convey.So(cfg.DecayFactor, convey.ShouldEqual, 0.9)
				convey.So(cfg.TopicSynonyms["crypto"], convey.ShouldEqual, "finance")
				convey.So(cfg.TopicSynonyms["nba"], convey.ShouldEqual, "sports")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("ECHO_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should fail with a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When env sets an invalid decay factor", func() {
			_ = os.Setenv("ECHO_DECAY_FACTOR", "1.5")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"ECHO_CONFIG", "ECHO_ADDR", "ECHO_QUEUE_SIZE", "ECHO_DOMINANCE_RATIO",
		"ECHO_SIMULATION_ENABLED", "ECHO_PICK_POLICY", "ECHO_DECAY_FACTOR",
	} {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "echo-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

// Package config defines service configuration and its loading hooks.
//
// Conventions:
//   - New returns defaults; Load layers a YAML file and environment on top.
//   - Durations are configured in milliseconds and exposed through helper methods.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath points at the SQLite file holding attraction edges. Empty keeps the graph in memory only.
	DBPath string `koanf:"db_path"`
	// InstanceID tags rows written by this process so the change feed can skip its own writes.
	InstanceID string `koanf:"instance_id"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets the size of the event id cache.
	DedupeSize int `koanf:"dedupe_size"`

	FlushIntervalMS      int `koanf:"flush_interval_ms"`
	DecayIntervalMS      int `koanf:"decay_interval_ms"`
	ChangefeedIntervalMS int `koanf:"changefeed_interval_ms"`
	PurgeIntervalMS      int `koanf:"purge_interval_ms"`

	// DecayFactor multiplies every edge on each decay sweep. Must be in (0,1).
	DecayFactor float64 `koanf:"decay_factor"`
	// EdgeFloor removes edges whose weight falls to or under it.
	EdgeFloor float64 `koanf:"edge_floor"`

	ReactionWeight  float64 `koanf:"reaction_weight"`
	AuthorAffinity  float64 `koanf:"author_affinity"`
	ExposureEpsilon float64 `koanf:"exposure_epsilon"`
	AuthoredWeight  float64 `koanf:"authored_weight"`

	// EchoSaturation is the total topic weight at which personalization saturates.
	EchoSaturation float64 `koanf:"echo_saturation"`
	// DominanceRatio is the margin the top topic needs over the second before a label changes.
	DominanceRatio float64 `koanf:"dominance_ratio"`

	FeedLimit      int `koanf:"feed_limit"`
	ExposureWindow int `koanf:"exposure_window"`

	// TopicSynonyms extends the built-in synonym table (tag -> canonical topic).
	TopicSynonyms map[string]string `koanf:"topic_synonyms"`

	SimulationEnabled      bool   `koanf:"simulation_enabled"`
	SimulationSeed         int64  `koanf:"simulation_seed"`
	PersonaCount           int    `koanf:"persona_count"`
	PersonaPostIntervalMS  int    `koanf:"persona_post_interval_ms"`
	DrifterSpawnIntervalMS int    `koanf:"drifter_spawn_interval_ms"`
	DrifterTTLMS           int    `koanf:"drifter_ttl_ms"`
	DrifterReactIntervalMS int    `koanf:"drifter_react_interval_ms"`
	PickPolicy             string `koanf:"pick_policy"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		DBPath:                 "",
		InstanceID:             "",
		EventQueueSize:         100_000,
		WorkerCount:            runtime.NumCPU(),
		DedupeSize:             500_000,
		FlushIntervalMS:        2_000,
		DecayIntervalMS:        60_000,
		ChangefeedIntervalMS:   1_000,
		PurgeIntervalMS:        5_000,
		DecayFactor:            0.95,
		EdgeFloor:              0.05,
		ReactionWeight:         1.0,
		AuthorAffinity:         0.5,
		ExposureEpsilon:        0.1,
		AuthoredWeight:         2.0,
		EchoSaturation:         3.0,
		DominanceRatio:         2.0,
		FeedLimit:              20,
		ExposureWindow:         3,
		TopicSynonyms:          map[string]string{},
		SimulationEnabled:      false,
		SimulationSeed:         42,
		PersonaCount:           6,
		PersonaPostIntervalMS:  15_000,
		DrifterSpawnIntervalMS: 10_000,
		DrifterTTLMS:           120_000,
		DrifterReactIntervalMS: 4_000,
		PickPolicy:             "top",
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DecayFactor <= 0 || c.DecayFactor >= 1:
		return fmt.Errorf("%w: decay_factor must be in (0,1), got %v", ErrInvalidConfig, c.DecayFactor)
	case c.EdgeFloor < 0:
		return fmt.Errorf("%w: edge_floor must be >= 0", ErrInvalidConfig)
	case c.EchoSaturation <= 0:
		return fmt.Errorf("%w: echo_saturation must be > 0", ErrInvalidConfig)
	case c.DominanceRatio < 1:
		return fmt.Errorf("%w: dominance_ratio must be >= 1", ErrInvalidConfig)
	case c.FlushIntervalMS <= 0 || c.DecayIntervalMS <= 0 || c.ChangefeedIntervalMS <= 0 || c.PurgeIntervalMS <= 0:
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	case c.PickPolicy != "top" && c.PickPolicy != "weighted":
		return fmt.Errorf("%w: pick_policy must be top or weighted, got %q", ErrInvalidConfig, c.PickPolicy)
	}
	return nil
}

// FlushInterval returns the debounce window for durable flushes.
func (c *Config) FlushInterval() time.Duration { return ms(c.FlushIntervalMS) }

// DecayInterval returns the decay sweep period.
func (c *Config) DecayInterval() time.Duration { return ms(c.DecayIntervalMS) }

// ChangefeedInterval returns the change feed poll period.
func (c *Config) ChangefeedInterval() time.Duration { return ms(c.ChangefeedIntervalMS) }

// PurgeInterval returns the expired-actor purge period.
func (c *Config) PurgeInterval() time.Duration { return ms(c.PurgeIntervalMS) }

// PersonaPostInterval returns how often personas author content.
func (c *Config) PersonaPostInterval() time.Duration { return ms(c.PersonaPostIntervalMS) }

// DrifterSpawnInterval returns how often a drifter is spawned.
func (c *Config) DrifterSpawnInterval() time.Duration { return ms(c.DrifterSpawnIntervalMS) }

// DrifterTTL returns the lifetime of a drifter.
func (c *Config) DrifterTTL() time.Duration { return ms(c.DrifterTTLMS) }

// DrifterReactInterval returns how often drifters react.
func (c *Config) DrifterReactInterval() time.Duration { return ms(c.DrifterReactIntervalMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

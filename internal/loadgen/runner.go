package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/echochamber/internal/domain/simulation"
	"github.com/okian/echochamber/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes a complete load run: register, author, react, observe, verify.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("actors", cfg.Actors),
		logger.Int("postsPerActor", cfg.PostsPerActor),
		logger.Int("reactionsPerActor", cfg.ReactionsPerActor),
		logger.Float64("bias", cfg.Bias),
		logger.Int("workers", cfg.Workers))

	client := NewHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Get(ctx, "/healthz", nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Build the plan
	plan := NewPlan(cfg, simulation.NewRand(cfg.Seed))
	if cfg.OutputFile != "" {
		if err := savePlan(cfg.OutputFile, plan); err != nil {
			log.Warn(ctx, "failed to save plan", logger.Error(err))
		}
	}

	// Step 3: Register actors
	reg := fanOut(ctx, "register", cfg.Workers, len(plan.Actors), func(ctx context.Context, i int) string {
		a := plan.Actors[i]
		status, body, err := client.Post(ctx, "/actors", ActorRequest{ID: a.ID, Kind: "human", Topics: []string{a.Home}})
		if err != nil || status != http.StatusCreated {
			if cfg.Verbose {
				log.Warn(ctx, "failed to register actor", logger.String("actor", a.ID), logger.Int("status", status), logger.String("body", string(body)))
			}
			return outcomeFailed
		}
		return outcomeAccepted
	})
	stats.ActorsRegistered = int(reg.accepted.Load())
	if stats.ActorsRegistered == 0 {
		return stats, fmt.Errorf("no actor could be registered")
	}

	// Step 4: Author items, then let them land before anyone reacts
	submit(ctx, cfg, client, "author", plan.Authored, stats)
	if err := sleep(ctx, cfg.SettleDelay); err != nil {
		return stats, err
	}

	// Step 5: React
	submit(ctx, cfg, client, "react", plan.Reactions, stats)
	if err := sleep(ctx, cfg.SettleDelay); err != nil {
		return stats, err
	}

	// Step 6: Read back and verify
	obs := observe(ctx, cfg, client, plan, stats)
	if err := verify(ctx, plan, obs, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	if members, err := clusterSummary(ctx, client); err == nil {
		log.Info(ctx, "cluster membership", logger.Any("members", members))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// submit posts events concurrently and adds the outcomes to stats.
func submit(ctx context.Context, cfg *Config, client *HTTPClient, phase string, events []Event, stats *Stats) {
	t := fanOut(ctx, phase, cfg.Workers, len(events), func(ctx context.Context, i int) string {
		status, body, err := client.Post(ctx, "/events", events[i])
		if err != nil {
			if cfg.Verbose {
				logger.Get().Warn(ctx, "failed to submit event", logger.String("eventId", events[i].EventID), logger.Error(err))
			}
			return outcomeFailed
		}
		return classifyAck(status, body)
	})
	stats.EventsSubmitted += int(t.total())
	stats.EventsAccepted += int(t.accepted.Load())
	stats.EventsDuplicate += int(t.duplicate.Load())
	stats.EventsFailed += int(t.failed.Load())

	logger.Get().Info(ctx, "event submission completed",
		logger.String("phase", phase),
		logger.Int("accepted", int(t.accepted.Load())),
		logger.Int("duplicate", int(t.duplicate.Load())),
		logger.Int("failed", int(t.failed.Load())))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// savePlan writes plan as indented JSON.
func savePlan(filename string, plan Plan) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, eventsPerSecond, alignment float64

	if stats.EventsSubmitted > 0 {
		acceptRate = float64(stats.EventsAccepted) / float64(stats.EventsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}
	if stats.LabelsRetrieved > 0 {
		alignment = float64(stats.Aligned) / float64(stats.LabelsRetrieved) * PercentageMultiplier
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("actorsRegistered", stats.ActorsRegistered),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("feedsRetrieved", stats.FeedsRetrieved),
		logger.Int("labelsRetrieved", stats.LabelsRetrieved),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("alignmentPercent", alignment),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}

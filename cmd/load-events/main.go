package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/echochamber/internal/domain/topics"
	"github.com/okian/echochamber/internal/loadgen"
)

// Default configuration constants.
const (
	defaultActors            = 200
	defaultPostsPerActor     = 3
	defaultReactionsPerActor = 20
	defaultBias              = 0.8
	defaultWorkers           = 2 // multiplier for runtime.NumCPU()
	defaultTimeout           = 30 * time.Second
	defaultRunTimeout        = 10 * time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &loadgen.Config{}
	var logFile string

	cmd := &cobra.Command{
		Use:          "load-events",
		Short:        "Drive an echochamber service with synthetic humans and verify feeds and labels",
		SilenceUsage: true,
		Example: `  # Default run against a local service
  load-events

  # Larger population with weaker topic bias
  load-events --actors 2000 --bias 0.6 --workers 16 --url http://localhost:8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			closer, err := loadgen.SetupLogging(logFile)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultRunTimeout)
			defer cancel()

			_, err = loadgen.Run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&cfg.Actors, "actors", defaultActors, "Number of synthetic humans")
	f.IntVar(&cfg.PostsPerActor, "posts", defaultPostsPerActor, "Items authored per human")
	f.IntVar(&cfg.ReactionsPerActor, "reactions", defaultReactionsPerActor, "Reactions submitted per human")
	f.Float64Var(&cfg.Bias, "bias", defaultBias, "Probability that a reaction targets the human's home topic")
	f.StringSliceVar(&cfg.Topics, "topics", topics.All(), "Home topics assigned round-robin")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.SettleDelay, "settle", loadgen.DefaultSettleDelay, "Wait between phases for asynchronous ingestion")
	f.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "Seed of the plan generator")
	f.StringVar(&cfg.OutputFile, "output", "", "Write the generated plan to this file")
	f.StringVar(&logFile, "log", "", "Log file for run output (default: load_log_TIMESTAMP.log)")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log each failed request")
	return cmd
}

package loadgen

import (
	"context"
	"fmt"
	"net/url"

	"github.com/okian/echochamber/internal/domain/types"
	"github.com/okian/echochamber/pkg/logger"
)

// Observation is what the service reported for one planned actor.
type Observation struct {
	ActorID string
	Label   string
	Feed    *types.Feed
}

// observe fetches the cluster label and feed of every planned actor.
// Failed reads leave the corresponding field empty.
func observe(ctx context.Context, cfg *Config, client *HTTPClient, plan Plan, stats *Stats) []Observation {
	obs := make([]Observation, len(plan.Actors))

	t := fanOut(ctx, "observe", cfg.Workers, len(plan.Actors), func(ctx context.Context, i int) string {
		id := plan.Actors[i].ID
		obs[i].ActorID = id

		var label types.ClusterLabel
		if err := client.Get(ctx, "/cluster/"+url.PathEscape(id), &label); err != nil {
			if cfg.Verbose {
				logger.Get().Warn(ctx, "failed to get cluster", logger.String("actor", id), logger.Error(err))
			}
			return outcomeFailed
		}
		obs[i].Label = label.Cluster

		var feed types.Feed
		if err := client.Get(ctx, fmt.Sprintf("/feed/%s?limit=%d", url.PathEscape(id), cfg.PostsPerActor), &feed); err != nil {
			if cfg.Verbose {
				logger.Get().Warn(ctx, "failed to get feed", logger.String("actor", id), logger.Error(err))
			}
			return outcomeFailed
		}
		obs[i].Feed = &feed
		return outcomeAccepted
	})

	for _, o := range obs {
		if o.Label != "" {
			stats.LabelsRetrieved++
		}
		if o.Feed != nil {
			stats.FeedsRetrieved++
		}
	}
	logger.Get().Info(ctx, "observation completed",
		logger.Int("labels", stats.LabelsRetrieved),
		logger.Int("feeds", stats.FeedsRetrieved),
		logger.Int("failed", int(t.failed.Load())))
	return obs
}

// clusterSummary fetches GET /clusters for the final report.
func clusterSummary(ctx context.Context, client *HTTPClient) (map[string]int, error) {
	var resp struct {
		Members map[string]int `json:"members"`
	}
	if err := client.Get(ctx, "/clusters", &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

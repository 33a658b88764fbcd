package loadgen

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/okian/echochamber/internal/domain/topics"
	"github.com/okian/echochamber/pkg/logger"
)

// ErrNoObservations is returned when no label could be read back at all.
var ErrNoObservations = errors.New("no observations to verify")

// verify compares observations against the plan and fills the alignment
// fields of stats. Only a run without any readable label is an error; weak
// alignment is reported, not failed, since it depends on bias and timing.
func verify(ctx context.Context, plan Plan, obs []Observation, stats *Stats) error {
	if stats.LabelsRetrieved == 0 {
		return ErrNoObservations
	}

	home := plan.Home()
	author := make(map[string]string, len(plan.Items))
	for _, it := range plan.Items {
		author[it.ID] = it.Author
	}

	var feedItems, homeItems int
	for _, o := range obs {
		switch o.Label {
		case "":
		case home[o.ActorID]:
			stats.Aligned++
		case topics.Neutral:
			stats.Neutral++
		}
		if o.Feed == nil {
			continue
		}
		for _, e := range o.Feed.Items {
			feedItems++
			if slices.Contains(e.Topics, home[o.ActorID]) {
				homeItems++
			}
			if a, ok := author[e.ItemID]; ok && a != e.AuthorID {
				return fmt.Errorf("feed of %s reports author %s for item %s, expected %s", o.ActorID, e.AuthorID, e.ItemID, a)
			}
		}
	}
	if feedItems > 0 {
		stats.HomeFeedShare = float64(homeItems) / float64(feedItems)
	}

	logger.Get().Info(ctx, "verification completed",
		logger.Int("aligned", stats.Aligned),
		logger.Int("neutral", stats.Neutral),
		logger.Int("labels", stats.LabelsRetrieved),
		logger.Float64("homeFeedShare", stats.HomeFeedShare))
	return nil
}

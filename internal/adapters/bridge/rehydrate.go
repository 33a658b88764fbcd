package bridge

import (
	"context"
	"fmt"

	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/pkg/metrics"
)

// Snapshotter is the read side of durable storage used at start.
type Snapshotter interface {
	LoadAll(ctx context.Context) ([]model.Edge, error)
	LatestSeq(ctx context.Context) (int64, error)
}

// Loader accepts a full durable read.
type Loader interface {
	Load(edges []model.Edge) int
}

// Rehydrate loads every stored edge into the store and returns the change
// seq the listener should resume after. The seq is read before the rows so
// no change can fall between the two reads.
func Rehydrate(ctx context.Context, repo Snapshotter, store Loader) (seq int64, loaded int, err error) {
	seq, err = repo.LatestSeq(ctx)
	if err != nil {
		metrics.RecordLoadError()
		return 0, 0, fmt.Errorf("rehydrate seq: %w", err)
	}
	edges, err := repo.LoadAll(ctx)
	if err != nil {
		metrics.RecordLoadError()
		return 0, 0, fmt.Errorf("rehydrate edges: %w", err)
	}

	loaded = store.Load(edges)
	metrics.UpdateRehydratedEdges(loaded)
	return seq, loaded, nil
}

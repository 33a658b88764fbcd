// Package repository persists attraction edges and exposes the row-level
// change feed other instances use to converge.
package repository

import (
	"context"

	"github.com/okian/echochamber/internal/domain/model"
)

// Change is one row-level change in durable storage.
type Change struct {
	Seq    int64
	Edge   model.Edge
	Writer string
}

// EdgeRepository is the durable side of the attraction graph.
type EdgeRepository interface {
	// UpsertBatch writes a batch in one transaction. Live edges are upserted by
	// (source, target); tombstones delete their row. Applying the same batch
	// twice leaves the same rows as applying it once.
	UpsertBatch(ctx context.Context, writer string, batch []model.Edge) error

	// LoadAll reads every stored edge.
	LoadAll(ctx context.Context) ([]model.Edge, error)

	// ChangesSince returns up to limit changes with Seq greater than seq, oldest first.
	ChangesSince(ctx context.Context, seq int64, limit int) ([]Change, error)

	// LatestSeq returns the highest change Seq, 0 when there is none.
	LatestSeq(ctx context.Context) (int64, error)

	// PruneChanges drops change records older than seq.
	PruneChanges(ctx context.Context, seq int64) error

	Close() error
}

var (
	_ EdgeRepository = (*SQLite)(nil)
	_ EdgeRepository = (*Memory)(nil)
)

// Package ingest turns interaction events into attraction graph updates.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/internal/domain/topics"
	"github.com/okian/echochamber/pkg/metrics"
)

// Graph is the write side of the attraction store.
type Graph interface {
	Apply(source, target string, delta float64)
	ApplyPassive(source, target string, delta float64)
}

// Actors resolves actor references.
type Actors interface {
	Get(id string) (model.Actor, error)
}

// Content resolves and registers content items.
type Content interface {
	Get(id string) (model.ContentItem, error)
	Put(item model.ContentItem) bool
}

// Ingestor applies events to the graph. It is safe for concurrent use by
// many workers.
type Ingestor struct {
	graph   Graph
	actors  Actors
	content Content

	normalizer      *topics.Normalizer
	reactionWeight  float64
	authorAffinity  float64
	exposureEpsilon float64
	authoredWeight  float64

	mu     sync.Mutex
	seeded map[string]map[string]struct{} // actor -> topics already self-reinforced
}

// New creates an Ingestor.
func New(graph Graph, actors Actors, content Content, opts ...Option) *Ingestor {
	i := &Ingestor{
		graph:           graph,
		actors:          actors,
		content:         content,
		normalizer:      topics.NewNormalizer(nil),
		reactionWeight:  DefaultReactionWeight,
		authorAffinity:  DefaultAuthorAffinity,
		exposureEpsilon: DefaultExposureEpsilon,
		authoredWeight:  DefaultAuthoredWeight,
		seeded:          make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Normalizer returns the topic normalizer in use.
func (i *Ingestor) Normalizer() *topics.Normalizer { return i.normalizer }

// Ingest applies one event. Events with missing references are dropped with
// no partial mutation; the returned error satisfies Dropped.
func (i *Ingestor) Ingest(ctx context.Context, ev model.Event) error {
	var err error
	switch ev.Kind {
	case model.EventReaction:
		err = i.react(ev)
	case model.EventExposure:
		err = i.expose(ev)
	case model.EventAuthored:
		err = i.author(ev)
	default:
		err = fmt.Errorf("%w: kind %q", ErrInvalidEvent, ev.Kind)
	}

	if err != nil {
		metrics.RecordEventDropped(dropReason(err))
		return err
	}
	metrics.RecordEventIngested(string(ev.Kind))
	return nil
}

func (i *Ingestor) react(ev model.Event) error {
	if _, err := i.actors.Get(ev.ActorID); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownActor, ev.ActorID)
	}
	item, err := i.content.Get(ev.ItemID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownItem, ev.ItemID)
	}

	sign := 1.0
	if ev.Retract {
		sign = -1.0
	}
	for _, t := range item.Topics {
		i.graph.Apply(ev.ActorID, model.TopicTarget(t), sign*i.reactionWeight)
	}
	if i.authorAffinity > 0 && item.AuthorID != "" && item.AuthorID != ev.ActorID {
		i.graph.Apply(ev.ActorID, model.ActorTarget(item.AuthorID), sign*i.authorAffinity)
	}
	return nil
}

func (i *Ingestor) expose(ev model.Event) error {
	actor, err := i.actors.Get(ev.ActorID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownActor, ev.ActorID)
	}
	item, err := i.content.Get(ev.ItemID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownItem, ev.ItemID)
	}
	if !actor.PassiveDrift {
		return nil
	}
	for _, t := range item.Topics {
		i.graph.ApplyPassive(ev.ActorID, model.TopicTarget(t), i.exposureEpsilon)
	}
	return nil
}

func (i *Ingestor) author(ev model.Event) error {
	if ev.Item == nil || ev.Item.ID == "" {
		return fmt.Errorf("%w: authored event without item", ErrInvalidEvent)
	}
	item := *ev.Item
	if item.AuthorID == "" {
		item.AuthorID = ev.ActorID
	}
	if _, err := i.actors.Get(item.AuthorID); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownActor, item.AuthorID)
	}

	item.Topics = i.normalizer.NormalizeAll(item.Topics)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = ev.TS
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if !i.content.Put(item) {
		existing, err := i.content.Get(item.ID)
		if err == nil {
			if existing.AuthorID != item.AuthorID {
				return fmt.Errorf("%w: %s by %s", ErrItemConflict, item.ID, existing.AuthorID)
			}
			item = existing
		}
	}
	i.SeedIdentity(item.AuthorID, item.Topics)
	return nil
}

// SeedIdentity self-reinforces actor toward each topic it has not been seeded
// with before. Repeated calls for the same (actor, topic) do nothing.
// Topics are normalized first.
func (i *Ingestor) SeedIdentity(actor string, tags []string) {
	normalized := i.normalizer.NormalizeAll(tags)

	i.mu.Lock()
	done := i.seeded[actor]
	if done == nil {
		done = make(map[string]struct{})
		i.seeded[actor] = done
	}
	var fresh []string
	for _, t := range normalized {
		if _, ok := done[t]; ok {
			continue
		}
		done[t] = struct{}{}
		fresh = append(fresh, t)
	}
	i.mu.Unlock()

	for _, t := range fresh {
		i.graph.Apply(actor, model.TopicTarget(t), i.authoredWeight)
	}
}

// SeedWeighted gives actor an initial pull of weight toward tag, once per
// (actor, topic) like SeedIdentity. Non-positive weights and unknown tags
// are ignored.
func (i *Ingestor) SeedWeighted(actor, tag string, weight float64) {
	if weight <= 0 {
		return
	}
	t, ok := i.normalizer.Normalize(tag)
	if !ok {
		return
	}

	i.mu.Lock()
	done := i.seeded[actor]
	if done == nil {
		done = make(map[string]struct{})
		i.seeded[actor] = done
	}
	_, seen := done[t]
	done[t] = struct{}{}
	i.mu.Unlock()

	if !seen {
		i.graph.Apply(actor, model.TopicTarget(t), weight)
	}
}

// TransferSeeds moves the seeded-topic record of oldID onto newID.
func (i *Ingestor) TransferSeeds(oldID, newID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	src := i.seeded[oldID]
	if src == nil || oldID == newID {
		return
	}
	dst := i.seeded[newID]
	if dst == nil {
		dst = make(map[string]struct{}, len(src))
		i.seeded[newID] = dst
	}
	for t := range src {
		dst[t] = struct{}{}
	}
	delete(i.seeded, oldID)
}

// Forget drops the seeded-topic record of a purged actor.
func (i *Ingestor) Forget(actor string) {
	i.mu.Lock()
	delete(i.seeded, actor)
	i.mu.Unlock()
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownActor):
		return "unknown_actor"
	case errors.Is(err, ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, ErrItemConflict):
		return "item_conflict"
	default:
		return "invalid"
	}
}

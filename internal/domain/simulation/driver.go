// Package simulation drives scripted actors: long-lived personas with a fixed
// topical identity and short-lived drifters that follow their own feed.
// Everything they do is emitted as ordinary events through the same ingestion
// path as human traffic.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/internal/domain/scoring"
	"github.com/okian/echochamber/internal/domain/topics"
	"github.com/okian/echochamber/pkg/logger"
	"github.com/okian/echochamber/pkg/metrics"
)

// ErrRejected is returned when the ingestion path refuses an event.
var ErrRejected = errors.New("event rejected")

// Sink is the ingestion entry point (dedupe, then queue).
type Sink interface {
	Enqueue(ctx context.Context, ev model.Event) error
}

// Actors is the actor registry.
type Actors interface {
	Register(a model.Actor) error
	Exists(id string) bool
	Remove(id string) bool
	Expired(now time.Time) []model.Actor
	ByKind(kind model.ActorKind) []model.Actor
}

// Content lists candidate items.
type Content interface {
	Recent(n int) []model.ContentItem
}

// Graph is the part of the attraction store the driver touches directly.
type Graph interface {
	Snapshot(actor string) map[string]float64
	RemoveActor(actor string) int
	MarkVolatile(actor string)
}

// Ranker ranks candidates for an actor.
type Ranker interface {
	Rank(actor string, snapshot map[string]float64, candidates []model.ContentItem) []scoring.Scored
}

// Seeder seeds an actor's identity once per topic.
type Seeder interface {
	SeedIdentity(actor string, tags []string)
	SeedWeighted(actor, tag string, weight float64)
}

// Forgetter drops per-actor state when a drifter is purged.
type Forgetter interface {
	Forget(actor string)
}

// Deps are the collaborators of a Driver.
type Deps struct {
	Sink    Sink
	Actors  Actors
	Content Content
	Graph   Graph
	Ranker  Ranker
	Seeder  Seeder
	// Forget is called for every purged drifter.
	Forget []Forgetter
}

// Driver runs the simulated population. Its methods are called from periodic
// tasks; they are safe to call concurrently.
type Driver struct {
	deps Deps

	rand           RandSource
	policy         scoring.PickPolicy
	personaCount   int
	drifterTTL     time.Duration
	exposureWindow int
	candidatePool  int
	now            func() time.Time
	newID          func() string

	logger logger.Logger
}

// New creates a Driver.
func New(deps Deps, opts ...Option) *Driver {
	d := &Driver{
		deps:           deps,
		rand:           NewRand(time.Now().UnixNano()),
		policy:         scoring.PickTop{},
		personaCount:   DefaultPersonaCount,
		drifterTTL:     DefaultDrifterTTL,
		exposureWindow: DefaultExposureWindow,
		candidatePool:  DefaultCandidatePool,
		now:            time.Now,
		newID:          uuid.NewString,
		logger:         logger.Get().Named("simulation"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

const personaPrefix = "persona-"

// PersonaID returns the id of the persona dedicated to topic.
func PersonaID(topic string) string { return personaPrefix + topic }

// personaTopic recovers the identity topic from a persona id. Personas
// registered under any other id have none.
func personaTopic(id string) (string, bool) {
	topic, ok := strings.CutPrefix(id, personaPrefix)
	if !ok || !topics.IsCanonical(topic) {
		return "", false
	}
	return topic, true
}

// Bootstrap registers the personas and seeds their identity. Existing
// personas are left alone, so Bootstrap may run after a restart.
func (d *Driver) Bootstrap(ctx context.Context) error {
	all := topics.All()
	for i := 0; i < d.personaCount && i < len(all); i++ {
		id := PersonaID(all[i])
		if d.deps.Actors.Exists(id) {
			continue
		}
		err := d.deps.Actors.Register(model.Actor{
			ID:        id,
			Kind:      model.ActorPersona,
			Durable:   true,
			CreatedAt: d.now(),
		})
		if err != nil {
			return fmt.Errorf("register persona %s: %w", id, err)
		}
		d.deps.Seeder.SeedIdentity(id, []string{all[i]})
	}
	d.updateGauges()
	d.logger.Info(ctx, "personas ready", logger.Int("count", len(d.deps.Actors.ByKind(model.ActorPersona))))
	return nil
}

// PostPersonas has every persona author one item on its topic and react to
// the best-ranked item from someone else that matches its topic.
func (d *Driver) PostPersonas(ctx context.Context) error {
	var errs []error
	for _, p := range d.deps.Actors.ByKind(model.ActorPersona) {
		topic, ok := personaTopic(p.ID)
		if !ok {
			d.logger.Debug(ctx, "persona without a topic skipped", logger.String("actor", p.ID))
			continue
		}
		item := &model.ContentItem{
			ID:        d.newID(),
			AuthorID:  p.ID,
			Topics:    []string{topic},
			CreatedAt: d.now(),
		}
		if err := d.emit(ctx, model.Event{Kind: model.EventAuthored, ActorID: p.ID, Item: item}); err != nil {
			errs = append(errs, err)
			continue
		}

		ranked := d.rank(p.ID)
		for _, r := range ranked {
			if hasTopic(r.Item, topic) {
				errs = append(errs, d.emit(ctx, model.Event{Kind: model.EventReaction, ActorID: p.ID, ItemID: r.Item.ID}))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// SpawnDrifter registers a new drifter with a small random pull toward one
// canonical topic and returns its id.
func (d *Driver) SpawnDrifter(ctx context.Context) (string, error) {
	now := d.now()
	id := "drifter-" + d.newID()
	err := d.deps.Actors.Register(model.Actor{
		ID:           id,
		Kind:         model.ActorDrifter,
		PassiveDrift: true,
		ExpiresAt:    now.Add(d.drifterTTL),
		CreatedAt:    now,
	})
	if err != nil {
		return "", fmt.Errorf("register drifter: %w", err)
	}
	d.deps.Graph.MarkVolatile(id)

	all := topics.All()
	topic := all[d.rand.Intn(len(all))]
	d.deps.Seeder.SeedWeighted(id, topic, DefaultSeedMin+d.rand.Float64()*DefaultSeedSpread)

	metrics.RecordDrifterSpawned()
	d.updateGauges()
	d.logger.Debug(ctx, "drifter spawned", logger.String("actor", id), logger.String("topic", topic))
	return id, nil
}

// StepDrifters shows every live drifter its feed and has it react to one
// item chosen by the pick policy.
func (d *Driver) StepDrifters(ctx context.Context) error {
	now := d.now()
	var errs []error
	for _, a := range d.deps.Actors.ByKind(model.ActorDrifter) {
		if a.Expired(now) {
			continue
		}
		ranked := d.rank(a.ID)
		if len(ranked) == 0 {
			continue
		}
		for i := 0; i < d.exposureWindow && i < len(ranked); i++ {
			errs = append(errs, d.emit(ctx, model.Event{Kind: model.EventExposure, ActorID: a.ID, ItemID: ranked[i].Item.ID}))
		}
		if pick, ok := d.policy.Pick(ranked); ok {
			errs = append(errs, d.emit(ctx, model.Event{Kind: model.EventReaction, ActorID: a.ID, ItemID: pick.Item.ID}))
		}
	}
	return errors.Join(errs...)
}

// Purge removes every expired drifter with its edges and per-actor state.
// It returns how many were removed.
func (d *Driver) Purge(ctx context.Context) int {
	expired := d.deps.Actors.Expired(d.now())
	for _, a := range expired {
		// Unregistered first so queued events for it are dropped.
		d.deps.Actors.Remove(a.ID)
		edges := d.deps.Graph.RemoveActor(a.ID)
		for _, f := range d.deps.Forget {
			f.Forget(a.ID)
		}
		metrics.RecordDrifterPurged()
		d.logger.Debug(ctx, "drifter purged", logger.String("actor", a.ID), logger.Int("edges", edges))
	}
	if len(expired) > 0 {
		d.updateGauges()
	}
	return len(expired)
}

func (d *Driver) rank(actor string) []scoring.Scored {
	candidates := d.deps.Content.Recent(d.candidatePool)
	return d.deps.Ranker.Rank(actor, d.deps.Graph.Snapshot(actor), candidates)
}

func (d *Driver) emit(ctx context.Context, ev model.Event) error {
	ev.EventID = d.newID()
	if ev.TS.IsZero() {
		ev.TS = d.now()
	}
	if err := d.deps.Sink.Enqueue(ctx, ev); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRejected, ev.Kind, ev.ActorID, err)
	}
	return nil
}

func (d *Driver) updateGauges() {
	metrics.UpdateSimulatedActors(string(model.ActorPersona), len(d.deps.Actors.ByKind(model.ActorPersona)))
	metrics.UpdateSimulatedActors(string(model.ActorDrifter), len(d.deps.Actors.ByKind(model.ActorDrifter)))
}

func hasTopic(item model.ContentItem, topic string) bool {
	for _, t := range item.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

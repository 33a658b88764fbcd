// Package service wires the attraction graph, its ingestion pipeline and its
// readers into one process-level Service used by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/echochamber/internal/adapters/bridge"
	eventqueue "github.com/okian/echochamber/internal/adapters/mq/queue"
	workerpool "github.com/okian/echochamber/internal/adapters/mq/worker"
	"github.com/okian/echochamber/internal/adapters/repository"
	"github.com/okian/echochamber/internal/adapters/schedule"
	"github.com/okian/echochamber/internal/config"
	"github.com/okian/echochamber/internal/domain/attraction"
	"github.com/okian/echochamber/internal/domain/catalog"
	"github.com/okian/echochamber/internal/domain/cluster"
	"github.com/okian/echochamber/internal/domain/dedupe"
	"github.com/okian/echochamber/internal/domain/ingest"
	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/internal/domain/scoring"
	"github.com/okian/echochamber/internal/domain/simulation"
	"github.com/okian/echochamber/internal/domain/topics"
	"github.com/okian/echochamber/internal/domain/types"
	"github.com/okian/echochamber/pkg/logger"
	"github.com/okian/echochamber/pkg/metrics"
)

const (
	metricsInterval = 5 * time.Second
	stopTimeout     = 30 * time.Second
)

// ActorSpec describes an actor to register.
type ActorSpec struct {
	// ID is generated when empty.
	ID           string
	Kind         model.ActorKind
	PassiveDrift bool
	Durable      bool
	// TTL makes the actor ephemeral; it is purged once expired.
	TTL time.Duration
	// Topics seed the actor's identity once per topic.
	Topics []string
}

// Service owns every component of one echochamber instance.
type Service struct {
	mu sync.RWMutex

	cfg        *config.Config
	repo       repository.EdgeRepository
	ownsRepo   bool
	instanceID string
	rand       simulation.RandSource

	// Core components
	store    *attraction.Store
	actors   *catalog.Actors
	content  *catalog.Content
	ingestor *ingest.Ingestor
	scorer   *scoring.Scorer
	assigner *cluster.Assigner
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool

	// Background work
	flusher   *bridge.Flusher
	listener  *bridge.ChangeListener
	scheduler *schedule.Scheduler
	driver    *simulation.Driver

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Components are created by Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start rehydrates the graph from storage and starts the worker pool, the
// flusher and every periodic task.
func (s *Service) Start(ctx context.Context) error { //nolint:funlen // linear wiring
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.rand == nil {
		s.rand = simulation.NewRand(s.cfg.SimulationSeed)
	}
	s.instanceID = s.cfg.InstanceID
	if s.instanceID == "" {
		s.instanceID = uuid.NewString()
	}

	policy, err := scoring.ParsePolicy(s.cfg.PickPolicy, s.rand)
	if err != nil {
		return fmt.Errorf("pick policy: %w", err)
	}

	s.logger.Info(ctx, "starting echochamber service...", logger.String("instance", s.instanceID))

	if s.repo == nil || s.ownsRepo {
		repo, err := s.openRepository(ctx)
		if err != nil {
			return err
		}
		s.repo = repo
		s.ownsRepo = true
		defer func() {
			if !s.started {
				s.releaseRepository(ctx)
			}
		}()
	}

	s.store = attraction.New(attraction.WithFloor(s.cfg.EdgeFloor))
	s.actors = catalog.NewActors()
	s.content = catalog.NewContent(0)

	seq, loaded, err := bridge.Rehydrate(ctx, s.repo, s.store)
	if err != nil {
		// The listener replays the change log from zero instead.
		s.logger.Error(ctx, "rehydrate failed, starting from the change log", logger.Error(err))
	}
	s.registerRehydrated()
	s.listener = bridge.NewChangeListener(s.repo, s.store, s.instanceID)
	s.listener.SetCursor(seq)

	s.ingestor = ingest.New(s.store, s.actors, s.content,
		ingest.WithNormalizer(topics.NewNormalizer(s.cfg.TopicSynonyms)),
		ingest.WithReactionWeight(s.cfg.ReactionWeight),
		ingest.WithAuthorAffinity(s.cfg.AuthorAffinity),
		ingest.WithExposureEpsilon(s.cfg.ExposureEpsilon),
		ingest.WithAuthoredWeight(s.cfg.AuthoredWeight),
	)
	s.scorer = scoring.NewScorer(
		scoring.WithSaturation(s.cfg.EchoSaturation),
		scoring.WithFloor(s.cfg.EdgeFloor),
	)
	s.assigner = cluster.New(s.store, cluster.WithDominanceRatio(s.cfg.DominanceRatio))

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.EventQueueSize))
	s.pool = workerpool.NewPool(s.cfg.WorkerCount, s.queue, s.ingestor)

	s.driver = simulation.New(simulation.Deps{
		Sink:    sinkFunc(s.submit),
		Actors:  s.actors,
		Content: s.content,
		Graph:   s.store,
		Ranker:  s.scorer,
		Seeder:  s.ingestor,
		Forget:  []simulation.Forgetter{s.ingestor, s.assigner},
	},
		simulation.WithRand(s.rand),
		simulation.WithPolicy(policy),
		simulation.WithPersonaCount(s.cfg.PersonaCount),
		simulation.WithDrifterTTL(s.cfg.DrifterTTL()),
		simulation.WithExposureWindow(s.cfg.ExposureWindow),
	)

	if s.cfg.SimulationEnabled {
		if err := s.driver.Bootstrap(ctx); err != nil {
			return fmt.Errorf("bootstrap personas: %w", err)
		}
	}

	// Background work outlives ctx; only Stop ends it, after draining the
	// queue and the final flush.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.pool.Start(runCtx)

	s.flusher = bridge.NewFlusher(s.store, s.repo, s.instanceID, bridge.WithFlushInterval(s.cfg.FlushInterval()))
	go s.flusher.Run(runCtx)

	s.scheduler = schedule.New()
	s.scheduler.Add("decay", s.cfg.DecayInterval(), s.decaySweep)
	s.scheduler.Add("changefeed", s.cfg.ChangefeedInterval(), s.listener.Run)
	s.scheduler.Add("purge", s.cfg.PurgeInterval(), func(ctx context.Context) error {
		s.driver.Purge(ctx)
		return nil
	})
	s.scheduler.Add("metrics", metricsInterval, s.updateGauges)

	if s.cfg.SimulationEnabled {
		s.scheduler.Add("personas", s.cfg.PersonaPostInterval(), s.driver.PostPersonas)
		s.scheduler.Add("spawn", s.cfg.DrifterSpawnInterval(), func(ctx context.Context) error {
			_, err := s.driver.SpawnDrifter(ctx)
			return err
		})
		s.scheduler.Add("drifters", s.cfg.DrifterReactInterval(), s.driver.StepDrifters)
	}
	s.scheduler.Start(runCtx)

	s.started = true
	metrics.UpdateWorkerActiveCount(s.pool.Size())
	s.logger.Info(ctx, "echochamber service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queue.Capacity()),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
		logger.Int("rehydrated", loaded),
		logger.Bool("simulation", s.cfg.SimulationEnabled),
	)
	return nil
}

func (s *Service) openRepository(ctx context.Context) (repository.EdgeRepository, error) {
	if s.cfg.DBPath == "" {
		s.logger.Info(ctx, "no db_path configured, edges are kept in memory only")
		return repository.NewMemory(), nil
	}
	repo, err := repository.Open(ctx, s.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	s.logger.Info(ctx, "using sqlite store", logger.String("path", s.cfg.DBPath))
	return repo, nil
}

// releaseRepository closes storage opened by a Start that did not complete.
func (s *Service) releaseRepository(ctx context.Context) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Close(); err != nil {
		s.logger.Error(ctx, "failed to close repository", logger.Error(err))
	}
	s.repo = nil
}

// registerRehydrated gives every actor found in storage a registry entry so
// its events are accepted after a restart.
func (s *Service) registerRehydrated() {
	now := time.Now()
	for _, id := range s.store.Actors() {
		kind := model.ActorHuman
		if strings.HasPrefix(id, simulation.PersonaID("")) {
			kind = model.ActorPersona
		}
		_ = s.actors.Register(model.Actor{ID: id, Kind: kind, Durable: true, CreatedAt: now})
	}
}

// Stop stops the periodic tasks, drains the queue, performs the final flush
// and closes storage it opened itself.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping echochamber service...")
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()

	var errs []error
	s.scheduler.Stop()
	if err := s.pool.Shutdown(stopCtx); err != nil {
		errs = append(errs, err)
	}
	if err := s.flusher.Stop(stopCtx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()

	if s.ownsRepo {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close repository: %w", err))
		}
	}

	s.logger.Info(ctx, "echochamber service stopped")
	return errors.Join(errs...)
}

// running returns ErrNotStarted unless the service is started. Callers hold mu.
func (s *Service) running() error {
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// sinkFunc adapts submit to the simulation sink.
type sinkFunc func(ctx context.Context, ev model.Event) (bool, error)

func (f sinkFunc) Enqueue(ctx context.Context, ev model.Event) error { //nolint:gocritic // hugeParam
	_, err := f(ctx, ev)
	return err
}

// Submit deduplicates ev by EventID and queues it for ingestion. A missing
// EventID is generated. duplicate reports an event that was already seen.
func (s *Service) Submit(ctx context.Context, ev model.Event) (duplicate bool, err error) { //nolint:gocritic // hugeParam
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return false, err
	}
	return s.submit(ctx, ev)
}

// Enqueue submits ev and ignores duplicates.
func (s *Service) Enqueue(ctx context.Context, ev model.Event) error { //nolint:gocritic // hugeParam
	_, err := s.Submit(ctx, ev)
	return err
}

func (s *Service) submit(ctx context.Context, ev model.Event) (bool, error) { //nolint:gocritic // hugeParam
	if !ev.Kind.Valid() || ev.ActorID == "" {
		return false, fmt.Errorf("%w: kind %q actor %q", ErrInvalidEvent, ev.Kind, ev.ActorID)
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}

	if s.deduper.SeenAndRecord(ctx, ev.EventID) {
		metrics.RecordEventDuplicate()
		s.logger.Debug(ctx, "duplicate event detected, skipping", logger.String("eventID", ev.EventID))
		return true, nil
	}
	if err := s.queue.Enqueue(ctx, ev); err != nil {
		s.deduper.Unrecord(ctx, ev.EventID)
		return false, fmt.Errorf("enqueue %s: %w", ev.EventID, err)
	}
	return false, nil
}

// RegisterActor adds an actor to the registry. Actors that are not durable
// are kept out of storage until promoted.
func (s *Service) RegisterActor(ctx context.Context, spec ActorSpec) (model.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return model.Actor{}, err
	}

	now := time.Now()
	a := model.Actor{
		ID:           spec.ID,
		Kind:         spec.Kind,
		PassiveDrift: spec.PassiveDrift,
		Durable:      spec.Durable,
		CreatedAt:    now,
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Kind == "" {
		a.Kind = model.ActorHuman
	}
	if spec.TTL > 0 {
		a.ExpiresAt = now.Add(spec.TTL)
	}
	if err := s.actors.Register(a); err != nil {
		return model.Actor{}, err
	}
	if a.Durable {
		s.store.MarkDurable(a.ID)
	} else {
		s.store.MarkVolatile(a.ID)
	}
	if len(spec.Topics) > 0 {
		s.ingestor.SeedIdentity(a.ID, spec.Topics)
	}

	s.logger.Debug(ctx, "actor registered",
		logger.String("actor", a.ID),
		logger.String("kind", string(a.Kind)),
		logger.Bool("durable", a.Durable),
	)
	return a, nil
}

// Promote makes an actor durable. With a newID different from id, the
// actor's edges, seeds and cluster label move to newID and id is removed.
func (s *Service) Promote(ctx context.Context, id, newID string) (model.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return model.Actor{}, err
	}

	if newID == "" || newID == id {
		a, err := s.actors.Update(id, func(a *model.Actor) {
			a.Durable = true
			a.ExpiresAt = time.Time{}
		})
		if err != nil {
			return model.Actor{}, err
		}
		s.store.MarkDurable(id)
		s.logger.Info(ctx, "actor promoted", logger.String("actor", id))
		return a, nil
	}

	old, err := s.actors.Get(id)
	if err != nil {
		return model.Actor{}, err
	}
	promoted := old
	promoted.ID = newID
	promoted.Durable = true
	promoted.ExpiresAt = time.Time{}
	if err := s.actors.Register(promoted); err != nil {
		return model.Actor{}, err
	}
	// Events for id are dropped from here on, so nothing lands on it after
	// the transfer.
	s.actors.Remove(id)

	s.store.MarkDurable(newID)
	s.store.TransferIdentity(id, newID)
	s.ingestor.TransferSeeds(id, newID)
	s.assigner.Rename(id, newID)
	s.store.RemoveActor(id)

	s.logger.Info(ctx, "actor promoted", logger.String("from", id), logger.String("to", newID))
	return promoted, nil
}

// Rank orders candidates for actor from its current snapshot.
func (s *Service) Rank(_ context.Context, actor string, candidates []model.ContentItem) ([]scoring.Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.scorer.Rank(actor, s.store.Snapshot(actor), candidates), nil
}

// Feed ranks every known item for actor and returns the best limit of them.
// limit <= 0 uses the configured feed limit. For actors with passive drift
// the top items are recorded as exposures.
func (s *Service) Feed(ctx context.Context, actor string, limit int) (types.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return types.Feed{}, err
	}

	a, err := s.actors.Get(actor)
	if err != nil {
		return types.Feed{}, err
	}
	if limit <= 0 {
		limit = s.cfg.FeedLimit
	}

	snapshot := s.store.Snapshot(actor)
	ranked := s.scorer.Rank(actor, snapshot, s.content.Recent(0))
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	feed := types.Feed{
		ActorID:      actor,
		EchoStrength: s.scorer.EchoStrength(snapshot),
		Items:        make([]types.FeedEntry, len(ranked)),
	}
	for i, r := range ranked {
		feed.Items[i] = types.FeedEntry{
			ItemID:    r.Item.ID,
			AuthorID:  r.Item.AuthorID,
			Topics:    r.Item.Topics,
			Affinity:  r.Affinity,
			CreatedAt: r.Item.CreatedAt,
		}
	}

	if a.PassiveDrift {
		for i := 0; i < s.cfg.ExposureWindow && i < len(ranked); i++ {
			ev := model.Event{Kind: model.EventExposure, ActorID: actor, ItemID: ranked[i].Item.ID}
			if _, err := s.submit(ctx, ev); err != nil {
				s.logger.Warn(ctx, "exposure not recorded", logger.String("actor", actor), logger.Error(err))
			}
		}
	}
	return feed, nil
}

// ClusterOf returns the current cluster label of actor.
func (s *Service) ClusterOf(_ context.Context, actor string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return "", err
	}
	if !s.known(actor) {
		return "", fmt.Errorf("%w: %s", catalog.ErrActorNotFound, actor)
	}
	return s.assigner.ClusterOf(actor), nil
}

// Clusters re-evaluates and returns the label of every known actor, sorted by id.
func (s *Service) Clusters(_ context.Context) ([]types.ClusterLabel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, id := range append(s.actors.IDs(), s.store.Actors()...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	labels := s.assigner.Refresh(ids)
	out := make([]types.ClusterLabel, 0, len(labels))
	for id, label := range labels {
		out = append(out, types.ClusterLabel{ActorID: id, Cluster: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out, nil
}

// Snapshot returns the outgoing edges of actor.
func (s *Service) Snapshot(_ context.Context, actor string) (types.ActorSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return types.ActorSnapshot{}, err
	}
	if !s.known(actor) {
		return types.ActorSnapshot{}, fmt.Errorf("%w: %s", catalog.ErrActorNotFound, actor)
	}
	return types.ActorSnapshot{
		ActorID:     actor,
		Weights:     s.store.Snapshot(actor),
		Affirmative: s.store.AffirmativeSnapshot(actor),
		Cluster:     s.assigner.ClusterOf(actor),
	}, nil
}

// known reports whether actor is registered or has edges from storage.
func (s *Service) known(actor string) bool {
	return s.actors.Exists(actor) || len(s.store.Snapshot(actor)) > 0
}

// Flush writes every dirty edge now.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return err
	}
	return s.flusher.Flush(ctx)
}

// SyncChanges merges changes written by other instances now and returns how
// many were applied.
func (s *Service) SyncChanges(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return 0, err
	}
	return s.listener.Poll(ctx)
}

// InstanceID returns the writer id stamped on rows this instance flushes.
func (s *Service) InstanceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instanceID
}

func (s *Service) decaySweep(ctx context.Context) error {
	start := time.Now()
	actors := s.store.Actors()
	for _, a := range actors {
		s.store.Decay(a, s.cfg.DecayFactor)
	}
	metrics.RecordDecaySweep(float64(time.Since(start).Milliseconds()))
	s.logger.Debug(ctx, "decay sweep", logger.Int("actors", len(actors)), logger.Int("edges", s.store.EdgeCount()))
	return nil
}

func (s *Service) updateGauges(context.Context) error {
	metrics.UpdateGraphSize(s.store.EdgeCount(), len(s.store.Actors()))
	metrics.UpdateDirtyEdges(s.store.DirtyCount())
	metrics.UpdateClusterMembers(s.assigner.Members())
	metrics.UpdateQueueSize(s.queue.Len())
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"instanceId": s.instanceID,
		"simulation": s.cfg.SimulationEnabled,
	}
	if !s.started {
		return stats
	}

	kinds := make(map[string]int)
	for k, n := range s.actors.Count() {
		kinds[string(k)] = n
	}
	stats["workerCount"] = s.pool.Size()
	stats["queueLength"] = s.queue.Len()
	stats["queueCapacity"] = s.queue.Capacity()
	stats["dedupeSize"] = s.deduper.Size()
	stats["edges"] = s.store.EdgeCount()
	stats["dirtyEdges"] = s.store.DirtyCount()
	stats["graphActors"] = len(s.store.Actors())
	stats["actors"] = kinds
	stats["contentItems"] = s.content.Len()
	stats["clusters"] = s.assigner.Members()
	stats["changeCursor"] = s.listener.Cursor()
	return stats
}

// Package attraction holds the in-process attraction graph: weighted edges from
// actors to topics and to other actors.
//
// The Store is the single source of truth for ranking and clustering. Every
// mutation is an atomic read-modify-write under one mutex and never touches
// I/O; durable storage is reached only through DrainDirty/Requeue (flush) and
// Load/Merge (rehydration and the change feed).
package attraction

import (
	"sort"
	"sync"
	"time"

	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/pkg/metrics"
)

// Removal reasons reported to metrics.
const (
	removedFloor    = "floor"
	removedPurge    = "purge"
	removedTransfer = "transfer"
	removedRemote   = "remote"
)

// retiredTTL is how long a removed actor keeps rejecting late deltas.
const retiredTTL = 10 * time.Minute

type edge struct {
	weight  float64
	passive float64
	updated time.Time
}

// Store is the attraction graph.
type Store struct {
	mu       sync.RWMutex
	out      map[string]map[string]*edge // source -> target -> edge
	edges    int
	dirty    map[model.EdgeKey]struct{}
	volatile map[string]struct{}  // actors excluded from flush
	retired  map[string]time.Time // removed actors, by removal time

	floor  float64
	now    func() time.Time
	notify chan struct{}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		out:      make(map[string]map[string]*edge),
		dirty:    make(map[model.EdgeKey]struct{}),
		volatile: make(map[string]struct{}),
		retired:  make(map[string]time.Time),
		floor:    DefaultFloor,
		now:      time.Now,
		notify:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Floor returns the removal floor.
func (s *Store) Floor() float64 { return s.floor }

// Dirty signals whenever an edge becomes dirty. The channel holds at most one
// pending signal, so many marks between two receives coalesce.
func (s *Store) Dirty() <-chan struct{} { return s.notify }

// Apply adds delta to the (source, target) edge, creating it at zero first.
// The result is clamped at zero and the edge is removed at or under the floor.
func (s *Store) Apply(source, target string, delta float64) {
	s.mu.Lock()
	removed := s.applyLocked(source, target, delta, false)
	s.mu.Unlock()

	metrics.RecordEdgeApply()
	if removed {
		metrics.RecordEdgeRemoval(removedFloor)
	}
}

// ApplyPassive adds an exposure-derived delta. The delta counts toward the full
// weight and toward the passive share excluded from the affirmative view.
// Non-positive deltas are ignored.
func (s *Store) ApplyPassive(source, target string, delta float64) {
	if delta <= 0 {
		return
	}
	s.mu.Lock()
	removed := s.applyLocked(source, target, delta, true)
	s.mu.Unlock()

	metrics.RecordEdgeApply()
	if removed {
		metrics.RecordEdgeRemoval(removedFloor)
	}
}

// applyLocked returns true when an existing edge was removed. Caller holds s.mu.
func (s *Store) applyLocked(source, target string, delta float64, passive bool) bool {
	if _, ok := s.retired[source]; ok {
		return false
	}
	targets := s.out[source]
	e := targets[target]
	if e == nil {
		if delta <= s.floor {
			// Starting from zero this cannot survive the floor; nothing to create.
			return false
		}
		if targets == nil {
			targets = make(map[string]*edge)
			s.out[source] = targets
		}
		e = &edge{}
		targets[target] = e
		s.edges++
	}

	e.weight += delta
	if passive {
		e.passive += delta
	}
	if e.weight < 0 {
		e.weight = 0
	}
	e.passive = clampPassive(e.passive, e.weight)
	e.updated = s.now()
	s.markDirtyLocked(model.EdgeKey{Source: source, Target: target})

	if e.weight <= s.floor {
		s.deleteLocked(source, target)
		return true
	}
	return false
}

// Decay multiplies every outgoing edge of actor by factor, removing edges that
// drop to or under the floor. Factors outside (0,1) are ignored.
func (s *Store) Decay(actor string, factor float64) {
	if factor <= 0 || factor >= 1 {
		return
	}
	removed := 0

	s.mu.Lock()
	now := s.now()
	for target, e := range s.out[actor] {
		e.weight *= factor
		e.passive = clampPassive(e.passive*factor, e.weight)
		e.updated = now
		s.markDirtyLocked(model.EdgeKey{Source: actor, Target: target})
		if e.weight <= s.floor {
			s.deleteLocked(actor, target)
			removed++
		}
	}
	s.mu.Unlock()

	for i := 0; i < removed; i++ {
		metrics.RecordEdgeRemoval(removedFloor)
	}
}

// Snapshot returns a copy of actor's outgoing weights keyed by target.
func (s *Store) Snapshot(actor string) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.out[actor]))
	for target, e := range s.out[actor] {
		out[target] = e.weight
	}
	return out
}

// AffirmativeSnapshot returns actor's weights with the exposure share removed.
// Targets whose weight is entirely passive are omitted.
func (s *Store) AffirmativeSnapshot(actor string) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.out[actor]))
	for target, e := range s.out[actor] {
		if w := e.weight - e.passive; w > 0 {
			out[target] = w
		}
	}
	return out
}

// TransferIdentity moves every outgoing edge of oldID to newID in one step.
// Weights are added when newID already has the target; an edge that would
// point newID at itself is dropped. Returns false when there was nothing to move.
func (s *Store) TransferIdentity(oldID, newID string) bool {
	if oldID == newID {
		return false
	}

	s.mu.Lock()
	src := s.out[oldID]
	if len(src) == 0 {
		s.mu.Unlock()
		return false
	}

	now := s.now()
	dst := s.out[newID]
	if dst == nil {
		dst = make(map[string]*edge, len(src))
		s.out[newID] = dst
	}
	dropped := 0
	for target, e := range src {
		s.markDirtyLocked(model.EdgeKey{Source: oldID, Target: target})
		if target == model.ActorTarget(newID) {
			dropped++
			continue
		}
		if cur, ok := dst[target]; ok {
			cur.weight += e.weight
			cur.passive = clampPassive(cur.passive+e.passive, cur.weight)
			cur.updated = now
			dropped++
		} else {
			dst[target] = &edge{weight: e.weight, passive: e.passive, updated: now}
		}
		s.markDirtyLocked(model.EdgeKey{Source: newID, Target: target})
	}
	s.edges -= dropped
	delete(s.out, oldID)
	if len(dst) == 0 {
		delete(s.out, newID)
	}
	s.mu.Unlock()

	metrics.RecordIdentityTransfer()
	for i := 0; i < dropped; i++ {
		metrics.RecordEdgeRemoval(removedTransfer)
	}
	return true
}

// RemoveActor deletes every outgoing edge of actor and returns how many were
// removed. The actor is retired: deltas and merges for it are dropped until
// MarkVolatile or MarkDurable admits it again. A volatile actor stays volatile
// while retired, so its removal never reaches storage.
func (s *Store) RemoveActor(actor string) int {
	s.mu.Lock()
	n := 0
	for target := range s.out[actor] {
		s.markDirtyLocked(model.EdgeKey{Source: actor, Target: target})
		s.deleteLocked(actor, target)
		n++
	}
	now := s.now()
	for id, at := range s.retired {
		if now.Sub(at) > retiredTTL {
			delete(s.retired, id)
			delete(s.volatile, id)
		}
	}
	s.retired[actor] = now
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		metrics.RecordEdgeRemoval(removedPurge)
	}
	return n
}

// Merge writes a remote edge state by absolute weight, last write wins.
// Merged edges are not marked dirty; they already live in storage.
// Volatile actors never take remote state.
func (s *Store) Merge(e model.Edge) {
	s.mu.Lock()
	removed := s.mergeLocked(e)
	s.mu.Unlock()

	if removed {
		metrics.RecordEdgeRemoval(removedRemote)
	}
}

// Load merges a full read of durable storage and returns how many edges were kept.
func (s *Store) Load(edges []model.Edge) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := 0
	for _, e := range edges {
		s.mergeLocked(e)
		if s.out[e.Source][e.Target] != nil {
			kept++
		}
	}
	return kept
}

func (s *Store) mergeLocked(in model.Edge) bool {
	if _, ok := s.volatile[in.Source]; ok {
		return false
	}
	if _, ok := s.retired[in.Source]; ok {
		return false
	}
	if in.Deleted || in.Weight <= s.floor {
		if s.out[in.Source][in.Target] != nil {
			s.deleteLocked(in.Source, in.Target)
			return true
		}
		return false
	}

	targets := s.out[in.Source]
	if targets == nil {
		targets = make(map[string]*edge)
		s.out[in.Source] = targets
	}
	e := targets[in.Target]
	if e == nil {
		e = &edge{}
		targets[in.Target] = e
		s.edges++
	}
	e.weight = in.Weight
	e.passive = clampPassive(in.Passive, in.Weight)
	e.updated = in.UpdatedAt
	if e.updated.IsZero() {
		e.updated = s.now()
	}
	return false
}

// MarkVolatile excludes actor's edges from flushes until MarkDurable.
func (s *Store) MarkVolatile(actor string) {
	s.mu.Lock()
	delete(s.retired, actor)
	s.volatile[actor] = struct{}{}
	s.mu.Unlock()
}

// MarkDurable re-includes actor in flushes and schedules all its edges.
func (s *Store) MarkDurable(actor string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.retired, actor)
	if _, ok := s.volatile[actor]; !ok {
		return
	}
	delete(s.volatile, actor)
	for target := range s.out[actor] {
		s.markDirtyLocked(model.EdgeKey{Source: actor, Target: target})
	}
}

// IsVolatile reports whether actor is excluded from flushes.
func (s *Store) IsVolatile(actor string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.volatile[actor]
	return ok
}

// DrainDirty returns the current state of every dirty edge and clears the dirty
// set. Edges that no longer exist come back as tombstones. Edges of volatile
// actors are dropped.
func (s *Store) DrainDirty() []model.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]model.Edge, 0, len(s.dirty))
	now := s.now()
	for key := range s.dirty {
		if _, ok := s.volatile[key.Source]; ok {
			continue
		}
		if e := s.out[key.Source][key.Target]; e != nil {
			batch = append(batch, model.Edge{
				Source: key.Source, Target: key.Target,
				Weight: e.weight, Passive: e.passive, UpdatedAt: e.updated,
			})
		} else {
			batch = append(batch, model.Edge{Source: key.Source, Target: key.Target, UpdatedAt: now, Deleted: true})
		}
	}
	s.dirty = make(map[model.EdgeKey]struct{})

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Source != batch[j].Source {
			return batch[i].Source < batch[j].Source
		}
		return batch[i].Target < batch[j].Target
	})
	return batch
}

// Requeue marks the edges of a failed batch dirty again. The next drain reads
// their state at that time.
func (s *Store) Requeue(batch []model.Edge) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	for _, e := range batch {
		s.markDirtyLocked(e.Key())
	}
	s.mu.Unlock()
}

// DirtyCount returns the number of edges waiting for a flush.
func (s *Store) DirtyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty)
}

// EdgeCount returns the number of live edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edges
}

// Actors returns every actor with at least one outgoing edge, sorted.
func (s *Store) Actors() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.out))
	for id := range s.out {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

func (s *Store) markDirtyLocked(key model.EdgeKey) {
	s.dirty[key] = struct{}{}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Store) deleteLocked(source, target string) {
	targets := s.out[source]
	if _, ok := targets[target]; !ok {
		return
	}
	delete(targets, target)
	s.edges--
	if len(targets) == 0 {
		delete(s.out, source)
	}
}

func clampPassive(passive, weight float64) float64 {
	if passive < 0 {
		return 0
	}
	if passive > weight {
		return weight
	}
	return passive
}

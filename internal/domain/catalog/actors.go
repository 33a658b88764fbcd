package catalog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/echochamber/internal/domain/model"
)

// Actors is the registry of known participants.
type Actors struct {
	mu     sync.RWMutex
	actors map[string]model.Actor
}

// NewActors creates an empty registry.
func NewActors() *Actors {
	return &Actors{actors: make(map[string]model.Actor)}
}

// Register adds a new actor.
func (r *Actors) Register(a model.Actor) error {
	if a.ID == "" || !a.Kind.Valid() {
		return fmt.Errorf("%w: id=%q kind=%q", ErrInvalidActor, a.ID, a.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actors[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrActorExists, a.ID)
	}
	r.actors[a.ID] = a
	return nil
}

// Get returns the actor with id.
func (r *Actors) Get(id string) (model.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actors[id]
	if !ok {
		return model.Actor{}, fmt.Errorf("%w: %s", ErrActorNotFound, id)
	}
	return a, nil
}

// Exists reports whether id is registered.
func (r *Actors) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actors[id]
	return ok
}

// Update applies fn to a copy of the actor and stores the result.
func (r *Actors) Update(id string, fn func(*model.Actor)) (model.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[id]
	if !ok {
		return model.Actor{}, fmt.Errorf("%w: %s", ErrActorNotFound, id)
	}
	fn(&a)
	a.ID = id
	r.actors[id] = a
	return a, nil
}

// Remove deletes id and reports whether it existed.
func (r *Actors) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.actors[id]; !ok {
		return false
	}
	delete(r.actors, id)
	return true
}

// Expired returns the ephemeral actors past their expiry at now, sorted by id.
func (r *Actors) Expired(now time.Time) []model.Actor {
	r.mu.RLock()
	var out []model.Actor
	for _, a := range r.actors {
		if a.Expired(now) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByKind returns the actors of kind, sorted by id.
func (r *Actors) ByKind(kind model.ActorKind) []model.Actor {
	r.mu.RLock()
	var out []model.Actor
	for _, a := range r.actors {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered actors per kind.
func (r *Actors) Count() map[model.ActorKind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[model.ActorKind]int, 3)
	for _, a := range r.actors {
		out[a.Kind]++
	}
	return out
}

// IDs returns every registered actor id, sorted.
func (r *Actors) IDs() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.actors))
	for id := range r.actors {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

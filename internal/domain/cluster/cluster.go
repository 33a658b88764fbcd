// Package cluster derives a stable single-topic label per actor. A label only
// changes on dominant evidence for a different topic; ambiguous or empty
// evidence keeps the current label.
package cluster

import (
	"sort"
	"sync"

	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/internal/domain/topics"
	"github.com/okian/echochamber/pkg/metrics"
)

// Source provides the reaction-only view of an actor's edges.
type Source interface {
	AffirmativeSnapshot(actor string) map[string]float64
}

type weighted struct {
	topic  string
	weight float64
}

// Evaluate returns the dominant canonical topic of snapshot and true, or
// false when the evidence is empty or ambiguous under ratio.
func Evaluate(snapshot map[string]float64, ratio float64) (string, bool) {
	entries := make([]weighted, 0, len(snapshot))
	for target, w := range snapshot {
		t, ok := model.TopicOf(target)
		if !ok || w <= 0 || !topics.IsCanonical(t) {
			continue
		}
		entries = append(entries, weighted{topic: t, weight: w})
	}

	switch len(entries) {
	case 0:
		return "", false
	case 1:
		return entries[0].topic, true
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight > entries[j].weight
		}
		return entries[i].topic < entries[j].topic
	})
	if entries[0].weight >= entries[1].weight*ratio {
		return entries[0].topic, true
	}
	return "", false
}

// Assigner keeps the current label of every evaluated actor.
type Assigner struct {
	source Source
	ratio  float64

	mu     sync.Mutex
	labels map[string]string
}

// New creates an Assigner reading from source.
func New(source Source, opts ...Option) *Assigner {
	a := &Assigner{
		source: source,
		ratio:  DefaultDominanceRatio,
		labels: make(map[string]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ratio returns the dominance ratio in use.
func (a *Assigner) Ratio() float64 { return a.ratio }

// ClusterOf evaluates actor's current evidence and returns its label.
// Unknown actors start neutral.
func (a *Assigner) ClusterOf(actor string) string {
	top, ok := Evaluate(a.source.AffirmativeSnapshot(actor), a.ratio)

	a.mu.Lock()
	cur, known := a.labels[actor]
	if !known {
		cur = topics.Neutral
	}
	next := cur
	if ok && top != cur {
		next = top
	}
	a.labels[actor] = next
	a.mu.Unlock()

	if next != cur {
		metrics.RecordClusterTransition(cur, next)
	}
	return next
}

// Refresh evaluates every actor in actors and returns a copy of all labels.
func (a *Assigner) Refresh(actors []string) map[string]string {
	for _, id := range actors {
		a.ClusterOf(id)
	}
	return a.Labels()
}

// Labels returns a copy of every tracked label.
func (a *Assigner) Labels() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]string, len(a.labels))
	for id, l := range a.labels {
		out[id] = l
	}
	return out
}

// Members counts tracked actors per label.
func (a *Assigner) Members() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int)
	for _, l := range a.labels {
		out[l]++
	}
	return out
}

// Rename moves the label of oldID onto newID when newID has none yet.
func (a *Assigner) Rename(oldID, newID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.labels[oldID]
	if !ok {
		return
	}
	delete(a.labels, oldID)
	if _, taken := a.labels[newID]; !taken {
		a.labels[newID] = l
	}
}

// Forget drops the state of a purged actor.
func (a *Assigner) Forget(actor string) {
	a.mu.Lock()
	delete(a.labels, actor)
	a.mu.Unlock()
}

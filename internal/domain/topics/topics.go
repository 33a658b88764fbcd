// Package topics normalizes free-form tags into the canonical topic set.
package topics

import (
	"sort"
	"strings"
	"sync"
)

// Canonical topics. Only these participate in cluster assignment.
const (
	Politics   = "politics"
	Conspiracy = "conspiracy"
	Tech       = "tech"
	Food       = "food"
	Sports     = "sports"
	Fitness    = "fitness"
	Music      = "music"
	Gaming     = "gaming"
	Finance    = "finance"
	Wellness   = "wellness"
	Science    = "science"
	Fashion    = "fashion"
)

// Neutral is the cluster label of an actor without dominant evidence.
const Neutral = "neutral"

var canonical = map[string]struct{}{ //nolint:gochecknoglobals // fixed enumeration
	Politics: {}, Conspiracy: {}, Tech: {}, Food: {}, Sports: {}, Fitness: {},
	Music: {}, Gaming: {}, Finance: {}, Wellness: {}, Science: {}, Fashion: {},
}

// IsCanonical reports whether t is one of the canonical topics.
func IsCanonical(t string) bool {
	_, ok := canonical[t]
	return ok
}

// All returns the canonical topics sorted.
func All() []string {
	out := make([]string, 0, len(canonical))
	for t := range canonical {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Normalizer maps tags to canonical topics through a synonym table.
// Unmatched tags are lower-cased and passed through.
type Normalizer struct {
	mu      sync.RWMutex
	entries map[string]string // lowercase tag -> canonical topic
}

// NewNormalizer creates a Normalizer with the default synonym table plus extra entries.
// Extra entries pointing at a non-canonical topic are ignored.
func NewNormalizer(extra map[string]string) *Normalizer {
	n := &Normalizer{entries: make(map[string]string, 128)}
	n.loadDefaults()
	for tag, topic := range extra {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if IsCanonical(topic) {
			n.add(topic, tag)
		}
	}
	return n
}

// Normalize returns the canonical topic for tag and true, or the lower-cased tag and false.
func (n *Normalizer) Normalize(tag string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(tag))
	n.mu.RLock()
	topic, ok := n.entries[key]
	n.mu.RUnlock()
	if ok {
		return topic, true
	}
	return key, false
}

// NormalizeAll normalizes tags, dropping blanks and duplicates while keeping first-seen order.
func (n *Normalizer) NormalizeAll(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		t, _ := n.Normalize(tag)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (n *Normalizer) add(topic string, tags ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, tag := range tags {
		n.entries[strings.ToLower(strings.TrimSpace(tag))] = topic
	}
}

func (n *Normalizer) loadDefaults() {
	for t := range canonical {
		n.add(t, t)
	}
	n.add(Politics, "election", "elections", "government", "policy", "vote", "voting", "congress", "senate", "democrat", "republican")
	n.add(Conspiracy, "conspiracies", "coverup", "cover-up", "illuminati", "ufo", "ufos", "aliens", "flatearth", "flat-earth", "chemtrails", "deepstate", "truther")
	n.add(Tech, "technology", "ai", "programming", "coding", "software", "gadgets", "startup", "startups", "golang", "linux")
	n.add(Food, "cooking", "recipe", "recipes", "baking", "foodie", "restaurant", "restaurants", "vegan", "dinner")
	n.add(Sports, "football", "soccer", "basketball", "nba", "nfl", "baseball", "tennis", "cricket")
	n.add(Fitness, "gym", "workout", "workouts", "running", "lifting", "crossfit", "yoga", "exercise")
	n.add(Music, "songs", "song", "concert", "concerts", "band", "bands", "hiphop", "hip-hop", "jazz", "rock")
	n.add(Gaming, "games", "videogames", "video-games", "esports", "console", "speedrun", "twitch")
	n.add(Finance, "money", "stocks", "investing", "crypto", "bitcoin", "economy", "markets", "trading")
	n.add(Wellness, "health", "mindfulness", "meditation", "selfcare", "self-care", "sleep", "nutrition")
	n.add(Science, "physics", "biology", "chemistry", "space", "astronomy", "research", "climate")
	n.add(Fashion, "style", "outfit", "outfits", "streetwear", "clothing", "beauty", "makeup")
}

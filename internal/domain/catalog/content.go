// Package catalog keeps the in-memory registries of content items and actors
// that the ingestor and the feed resolve references against.
package catalog

import (
	"sort"
	"sync"

	"github.com/okian/echochamber/internal/domain/model"
)

// DefaultContentCapacity bounds the number of retained items.
const DefaultContentCapacity = 10000

// Content is an append-only catalog of content items. When full, the oldest
// item by insertion is evicted.
type Content struct {
	mu       sync.RWMutex
	items    map[string]model.ContentItem
	order    []string
	capacity int
}

// NewContent creates an empty catalog holding at most capacity items.
func NewContent(capacity int) *Content {
	if capacity <= 0 {
		capacity = DefaultContentCapacity
	}
	return &Content{
		items:    make(map[string]model.ContentItem),
		capacity: capacity,
	}
}

// Put registers item. The first registration of an ID wins; later ones are
// ignored and return false.
func (c *Content) Put(item model.ContentItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[item.ID]; ok {
		return false
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.items[item.ID] = item
	c.order = append(c.order, item.ID)
	return true
}

// Get returns the item with id.
func (c *Content) Get(id string) (model.ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	if !ok {
		return model.ContentItem{}, ErrItemNotFound
	}
	return item, nil
}

// Recent returns up to n items, newest CreatedAt first. n <= 0 returns all.
func (c *Content) Recent(n int) []model.ContentItem {
	c.mu.RLock()
	out := make([]model.ContentItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Len returns the number of items held.
func (c *Content) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

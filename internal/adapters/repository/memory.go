package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/echochamber/internal/domain/model"
)

// Memory is an in-process EdgeRepository with the same change-feed semantics
// as SQLite. Several service instances can share one Memory to exercise
// convergence in tests.
type Memory struct {
	mu      sync.Mutex
	rows    map[model.EdgeKey]memoryRow
	changes []Change
	seq     int64
	closed  bool

	// remaining injected write failures
	failNext int
}

type memoryRow struct {
	edge   model.Edge
	writer string
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{rows: make(map[model.EdgeKey]memoryRow)}
}

// FailWrites makes the next n UpsertBatch calls fail.
func (m *Memory) FailWrites(n int) {
	m.mu.Lock()
	m.failNext = n
	m.mu.Unlock()
}

func (m *Memory) UpsertBatch(_ context.Context, writer string, batch []model.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.failNext > 0 {
		m.failNext--
		return ErrStorage
	}

	for _, e := range batch {
		key := e.Key()
		old, exists := m.rows[key]
		if e.Deleted {
			if exists {
				delete(m.rows, key)
				m.record(model.Edge{Source: e.Source, Target: e.Target, UpdatedAt: e.UpdatedAt, Deleted: true}, writer)
			}
			continue
		}
		row := model.Edge{Source: e.Source, Target: e.Target, Weight: e.Weight, Passive: e.Passive, UpdatedAt: e.UpdatedAt}
		m.rows[key] = memoryRow{edge: row, writer: writer}
		if !exists || old.edge.Weight != row.Weight || old.edge.Passive != row.Passive {
			m.record(row, writer)
		}
	}
	return nil
}

func (m *Memory) record(e model.Edge, writer string) {
	m.seq++
	m.changes = append(m.changes, Change{Seq: m.seq, Edge: e, Writer: writer})
}

func (m *Memory) LoadAll(context.Context) ([]model.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	out := make([]model.Edge, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}

func (m *Memory) ChangesSince(_ context.Context, seq int64, limit int) ([]Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	var out []Change
	for _, c := range m.changes {
		if c.Seq <= seq {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) LatestSeq(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq, nil
}

func (m *Memory) PruneChanges(_ context.Context, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.changes[:0]
	for _, c := range m.changes {
		if c.Seq >= seq {
			kept = append(kept, c)
		}
	}
	m.changes = kept
	return nil
}

// Len returns the number of stored rows.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/echochamber/internal/domain/model"
)

const memoryPath = ":memory:"

// SQLite stores edges in a SQLite database. A trigger-maintained
// edge_changes table records every row change for the change feed.
type SQLite struct {
	db   *sql.DB
	path string

	pragmas      []string
	maxOpenConns int
	closed       atomic.Bool
}

// Open opens (or creates) the database at path, configures pragmas and runs
// migrations.
func Open(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create db dir: %w", ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrStorage, err)
	}

	s := &SQLite{
		db:   db,
		path: path,
		pragmas: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	// Every connection to ":memory:" is a separate database.
	if path == memoryPath {
		s.maxOpenConns = 1
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}

	if err := s.configurePragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrStorage, err)
	}
	return s, nil
}

// OpenMemory opens an in-memory database for tests.
func OpenMemory(ctx context.Context, opts ...Option) (*SQLite, error) {
	return Open(ctx, memoryPath, opts...)
}

// Path returns the database location.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) configurePragmas(ctx context.Context) error {
	for _, p := range s.pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%w: pragma %q: %w", ErrStorage, p, err)
		}
	}
	return nil
}

func (s *SQLite) UpsertBatch(ctx context.Context, writer string, batch []model.Edge) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO attraction_edges (source_id, target_id, weight, passive_weight, updated_at, writer)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, target_id) DO UPDATE SET
			weight         = excluded.weight,
			passive_weight = excluded.passive_weight,
			updated_at     = excluded.updated_at,
			writer         = excluded.writer`)
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %w", ErrStorage, err)
	}
	defer upsert.Close()

	// The writer is stamped on the row before deletion so the delete trigger
	// records who removed it.
	stamp, err := tx.PrepareContext(ctx,
		"UPDATE attraction_edges SET writer = ?, updated_at = ? WHERE source_id = ? AND target_id = ?")
	if err != nil {
		return fmt.Errorf("%w: prepare stamp: %w", ErrStorage, err)
	}
	defer stamp.Close()

	del, err := tx.PrepareContext(ctx, "DELETE FROM attraction_edges WHERE source_id = ? AND target_id = ?")
	if err != nil {
		return fmt.Errorf("%w: prepare delete: %w", ErrStorage, err)
	}
	defer del.Close()

	for _, e := range batch {
		ts := toMillis(e.UpdatedAt)
		if e.Deleted {
			if _, err := stamp.ExecContext(ctx, writer, ts, e.Source, e.Target); err != nil {
				return fmt.Errorf("%w: stamp %s->%s: %w", ErrStorage, e.Source, e.Target, err)
			}
			if _, err := del.ExecContext(ctx, e.Source, e.Target); err != nil {
				return fmt.Errorf("%w: delete %s->%s: %w", ErrStorage, e.Source, e.Target, err)
			}
			continue
		}
		if _, err := upsert.ExecContext(ctx, e.Source, e.Target, e.Weight, e.Passive, ts, writer); err != nil {
			return fmt.Errorf("%w: upsert %s->%s: %w", ErrStorage, e.Source, e.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}
	return nil
}

func (s *SQLite) LoadAll(ctx context.Context) ([]model.Edge, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, weight, passive_weight, updated_at
		FROM attraction_edges
		ORDER BY source_id, target_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []model.Edge
	for rows.Next() {
		var (
			e  model.Edge
			ts int64
		)
		if err := rows.Scan(&e.Source, &e.Target, &e.Weight, &e.Passive, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan edge: %w", ErrStorage, err)
		}
		e.UpdatedAt = fromMillis(ts)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load rows: %w", ErrStorage, err)
	}
	return out, nil
}

func (s *SQLite) ChangesSince(ctx context.Context, seq int64, limit int) ([]Change, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = -1 // no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, source_id, target_id, weight, passive_weight, deleted, updated_at, writer
		FROM edge_changes
		WHERE seq > ?
		ORDER BY seq
		LIMIT ?`, seq, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: changes: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var (
			c       Change
			deleted int
			ts      int64
		)
		if err := rows.Scan(&c.Seq, &c.Edge.Source, &c.Edge.Target, &c.Edge.Weight, &c.Edge.Passive, &deleted, &ts, &c.Writer); err != nil {
			return nil, fmt.Errorf("%w: scan change: %w", ErrStorage, err)
		}
		c.Edge.Deleted = deleted != 0
		c.Edge.UpdatedAt = fromMillis(ts)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: change rows: %w", ErrStorage, err)
	}
	return out, nil
}

func (s *SQLite) LatestSeq(ctx context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var seq int64
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM edge_changes").Scan(&seq); err != nil {
		return 0, fmt.Errorf("%w: latest seq: %w", ErrStorage, err)
	}
	return seq, nil
}

func (s *SQLite) PruneChanges(ctx context.Context, seq int64) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM edge_changes WHERE seq < ?", seq); err != nil {
		return fmt.Errorf("%w: prune changes: %w", ErrStorage, err)
	}
	return nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *SQLite) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrStorage, err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

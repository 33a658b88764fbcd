package repository

import (
	"context"
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "attraction_edges: durable edge rows",
		SQL: `
CREATE TABLE attraction_edges (
    source_id      TEXT NOT NULL,
    target_id      TEXT NOT NULL,
    weight         REAL NOT NULL CHECK (weight >= 0),
    passive_weight REAL NOT NULL DEFAULT 0,
    updated_at     INTEGER NOT NULL,
    writer         TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (source_id, target_id)
);

CREATE INDEX idx_edges_target ON attraction_edges(target_id);
`,
	},
	{
		Version:     2,
		Description: "edge_changes: row-level change feed",
		SQL: `
CREATE TABLE edge_changes (
    seq            INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id      TEXT NOT NULL,
    target_id      TEXT NOT NULL,
    weight         REAL NOT NULL,
    passive_weight REAL NOT NULL,
    deleted        INTEGER NOT NULL DEFAULT 0,
    updated_at     INTEGER NOT NULL,
    writer         TEXT NOT NULL
);

CREATE TRIGGER trg_edges_insert AFTER INSERT ON attraction_edges
BEGIN
    INSERT INTO edge_changes (source_id, target_id, weight, passive_weight, deleted, updated_at, writer)
    VALUES (NEW.source_id, NEW.target_id, NEW.weight, NEW.passive_weight, 0, NEW.updated_at, NEW.writer);
END;

CREATE TRIGGER trg_edges_update AFTER UPDATE ON attraction_edges
WHEN NEW.weight <> OLD.weight OR NEW.passive_weight <> OLD.passive_weight
BEGIN
    INSERT INTO edge_changes (source_id, target_id, weight, passive_weight, deleted, updated_at, writer)
    VALUES (NEW.source_id, NEW.target_id, NEW.weight, NEW.passive_weight, 0, NEW.updated_at, NEW.writer);
END;

CREATE TRIGGER trg_edges_delete AFTER DELETE ON attraction_edges
BEGIN
    INSERT INTO edge_changes (source_id, target_id, weight, passive_weight, deleted, updated_at, writer)
    VALUES (OLD.source_id, OLD.target_id, 0, 0, 1, OLD.updated_at, OLD.writer);
END;
`,
	},
}

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the current schema version.
func (s *SQLite) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

package store

import (
	"database/sql"
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
		Description: "attempts: normalized practice attempts",
		SQL: `
CREATE TABLE attempts (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     TEXT NOT NULL,
    id          TEXT NOT NULL,
    skill       TEXT NOT NULL,
    skill_key   TEXT NOT NULL,
    subject     TEXT NOT NULL CHECK (subject IN ('math', 'verbal')),
    difficulty  TEXT NOT NULL CHECK (difficulty IN ('easy', 'medium', 'hard')),
    correct     INTEGER NOT NULL,
    source      TEXT NOT NULL,
    session_id  TEXT NOT NULL DEFAULT '',
    occurred_at INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL,
    UNIQUE (user_id, id)
);

CREATE INDEX idx_attempts_user_time ON attempts(user_id, occurred_at);
CREATE INDEX idx_attempts_user_skill ON attempts(user_id, skill_key);
`,
	},
	{
		Version:     2,
		Description: "quests: generated quests and their progress",
		SQL: `
CREATE TABLE quests (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL,
    target_skill  TEXT NOT NULL,
    target_count  INTEGER NOT NULL CHECK (target_count > 0),
    difficulty    TEXT NOT NULL,
    type          TEXT NOT NULL CHECK (type IN ('daily', 'weekly')),
    reward_points INTEGER NOT NULL CHECK (reward_points > 0),
    created_at    INTEGER NOT NULL,
    expires_at    INTEGER NOT NULL,
    progress      INTEGER NOT NULL DEFAULT 0,
    counted       TEXT NOT NULL DEFAULT '[]',
    completed     INTEGER NOT NULL DEFAULT 0,
    completed_at  INTEGER,
    reward_issued INTEGER NOT NULL DEFAULT 0,
    retired       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_quests_user ON quests(user_id, retired);
`,
	},
	{
		Version:     3,
		Description: "point_awards: idempotent point ledger",
		SQL: `
CREATE TABLE point_awards (
    user_id    TEXT NOT NULL,
    idem_key   TEXT NOT NULL,
    points     INTEGER NOT NULL,
    awarded_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, idem_key)
);
`,
	},
	{
		Version:     4,
		Description: "snapshots: cached derived state per user",
		SQL: `
CREATE TABLE snapshots (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    TEXT NOT NULL,
    version    INTEGER NOT NULL,
    fetched_at INTEGER NOT NULL,
    data       TEXT NOT NULL
);

CREATE INDEX idx_snapshots_user ON snapshots(user_id, fetched_at DESC);
`,
	},
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
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
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// LatestSchemaVersion is the schema version this build migrates to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].Version
}

// SchemaVersion returns the current schema version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

// Package store persists attempts, quests, point awards, and cached snapshots
// in SQLite, and publishes a change feed for every write.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/harshilgor/testtaker-sub001/internal/eventbus"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// ErrUnavailable classifies failures talking to the database. Callers treat
// it as transient.
var ErrUnavailable = errors.New("durable store unavailable")

// Store holds the ent SQL driver and the change feed.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	changes *eventbus.Hub[Change]
	now     func() time.Time
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection and SQLite allows one writer; a single
	// connection keeps both simple.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{
		db:      db,
		drv:     entsql.OpenDB(dialect.SQLite, db),
		changes: eventbus.NewHub[Change](),
		now:     time.Now,
	}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Reset deletes every row owned by userID.
func (s *Store) Reset(ctx context.Context, userID string) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return unavailable("begin reset", err)
	}
	for _, table := range []string{"attempts", "quests", "point_awards", "snapshots"} {
		q, args := builder().Delete(table).Where(entsql.EQ("user_id", userID)).Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			tx.Rollback()
			return unavailable("reset "+table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit reset", err)
	}
	s.publish(userID, TableAttempts, TableQuests, TablePoints)
	return nil
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func (s *Store) query(ctx context.Context, q string, args []any, scan func(*entsql.Rows) error) error {
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	return scan(&rows)
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. TESTTAKER_DB environment variable
// 2. $XDG_DATA_HOME/testtaker/testtaker.db
// 3. ~/.local/share/testtaker/testtaker.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("TESTTAKER_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "testtaker", "testtaker.db")
	return p, ensureDir(p)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

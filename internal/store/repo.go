package store

import (
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
)

// SnapshotData captures the authoritative inputs to a user's derived state at
// the moment they were fetched.
type SnapshotData struct {
	Events  []attempt.Event `json:"events"`
	Quests  []quest.Quest   `json:"quests"`
	Points  int             `json:"points"`
	Longest int             `json:"longest_streak"`
}

// CachedSnapshot is a persisted copy of a user's last successful refresh,
// served while a fresh one is fetched.
type CachedSnapshot struct {
	ID        int
	UserID    string
	Version   int64
	FetchedAt time.Time
	Data      SnapshotData
}

// DefaultSnapshotKeep is how many cached snapshots are kept per user.
const DefaultSnapshotKeep = 3

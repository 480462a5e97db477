package store

import (
	"context"
	"slices"
	"time"
)

// Table names a change-feed channel.
type Table string

const (
	TableAttempts Table = "attempts"
	TableQuests   Table = "quests"
	TablePoints   Table = "point_awards"
)

// Change is one notification from the change feed.
type Change struct {
	UserID string    `json:"user_id"`
	Table  Table     `json:"table"`
	At     time.Time `json:"at"`
}

// SubscribeChanges streams changes for userID until ctx is done. An empty
// table matches every table.
func (s *Store) SubscribeChanges(ctx context.Context, userID string, table Table) (<-chan Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := s.changes.Subscribe(ctx, 0)
	out := make(chan Change, 1)
	go func() {
		defer close(out)
		for c := range src {
			if c.UserID != userID || (table != "" && c.Table != table) {
				continue
			}
			select {
			case out <- c:
			default:
				// A pending notification already signals the same thing.
			}
		}
	}()
	return out, nil
}

func (s *Store) publish(userID string, tables ...Table) {
	at := s.now()
	for _, t := range slices.Compact(tables) {
		s.changes.Publish(Change{UserID: userID, Table: t, At: at})
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

type snapshotRow struct {
	ID        int    `sql:"id"`
	UserID    string `sql:"user_id"`
	Version   int64  `sql:"version"`
	FetchedAt int64  `sql:"fetched_at"`
	Data      string `sql:"data"`
}

// SaveSnapshot stores a new cached snapshot for userID and prunes all but the
// most recent DefaultSnapshotKeep.
func (s *Store) SaveSnapshot(ctx context.Context, userID string, snap CachedSnapshot) error {
	b, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot data: %w", err)
	}
	q, args := builder().Insert("snapshots").
		Columns("user_id", "version", "fetched_at", "data").
		Values(userID, snap.Version, toMillis(snap.FetchedAt), string(b)).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return unavailable("save snapshot", err)
	}
	return s.PruneSnapshots(ctx, userID, DefaultSnapshotKeep)
}

// LatestSnapshot returns userID's most recent cached snapshot, or nil if none
// exist.
func (s *Store) LatestSnapshot(ctx context.Context, userID string) (*CachedSnapshot, error) {
	q, args := builder().Select("id", "user_id", "version", "fetched_at", "data").
		From(builder().Table("snapshots")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("fetched_at"), entsql.Desc("id")).
		Limit(1).
		Query()

	var rows []snapshotRow
	err := s.query(ctx, q, args, func(r *entsql.Rows) error {
		return entsql.ScanSlice(r, &rows)
	})
	if err != nil {
		return nil, unavailable("query latest snapshot", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	snap := &CachedSnapshot{
		ID:        r.ID,
		UserID:    r.UserID,
		Version:   r.Version,
		FetchedAt: fromMillis(r.FetchedAt),
	}
	if err := json.Unmarshal([]byte(r.Data), &snap.Data); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot data: %w", err)
	}
	return snap, nil
}

// PruneSnapshots deletes all but the keep most recent snapshots of userID.
func (s *Store) PruneSnapshots(ctx context.Context, userID string, keep int) error {
	// Find the id threshold: the newest snapshot past the keep window.
	q, args := builder().Select("id").
		From(builder().Table("snapshots")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("id")).
		Offset(keep).
		Limit(1).
		Query()
	var ids []int
	err := s.query(ctx, q, args, func(r *entsql.Rows) error {
		return entsql.ScanSlice(r, &ids)
	})
	if err != nil {
		return unavailable("query snapshots for prune", err)
	}
	if len(ids) == 0 {
		return nil // fewer than keep snapshots exist
	}

	del, args := builder().Delete("snapshots").
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.LTE("id", ids[0]))).
		Query()
	if err := s.drv.Exec(ctx, del, args, nil); err != nil {
		return unavailable("prune snapshots", err)
	}
	return nil
}

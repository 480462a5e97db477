package store

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
)

// AwardPoints credits points to userID under key. A second award with the
// same key has no effect. When key names one of the user's quests, the quest
// is flagged as rewarded in the same transaction.
func (s *Store) AwardPoints(ctx context.Context, userID string, points int, key string) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return unavailable("begin award", err)
	}
	ins, args := builder().Insert("point_awards").
		Columns("user_id", "idem_key", "points", "awarded_at").
		Values(userID, key, points, toMillis(s.now())).
		OnConflict(entsql.ConflictColumns("user_id", "idem_key"), entsql.DoNothing()).
		Query()
	if err := tx.Exec(ctx, ins, args, nil); err != nil {
		tx.Rollback()
		return unavailable("award points", err)
	}
	upd, args := builder().Update("quests").
		Set("reward_issued", true).
		Where(entsql.And(entsql.EQ("id", key), entsql.EQ("user_id", userID))).
		Query()
	if err := tx.Exec(ctx, upd, args, nil); err != nil {
		tx.Rollback()
		return unavailable("flag quest rewarded", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit award", err)
	}
	s.publish(userID, TablePoints, TableQuests)
	return nil
}

// Points returns userID's total awarded points.
func (s *Store) Points(ctx context.Context, userID string) (int, error) {
	q, args := builder().Select(entsql.As("COALESCE(SUM(points), 0)", "total")).
		From(builder().Table("point_awards")).
		Where(entsql.EQ("user_id", userID)).
		Query()
	var total int
	err := s.query(ctx, q, args, func(r *entsql.Rows) error {
		var err error
		total, err = entsql.ScanInt(r)
		return err
	})
	if err != nil {
		return 0, unavailable("sum points", err)
	}
	return total, nil
}

// Awarded reports whether key has already been credited to userID.
func (s *Store) Awarded(ctx context.Context, userID, key string) (bool, error) {
	q, args := builder().Select(entsql.Count("*")).
		From(builder().Table("point_awards")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("idem_key", key))).
		Query()
	var n int
	err := s.query(ctx, q, args, func(r *entsql.Rows) error {
		var err error
		n, err = entsql.ScanInt(r)
		return err
	})
	if err != nil {
		return false, unavailable("check award", err)
	}
	return n > 0, nil
}

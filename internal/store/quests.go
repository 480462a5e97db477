package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
)

type questRow struct {
	ID           string `sql:"id"`
	Title        string `sql:"title"`
	Description  string `sql:"description"`
	TargetSkill  string `sql:"target_skill"`
	TargetCount  int    `sql:"target_count"`
	Difficulty   string `sql:"difficulty"`
	Type         string `sql:"type"`
	RewardPoints int    `sql:"reward_points"`
	CreatedAt    int64  `sql:"created_at"`
	ExpiresAt    int64  `sql:"expires_at"`
	Progress     int    `sql:"progress"`
	Counted      string `sql:"counted"`
	Completed    bool   `sql:"completed"`
	CompletedAt  *int64 `sql:"completed_at"`
	RewardIssued bool   `sql:"reward_issued"`
}

var questColumns = []string{
	"id", "title", "description", "target_skill", "target_count", "difficulty", "type",
	"reward_points", "created_at", "expires_at", "progress", "counted", "completed",
	"completed_at", "reward_issued",
}

func (r questRow) quest() (quest.Quest, error) {
	q := quest.Quest{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		TargetSkill:  r.TargetSkill,
		TargetCount:  r.TargetCount,
		Difficulty:   attempt.Difficulty(r.Difficulty),
		Type:         quest.Type(r.Type),
		RewardPoints: r.RewardPoints,
		CreatedAt:    fromMillis(r.CreatedAt),
		ExpiresAt:    fromMillis(r.ExpiresAt),
		Progress:     r.Progress,
		Completed:    r.Completed,
		RewardIssued: r.RewardIssued,
	}
	if r.Counted != "" {
		if err := json.Unmarshal([]byte(r.Counted), &q.Counted); err != nil {
			return quest.Quest{}, fmt.Errorf("decode counted for quest %s: %w", r.ID, err)
		}
	}
	if r.CompletedAt != nil {
		t := fromMillis(*r.CompletedAt)
		q.CompletedAt = &t
	}
	return q, nil
}

func encodeCounted(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

// FetchActiveQuests returns userID's quests that have not been retired,
// oldest first. Completed quests are included until retired.
func (s *Store) FetchActiveQuests(ctx context.Context, userID string) ([]quest.Quest, error) {
	q, args := builder().Select(questColumns...).
		From(builder().Table("quests")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("retired", false))).
		OrderBy("created_at", "id").
		Query()

	var rows []questRow
	err := s.query(ctx, q, args, func(r *entsql.Rows) error {
		return entsql.ScanSlice(r, &rows)
	})
	if err != nil {
		return nil, unavailable("fetch quests", err)
	}
	out := make([]quest.Quest, 0, len(rows))
	for _, r := range rows {
		qq, err := r.quest()
		if err != nil {
			return nil, err
		}
		out = append(out, qq)
	}
	return out, nil
}

// UpsertQuests inserts quests or refreshes their definitions. Progress and
// completion only move forward: a stale write never lowers progress or
// clears a completion.
func (s *Store) UpsertQuests(ctx context.Context, userID string, qs []quest.Quest) error {
	if len(qs) == 0 {
		return nil
	}
	ins := builder().Insert("quests").
		Columns("id", "user_id", "title", "description", "target_skill", "target_count",
			"difficulty", "type", "reward_points", "created_at", "expires_at", "progress",
			"counted", "completed", "completed_at", "reward_issued")
	for _, q := range qs {
		counted, err := encodeCounted(q.Counted)
		if err != nil {
			return fmt.Errorf("encode counted for quest %s: %w", q.ID, err)
		}
		var completedAt any
		if q.CompletedAt != nil {
			completedAt = toMillis(*q.CompletedAt)
		}
		ins.Values(q.ID, userID, q.Title, q.Description, q.TargetSkill, q.TargetCount,
			string(q.Difficulty), string(q.Type), q.RewardPoints, toMillis(q.CreatedAt),
			toMillis(q.ExpiresAt), q.Progress, counted, q.Completed, completedAt, q.RewardIssued)
	}
	ins.OnConflict(
		entsql.ConflictColumns("id"),
		entsql.ResolveWith(func(u *entsql.UpdateSet) {
			for _, c := range []string{"title", "description", "target_skill", "target_count",
				"difficulty", "type", "reward_points", "created_at", "expires_at"} {
				u.SetExcluded(c)
			}
			u.Set("counted", entsql.Expr("CASE WHEN excluded.progress > quests.progress THEN excluded.counted ELSE quests.counted END"))
			u.Set("progress", entsql.Expr("MAX(quests.progress, excluded.progress)"))
			u.Set("completed", entsql.Expr("MAX(quests.completed, excluded.completed)"))
			u.Set("completed_at", entsql.Expr("COALESCE(quests.completed_at, excluded.completed_at)"))
			u.Set("reward_issued", entsql.Expr("MAX(quests.reward_issued, excluded.reward_issued)"))
		}),
	)
	q, args := ins.Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return unavailable("upsert quests", err)
	}
	s.publish(userID, TableQuests)
	return nil
}

// RetireQuests hides quests from FetchActiveQuests. Unknown ids are ignored.
func (s *Store) RetireQuests(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	q, args := builder().Update("quests").
		Set("retired", true).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.In("id", vals...))).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return unavailable("retire quests", err)
	}
	s.publish(userID, TableQuests)
	return nil
}

// UpdateQuestProgress records progress and the counted event ids for a quest.
// Lower progress than what is stored is ignored.
func (s *Store) UpdateQuestProgress(ctx context.Context, questID string, progress int, counted []string) error {
	enc, err := encodeCounted(counted)
	if err != nil {
		return fmt.Errorf("encode counted for quest %s: %w", questID, err)
	}
	q, args := builder().Update("quests").
		Set("progress", progress).
		Set("counted", enc).
		Where(entsql.And(entsql.EQ("id", questID), entsql.LT("progress", progress))).
		Query()
	var res sql.Result
	if err := s.drv.Exec(ctx, q, args, &res); err != nil {
		return unavailable("update quest progress", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.publishQuestOwner(ctx, questID, TableQuests)
	}
	return nil
}

// MarkQuestCompleted sets the completion flag. Marking an already-completed
// quest keeps the first completion time and succeeds. Unknown quests return
// quest.ErrQuestNotFound.
func (s *Store) MarkQuestCompleted(ctx context.Context, questID string, at time.Time) error {
	q, args := builder().Update("quests").
		Set("completed", true).
		Set("completed_at", toMillis(at)).
		Where(entsql.And(entsql.EQ("id", questID), entsql.EQ("completed", false))).
		Query()
	var res sql.Result
	if err := s.drv.Exec(ctx, q, args, &res); err != nil {
		return unavailable("mark quest completed", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.publishQuestOwner(ctx, questID, TableQuests)
		return nil
	}
	if _, err := s.questOwner(ctx, questID); err != nil {
		return err
	}
	return nil
}

func (s *Store) questOwner(ctx context.Context, questID string) (string, error) {
	q, args := builder().Select("user_id").
		From(builder().Table("quests")).
		Where(entsql.EQ("id", questID)).
		Query()
	var owners []string
	err := s.query(ctx, q, args, func(r *entsql.Rows) error {
		return entsql.ScanSlice(r, &owners)
	})
	if err != nil {
		return "", unavailable("lookup quest", err)
	}
	if len(owners) == 0 {
		return "", fmt.Errorf("quest %s: %w", questID, quest.ErrQuestNotFound)
	}
	return owners[0], nil
}

func (s *Store) publishQuestOwner(ctx context.Context, questID string, tables ...Table) {
	if owner, err := s.questOwner(ctx, questID); err == nil {
		s.publish(owner, tables...)
	}
}

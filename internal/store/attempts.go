package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

// insertBatch keeps multi-row inserts under SQLite's bound-variable limit.
const insertBatch = 200

type attemptRow struct {
	ID         string `sql:"id"`
	Skill      string `sql:"skill"`
	Subject    string `sql:"subject"`
	Difficulty string `sql:"difficulty"`
	Correct    bool   `sql:"correct"`
	Source     string `sql:"source"`
	SessionID  string `sql:"session_id"`
	OccurredAt int64  `sql:"occurred_at"`
}

var attemptColumns = []string{"id", "skill", "subject", "difficulty", "correct", "source", "session_id", "occurred_at"}

func (r attemptRow) event() attempt.Event {
	return attempt.Event{
		ID:         r.ID,
		Skill:      r.Skill,
		Subject:    skills.Subject(r.Subject),
		Difficulty: attempt.Difficulty(r.Difficulty),
		Correct:    r.Correct,
		OccurredAt: fromMillis(r.OccurredAt),
		Source:     attempt.Source(r.Source),
		SessionID:  r.SessionID,
	}
}

// AppendAttempts stores events for userID. Events already stored under the
// same id are ignored, so replays are harmless.
func (s *Store) AppendAttempts(ctx context.Context, userID string, events []attempt.Event) error {
	if len(events) == 0 {
		return nil
	}
	recorded := toMillis(s.now())
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return unavailable("begin append attempts", err)
	}
	for start := 0; start < len(events); start += insertBatch {
		end := min(start+insertBatch, len(events))
		ins := builder().Insert("attempts").
			Columns("user_id", "id", "skill", "skill_key", "subject", "difficulty",
				"correct", "source", "session_id", "occurred_at", "recorded_at")
		for _, e := range events[start:end] {
			ins.Values(userID, e.ID, e.Skill, e.SkillKey(), string(e.Subject), string(e.Difficulty),
				e.Correct, string(e.Source), e.SessionID, toMillis(e.OccurredAt), recorded)
		}
		ins.OnConflict(entsql.ConflictColumns("user_id", "id"), entsql.DoNothing())
		q, args := ins.Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			tx.Rollback()
			return unavailable("append attempts", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit attempts", err)
	}
	s.publish(userID, TableAttempts)
	return nil
}

// FetchEventsSince returns userID's events that occurred at or after since,
// oldest first. A zero since returns the full history.
func (s *Store) FetchEventsSince(ctx context.Context, userID string, since time.Time) ([]attempt.Event, error) {
	pred := entsql.EQ("user_id", userID)
	if !since.IsZero() {
		pred = entsql.And(pred, entsql.GTE("occurred_at", toMillis(since)))
	}
	q, args := builder().Select(attemptColumns...).
		From(builder().Table("attempts")).
		Where(pred).
		OrderBy("occurred_at", "seq").
		Query()

	var rows []attemptRow
	err := s.query(ctx, q, args, func(r *entsql.Rows) error {
		return entsql.ScanSlice(r, &rows)
	})
	if err != nil {
		return nil, unavailable("fetch events", err)
	}
	events := make([]attempt.Event, len(rows))
	for i, r := range rows {
		events[i] = r.event()
	}
	return events, nil
}

// CountAttempts returns how many attempts userID has stored.
func (s *Store) CountAttempts(ctx context.Context, userID string) (int, error) {
	q, args := builder().Select(entsql.Count("*")).
		From(builder().Table("attempts")).
		Where(entsql.EQ("user_id", userID)).
		Query()
	var n int
	err := s.query(ctx, q, args, func(r *entsql.Rows) error {
		var err error
		n, err = entsql.ScanInt(r)
		return err
	})
	if err != nil {
		return 0, unavailable(fmt.Sprintf("count attempts for %s", userID), err)
	}
	return n, nil
}

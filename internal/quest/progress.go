package quest

import (
	"slices"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

// Apply advances q by one if e counts toward it. An event counts when the
// quest is not completed and below target, the event is correct, at or above
// the difficulty floor, matches the target skill, falls inside
// [CreatedAt, ExpiresAt], and has not been counted before. Re-applying an
// event is a no-op.
func Apply(q Quest, e attempt.Event) (Quest, bool) {
	if q.Completed || q.Progress >= q.TargetCount || !e.Correct {
		return q, false
	}
	if !e.Difficulty.AtLeast(q.Difficulty) || !skills.Match(q.TargetSkill, e.Skill) {
		return q, false
	}
	if e.OccurredAt.Before(q.CreatedAt) || e.OccurredAt.After(q.ExpiresAt) {
		return q, false
	}
	if slices.Contains(q.Counted, e.ID) {
		return q, false
	}
	next := q.Clone()
	next.Progress++
	next.Counted = append(next.Counted, e.ID)
	return next, true
}

// ApplyAll folds events into every quest and returns the updated list plus the
// ids of quests whose progress changed. qs is not modified.
func ApplyAll(qs []Quest, events []attempt.Event) ([]Quest, []string) {
	out := CloneAll(qs)
	var changed []string
	for i := range out {
		moved := false
		for _, e := range events {
			var ok bool
			if out[i], ok = Apply(out[i], e); ok {
				moved = true
			}
		}
		if moved {
			changed = append(changed, out[i].ID)
		}
	}
	return out, changed
}

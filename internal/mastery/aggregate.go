package mastery

import (
	"sort"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

// Fold aggregates events into per-skill states keyed by canonical skill key.
// The result is independent of event order.
func Fold(events []attempt.Event) map[string]SkillState {
	return FoldInto(nil, events)
}

// FoldInto returns a copy of states with events folded in. states is not modified.
func FoldInto(states map[string]SkillState, events []attempt.Event) map[string]SkillState {
	out := make(map[string]SkillState, len(states)+len(events))
	for k, v := range states {
		out[k] = v
	}
	for _, e := range events {
		key := e.SkillKey()
		if key == "" {
			continue
		}
		out[key] = out[key].Apply(e)
	}
	return out
}

// Snapshot returns the read view of every skill at now, sorted by label.
func Snapshot(states map[string]SkillState, now time.Time) []SkillMasteryState {
	views := make([]SkillMasteryState, 0, len(states))
	for _, s := range states {
		views = append(views, s.View(now))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Skill != views[j].Skill {
			return views[i].Skill < views[j].Skill
		}
		return views[i].Subject < views[j].Subject
	})
	return views
}

// SkillStat is the per-skill accuracy summary used by quest generation.
type SkillStat struct {
	Skill    string
	Subject  skills.Subject
	Attempts int
	Correct  int
	Tier     Tier
}

// Accuracy returns correct/attempts, or 0 with no attempts.
func (s SkillStat) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

// Stats summarizes every skill at now, sorted by label.
func Stats(states map[string]SkillState, now time.Time) []SkillStat {
	views := Snapshot(states, now)
	stats := make([]SkillStat, len(views))
	for i, v := range views {
		stats[i] = SkillStat{
			Skill:    v.Skill,
			Subject:  v.Subject,
			Attempts: v.Attempts,
			Correct:  v.Correct,
			Tier:     v.Tier,
		}
	}
	return stats
}

package mastery

import (
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

// SkillState is the folded, undecayed state for one skill.
type SkillState struct {
	Key            string         `json:"key"`
	Skill          string         `json:"skill"`
	Subject        skills.Subject `json:"subject"`
	RawXP          int            `json:"raw_xp"`
	Attempts       int            `json:"attempts"`
	Correct        int            `json:"correct"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

// Apply returns a new state with e folded in. The label and subject follow the
// latest event, ties broken by the smaller label, so the result does not
// depend on fold order.
func (s SkillState) Apply(e attempt.Event) SkillState {
	next := s
	if next.Key == "" {
		next.Key = e.SkillKey()
	}
	next.RawXP += XPFor(e.Difficulty, e.Correct)
	next.Attempts++
	if e.Correct {
		next.Correct++
	}

	switch {
	case next.Skill == "" || e.OccurredAt.After(next.LastActivityAt):
		next.Skill = e.Skill
		next.Subject = e.Subject
		next.LastActivityAt = e.OccurredAt
	case e.OccurredAt.Equal(next.LastActivityAt) && e.Skill < next.Skill:
		next.Skill = e.Skill
		next.Subject = e.Subject
	}
	return next
}

// Accuracy returns correct/attempts, or 0 with no attempts.
func (s SkillState) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

// SkillMasteryState is the read view of one skill at a point in time.
type SkillMasteryState struct {
	Skill          string         `json:"skill"`
	Subject        skills.Subject `json:"subject"`
	RawXP          int            `json:"raw_xp"`
	DecayedXP      int            `json:"decayed_xp"`
	DisplayXP      int            `json:"display_xp"`
	LastActivityAt *time.Time     `json:"last_activity_at"`
	Tier           Tier           `json:"tier"`
	Attempts       int            `json:"attempts"`
	Correct        int            `json:"correct"`
}

// View computes the decayed read view at now.
func (s SkillState) View(now time.Time) SkillMasteryState {
	decayed := Decay(s.RawXP, s.LastActivityAt, now)
	v := SkillMasteryState{
		Skill:     s.Skill,
		Subject:   s.Subject,
		RawXP:     s.RawXP,
		DecayedXP: decayed,
		DisplayXP: max(0, decayed),
		Tier:      TierFor(decayed),
		Attempts:  s.Attempts,
		Correct:   s.Correct,
	}
	if !s.LastActivityAt.IsZero() {
		t := s.LastActivityAt
		v.LastActivityAt = &t
	}
	return v
}

package mastery

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

func ev(id, skill string, d attempt.Difficulty, correct bool, at time.Time) attempt.Event {
	return attempt.Event{
		ID:         id,
		Skill:      skill,
		Subject:    skills.SubjectFor(skill),
		Difficulty: d,
		Correct:    correct,
		OccurredAt: at,
		Source:     attempt.SourceDrill,
	}
}

func viewFor(t *testing.T, views []SkillMasteryState, skill string) SkillMasteryState {
	t.Helper()
	for _, v := range views {
		if v.Skill == skill {
			return v
		}
	}
	t.Fatalf("skill %q not in snapshot", skill)
	return SkillMasteryState{}
}

func TestFold_OrderIndependent(t *testing.T) {
	labels := []string{"Algebra", "algebra", "Geometry", "Vocabulary", "Reading Comprehension"}
	diffs := attempt.AllDifficulties()
	var events []attempt.Event
	for i := range 200 {
		events = append(events, ev(
			fmt.Sprintf("e%d", i),
			labels[i%len(labels)],
			diffs[i%len(diffs)],
			i%3 != 0,
			t0.Add(time.Duration(i%17)*time.Hour),
		))
	}
	want := Fold(events)

	rng := rand.New(rand.NewPCG(7, 11))
	for range 25 {
		shuffled := append([]attempt.Event(nil), events...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, Fold(shuffled))
	}
}

func TestFold_CaseVariantsShareSkill(t *testing.T) {
	states := Fold([]attempt.Event{
		ev("1", "Algebra", attempt.DifficultyEasy, true, t0),
		ev("2", "ALGEBRA", attempt.DifficultyEasy, true, t0.Add(time.Hour)),
	})
	require.Len(t, states, 1)
	s := states["algebra"]
	assert.Equal(t, 20, s.RawXP)
	assert.Equal(t, "ALGEBRA", s.Skill, "label follows the latest event")
}

func TestFold_NonLatinSkillsStaySeparate(t *testing.T) {
	states := Fold([]attempt.Event{
		ev("1", "代数 1", attempt.DifficultyEasy, true, t0),
		ev("2", "物理 1", attempt.DifficultyHard, true, t0.Add(time.Hour)),
	})
	require.Len(t, states, 2)
	assert.Equal(t, 10, states["代数-1"].RawXP)
	assert.Equal(t, "物理 1", states["物理-1"].Skill)
}

func TestFold_NegativeRawXPClampsOnDisplayOnly(t *testing.T) {
	states := Fold([]attempt.Event{
		ev("1", "Geometry", attempt.DifficultyEasy, false, t0),
		ev("2", "Geometry", attempt.DifficultyEasy, false, t0),
		ev("3", "Geometry", attempt.DifficultyEasy, true, t0),
	})
	v := states["geometry"].View(t0)
	assert.Equal(t, -20, v.RawXP)
	assert.Equal(t, -20, v.DecayedXP)
	assert.Equal(t, 0, v.DisplayXP)
	assert.Equal(t, TierNovice, v.Tier)
	assert.Equal(t, 3, v.Attempts)
	assert.Equal(t, 1, v.Correct)
}

func TestFoldInto_DoesNotMutateInput(t *testing.T) {
	base := Fold([]attempt.Event{ev("1", "Algebra", attempt.DifficultyHard, true, t0)})
	next := FoldInto(base, []attempt.Event{ev("2", "Algebra", attempt.DifficultyHard, true, t0)})
	assert.Equal(t, 50, base["algebra"].RawXP)
	assert.Equal(t, 100, next["algebra"].RawXP)
}

func TestScenario_NoviceToGodNeverDecays(t *testing.T) {
	var events []attempt.Event
	for i := range 3 {
		events = append(events, ev(fmt.Sprintf("easy-%d", i), "Algebra", attempt.DifficultyEasy, true, t0))
	}
	v := viewFor(t, Snapshot(Fold(events), t0), "Algebra")
	assert.Equal(t, 30, v.RawXP)
	assert.Equal(t, TierNovice, v.Tier)

	last := t0
	for i := range 97 {
		last = t0.Add(time.Duration(i+1) * time.Minute)
		events = append(events, ev(fmt.Sprintf("med-%d", i), "Algebra", attempt.DifficultyMedium, true, last))
	}
	states := Fold(events)
	v = viewFor(t, Snapshot(states, last), "Algebra")
	assert.Equal(t, 2455, v.RawXP)
	assert.Equal(t, TierGod, v.Tier)

	later := last.Add(30 * 24 * time.Hour)
	v = viewFor(t, Snapshot(states, later), "Algebra")
	assert.Equal(t, 2455, v.DecayedXP)
	assert.Equal(t, TierGod, v.Tier)
}

func TestScenario_ProDecaysButKeepsTier(t *testing.T) {
	var events []attempt.Event
	for i := range 48 {
		events = append(events, ev(fmt.Sprintf("m-%d", i), "Geometry", attempt.DifficultyMedium, true, t0))
	}
	states := Fold(events)
	require.Equal(t, 1200, states["geometry"].RawXP)

	v := viewFor(t, Snapshot(states, daysLater(20)), "Geometry")
	assert.Equal(t, 1200, v.RawXP)
	assert.Equal(t, 1170, v.DecayedXP)
	assert.Equal(t, TierPro, v.Tier)
	require.NotNil(t, v.LastActivityAt)
	assert.True(t, v.LastActivityAt.Equal(t0))
}

func TestStats(t *testing.T) {
	states := Fold([]attempt.Event{
		ev("1", "Algebra", attempt.DifficultyEasy, true, t0),
		ev("2", "Algebra", attempt.DifficultyEasy, false, t0),
		ev("3", "Vocabulary", attempt.DifficultyEasy, true, t0),
	})
	stats := Stats(states, t0)
	require.Len(t, stats, 2)
	assert.Equal(t, "Algebra", stats[0].Skill)
	assert.InDelta(t, 0.5, stats[0].Accuracy(), 1e-9)
	assert.Equal(t, skills.SubjectVerbal, stats[1].Subject)
	assert.InDelta(t, 1.0, stats[1].Accuracy(), 1e-9)
}

package quest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
)

func algebraQuest() Quest {
	return Quest{
		ID:          "q1",
		TargetSkill: "Algebra",
		TargetCount: 2,
		Difficulty:  attempt.DifficultyMedium,
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
}

func event(id, skill string, d attempt.Difficulty, correct bool, at time.Time) attempt.Event {
	return attempt.Event{ID: id, Skill: skill, Difficulty: d, Correct: correct, OccurredAt: at}
}

func TestApply(t *testing.T) {
	in := now.Add(time.Hour)
	tests := []struct {
		name  string
		event attempt.Event
		want  bool
	}{
		{"counts", event("e1", "Algebra", attempt.DifficultyMedium, true, in), true},
		{"harder counts", event("e1", "algebra", attempt.DifficultyHard, true, in), true},
		{"heuristic match", event("e1", "Algebra Word Problems", attempt.DifficultyMedium, true, in), true},
		{"incorrect", event("e1", "Algebra", attempt.DifficultyMedium, false, in), false},
		{"below floor", event("e1", "Algebra", attempt.DifficultyEasy, true, in), false},
		{"other skill", event("e1", "Geometry", attempt.DifficultyHard, true, in), false},
		{"before creation", event("e1", "Algebra", attempt.DifficultyHard, true, now.Add(-time.Minute)), false},
		{"after expiry", event("e1", "Algebra", attempt.DifficultyHard, true, now.Add(25*time.Hour)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := Apply(algebraQuest(), tt.event)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, 1, q.Progress)
				assert.Equal(t, []string{"e1"}, q.Counted)
			} else {
				assert.Equal(t, 0, q.Progress)
			}
		})
	}
}

func TestApply_IdempotentAndCapped(t *testing.T) {
	in := now.Add(time.Hour)
	q := algebraQuest()
	e1 := event("e1", "Algebra", attempt.DifficultyMedium, true, in)

	q, ok := Apply(q, e1)
	require.True(t, ok)
	q, ok = Apply(q, e1)
	assert.False(t, ok, "same event twice is a no-op")
	assert.Equal(t, 1, q.Progress)

	q, _ = Apply(q, event("e2", "Algebra", attempt.DifficultyMedium, true, in))
	q, ok = Apply(q, event("e3", "Algebra", attempt.DifficultyMedium, true, in))
	assert.False(t, ok)
	assert.Equal(t, 2, q.Progress)
	assert.Equal(t, StatusCompletable, q.Status(in))
}

func TestApplyAll_DoesNotMutateInput(t *testing.T) {
	in := now.Add(time.Hour)
	qs := []Quest{algebraQuest(), {ID: "q2", TargetSkill: "Geometry", TargetCount: 1, CreatedAt: now, ExpiresAt: in.Add(time.Hour)}}
	out, changed := ApplyAll(qs, []attempt.Event{
		event("e1", "Algebra", attempt.DifficultyHard, true, in),
		event("e2", "Algebra", attempt.DifficultyHard, true, in),
	})
	assert.Equal(t, []string{"q1"}, changed)
	assert.Equal(t, 2, out[0].Progress)
	assert.Equal(t, 0, qs[0].Progress)
	assert.Nil(t, qs[0].Counted)
}

func TestStatus(t *testing.T) {
	q := algebraQuest()
	assert.Equal(t, StatusActive, q.Status(now))
	q.Progress = 2
	assert.Equal(t, StatusCompletable, q.Status(now))
	assert.Equal(t, StatusExpired, q.Status(now.Add(48*time.Hour)))
	q.Completed = true
	assert.Equal(t, StatusCompleted, q.Status(now.Add(48*time.Hour)))
}

func TestVisible(t *testing.T) {
	old := now.Add(-48 * time.Hour)
	qs := []Quest{
		algebraQuest(),
		{ID: "old", Completed: true, CompletedAt: &old},
		{ID: "gone", TargetCount: 1, ExpiresAt: now.Add(-time.Second)},
	}
	vis := Visible(qs, now, 24*time.Hour)
	require.Len(t, vis, 1)
	assert.Equal(t, "q1", vis[0].ID)
}

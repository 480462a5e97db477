package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harshilgor/testtaker-sub001/internal/mastery"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/reconcile"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
	"github.com/harshilgor/testtaker-sub001/internal/streak"
)

var now = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		pct    float64
		filled int
	}{
		{0, 0},
		{0.5, 6},
		{1, 12},
		{1.7, 12},
		{-1, 0},
	}
	for _, tt := range tests {
		bar := ProgressBar(tt.pct, BarWidth)
		assert.Equal(t, tt.filled, strings.Count(bar, "█"), "pct %v", tt.pct)
		assert.Equal(t, BarWidth-tt.filled, strings.Count(bar, "░"), "pct %v", tt.pct)
	}
}

func TestUntil(t *testing.T) {
	assert.Equal(t, "expired", Until(now.Add(-time.Second), now))
	assert.Equal(t, "30m", Until(now.Add(30*time.Minute), now))
	assert.Equal(t, "13h", Until(now.Add(13*time.Hour+59*time.Minute), now))
	assert.Equal(t, "7d", Until(now.Add(7*24*time.Hour), now))
}

func TestSnapshot(t *testing.T) {
	last := now.Add(-time.Hour)
	s := reconcile.Snapshot{
		UserID:   "u1",
		Points:   150,
		Degraded: true,
		Pending:  2,
		Mastery: []mastery.SkillMasteryState{{
			Skill: "Algebra", Subject: skills.SubjectMath, RawXP: 1200, DecayedXP: 1200, DisplayXP: 1200,
			Tier: mastery.TierPro, Attempts: 4, Correct: 3, LastActivityAt: &last,
		}},
		Streak: streak.State{Current: 2, Longest: 5},
		Quests: []quest.Quest{{
			ID: "0123456789abcdef", Title: "Practice Algebra", TargetSkill: "Algebra",
			TargetCount: 3, Progress: 1, RewardPoints: 20, CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(5 * time.Hour),
		}},
	}

	var buf bytes.Buffer
	Snapshot(&buf, s, now)
	out := buf.String()

	for _, want := range []string{"u1", "150 points", "offline", "2 pending", "2 days", "longest 5",
		"Algebra", "1200", "pro", "75%", "Practice Algebra", "1/3", "5h", "01234567", "active"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "0123456789abcdef")
}

func TestEmptySections(t *testing.T) {
	var buf bytes.Buffer
	Mastery(&buf, nil)
	Quests(&buf, nil, now)
	Streak(&buf, streak.State{Current: 1, Longest: 1})

	out := buf.String()
	assert.Contains(t, out, "No practice recorded yet.")
	assert.Contains(t, out, "No quests.")
	assert.Contains(t, out, "1 day")
	assert.NotContains(t, out, "1 days")
}

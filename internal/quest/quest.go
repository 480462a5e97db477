// Package quest generates skill-targeted quests from weak-skill analysis,
// advances their progress from attempt events, and drives claims to an
// exactly-once reward.
package quest

import (
	"slices"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
)

// Type is the cadence of a quest.
type Type string

const (
	TypeDaily  Type = "daily"
	TypeWeekly Type = "weekly"
)

// Status is the derived lifecycle state of a quest.
type Status string

const (
	StatusActive      Status = "active"
	StatusCompletable Status = "completable"
	StatusCompleted   Status = "completed"
	StatusExpired     Status = "expired"
)

// Quest is a goal-directed, expiring progress tracker with a one-time reward.
type Quest struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	TargetSkill  string             `json:"target_skill"`
	TargetCount  int                `json:"target_count"`
	Difficulty   attempt.Difficulty `json:"difficulty"`
	Type         Type               `json:"type"`
	RewardPoints int                `json:"reward_points"`
	CreatedAt    time.Time          `json:"created_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
	Progress     int                `json:"progress"`
	Counted      []string           `json:"counted,omitempty"`
	Completed    bool               `json:"completed"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	RewardIssued bool               `json:"reward_issued"`
}

// Status derives the lifecycle state at now. Expiry wins over completable:
// a quest that reached its target but was never claimed before ExpiresAt
// can no longer be claimed.
func (q Quest) Status(now time.Time) Status {
	switch {
	case q.Completed:
		return StatusCompleted
	case now.After(q.ExpiresAt):
		return StatusExpired
	case q.Progress >= q.TargetCount:
		return StatusCompletable
	default:
		return StatusActive
	}
}

// Open reports whether the quest is still active or completable at now.
func (q Quest) Open(now time.Time) bool {
	s := q.Status(now)
	return s == StatusActive || s == StatusCompletable
}

// ProgressPct returns progress as a percentage of the target, capped at 100.
func (q Quest) ProgressPct() float64 {
	if q.TargetCount <= 0 {
		return 100
	}
	return min(100, float64(q.Progress)/float64(q.TargetCount)*100)
}

// Clone returns a deep copy.
func (q Quest) Clone() Quest {
	c := q
	c.Counted = slices.Clone(q.Counted)
	if q.CompletedAt != nil {
		t := *q.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// CloneAll deep-copies a slice of quests.
func CloneAll(qs []Quest) []Quest {
	if qs == nil {
		return nil
	}
	out := make([]Quest, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}

// Find returns the quest with id, if present.
func Find(qs []Quest, id string) (Quest, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return Quest{}, false
}

// Replace returns a copy of qs with the quest matching q.ID swapped for q.
func Replace(qs []Quest, q Quest) []Quest {
	out := slices.Clone(qs)
	for i := range out {
		if out[i].ID == q.ID {
			out[i] = q
		}
	}
	return out
}

// Visible returns the quests worth showing at now: open quests plus completed
// quests still inside the retention window, in their existing order.
func Visible(qs []Quest, now time.Time, retention time.Duration) []Quest {
	out := make([]Quest, 0, len(qs))
	for _, q := range qs {
		if q.Open(now) || withinRetention(q, now, retention) {
			out = append(out, q)
		}
	}
	return out
}

func withinRetention(q Quest, now time.Time, retention time.Duration) bool {
	if !q.Completed {
		return false
	}
	if q.CompletedAt == nil {
		return true
	}
	return now.Sub(*q.CompletedAt) <= retention
}

// Package attempt defines the canonical practice-attempt event and the
// normalizer that produces it from heterogeneous raw records.
package attempt

import (
	"strings"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

// Difficulty is the difficulty band of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// AllDifficulties returns all difficulties from easiest to hardest.
func AllDifficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// Rank orders difficulties: easy=0, medium=1, hard=2. Unknown values rank as medium.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyHard:
		return 2
	default:
		return 1
	}
}

// AtLeast reports whether d is as hard as floor or harder.
func (d Difficulty) AtLeast(floor Difficulty) bool {
	return d.Rank() >= floor.Rank()
}

// ParseDifficulty maps a free-form label to a Difficulty.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "e", "1":
		return DifficultyEasy, true
	case "medium", "med", "m", "2":
		return DifficultyMedium, true
	case "hard", "h", "3":
		return DifficultyHard, true
	}
	return "", false
}

// Source is the kind of practice session an attempt came from.
type Source string

const (
	SourceQuiz     Source = "quiz"
	SourceMarathon Source = "marathon"
	SourceMockTest Source = "mockTest"
	SourceDrill    Source = "drill"
)

// ParseSource maps origin labels to a Source. Unknown or empty labels are drills.
func ParseSource(s string) Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiz":
		return SourceQuiz
	case "marathon", "timed", "timed-session", "timed_session":
		return SourceMarathon
	case "mocktest", "mock", "mock-test", "mock_test", "mock-exam", "mock_exam":
		return SourceMockTest
	default:
		return SourceDrill
	}
}

// Event is one normalized practice attempt. Events are immutable.
type Event struct {
	ID         string         `json:"id"`
	Skill      string         `json:"skill"`
	Subject    skills.Subject `json:"subject"`
	Difficulty Difficulty     `json:"difficulty"`
	Correct    bool           `json:"correct"`
	OccurredAt time.Time      `json:"occurred_at"`
	Source     Source         `json:"source"`
	SessionID  string         `json:"session_id,omitempty"`
}

// SkillKey returns the canonical key of the event's skill.
func (e Event) SkillKey() string {
	return skills.Key(e.Skill)
}

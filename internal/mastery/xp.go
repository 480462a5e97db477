// Package mastery folds attempt events into per-skill experience, applies
// read-time decay, and maps experience to tiers.
package mastery

import "github.com/harshilgor/testtaker-sub001/internal/attempt"

const (
	// WrongAnswerXP is applied for every incorrect attempt regardless of difficulty.
	WrongAnswerXP = -15
)

// correctXP is the experience granted for a correct answer by difficulty.
var correctXP = map[attempt.Difficulty]int{
	attempt.DifficultyEasy:   10,
	attempt.DifficultyMedium: 25,
	attempt.DifficultyHard:   50,
}

// XPFor returns the experience delta for one attempt.
func XPFor(d attempt.Difficulty, correct bool) int {
	if !correct {
		return WrongAnswerXP
	}
	if xp, ok := correctXP[d]; ok {
		return xp
	}
	return correctXP[attempt.DifficultyMedium]
}

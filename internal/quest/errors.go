package quest

import (
	"errors"
	"fmt"
)

var (
	// ErrQuestNotFound is returned when a claim names an unknown quest.
	ErrQuestNotFound = errors.New("quest not found")
	// ErrNotCompletable is returned when a claim targets a quest whose progress
	// has not reached its target.
	ErrNotCompletable = errors.New("quest not completable")
	// ErrQuestExpired is returned when a claim targets an expired quest.
	ErrQuestExpired = errors.New("quest expired")
)

// ErrPartialCompletion reports that the completion flag and the point award
// did not both land. Completed and Awarded name the halves that did; only the
// remaining half should be retried, with the same idempotency key.
type ErrPartialCompletion struct {
	QuestID   string
	Completed bool
	Awarded   bool
	Err       error
}

func (e *ErrPartialCompletion) Error() string {
	return fmt.Sprintf("quest %s partially completed (completed=%t awarded=%t): %v",
		e.QuestID, e.Completed, e.Awarded, e.Err)
}

func (e *ErrPartialCompletion) Unwrap() error {
	return e.Err
}

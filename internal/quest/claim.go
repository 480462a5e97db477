package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/logging"
	"github.com/harshilgor/testtaker-sub001/internal/retry"
)

// Complete marks a completable quest as completed at now. Completing an
// already-completed quest returns it unchanged with changed=false.
func Complete(q Quest, now time.Time) (Quest, bool, error) {
	switch q.Status(now) {
	case StatusCompleted:
		return q, false, nil
	case StatusExpired:
		return q, false, fmt.Errorf("claim %s: %w", q.ID, ErrQuestExpired)
	case StatusActive:
		return q, false, fmt.Errorf("claim %s (%d/%d): %w", q.ID, q.Progress, q.TargetCount, ErrNotCompletable)
	}
	next := q.Clone()
	next.Completed = true
	at := now
	next.CompletedAt = &at
	return next, true, nil
}

// Ledger is the durable side of a claim. AwardPoints must be idempotent on key.
type Ledger interface {
	MarkQuestCompleted(ctx context.Context, questID string, at time.Time) error
	AwardPoints(ctx context.Context, userID string, points int, key string) error
}

// Halves records which parts of a claim are durable.
type Halves struct {
	Completed bool
	Awarded   bool
}

// Done reports whether both halves landed.
func (h Halves) Done() bool {
	return h.Completed && h.Awarded
}

// Claimer drives the two halves of a claim to convergence.
type Claimer struct {
	ledger Ledger
	retry  retry.Config
	log    *logging.Logger
}

// NewClaimer creates a Claimer. A nil logger discards output.
func NewClaimer(ledger Ledger, cfg retry.Config, log *logging.Logger) *Claimer {
	return &Claimer{ledger: ledger, retry: cfg, log: logging.OrNop(log)}
}

// Claim writes whichever halves are not yet in done. Each half is retried on
// its own; the award always uses the quest id as its idempotency key. When
// either half still fails after retries it returns *ErrPartialCompletion with
// the halves that did land.
func (c *Claimer) Claim(ctx context.Context, userID string, q Quest, done Halves) (Halves, error) {
	if done.Done() {
		return done, nil
	}
	at := time.Now()
	if q.CompletedAt != nil {
		at = *q.CompletedAt
	}

	var errs []error
	if !done.Completed {
		err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
			return c.ledger.MarkQuestCompleted(ctx, q.ID, at)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("mark completed: %w", err))
		} else {
			done.Completed = true
		}
	}
	if !done.Awarded {
		err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
			return c.ledger.AwardPoints(ctx, userID, q.RewardPoints, q.ID)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("award points: %w", err))
		} else {
			done.Awarded = true
		}
	}

	if len(errs) > 0 {
		c.log.Warn("quest claim incomplete", "quest", q.ID, "user", userID,
			"completed", done.Completed, "awarded", done.Awarded)
		return done, &ErrPartialCompletion{
			QuestID:   q.ID,
			Completed: done.Completed,
			Awarded:   done.Awarded,
			Err:       errors.Join(errs...),
		}
	}
	c.log.Debug("quest claim converged", "quest", q.ID, "user", userID, "points", q.RewardPoints)
	return done, nil
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/retry"
)

// claimCall is one in-flight claim. Concurrent claims of the same quest share
// it.
type claimCall struct {
	done chan struct{}
	err  error

	mu   sync.Mutex
	last error
}

func (c *claimCall) setLast(err error) {
	c.mu.Lock()
	c.last = err
	c.mu.Unlock()
}

func (c *claimCall) lastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// claim completes questID locally and queues the durable halves. It returns
// a nil call when there is nothing to wait for.
func (a *actor) claim(questID string) (*claimCall, quest.Quest, error) {
	q, ok := quest.Find(a.state.quests, questID)
	if call, inflight := a.claims[questID]; inflight {
		return call, q, nil
	}
	if !ok {
		return nil, quest.Quest{}, fmt.Errorf("claim %s: %w", questID, quest.ErrQuestNotFound)
	}

	now := a.cfg.Clock()
	_, changed, err := quest.Complete(q, now)
	if err != nil {
		return nil, q, err
	}

	var halves quest.Halves
	if bq, inBase := quest.Find(a.base.quests, questID); inBase {
		halves = quest.Halves{Completed: bq.Completed, Awarded: bq.RewardIssued}
	}
	if !changed && (halves.Done() || a.converged[questID]) {
		return nil, q, nil
	}

	m := mutation{seq: a.nextSeq(), kind: mutClaim, questID: questID, claimedAt: now}
	a.pending = append(a.pending, m)
	a.state.apply(m)
	a.publish()
	q, _ = quest.Find(a.state.quests, questID)

	call := a.drive(q, halves, m.seq)
	a.log.Info("quest claimed locally", "quest", questID, "points", q.RewardPoints)
	return call, q, nil
}

// drive queues the durable halves of the claim recorded as mutation seq,
// skipping those already in halves.
func (a *actor) drive(q quest.Quest, halves quest.Halves, seq uint64) *claimCall {
	questID := q.ID
	call := &claimCall{done: make(chan struct{})}
	a.claims[questID] = call
	target := q.Clone()
	a.out.enqueue(op{
		name: "claim quest",
		run: func(ctx context.Context) error {
			var err error
			halves, err = a.claimer.Claim(ctx, a.userID, target, halves)
			if err == nil {
				return nil
			}
			call.setLast(err)
			if errors.Is(err, quest.ErrQuestNotFound) {
				return retry.Stop(err)
			}
			return err
		},
		done: func(err error) {
			a.send(func(a *actor) { a.finishClaim(questID, seq, err) })
		},
	})
	return call
}

// resumeClaims finishes claims the store holds as completed but never
// rewarded, which happens when a process dies between the two halves.
func (a *actor) resumeClaims() {
	for _, bq := range a.base.quests {
		if !bq.Completed || bq.RewardIssued || a.converged[bq.ID] {
			continue
		}
		if _, inflight := a.claims[bq.ID]; inflight {
			continue
		}
		claimedAt := a.cfg.Clock()
		if bq.CompletedAt != nil {
			claimedAt = *bq.CompletedAt
		}
		m := mutation{seq: a.nextSeq(), kind: mutClaim, questID: bq.ID, claimedAt: claimedAt}
		a.pending = append(a.pending, m)
		a.state.apply(m)
		a.drive(bq, quest.Halves{Completed: true}, m.seq)
		a.log.Info("resuming unrewarded quest claim", "quest", bq.ID, "points", bq.RewardPoints)
	}
}

func (a *actor) finishClaim(questID string, seq uint64, err error) {
	call := a.claims[questID]
	delete(a.claims, questID)
	if err != nil {
		a.log.Error("quest claim abandoned", "quest", questID, "error", err)
		a.dropPending(seq)
	} else {
		a.converged[questID] = true
		a.confirm(seq)
		a.publish()
	}
	if call != nil {
		call.err = err
		close(call.done)
	}
}

// unconfirmed builds the error returned when a claim outlives its timeout.
func (c *claimCall) unconfirmed(questID string) error {
	if last := c.lastErr(); last != nil {
		return fmt.Errorf("claim %s: %w: %w", questID, ErrClaimUnconfirmed, last)
	}
	return fmt.Errorf("claim %s: %w", questID, ErrClaimUnconfirmed)
}

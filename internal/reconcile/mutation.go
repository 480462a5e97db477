package reconcile

import (
	"slices"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
)

type mutationKind int

const (
	mutAttempt mutationKind = iota
	mutClaim
	mutPlan
)

func (k mutationKind) String() string {
	switch k {
	case mutAttempt:
		return "attempt"
	case mutClaim:
		return "claim"
	case mutPlan:
		return "plan"
	default:
		return "unknown"
	}
}

// mutation is a local change not yet known to be reflected in the base.
type mutation struct {
	seq  uint64
	kind mutationKind

	event attempt.Event

	questID   string
	claimedAt time.Time

	plan quest.Plan

	// confirmedAt is the first refresh token issued after the store confirmed
	// the write. Zero means unconfirmed. Any refresh with a token at or above
	// it was requested after confirmation and already reflects the write.
	confirmedAt int64
}

func (m mutation) supersededBy(token int64) bool {
	return m.confirmedAt > 0 && token >= m.confirmedAt
}

// derived is the state obtained by replaying pending mutations on the base.
type derived struct {
	events   []attempt.Event
	eventIDs map[string]bool
	quests   []quest.Quest
	points   int
}

func newDerived(b base) derived {
	d := derived{
		events:   slices.Clone(b.events),
		eventIDs: make(map[string]bool, len(b.events)),
		quests:   quest.CloneAll(b.quests),
		points:   b.points,
	}
	for _, e := range b.events {
		d.eventIDs[e.ID] = true
	}
	return d
}

// apply replays m. Every branch is idempotent so a mutation that already
// landed in the base replays as a no-op.
func (d *derived) apply(m mutation) {
	switch m.kind {
	case mutAttempt:
		if d.eventIDs[m.event.ID] {
			return
		}
		d.eventIDs[m.event.ID] = true
		d.events = append(d.events, m.event)
		d.quests, _ = quest.ApplyAll(d.quests, []attempt.Event{m.event})

	case mutClaim:
		q, ok := quest.Find(d.quests, m.questID)
		if !ok {
			return
		}
		if next, changed, err := quest.Complete(q, m.claimedAt); err == nil && changed {
			q = next
		}
		if q.Completed && !q.RewardIssued {
			q.RewardIssued = true
			d.points += q.RewardPoints
		}
		d.quests = quest.Replace(d.quests, q)

	case mutPlan:
		retired := make(map[string]bool, len(m.plan.Retired))
		for _, id := range m.plan.Retired {
			retired[id] = true
		}
		out := make([]quest.Quest, 0, len(d.quests)+len(m.plan.Created))
		for _, q := range d.quests {
			if !retired[q.ID] {
				out = append(out, q)
			}
		}
		for _, q := range m.plan.Created {
			if _, ok := quest.Find(out, q.ID); !ok {
				out = append(out, q.Clone())
			}
		}
		d.quests = out
	}
}

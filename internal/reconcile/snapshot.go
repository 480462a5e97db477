package reconcile

import (
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/mastery"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/streak"
)

// Policy decides when cached state is too old to serve without refreshing.
type Policy struct {
	TTL time.Duration
}

// IsStale reports whether state fetched at fetchedAt should be refreshed at
// now. State never fetched is always stale; a zero TTL only treats never
// fetched state as stale.
func (p Policy) IsStale(fetchedAt, now time.Time) bool {
	if fetchedAt.IsZero() {
		return true
	}
	return p.TTL > 0 && now.Sub(fetchedAt) > p.TTL
}

// Snapshot is a consumer's view of one user's derived state at a point in
// time. It is a copy; mutating it has no effect on the engine.
type Snapshot struct {
	UserID string `json:"user_id"`
	// Version increases every time the actor publishes new state.
	Version int64 `json:"version"`
	// FetchedAt is when the authoritative base was read from the store.
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	// FromCache is true until the first refresh after start lands.
	FromCache bool `json:"from_cache"`
	Stale     bool `json:"stale"`
	// Degraded is true while durable writes are failing.
	Degraded bool `json:"degraded"`
	// Pending counts local mutations not yet confirmed by a refresh.
	Pending int                         `json:"pending"`
	Mastery []mastery.SkillMasteryState `json:"mastery"`
	Streak  streak.State                `json:"streak"`
	Quests  []quest.Quest               `json:"quests"`
	Points  int                         `json:"points"`
}

// view is the immutable state an actor publishes. Nothing reachable from a
// view is modified after publication.
type view struct {
	userID    string
	version   int64
	fetchedAt time.Time
	fromCache bool
	loaded    bool
	degraded  bool
	pending   int
	states    map[string]mastery.SkillState
	days      []streak.Day
	longest   int
	quests    []quest.Quest
	points    int
}

// at renders the view as a Snapshot at now. Decay and the streak's current run
// depend on now, so they are computed here rather than at publish time.
func (v *view) at(now time.Time, loc *time.Location, policy Policy, retention time.Duration) Snapshot {
	s := Snapshot{
		UserID:    v.userID,
		Version:   v.version,
		FromCache: v.fromCache,
		Stale:     policy.IsStale(v.fetchedAt, now),
		Degraded:  v.degraded,
		Pending:   v.pending,
		Mastery:   mastery.Snapshot(v.states, now),
		Quests:    quest.CloneAll(quest.Visible(v.quests, now, retention)),
		Points:    v.points,
	}
	if !v.fetchedAt.IsZero() {
		t := v.fetchedAt
		s.FetchedAt = &t
	}
	st := streak.Calculate(v.days, streak.DayOf(now, loc))
	s.Streak = streak.Merge(streak.State{Longest: v.longest}, st)
	return s
}

package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/store"
)

type refreshCall struct {
	token   int64
	cancel  context.CancelFunc
	waiters []chan<- error
}

type fetched struct {
	events []attempt.Event
	quests []quest.Quest
	points int
	at     time.Time
}

// requestRefresh starts a fetch under a new token. An in-flight fetch is
// cancelled and its waiters move to the new one.
func (a *actor) requestRefresh(reply chan<- error) {
	a.tokens++
	token := a.tokens

	var waiters []chan<- error
	if prev := a.inflight; prev != nil {
		prev.cancel()
		waiters = prev.waiters
	}
	if reply != nil {
		waiters = append(waiters, reply)
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.inflight = &refreshCall{token: token, cancel: cancel, waiters: waiters}
	a.refreshing.Store(true)

	a.spawn(func() {
		res, err := a.fetch(ctx)
		a.send(func(a *actor) { a.land(token, res, err) })
	})
}

// fetch reads the authoritative state with the three reads in parallel.
func (a *actor) fetch(ctx context.Context) (fetched, error) {
	var res fetched
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res.events, err = a.store.FetchEventsSince(gctx, a.userID, time.Time{})
		return err
	})
	g.Go(func() error {
		var err error
		res.quests, err = a.store.FetchActiveQuests(gctx, a.userID)
		return err
	})
	g.Go(func() error {
		var err error
		res.points, err = a.store.Points(gctx, a.userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fetched{}, fmt.Errorf("refresh %s: %w", a.userID, err)
	}
	res.at = a.cfg.Clock()
	return res, nil
}

// land applies a fetch result: the base is replaced and pending mutations
// that the fetch cannot have seen are replayed on top, in order.
func (a *actor) land(token int64, res fetched, err error) {
	call := a.inflight
	if call == nil || call.token != token || token <= a.applied {
		a.log.Debug("refresh result discarded", "token", token, "applied", a.applied, "reason", ErrStaleRefresh)
		return
	}
	a.inflight = nil
	a.refreshing.Store(false)
	call.cancel()

	if err != nil {
		a.log.Warn("refresh failed, serving last state", "token", token, "error", err)
		a.markLoaded()
		notify(call.waiters, err)
		return
	}

	a.applied = token
	a.base = base{
		events:    res.events,
		quests:    res.quests,
		points:    res.points,
		fetchedAt: res.at,
		token:     token,
	}
	kept := a.pending[:0]
	for _, m := range a.pending {
		if !m.supersededBy(token) {
			kept = append(kept, m)
		}
	}
	dropped := len(a.pending) - len(kept)
	a.pending = kept

	a.recompute()
	a.heal()
	a.resumeClaims()
	a.markLoaded()
	a.publish()
	a.log.Debug("refresh applied", "token", token, "events", len(res.events),
		"quests", len(res.quests), "replayed", len(kept), "dropped", dropped)

	if quest.NeedsGeneration(a.state.quests, a.cfg.Clock()) && !a.hasPending(mutPlan) {
		a.regenerate()
	}
	a.queueSnapshotSave()
	notify(call.waiters, nil)
}

func (a *actor) queueSnapshotSave() {
	snap := store.CachedSnapshot{
		UserID:    a.userID,
		Version:   a.base.token,
		FetchedAt: a.base.fetchedAt,
		Data: store.SnapshotData{
			Events:  a.base.events,
			Quests:  a.base.quests,
			Points:  a.base.points,
			Longest: a.longest,
		},
	}
	a.out.enqueue(op{
		name:       "save snapshot",
		bestEffort: true,
		run: func(ctx context.Context) error {
			return a.store.SaveSnapshot(ctx, a.userID, snap)
		},
	})
}

func notify(waiters []chan<- error, err error) {
	for _, w := range waiters {
		select {
		case w <- err:
		default:
		}
	}
}

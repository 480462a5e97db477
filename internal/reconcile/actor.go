package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/eventbus"
	"github.com/harshilgor/testtaker-sub001/internal/logging"
	"github.com/harshilgor/testtaker-sub001/internal/mastery"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/store"
	"github.com/harshilgor/testtaker-sub001/internal/streak"
)

const mailboxSize = 64

// base is the last authoritative state read from the store.
type base struct {
	events    []attempt.Event
	quests    []quest.Quest
	points    int
	fetchedAt time.Time
	token     int64
	fromCache bool
}

// actor owns one user's state. Every field below the mailbox is touched only
// by the run goroutine; other goroutines talk to it through the mailbox and
// read the published view.
type actor struct {
	userID  string
	store   Store
	cfg     Config
	policy  Policy
	log     *logging.Logger
	claimer *quest.Claimer
	hub     *eventbus.Hub[Snapshot]
	out     *outbox

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mailbox    chan func(*actor)
	cur        atomic.Pointer[view]
	refreshing atomic.Bool
	loaded     chan struct{}
	done       chan struct{}

	base      base
	pending   []mutation
	state     derived
	seq       uint64
	tokens    int64
	applied   int64
	inflight  *refreshCall
	claims    map[string]*claimCall
	converged map[string]bool
	version   int64
	longest   int
	degraded  bool
	isLoaded  bool
}

func newActor(parent context.Context, userID string, st Store, cfg Config, log *logging.Logger) *actor {
	ctx, cancel := context.WithCancel(parent)
	a := &actor{
		userID:    userID,
		store:     st,
		cfg:       cfg,
		policy:    Policy{TTL: cfg.StaleAfter},
		log:       log,
		claimer:   quest.NewClaimer(st, cfg.Retry, log),
		hub:       eventbus.NewHub[Snapshot](),
		ctx:       ctx,
		cancel:    cancel,
		mailbox:   make(chan func(*actor), mailboxSize),
		loaded:    make(chan struct{}),
		done:      make(chan struct{}),
		claims:    make(map[string]*claimCall),
		converged: make(map[string]bool),
	}
	a.out = newOutbox(cfg.Retry, cfg.OutboxMaxWait, log, func(d bool) {
		a.send(func(a *actor) { a.setDegraded(d) })
	})
	a.state = newDerived(base{})
	a.cur.Store(&view{userID: userID})
	return a
}

func (a *actor) run() {
	defer close(a.done)
	defer a.wg.Wait()
	defer a.cancel()

	a.spawn(func() { a.out.run(a.ctx) })
	a.spawn(a.listen)
	a.spawn(a.loadCache)
	a.requestRefresh(nil)

	var tick <-chan time.Time
	if a.cfg.RefreshInterval > 0 {
		t := time.NewTicker(a.cfg.RefreshInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case fn := <-a.mailbox:
			fn(a)
		case <-tick:
			a.requestRefresh(nil)
		case <-a.ctx.Done():
			if a.inflight != nil {
				a.inflight.cancel()
			}
			return
		}
	}
}

func (a *actor) spawn(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// do queues fn on the actor, waiting for mailbox space.
func (a *actor) do(ctx context.Context, fn func(*actor)) error {
	select {
	case a.mailbox <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.ctx.Done():
		return ErrClosed
	}
}

// send is do for the actor's own helper goroutines.
func (a *actor) send(fn func(*actor)) {
	select {
	case a.mailbox <- fn:
	case <-a.ctx.Done():
	}
}

// tryDo queues fn only if the mailbox has room.
func (a *actor) tryDo(fn func(*actor)) bool {
	select {
	case a.mailbox <- fn:
		return true
	default:
		return false
	}
}

// read renders the published view at the current time and starts a
// background refresh when it is stale. It never blocks.
func (a *actor) read() Snapshot {
	s := a.render(a.cur.Load())
	if s.Stale && !a.refreshing.Load() {
		a.tryDo(func(a *actor) {
			if a.inflight == nil {
				a.requestRefresh(nil)
			}
		})
	}
	return s
}

func (a *actor) render(v *view) Snapshot {
	return v.at(a.cfg.Clock(), a.cfg.Location, a.policy, a.cfg.Quests.CompletedRetention)
}

func (a *actor) nextSeq() uint64 {
	a.seq++
	return a.seq
}

// recompute rebuilds the derived state from the base and the pending log.
func (a *actor) recompute() {
	d := newDerived(a.base)
	for _, m := range a.pending {
		d.apply(m)
	}
	a.state = d
}

// publish stores a new immutable view built from the derived state and
// notifies subscribers.
func (a *actor) publish() {
	now := a.cfg.Clock()
	days := streak.BuildCalendar(a.state.events, a.cfg.Location, a.cfg.MinDailyAttempts)
	st := streak.Calculate(days, streak.DayOf(now, a.cfg.Location))
	a.longest = max(a.longest, st.Longest)
	a.version++

	v := &view{
		userID:    a.userID,
		version:   a.version,
		fetchedAt: a.base.fetchedAt,
		fromCache: a.base.fromCache,
		loaded:    a.isLoaded,
		degraded:  a.degraded,
		pending:   len(a.pending),
		states:    mastery.Fold(a.state.events),
		days:      days,
		longest:   a.longest,
		quests:    quest.CloneAll(a.state.quests),
		points:    a.state.points,
	}
	a.cur.Store(v)
	a.hub.Publish(a.render(v))
}

func (a *actor) markLoaded() {
	if a.isLoaded {
		return
	}
	a.isLoaded = true
	close(a.loaded)
}

func (a *actor) setDegraded(d bool) {
	if a.degraded == d {
		return
	}
	a.degraded = d
	if d {
		a.log.Warn("durable writes failing, serving local state")
	} else {
		a.log.Info("durable writes recovered")
	}
	a.publish()
}

// confirm records that the write for mutation seq is durable.
func (a *actor) confirm(seq uint64) {
	for i := range a.pending {
		if a.pending[i].seq == seq && a.pending[i].confirmedAt == 0 {
			a.pending[i].confirmedAt = a.tokens + 1
		}
	}
}

// dropPending removes mutation seq without waiting for a refresh. Used when
// its write failed permanently.
func (a *actor) dropPending(seq uint64) {
	out := a.pending[:0]
	for _, m := range a.pending {
		if m.seq != seq {
			out = append(out, m)
		}
	}
	a.pending = out
	a.recompute()
	a.publish()
}

func (a *actor) recordAttempt(ev attempt.Event) {
	if a.state.eventIDs[ev.ID] {
		a.log.Debug("duplicate attempt ignored", "event", ev.ID)
		return
	}
	before := a.state.quests
	m := mutation{seq: a.nextSeq(), kind: mutAttempt, event: ev}
	a.pending = append(a.pending, m)
	a.state.apply(m)
	a.publish()

	seq := m.seq
	a.out.enqueue(op{
		name: "append attempt",
		run: func(ctx context.Context) error {
			return a.store.AppendAttempts(ctx, a.userID, []attempt.Event{ev})
		},
		done: func(err error) {
			a.send(func(a *actor) {
				if err != nil {
					a.dropPending(seq)
					return
				}
				a.confirm(seq)
			})
		},
	})
	a.queueProgress(before, a.state.quests)
}

// queueProgress writes progress for every quest that advanced between before
// and after.
func (a *actor) queueProgress(before, after []quest.Quest) {
	for _, q := range after {
		prev, ok := quest.Find(before, q.ID)
		if ok && prev.Progress >= q.Progress {
			continue
		}
		id, progress, counted := q.ID, q.Progress, append([]string(nil), q.Counted...)
		a.out.enqueue(op{
			name: "quest progress",
			run: func(ctx context.Context) error {
				return a.store.UpdateQuestProgress(ctx, id, progress, counted)
			},
		})
	}
}

// heal folds every known event into the quests so progress missed by the
// store catches up, and queues writes for what moved.
func (a *actor) heal() {
	before := a.state.quests
	healed, changed := quest.ApplyAll(before, a.state.events)
	if len(changed) == 0 {
		return
	}
	a.state.quests = healed
	a.queueProgress(before, healed)
}

func (a *actor) hasPending(kind mutationKind) bool {
	for _, m := range a.pending {
		if m.kind == kind && m.confirmedAt == 0 {
			return true
		}
	}
	return false
}

func (a *actor) regenerate() {
	now := a.cfg.Clock()
	stats := mastery.Stats(mastery.Fold(a.state.events), now)
	plan := quest.Generate(a.state.quests, stats, now, a.cfg.Location, a.cfg.Quests, nil)
	if len(plan.Retired) == 0 && len(plan.Created) == 0 {
		return
	}
	m := mutation{seq: a.nextSeq(), kind: mutPlan, plan: plan}
	a.pending = append(a.pending, m)
	a.state.apply(m)
	a.publish()
	a.log.Info("quests generated", "created", len(plan.Created), "retired", len(plan.Retired), "kept", len(plan.Kept))

	seq := m.seq
	a.out.enqueue(op{
		name: "quest plan",
		run: func(ctx context.Context) error {
			if err := a.store.RetireQuests(ctx, a.userID, plan.Retired); err != nil {
				return err
			}
			return a.store.UpsertQuests(ctx, a.userID, plan.Created)
		},
		done: func(err error) {
			a.send(func(a *actor) {
				if err != nil {
					a.dropPending(seq)
					return
				}
				a.confirm(seq)
			})
		},
	})
}

func (a *actor) loadCache() {
	snap, err := a.store.LatestSnapshot(a.ctx, a.userID)
	if err != nil {
		a.log.Warn("load cached snapshot", "error", err)
		return
	}
	if snap == nil {
		return
	}
	a.send(func(a *actor) { a.landCache(snap) })
}

// landCache serves a cached snapshot until the first refresh lands.
func (a *actor) landCache(snap *store.CachedSnapshot) {
	if a.applied > 0 {
		return
	}
	a.base = base{
		events:    snap.Data.Events,
		quests:    snap.Data.Quests,
		points:    snap.Data.Points,
		fetchedAt: snap.FetchedAt,
		fromCache: true,
	}
	a.longest = max(a.longest, snap.Data.Longest)
	a.recompute()
	a.markLoaded()
	a.publish()
	a.log.Debug("serving cached snapshot", "version", snap.Version, "fetched_at", snap.FetchedAt)
}

// listen turns store change notifications into debounced refreshes.
func (a *actor) listen() {
	ch, err := a.store.SubscribeChanges(a.ctx, a.userID, "")
	if err != nil {
		a.log.Warn("subscribe to store changes", "error", err)
		return
	}
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-a.ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if fire == nil {
				timer = time.NewTimer(a.cfg.RefreshDebounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			a.send(func(a *actor) { a.requestRefresh(nil) })
		}
	}
}

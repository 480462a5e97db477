// Package reconcile keeps per-user derived state (mastery, streak, quests,
// points) consistent between optimistic local mutations and the durable
// store. Each user is owned by a single actor goroutine; reads load an
// immutable published view and never wait on I/O.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/logging"
	"github.com/harshilgor/testtaker-sub001/internal/mastery"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/retry"
	"github.com/harshilgor/testtaker-sub001/internal/store"
	"github.com/harshilgor/testtaker-sub001/internal/streak"
)

// Store is the durable backend the engine reconciles against.
type Store interface {
	FetchEventsSince(ctx context.Context, userID string, since time.Time) ([]attempt.Event, error)
	AppendAttempts(ctx context.Context, userID string, events []attempt.Event) error
	FetchActiveQuests(ctx context.Context, userID string) ([]quest.Quest, error)
	UpsertQuests(ctx context.Context, userID string, qs []quest.Quest) error
	RetireQuests(ctx context.Context, userID string, ids []string) error
	UpdateQuestProgress(ctx context.Context, questID string, progress int, counted []string) error
	MarkQuestCompleted(ctx context.Context, questID string, at time.Time) error
	AwardPoints(ctx context.Context, userID string, points int, key string) error
	Points(ctx context.Context, userID string) (int, error)
	SubscribeChanges(ctx context.Context, userID string, table store.Table) (<-chan store.Change, error)
	SaveSnapshot(ctx context.Context, userID string, snap store.CachedSnapshot) error
	LatestSnapshot(ctx context.Context, userID string) (*store.CachedSnapshot, error)
}

// Config tunes the engine.
type Config struct {
	// Location pins calendar-day boundaries for streaks and daily quests.
	Location *time.Location
	// MinDailyAttempts is the attempt count that makes a day count toward a streak.
	MinDailyAttempts int
	// RefreshInterval triggers a periodic refresh. Zero disables it.
	RefreshInterval time.Duration
	// StaleAfter is the age past which a read triggers a background refresh.
	StaleAfter time.Duration
	// RefreshDebounce coalesces change-feed notifications.
	RefreshDebounce time.Duration
	// ClaimTimeout bounds how long ClaimQuest waits for durable confirmation.
	ClaimTimeout time.Duration
	// Retry configures each durable write and each claim half.
	Retry retry.Config
	// OutboxMaxWait caps the backoff between outbox redrives.
	OutboxMaxWait time.Duration
	Quests        quest.Config
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Location:         time.UTC,
		MinDailyAttempts: streak.DefaultMinPerDay,
		RefreshInterval:  5 * time.Minute,
		StaleAfter:       time.Minute,
		RefreshDebounce:  250 * time.Millisecond,
		ClaimTimeout:     5 * time.Second,
		Retry:            retry.DefaultConfig(),
		OutboxMaxWait:    30 * time.Second,
		Quests:           quest.DefaultConfig(),
		Clock:            time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.MinDailyAttempts <= 0 {
		c.MinDailyAttempts = d.MinDailyAttempts
	}
	if c.RefreshDebounce <= 0 {
		c.RefreshDebounce = d.RefreshDebounce
	}
	if c.ClaimTimeout <= 0 {
		c.ClaimTimeout = d.ClaimTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = d.Retry
	}
	if c.OutboxMaxWait <= 0 {
		c.OutboxMaxWait = d.OutboxMaxWait
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	return c
}

// Engine shards users onto actors. Actors are started on first use and share
// nothing mutable with each other.
type Engine struct {
	store Store
	cfg   Config
	log   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	actors map[string]*actor
	closed bool
	wg     sync.WaitGroup
}

// New creates an Engine. A nil logger discards output.
func New(st Store, cfg Config, log *logging.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:  st,
		cfg:    cfg.withDefaults(),
		log:    logging.OrNop(log),
		ctx:    ctx,
		cancel: cancel,
		actors: make(map[string]*actor),
	}
}

// Close stops every actor and waits for them to exit. Writes still queued in
// an outbox are abandoned.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) actorFor(userID string) (*actor, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if a, ok := e.actors[userID]; ok {
		return a, nil
	}
	a := newActor(e.ctx, userID, e.store, e.cfg, e.log.With("user", userID))
	e.actors[userID] = a
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		a.run()
	}()
	return a, nil
}

// Warm waits until userID's state has been loaded once, from the snapshot
// cache or a refresh. Later calls return immediately.
func (e *Engine) Warm(ctx context.Context, userID string) error {
	a, err := e.actorFor(userID)
	if err != nil {
		return err
	}
	select {
	case <-a.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrClosed
	}
}

// Snapshot returns userID's current derived state. It never waits on I/O;
// when the state is stale a refresh is started in the background.
func (e *Engine) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	a, err := e.actorFor(userID)
	if err != nil {
		return Snapshot{}, err
	}
	return a.read(), nil
}

// GetMasterySnapshot returns userID's per-skill mastery with decay applied now.
func (e *Engine) GetMasterySnapshot(ctx context.Context, userID string) ([]mastery.SkillMasteryState, error) {
	s, err := e.Snapshot(ctx, userID)
	return s.Mastery, err
}

// GetStreak returns userID's streak as of today in the engine's location.
func (e *Engine) GetStreak(ctx context.Context, userID string) (streak.State, error) {
	s, err := e.Snapshot(ctx, userID)
	return s.Streak, err
}

// GetActiveQuests returns userID's visible quests.
func (e *Engine) GetActiveQuests(ctx context.Context, userID string) ([]quest.Quest, error) {
	s, err := e.Snapshot(ctx, userID)
	return s.Quests, err
}

// RecordOptimisticAttempt applies ev to userID's state immediately and queues
// it for durable storage. Events already seen by id are ignored. The call
// returns once the event is visible to reads; it does not wait for the store.
func (e *Engine) RecordOptimisticAttempt(ctx context.Context, userID string, ev attempt.Event) error {
	a, err := e.actorFor(userID)
	if err != nil {
		return err
	}
	reply := make(chan struct{})
	if err := a.do(ctx, func(a *actor) {
		a.recordAttempt(ev)
		close(reply)
	}); err != nil {
		return err
	}
	return wait(ctx, a, reply)
}

// ClaimQuest completes questID and issues its reward exactly once. The quest
// is completed locally at once; the call then waits up to the claim timeout
// for the store to confirm both the completion and the award. On timeout it
// returns ErrClaimUnconfirmed while the claim keeps being driven in the
// background. Claiming an already-claimed quest is a no-op.
func (e *Engine) ClaimQuest(ctx context.Context, userID, questID string) (quest.Quest, error) {
	a, err := e.actorFor(userID)
	if err != nil {
		return quest.Quest{}, err
	}
	type started struct {
		call *claimCall
		q    quest.Quest
		err  error
	}
	reply := make(chan started, 1)
	if err := a.do(ctx, func(a *actor) {
		call, q, err := a.claim(questID)
		reply <- started{call, q, err}
	}); err != nil {
		return quest.Quest{}, err
	}

	var st started
	select {
	case st = <-reply:
	case <-ctx.Done():
		return quest.Quest{}, ctx.Err()
	case <-a.done:
		return quest.Quest{}, ErrClosed
	}
	if st.err != nil || st.call == nil {
		return st.q, st.err
	}

	timer := time.NewTimer(e.cfg.ClaimTimeout)
	defer timer.Stop()
	select {
	case <-st.call.done:
		return st.q, st.call.err
	case <-timer.C:
		return st.q, st.call.unconfirmed(questID)
	case <-ctx.Done():
		return st.q, ctx.Err()
	case <-a.done:
		return st.q, ErrClosed
	}
}

// Refresh fetches authoritative state for userID and waits until it has been
// applied, or superseded by a newer refresh that has.
func (e *Engine) Refresh(ctx context.Context, userID string) error {
	a, err := e.actorFor(userID)
	if err != nil {
		return err
	}
	reply := make(chan error, 1)
	if err := a.do(ctx, func(a *actor) {
		a.requestRefresh(reply)
	}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrClosed
	}
}

// RegenerateQuests runs a quest generation pass for userID now and returns
// the resulting visible quests.
func (e *Engine) RegenerateQuests(ctx context.Context, userID string) ([]quest.Quest, error) {
	a, err := e.actorFor(userID)
	if err != nil {
		return nil, err
	}
	reply := make(chan struct{})
	if err := a.do(ctx, func(a *actor) {
		a.regenerate()
		close(reply)
	}); err != nil {
		return nil, err
	}
	if err := wait(ctx, a, reply); err != nil {
		return nil, err
	}
	return a.read().Quests, nil
}

// Flush waits until every write queued for userID before the call has been
// settled by the store. It blocks for as long as the store keeps failing, so
// callers pass a deadline.
func (e *Engine) Flush(ctx context.Context, userID string) error {
	a, err := e.actorFor(userID)
	if err != nil {
		return err
	}
	reply := make(chan struct{})
	if err := a.do(ctx, func(a *actor) {
		a.out.enqueue(op{
			name:       "flush",
			bestEffort: true,
			run:        func(context.Context) error { return nil },
			done:       func(error) { close(reply) },
		})
	}); err != nil {
		return err
	}
	return wait(ctx, a, reply)
}

// Subscribe streams userID's snapshots, starting with the current one, until
// ctx is done.
func (e *Engine) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, error) {
	a, err := e.actorFor(userID)
	if err != nil {
		return nil, err
	}
	// Registering on the actor orders the first snapshot ahead of every
	// later publish and keeps it away from existing subscribers.
	var ch <-chan Snapshot
	reply := make(chan struct{})
	if err := a.do(ctx, func(a *actor) {
		ch = a.hub.SubscribeWith(ctx, 0, a.render(a.cur.Load()))
		close(reply)
	}); err != nil {
		return nil, err
	}
	if err := wait(ctx, a, reply); err != nil {
		return nil, err
	}
	return ch, nil
}

func wait(ctx context.Context, a *actor, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrClosed
	}
}

package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/logging"
	"github.com/harshilgor/testtaker-sub001/internal/retry"
)

// op is one durable write. run is retried until it succeeds or returns an
// error wrapped with retry.Stop.
type op struct {
	name string
	run  func(ctx context.Context) error
	// done is called once from the outbox goroutine with nil on success or
	// the permanent error.
	done func(err error)
	// bestEffort ops are dropped after one failure and never mark the outbox
	// degraded.
	bestEffort bool
}

// outbox is an ordered per-user write queue. A failing op blocks the ops
// behind it so writes land in submission order.
type outbox struct {
	mu     sync.Mutex
	queue  []op
	signal chan struct{}

	backoff  retry.Config
	log      *logging.Logger
	onHealth func(degraded bool)
	degraded bool
}

func newOutbox(cfg retry.Config, maxWait time.Duration, log *logging.Logger, onHealth func(bool)) *outbox {
	cfg.MaxWait = maxWait
	return &outbox{
		signal:   make(chan struct{}, 1),
		backoff:  cfg,
		log:      log,
		onHealth: onHealth,
	}
}

// enqueue appends o. It never blocks.
func (b *outbox) enqueue(o op) {
	b.mu.Lock()
	b.queue = append(b.queue, o)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Len returns the number of queued ops, including the one in progress.
func (b *outbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *outbox) head() (op, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return op{}, false
	}
	return b.queue[0], true
}

func (b *outbox) pop() {
	b.mu.Lock()
	b.queue = b.queue[1:]
	b.mu.Unlock()
}

func (b *outbox) setDegraded(d bool) {
	if b.degraded == d {
		return
	}
	b.degraded = d
	if b.onHealth != nil {
		b.onHealth(d)
	}
}

func (b *outbox) run(ctx context.Context) {
	for {
		o, ok := b.head()
		if !ok {
			select {
			case <-b.signal:
				continue
			case <-ctx.Done():
				return
			}
		}
		if !b.drive(ctx, o) {
			return
		}
	}
}

// drive runs o until it settles. It returns false when ctx ended first.
func (b *outbox) drive(ctx context.Context, o op) bool {
	for attempt := 0; ; attempt++ {
		err := o.run(ctx)
		if ctx.Err() != nil {
			return false
		}
		var perm *retry.Permanent
		switch {
		case err == nil:
			b.pop()
			if !o.bestEffort {
				b.setDegraded(false)
			}
			finish(o, nil)
			return true
		case errors.As(err, &perm):
			b.log.Error("outbox write dropped", "op", o.name, "error", perm.Err)
			b.pop()
			finish(o, perm.Err)
			return true
		case o.bestEffort:
			b.log.Warn("outbox best-effort write failed", "op", o.name, "error", err)
			b.pop()
			finish(o, err)
			return true
		}

		b.setDegraded(true)
		wait := retry.Backoff(b.backoff, attempt)
		b.log.Warn("outbox write failed, retrying", "op", o.name, "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func finish(o op, err error) {
	if o.done != nil {
		o.done(err)
	}
}

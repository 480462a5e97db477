package reconcile

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/store"
)

// memStore is an in-memory Store with switches for failures and slow reads.
type memStore struct {
	mu       sync.Mutex
	events   map[string][]attempt.Event
	quests   map[string][]quest.Quest
	awards   map[string]map[string]int
	snapshot map[string]*store.CachedSnapshot

	failWrites atomic.Bool
	fetches    atomic.Int64
	// onFetch runs after FetchEventsSince has copied its result and before
	// it returns, with the 1-based fetch number.
	onFetch func(ctx context.Context, n int64)
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[string][]attempt.Event{},
		quests:   map[string][]quest.Quest{},
		awards:   map[string]map[string]int{},
		snapshot: map[string]*store.CachedSnapshot{},
	}
}

func (m *memStore) writeErr(op string) error {
	if m.failWrites.Load() {
		return fmt.Errorf("%s: %w", op, store.ErrUnavailable)
	}
	return nil
}

func (m *memStore) FetchEventsSince(ctx context.Context, userID string, _ time.Time) ([]attempt.Event, error) {
	m.mu.Lock()
	out := slices.Clone(m.events[userID])
	m.mu.Unlock()
	n := m.fetches.Add(1)
	if m.onFetch != nil {
		m.onFetch(ctx, n)
	}
	return out, nil
}

func (m *memStore) AppendAttempts(_ context.Context, userID string, events []attempt.Event) error {
	if err := m.writeErr("append"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		if !slices.ContainsFunc(m.events[userID], func(x attempt.Event) bool { return x.ID == e.ID }) {
			m.events[userID] = append(m.events[userID], e)
		}
	}
	return nil
}

func (m *memStore) FetchActiveQuests(_ context.Context, userID string) ([]quest.Quest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return quest.CloneAll(m.quests[userID]), nil
}

func (m *memStore) UpsertQuests(_ context.Context, userID string, qs []quest.Quest) error {
	if err := m.writeErr("upsert"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range qs {
		if _, ok := quest.Find(m.quests[userID], q.ID); !ok {
			m.quests[userID] = append(m.quests[userID], q.Clone())
		}
	}
	return nil
}

func (m *memStore) RetireQuests(_ context.Context, userID string, ids []string) error {
	if err := m.writeErr("retire"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quests[userID] = slices.DeleteFunc(m.quests[userID], func(q quest.Quest) bool {
		return slices.Contains(ids, q.ID)
	})
	return nil
}

func (m *memStore) updateQuest(questID string, fn func(*quest.Quest)) bool {
	for user, qs := range m.quests {
		for i := range qs {
			if qs[i].ID == questID {
				fn(&m.quests[user][i])
				return true
			}
		}
	}
	return false
}

func (m *memStore) UpdateQuestProgress(_ context.Context, questID string, progress int, counted []string) error {
	if err := m.writeErr("progress"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateQuest(questID, func(q *quest.Quest) {
		if progress > q.Progress {
			q.Progress = progress
			q.Counted = slices.Clone(counted)
		}
	})
	return nil
}

func (m *memStore) MarkQuestCompleted(_ context.Context, questID string, at time.Time) error {
	if err := m.writeErr("complete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	found := m.updateQuest(questID, func(q *quest.Quest) {
		if !q.Completed {
			q.Completed = true
			q.CompletedAt = &at
		}
	})
	if !found {
		return fmt.Errorf("quest %s: %w", questID, quest.ErrQuestNotFound)
	}
	return nil
}

func (m *memStore) AwardPoints(_ context.Context, userID string, points int, key string) error {
	if err := m.writeErr("award"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.awards[userID] == nil {
		m.awards[userID] = map[string]int{}
	}
	if _, ok := m.awards[userID][key]; !ok {
		m.awards[userID][key] = points
	}
	m.updateQuest(key, func(q *quest.Quest) { q.RewardIssued = true })
	return nil
}

func (m *memStore) Points(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, p := range m.awards[userID] {
		total += p
	}
	return total, nil
}

func (m *memStore) awardCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.awards[userID])
}

func (m *memStore) SubscribeChanges(ctx context.Context, _ string, _ store.Table) (<-chan store.Change, error) {
	ch := make(chan store.Change)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (m *memStore) SaveSnapshot(_ context.Context, userID string, snap store.CachedSnapshot) error {
	if err := m.writeErr("snapshot"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot[userID] = &snap
	return nil
}

func (m *memStore) LatestSnapshot(_ context.Context, userID string) (*store.CachedSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot[userID], nil
}

func (m *memStore) addEvent(userID string, e attempt.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[userID] = append(m.events[userID], e)
}

func (m *memStore) eventCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events[userID])
}

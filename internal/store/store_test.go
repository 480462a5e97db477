package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/skills"
)

var t0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func ev(id, skill string, correct bool, at time.Time) attempt.Event {
	return attempt.Event{
		ID:         id,
		Skill:      skill,
		Subject:    skills.SubjectFor(skill),
		Difficulty: attempt.DifficultyMedium,
		Correct:    correct,
		OccurredAt: at,
		Source:     attempt.SourceQuiz,
		SessionID:  "s1",
	}
}

func testQuest(id string) quest.Quest {
	return quest.Quest{
		ID:           id,
		Title:        "Daily: Algebra",
		Description:  "Answer 3 Algebra questions correctly.",
		TargetSkill:  "Algebra",
		TargetCount:  3,
		Difficulty:   attempt.DifficultyEasy,
		Type:         quest.TypeDaily,
		RewardPoints: 20,
		CreatedAt:    t0,
		ExpiresAt:    t0.Add(12 * time.Hour),
	}
}

func TestOpen_MigratesAndAppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
	assert.Equal(t, LatestSchemaVersion(), v)

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is not checked here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}
	for _, tt := range tests {
		var got string
		require.NoError(t, s.DB().QueryRow("PRAGMA "+tt.pragma).Scan(&got))
		assert.Equal(t, tt.want, got, "PRAGMA %s", tt.pragma)
	}
}

func TestAppendAttempts_IdempotentByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	events := []attempt.Event{
		ev("a", "Algebra", true, t0),
		ev("b", "Vocabulary", false, t0.Add(time.Minute)),
	}
	require.NoError(t, s.AppendAttempts(ctx, "u1", events))
	require.NoError(t, s.AppendAttempts(ctx, "u1", events))
	require.NoError(t, s.AppendAttempts(ctx, "u2", events[:1]))

	got, err := s.FetchEventsSince(ctx, "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, events[0], got[0])
	assert.Equal(t, events[1], got[1])

	n, err := s.CountAttempts(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	since, err := s.FetchEventsSince(ctx, "u1", t0.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "b", since[0].ID)
}

func TestAppendAttempts_LargeBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	var events []attempt.Event
	for i := range 450 {
		events = append(events, ev(fmt.Sprintf("e%03d", i), "Geometry", i%2 == 0, t0.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, s.AppendAttempts(ctx, "u1", events))
	n, err := s.CountAttempts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 450, n)
}

func TestQuests_UpsertFetchRetire(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertQuests(ctx, "u1", []quest.Quest{testQuest("q1"), testQuest("q2")}))
	qs, err := s.FetchActiveQuests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, testQuest("q1").ExpiresAt, qs[0].ExpiresAt)
	assert.Empty(t, qs[0].Counted)

	require.NoError(t, s.RetireQuests(ctx, "u1", []string{"q2", "missing"}))
	qs, err = s.FetchActiveQuests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "q1", qs[0].ID)
}

func TestQuests_ProgressNeverMovesBackward(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertQuests(ctx, "u1", []quest.Quest{testQuest("q1")}))

	require.NoError(t, s.UpdateQuestProgress(ctx, "q1", 2, []string{"a", "b"}))
	require.NoError(t, s.UpdateQuestProgress(ctx, "q1", 1, []string{"a"}))

	// A stale upsert with lower progress keeps the stored progress.
	require.NoError(t, s.UpsertQuests(ctx, "u1", []quest.Quest{testQuest("q1")}))

	qs, err := s.FetchActiveQuests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, 2, qs[0].Progress)
	assert.Equal(t, []string{"a", "b"}, qs[0].Counted)
}

func TestMarkQuestCompleted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertQuests(ctx, "u1", []quest.Quest{testQuest("q1")}))

	first := t0.Add(time.Hour)
	require.NoError(t, s.MarkQuestCompleted(ctx, "q1", first))
	require.NoError(t, s.MarkQuestCompleted(ctx, "q1", first.Add(time.Hour)))

	qs, err := s.FetchActiveQuests(ctx, "u1")
	require.NoError(t, err)
	require.True(t, qs[0].Completed)
	require.NotNil(t, qs[0].CompletedAt)
	assert.True(t, qs[0].CompletedAt.Equal(first), "first completion time is kept")

	err = s.MarkQuestCompleted(ctx, "nope", first)
	assert.ErrorIs(t, err, quest.ErrQuestNotFound)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestAwardPoints_ExactlyOnceUnderConcurrency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertQuests(ctx, "u1", []quest.Quest{testQuest("q1")}))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AwardPoints(ctx, "u1", 20, "q1"))
		}()
	}
	wg.Wait()

	total, err := s.Points(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, total)

	ok, err := s.Awarded(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.True(t, ok)

	qs, err := s.FetchActiveQuests(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, qs[0].RewardIssued)

	total, err = s.Points(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSnapshotSaveLatestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snap, err := s.LatestSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap, "no snapshot yet")

	for i := range 5 {
		require.NoError(t, s.SaveSnapshot(ctx, "u1", CachedSnapshot{
			Version:   int64(i + 1),
			FetchedAt: t0.Add(time.Duration(i) * time.Minute),
			Data: SnapshotData{
				Events: []attempt.Event{ev("a", "Algebra", true, t0)},
				Quests: []quest.Quest{testQuest("q1")},
				Points: 10 * i,
			},
		}))
	}

	snap, err = s.LatestSnapshot(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(5), snap.Version)
	assert.Equal(t, 40, snap.Data.Points)
	require.Len(t, snap.Data.Events, 1)
	assert.Equal(t, "Algebra", snap.Data.Events[0].Skill)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM snapshots WHERE user_id = ?", "u1").Scan(&count))
	assert.Equal(t, DefaultSnapshotKeep, count)
}

func TestSubscribeChanges(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.SubscribeChanges(ctx, "u1", TableAttempts)
	require.NoError(t, err)

	require.NoError(t, s.AppendAttempts(context.Background(), "u2", []attempt.Event{ev("x", "Algebra", true, t0)}))
	require.NoError(t, s.UpsertQuests(context.Background(), "u1", []quest.Quest{testQuest("q1")}))
	require.NoError(t, s.AppendAttempts(context.Background(), "u1", []attempt.Event{ev("y", "Algebra", true, t0)}))

	select {
	case c := <-ch:
		assert.Equal(t, "u1", c.UserID)
		assert.Equal(t, TableAttempts, c.Table)
	case <-time.After(time.Second):
		t.Fatal("no change received")
	}
}

func TestReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendAttempts(ctx, "u1", []attempt.Event{ev("a", "Algebra", true, t0)}))
	require.NoError(t, s.AppendAttempts(ctx, "u2", []attempt.Event{ev("a", "Algebra", true, t0)}))
	require.NoError(t, s.AwardPoints(ctx, "u1", 5, "k"))

	require.NoError(t, s.Reset(ctx, "u1"))

	n, err := s.CountAttempts(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountAttempts(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	total, err := s.Points(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDefaultDBPath_EnvOverride(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "db.sqlite")
	t.Setenv("TESTTAKER_DB", p)
	got, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.DirExists(t, filepath.Dir(p))
}

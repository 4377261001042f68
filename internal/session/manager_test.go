package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, flush FlushFunc) *Manager {
	t.Helper()
	m := NewManager(ManagerConfig{
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: time.Hour, // reaping driven manually in tests
	}, flush)
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m
}

func interactionAt(userID, sessionID string, action models.ActionType, ts time.Time) models.UserInteraction {
	return models.UserInteraction{
		ID:        "i-" + ts.Format("150405.000"),
		UserID:    userID,
		CardID:    "card-1",
		CardType:  models.CardTypeNews,
		Action:    action,
		Timestamp: ts,
		SessionID: sessionID,
	}
}

func TestManager_UpdateCreatesSession(t *testing.T) {
	m := newTestManager(t, nil)
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	snap := m.Update("sess-1", interactionAt("user-1", "sess-1", models.ActionView, ts))

	require.Equal(t, "sess-1", snap.SessionID)
	assert.Equal(t, "user-1", snap.UserID)
	assert.Equal(t, 1, snap.SessionMetrics.TotalInteractions)
	assert.Equal(t, 1, m.ActiveCount())

	id, ok := m.SessionForUser("user-1")
	require.True(t, ok)
	assert.Equal(t, "sess-1", id)
}

func TestManager_ClockNeverMovesBackward(t *testing.T) {
	m := newTestManager(t, nil)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	m.Update("sess-1", interactionAt("user-1", "sess-1", models.ActionView, base.Add(5*time.Minute)))
	// Late event with an earlier timestamp joins history but does not rewind
	snap := m.Update("sess-1", interactionAt("user-1", "sess-1", models.ActionSave, base))

	assert.Equal(t, base.Add(5*time.Minute), snap.CurrentTime)
	assert.Equal(t, 2, snap.SessionMetrics.TotalInteractions)
}

func TestManager_SnapshotIsACopy(t *testing.T) {
	m := newTestManager(t, nil)
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	snap := m.Update("sess-1", interactionAt("user-1", "sess-1", models.ActionView, ts))
	snap.Interactions[0].CardID = "mutated"

	fresh, ok := m.Snapshot("sess-1")
	require.True(t, ok)
	assert.Equal(t, "card-1", fresh.Interactions[0].CardID)
}

func TestManager_EndSessionIdempotent(t *testing.T) {
	flushed := 0
	m := newTestManager(t, func(ctx context.Context, snap models.SessionContext) {
		flushed++
	})

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m.Update("sess-1", interactionAt("user-1", "sess-1", models.ActionView, ts))

	final, ended := m.EndSession(context.Background(), "sess-1")
	require.True(t, ended)
	assert.Equal(t, "sess-1", final.SessionID)
	assert.Equal(t, 1, flushed)

	// Second end is a no-op, not an error
	_, ended = m.EndSession(context.Background(), "sess-1")
	assert.False(t, ended)
	assert.Equal(t, 1, flushed)

	// Ending a session that never existed is also a no-op
	_, ended = m.EndSession(context.Background(), "never-existed")
	assert.False(t, ended)

	_, ok := m.SessionForUser("user-1")
	assert.False(t, ok)
}

func TestManager_ReapIdleUsesInjectedClock(t *testing.T) {
	var flushedMu sync.Mutex
	var flushedIDs []string

	m := newTestManager(t, func(ctx context.Context, snap models.SessionContext) {
		flushedMu.Lock()
		flushedIDs = append(flushedIDs, snap.SessionID)
		flushedMu.Unlock()
	})

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m.SetNowFunc(func() time.Time { return now })

	m.Update("sess-old", interactionAt("user-1", "sess-old", models.ActionView, now))

	// Advance virtual time past the idle timeout, then touch a second session
	now = now.Add(31 * time.Minute)
	m.Update("sess-fresh", interactionAt("user-2", "sess-fresh", models.ActionView, now))

	m.ReapIdle()

	assert.Equal(t, 1, m.ActiveCount())
	_, ok := m.Snapshot("sess-old")
	assert.False(t, ok, "idle session reaped")
	_, ok = m.Snapshot("sess-fresh")
	assert.True(t, ok, "fresh session kept")

	flushedMu.Lock()
	defer flushedMu.Unlock()
	require.Len(t, flushedIDs, 1)
	assert.Equal(t, "sess-old", flushedIDs[0])
}

func TestManager_ConcurrentSessionsIndependent(t *testing.T) {
	m := newTestManager(t, nil)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			sessionID := []string{"s-a", "s-b", "s-c", "s-d"}[g]
			userID := []string{"u-a", "u-b", "u-c", "u-d"}[g]
			for i := 0; i < 50; i++ {
				m.Update(sessionID, interactionAt(userID, sessionID, models.ActionView, base.Add(time.Duration(i)*time.Second)))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 4, m.ActiveCount())
	for _, id := range []string{"s-a", "s-b", "s-c", "s-d"} {
		snap, ok := m.Snapshot(id)
		require.True(t, ok)
		assert.Equal(t, 50, snap.SessionMetrics.TotalInteractions)
	}
}

func TestManager_SameSessionAppliedInOrder(t *testing.T) {
	m := newTestManager(t, nil)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				m.Update("shared", interactionAt("user-1", "shared", models.ActionSwipeRight, base.Add(time.Duration(g*25+i)*time.Second)))
			}
		}(g)
	}
	wg.Wait()

	snap, ok := m.Snapshot("shared")
	require.True(t, ok)
	// No torn state: every interaction accounted for exactly once
	assert.Equal(t, 200, snap.SessionMetrics.TotalInteractions)
	assert.Len(t, snap.Interactions, 200)
}

// Package session provides session lifecycle management for the Dekr engine.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultIdleTimeout is how long an inactive session can exist before cleanup.
const DefaultIdleTimeout = 30 * time.Minute

// DefaultCleanupInterval is how often to check for idle sessions.
const DefaultCleanupInterval = 5 * time.Minute

// FlushFunc receives a session's final snapshot when it is torn down.
type FlushFunc func(ctx context.Context, snapshot models.SessionContext)

// activeSession is one in-memory session. The per-session mutex serializes
// all reads and mutations for that session so concurrent interactions are
// applied in receipt order; independent sessions never contend.
type activeSession struct {
	ctx          models.SessionContext
	lastActivity time.Time
	ended        bool
	mu           sync.Mutex
}

// ManagerConfig holds session manager tuning.
type ManagerConfig struct {
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

// DefaultManagerConfig returns the default manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTimeout:     DefaultIdleTimeout,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// Manager owns the lifetime of one SessionContext per session. Sessions live
// in a concurrent map keyed by session ID with per-entry locks; the map-level
// RWMutex only guards membership.
type Manager struct {
	sessions     map[string]*activeSession
	userSessions map[string]string // userID -> most recent active sessionID
	flush        FlushFunc
	config       ManagerConfig
	nowFunc      func() time.Time
	cancel       context.CancelFunc
	runCtx       context.Context
	wg           sync.WaitGroup
	mu           sync.RWMutex
}

// NewManager creates a session manager and starts its idle-reaper loop.
// flush may be nil when final snapshots are not persisted (tests).
func NewManager(config ManagerConfig, flush FlushFunc) *Manager {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:     make(map[string]*activeSession),
		userSessions: make(map[string]string),
		flush:        flush,
		config:       config,
		nowFunc:      time.Now,
		runCtx:       ctx,
		cancel:       cancel,
	}

	m.wg.Add(1)
	go m.cleanupLoop()
	return m
}

// SetNowFunc overrides the manager's clock. Tests use this to advance
// virtual time deterministically.
func (m *Manager) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nowFunc = now
}

func (m *Manager) now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nowFunc()
}

// cleanupLoop periodically reaps idle sessions to bound memory.
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.runCtx.Done():
			return
		case <-ticker.C:
			m.ReapIdle()
		}
	}
}

// ReapIdle flushes and removes sessions idle longer than the configured
// timeout. Exposed so tests can trigger reaping without waiting on the ticker.
func (m *Manager) ReapIdle() {
	now := m.now()

	m.mu.RLock()
	var stale []string
	for id, sess := range m.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastActivity)
		sess.mu.Unlock()
		if idle > m.config.IdleTimeout {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		log.Info().Str("sessionId", id).Msg("Reaping idle session")
		m.EndSession(context.Background(), id)
	}
}

// GetOrCreate returns the session with the given ID, creating it if absent.
// Returns a snapshot, never a live pointer.
func (m *Manager) GetOrCreate(sessionID, userID string) models.SessionContext {
	sess := m.getOrCreate(sessionID, userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return snapshot(&sess.ctx)
}

func (m *Manager) getOrCreate(sessionID, userID string) *activeSession {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return sess
	}

	now := m.now()
	created := &activeSession{
		ctx: models.SessionContext{
			SessionID:   sessionID,
			UserID:      userID,
			StartTime:   now,
			CurrentTime: now,
			UserState: models.UserState{
				EnergyLevel:          models.EnergyMedium,
				FocusLevel:           "medium",
				Mood:                 "neutral",
				TimeAvailableMinutes: 15,
			},
		},
		lastActivity: now,
	}

	m.mu.Lock()
	// Double-check another goroutine didn't create it
	if existing, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return existing
	}
	m.sessions[sessionID] = created
	if userID != "" {
		m.userSessions[userID] = sessionID
	}
	m.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Str("userId", userID).
		Msg("Session created")

	return created
}

// Update appends an interaction to the session (creating it if absent),
// advances the session clock, and recomputes derived metrics and user state.
// Returns the fresh snapshot the caller should score against.
func (m *Manager) Update(sessionID string, interaction models.UserInteraction) models.SessionContext {
	sess := m.getOrCreate(sessionID, interaction.UserID)
	now := m.now()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.ctx.Interactions = append(sess.ctx.Interactions, interaction)
	sess.lastActivity = now

	// The session clock only moves forward: late or out-of-order events
	// join the history without rewinding currentTime.
	if interaction.Timestamp.After(sess.ctx.CurrentTime) {
		sess.ctx.CurrentTime = interaction.Timestamp
	}
	if interaction.Context.PositionInFeed > sess.ctx.CurrentCardIndex {
		sess.ctx.CurrentCardIndex = interaction.Context.PositionInFeed
	}

	sess.ctx.SessionMetrics = ComputeMetrics(sess.ctx.Interactions, sess.ctx.StartTime, sess.ctx.CurrentTime)
	sess.ctx.UserState = DeriveUserState(sess.ctx.Interactions, sess.ctx.SessionMetrics, sess.ctx.CurrentTime)

	return snapshot(&sess.ctx)
}

// Snapshot returns the current state of a session, if it exists.
func (m *Manager) Snapshot(sessionID string) (models.SessionContext, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return models.SessionContext{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return snapshot(&sess.ctx), true
}

// SessionForUser returns the most recent active session ID for a user.
func (m *Manager) SessionForUser(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userSessions[userID]
	return id, ok
}

// EndSession flushes and removes a session. Idempotent: ending an unknown or
// already-ended session is a no-op. Returns the final snapshot and whether a
// live session was actually ended.
func (m *Manager) EndSession(ctx context.Context, sessionID string) (models.SessionContext, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return models.SessionContext{}, false
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	sess.mu.Lock()
	if sess.ended {
		sess.mu.Unlock()
		return models.SessionContext{}, false
	}
	sess.ended = true
	final := snapshot(&sess.ctx)
	sess.mu.Unlock()

	m.mu.Lock()
	if m.userSessions[final.UserID] == sessionID {
		delete(m.userSessions, final.UserID)
	}
	m.mu.Unlock()

	if m.flush != nil {
		m.flush(ctx, final)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("userId", final.UserID).
		Int("interactions", final.SessionMetrics.TotalInteractions).
		Msg("Session ended")

	return final, true
}

// ActiveCount returns the number of active sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown ends all active sessions and stops the reaper.
func (m *Manager) Shutdown(ctx context.Context) {
	m.cancel()

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.EndSession(ctx, id)
	}
	m.wg.Wait()

	log.Info().Int("count", len(ids)).Msg("All sessions shut down")
}

// snapshot deep-copies the session context so callers never share the live
// interaction slice.
func snapshot(ctx *models.SessionContext) models.SessionContext {
	out := *ctx
	out.Interactions = make([]models.UserInteraction, len(ctx.Interactions))
	copy(out.Interactions, ctx.Interactions)
	return out
}

// Package engine wires sessions, scoring, rules and persistence into the
// engagement pipeline behind the worker API.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/doubledekr/Dekr-NextGen-sub004/internal/cache"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/dropoff"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/offline"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/rules"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/scoring"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/session"
	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// DefaultCandidateLimit caps how many catalog cards feed one reordering.
const DefaultCandidateLimit = 50

// InteractionWriter persists interactions durably.
type InteractionWriter interface {
	Put(ctx context.Context, in models.UserInteraction) error
	BatchPut(ctx context.Context, batch []models.UserInteraction) error
}

// SnapshotWriter persists session snapshots.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, sess models.SessionContext, ended bool) error
}

// OrderStorage persists per-user content orders.
type OrderStorage interface {
	Save(ctx context.Context, userID, sessionID string, result models.ReorderResult) error
	Get(ctx context.Context, userID string) (*models.ReorderResult, error)
}

// StrengthStorage persists per-user personalization strengths.
type StrengthStorage interface {
	Get(ctx context.Context, userID string) (float64, error)
	Save(ctx context.Context, userID string, strength float64, reason string) error
}

// CandidateSource supplies catalog cards for reordering.
type CandidateSource interface {
	ListCandidates(ctx context.Context, limit int) ([]models.PersonalizedCard, error)
}

// Config holds engine tuning.
type Config struct {
	// StoreTimeout bounds every durable write on the ingestion hot path.
	StoreTimeout time.Duration
	// FlushInterval is how often the offline queue is drained.
	FlushInterval time.Duration
	// QueueCapacity is the hard bound on the offline queue.
	QueueCapacity int
	// CandidateLimit caps catalog reads per reordering.
	CandidateLimit int

	SessionIdleTimeout     time.Duration
	SessionCleanupInterval time.Duration
}

// Stores bundles the persistence surfaces the engine writes through.
type Stores struct {
	Interactions InteractionWriter
	Snapshots    SnapshotWriter
	Orders       OrderStorage
	Strengths    StrengthStorage
	Catalog      CandidateSource
}

// IngestResult is what one accepted interaction produced.
type IngestResult struct {
	Interaction models.UserInteraction   `json:"interaction"`
	Metrics     models.SessionMetrics    `json:"metrics"`
	Actions     []models.TriggeredAction `json:"actions,omitempty"`
	Dropoff     *dropoff.Result          `json:"dropoff,omitempty"`
	// Queued reports that the durable write failed and the interaction is
	// buffered for a later flush. The interaction still counted toward the
	// live session.
	Queued bool `json:"queued,omitempty"`
}

// Engine is the orchestrator: it owns the session manager, the offline
// queue and the flush loop, and drives scoring and rule evaluation.
type Engine struct {
	config    Config
	stores    Stores
	sessions  *session.Manager
	reorderer *scoring.Reorderer
	detector  *dropoff.Detector
	rules     *rules.Engine
	queue     *offline.Queue
	orders    *cache.OrderCache
	group     singleflight.Group

	ingested      metric.Int64Counter
	queued        metric.Int64Counter
	reorders      metric.Int64Counter
	interventions metric.Int64Counter

	cancel  context.CancelFunc
	runCtx  context.Context
	wg      sync.WaitGroup
	nowFunc func() time.Time
}

// New creates an engine and starts its background flush loop. orderCache may
// be nil when Redis is not configured.
func New(config Config, stores Stores, ruleEngine *rules.Engine, orderCache *cache.OrderCache) *Engine {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 2 * time.Second
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 15 * time.Second
	}
	if config.CandidateLimit <= 0 {
		config.CandidateLimit = DefaultCandidateLimit
	}
	if ruleEngine == nil {
		ruleEngine = rules.NewEngine(nil)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		config:    config,
		stores:    stores,
		reorderer: scoring.NewReorderer(),
		detector:  dropoff.NewDetector(dropoff.DefaultConfig()),
		rules:     ruleEngine,
		queue:     offline.NewQueue(config.QueueCapacity),
		orders:    orderCache,
		runCtx:    runCtx,
		cancel:    cancel,
		nowFunc:   time.Now,
	}

	meter := otel.Meter("dekr-engine")
	e.ingested, _ = meter.Int64Counter("engine.interactions.ingested")
	e.queued, _ = meter.Int64Counter("engine.interactions.queued")
	e.reorders, _ = meter.Int64Counter("engine.reorders")
	e.interventions, _ = meter.Int64Counter("engine.interventions")

	e.sessions = session.NewManager(session.ManagerConfig{
		IdleTimeout:     config.SessionIdleTimeout,
		CleanupInterval: config.SessionCleanupInterval,
	}, e.flushSession)

	e.wg.Add(1)
	go e.flushLoop()

	return e
}

// Sessions exposes the session manager, mainly for tests and the worker's
// metrics endpoint.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// QueueSize returns the current offline-queue depth.
func (e *Engine) QueueSize() int {
	return e.queue.Size()
}

// Ingest validates, stamps and persists one interaction, updates the live
// session and evaluates optimization rules against the fresh snapshot.
//
// A failed durable write does not fail the ingest: the interaction is
// buffered in the offline queue and still counts toward the session.
func (e *Engine) Ingest(ctx context.Context, in models.UserInteraction) (*IngestResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = e.nowFunc()
	}
	if in.SessionID == "" {
		in.SessionID = in.Context.SessionID
	}
	if in.SessionID == "" {
		// No client-provided session: reuse the user's active session or
		// open a new one.
		if id, ok := e.sessions.SessionForUser(in.UserID); ok {
			in.SessionID = id
		} else {
			in.SessionID = uuid.NewString()
		}
	}
	in.Context.SessionID = in.SessionID

	result := &IngestResult{Interaction: in}

	writeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	err := e.stores.Interactions.Put(writeCtx, in)
	cancel()
	if err != nil {
		e.queue.Enqueue(in)
		result.Queued = true
		e.queued.Add(ctx, 1)
		log.Warn().
			Err(err).
			Str("interactionId", in.ID).
			Str("userId", in.UserID).
			Msg("Durable write failed, interaction queued offline")
	}
	e.ingested.Add(ctx, 1)

	sess := e.sessions.Update(in.SessionID, in)
	result.Metrics = sess.SessionMetrics

	result.Actions = e.rules.Evaluate(sess)
	for _, action := range result.Actions {
		e.dispatch(ctx, sess, action, result)
	}

	return result, nil
}

// dispatch applies one triggered action. Action failures are logged, never
// propagated: rule side effects are best effort relative to the ingest.
func (e *Engine) dispatch(ctx context.Context, sess models.SessionContext, action models.TriggeredAction, result *IngestResult) {
	switch action.Action {
	case models.ActionTriggerIntervention:
		detection := e.detector.Detect(sess)
		if detection.Detected {
			result.Dropoff = &detection
			e.interventions.Add(ctx, 1)
			log.Info().
				Str("sessionId", sess.SessionID).
				Str("severity", string(detection.Severity)).
				Strs("interventions", detection.Interventions).
				Msg("Dropoff intervention triggered")
		}

	case models.ActionDecreasePersonalization:
		current, err := e.stores.Strengths.Get(ctx, sess.UserID)
		if err != nil {
			log.Warn().Err(err).Str("userId", sess.UserID).Msg("Strength read failed")
			return
		}
		lowered := clamp01(current - action.ActionValue)
		if err := e.stores.Strengths.Save(ctx, sess.UserID, lowered, "rule "+action.RuleID); err != nil {
			log.Warn().Err(err).Str("userId", sess.UserID).Msg("Strength write failed")
			return
		}
		e.orders.Invalidate(ctx, sess.UserID)
		log.Info().
			Str("userId", sess.UserID).
			Float64("from", current).
			Float64("to", lowered).
			Msg("Personalization strength decreased")

	case models.ActionReorderContent:
		if _, err := e.recomputeOrder(ctx, sess.UserID, sess); err != nil {
			log.Warn().Err(err).Str("userId", sess.UserID).Msg("Rule-driven reorder failed")
		}

	default:
		log.Warn().Str("action", action.Action).Str("ruleId", action.RuleID).Msg("Unknown rule action")
	}
}

// GetCurrentOrder returns the user's personalized content order: cache
// first, then the durable store, then a fresh reordering. Concurrent
// requests for the same user collapse into one computation.
func (e *Engine) GetCurrentOrder(ctx context.Context, userID string) (models.ReorderResult, error) {
	v, err, _ := e.group.Do(userID, func() (any, error) {
		if cached := e.orders.Get(ctx, userID); cached != nil {
			return *cached, nil
		}

		stored, err := e.stores.Orders.Get(ctx, userID)
		if err != nil {
			return models.ReorderResult{}, err
		}
		if stored != nil {
			e.orders.Set(ctx, userID, *stored)
			return *stored, nil
		}

		return e.recomputeOrder(ctx, userID, e.userSession(userID))
	})
	if err != nil {
		return models.ReorderResult{}, err
	}
	return v.(models.ReorderResult), nil
}

// userSession returns the user's live session snapshot, or a neutral empty
// session for users with no active session.
func (e *Engine) userSession(userID string) models.SessionContext {
	if id, ok := e.sessions.SessionForUser(userID); ok {
		if sess, ok := e.sessions.Snapshot(id); ok {
			return sess
		}
	}
	now := e.nowFunc()
	return models.SessionContext{
		UserID:      userID,
		StartTime:   now,
		CurrentTime: now,
		SessionMetrics: models.SessionMetrics{
			EngagementScore: 0.5,
		},
		UserState: models.UserState{EnergyLevel: models.EnergyMedium},
	}
}

// recomputeOrder runs a full reordering for the user, persists it and warms
// the cache. An empty catalog degrades to an empty order, not an error.
func (e *Engine) recomputeOrder(ctx context.Context, userID string, sess models.SessionContext) (models.ReorderResult, error) {
	candidates, err := e.stores.Catalog.ListCandidates(ctx, e.config.CandidateLimit)
	if err != nil {
		return models.ReorderResult{}, err
	}

	result := e.reorderer.Reorder(sess, candidates)
	e.reorders.Add(ctx, 1)

	if err := e.stores.Orders.Save(ctx, userID, sess.SessionID, result); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("Order persist failed")
	}
	e.orders.Set(ctx, userID, result)

	log.Debug().
		Str("userId", userID).
		Int("cards", len(result.Cards)).
		Int("moved", len(result.Reasons)).
		Msg("Content order recomputed")

	return result, nil
}

// GetSessionMetrics returns the live snapshot for a session.
func (e *Engine) GetSessionMetrics(sessionID string) (models.SessionContext, bool) {
	return e.sessions.Snapshot(sessionID)
}

// TriggerEvaluation runs rule evaluation on demand for a session and applies
// any triggered actions.
func (e *Engine) TriggerEvaluation(ctx context.Context, sessionID string) (*IngestResult, bool) {
	sess, ok := e.sessions.Snapshot(sessionID)
	if !ok {
		return nil, false
	}

	result := &IngestResult{Metrics: sess.SessionMetrics}
	result.Actions = e.rules.Evaluate(sess)
	for _, action := range result.Actions {
		e.dispatch(ctx, sess, action, result)
	}
	return result, true
}

// EndSession flushes and tears down a session, then folds the session's
// engagement history into the user's personalization strength. Idempotent.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (models.SessionContext, bool) {
	final, ended := e.sessions.EndSession(ctx, sessionID)
	if !ended {
		return models.SessionContext{}, false
	}

	current, err := e.stores.Strengths.Get(ctx, final.UserID)
	if err != nil {
		log.Warn().Err(err).Str("userId", final.UserID).Msg("Strength read failed on session end")
		return final, true
	}
	adj := scoring.AdjustStrength(current, final)
	if adj.NewStrength != current {
		if err := e.stores.Strengths.Save(ctx, final.UserID, adj.NewStrength, adj.Reason); err != nil {
			log.Warn().Err(err).Str("userId", final.UserID).Msg("Strength write failed on session end")
		} else {
			e.orders.Invalidate(ctx, final.UserID)
			log.Info().
				Str("userId", final.UserID).
				Float64("from", current).
				Float64("to", adj.NewStrength).
				Str("reason", adj.Reason).
				Msg("Personalization strength adjusted")
		}
	}

	return final, true
}

// flushSession persists a session's final snapshot when the manager tears it
// down (explicit end, idle reap, shutdown).
func (e *Engine) flushSession(ctx context.Context, snapshot models.SessionContext) {
	writeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	if err := e.stores.Snapshots.SaveSnapshot(writeCtx, snapshot, true); err != nil {
		log.Warn().Err(err).Str("sessionId", snapshot.SessionID).Msg("Session snapshot persist failed")
	}
}

// flushLoop periodically drains the offline queue into the durable store.
func (e *Engine) flushLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-ticker.C:
			e.FlushQueue(context.Background())
		}
	}
}

// FlushQueue drains the offline queue in one batch write. A failed write
// requeues the batch so nothing is silently lost between attempts. Exposed
// so tests and shutdown can flush without waiting on the ticker.
func (e *Engine) FlushQueue(ctx context.Context) {
	batch := e.queue.DrainAll()
	if len(batch) == 0 {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := e.stores.Interactions.BatchPut(writeCtx, batch); err != nil {
		e.queue.Requeue(batch)
		log.Warn().Err(err).Int("batch", len(batch)).Msg("Offline queue flush failed, batch requeued")
		return
	}
	log.Info().Int("batch", len(batch)).Msg("Offline queue flushed")
}

// Shutdown stops the flush loop, makes a final flush attempt and ends all
// live sessions.
func (e *Engine) Shutdown(ctx context.Context) {
	e.cancel()
	e.wg.Wait()
	e.FlushQueue(ctx)
	e.sessions.Shutdown(ctx)
	if err := e.orders.Close(); err != nil {
		log.Warn().Err(err).Msg("Order cache close failed")
	}
	log.Info().Msg("Engine shut down")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

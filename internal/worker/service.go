// Package worker provides the HTTP worker service for the Dekr engagement
// engine.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/doubledekr/Dekr-NextGen-sub004/internal/cache"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/config"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/db/gorm"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/engine"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/rules"
	"github.com/doubledekr/Dekr-NextGen-sub004/internal/watcher"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
const DefaultHTTPTimeout = 30 * time.Second

// Service is the worker service orchestrator: it owns the engine, the
// database handle and the HTTP server.
type Service struct {
	version string
	config  *config.Config

	store  *gorm.Store
	engine *engine.Engine

	rulesWatcher *watcher.Watcher

	router    *chi.Mux
	server    *http.Server
	startTime time.Time

	wg sync.WaitGroup
}

// NewService creates a fully wired worker service.
func NewService(version string) (*Service, error) {
	cfg := config.Get()

	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	dsn := cfg.DatabaseDSN
	if dsn == "" {
		dsn = config.DBPath()
	}
	store, err := gorm.NewStore(gorm.Config{
		DSN:      dsn,
		MaxConns: cfg.MaxConns,
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ruleSet, err := rules.LoadFile(cfg.RulesPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.RulesPath).Msg("Rules file invalid, using defaults")
		ruleSet = nil
	}
	ruleEngine := rules.NewEngine(ruleSet)

	orderCache := cache.New(cfg.RedisAddr, time.Duration(cfg.OrderCacheTTL)*time.Second)

	eng := engine.New(engine.Config{
		StoreTimeout:           cfg.StoreTimeout,
		FlushInterval:          cfg.FlushInterval,
		QueueCapacity:          cfg.QueueCapacity,
		SessionIdleTimeout:     cfg.SessionIdleTimeout,
		SessionCleanupInterval: cfg.SessionCleanupInterval,
	}, engine.Stores{
		Interactions: gorm.NewInteractionStore(store),
		Snapshots:    gorm.NewSessionStore(store),
		Orders:       gorm.NewOrderStore(store),
		Strengths:    gorm.NewStrengthStore(store),
		Catalog:      gorm.NewCatalogStore(store),
	}, ruleEngine, orderCache)

	svc := &Service{
		version:   version,
		config:    cfg,
		store:     store,
		engine:    eng,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}

	// Hot reload of the rules file is best effort: without it the worker
	// just keeps the rule set it started with.
	if w, err := rules.WatchFile(cfg.RulesPath, ruleEngine); err != nil {
		log.Warn().Err(err).Str("path", cfg.RulesPath).Msg("Rules watcher unavailable")
	} else {
		svc.rulesWatcher = w
	}

	svc.setupMiddleware()
	svc.setupRoutes()

	return svc, nil
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(middleware.RealIP)
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)

	s.router.Post("/api/ingest", s.handleIngest)
	s.router.Get("/api/feed/{userID}", s.handleGetFeed)

	s.router.Get("/api/sessions/{sessionID}/metrics", s.handleSessionMetrics)
	s.router.Post("/api/sessions/{sessionID}/evaluate", s.handleEvaluate)
	s.router.Post("/api/sessions/{sessionID}/end", s.handleEndSession)
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Service) Start() error {
	port := config.GetWorkerPort()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Int("port", port).
		Str("version", s.version).
		Msg("Worker HTTP server started")

	return nil
}

// Shutdown gracefully shuts down the service.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.rulesWatcher != nil {
		_ = s.rulesWatcher.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	s.engine.Shutdown(ctx)

	if err := s.store.Close(); err != nil {
		log.Error().Err(err).Msg("Database close error")
	}

	s.wg.Wait()

	log.Info().Msg("Worker service shutdown complete")
	return nil
}

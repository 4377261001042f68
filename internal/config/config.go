// Package config provides configuration management for the Dekr engine.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 38380

	// DefaultQueueCapacity is the hard bound on the offline queue.
	DefaultQueueCapacity = 100

	// DefaultStoreTimeout bounds every durable-store write on the ingestion
	// hot path. After it elapses the write is treated as failed and routed
	// to the offline queue.
	DefaultStoreTimeout = 2 * time.Second

	// DefaultFlushInterval is how often the offline queue is drained.
	DefaultFlushInterval = 15 * time.Second

	// DefaultSessionIdleTimeout is how long an inactive session can exist
	// before it is flushed and reaped.
	DefaultSessionIdleTimeout = 30 * time.Minute

	// DefaultSessionCleanupInterval is how often to check for idle sessions.
	DefaultSessionCleanupInterval = 5 * time.Minute
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int `json:"worker_port"`

	// Database settings. An empty DSN selects a local sqlite file under the
	// data directory; a postgres:// DSN selects the postgres driver.
	DatabaseDSN string `json:"database_dsn"`
	MaxConns    int    `json:"max_conns"`

	// Redis current-order cache (optional; empty disables caching).
	RedisAddr     string `json:"redis_addr"`
	OrderCacheTTL int    `json:"order_cache_ttl_seconds"`

	// Engine settings
	QueueCapacity          int           `json:"queue_capacity"`
	StoreTimeout           time.Duration `json:"store_timeout"`
	FlushInterval          time.Duration `json:"flush_interval"`
	SessionIdleTimeout     time.Duration `json:"session_idle_timeout"`
	SessionCleanupInterval time.Duration `json:"session_cleanup_interval"`

	// RulesPath points at the optimization-rules YAML file. A missing file
	// means the built-in default rule set.
	RulesPath string `json:"rules_path"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// DataDir returns the data directory path (~/.dekr-engine).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dekr-engine")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// DBPath returns the local sqlite database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "dekr-engine.db")
}

// DefaultRulesPath returns the default rules file path.
func DefaultRulesPath() string {
	return filepath.Join(DataDir(), "rules.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:             DefaultWorkerPort,
		DatabaseDSN:            "",
		MaxConns:               4,
		RedisAddr:              "",
		OrderCacheTTL:          300,
		QueueCapacity:          DefaultQueueCapacity,
		StoreTimeout:           DefaultStoreTimeout,
		FlushInterval:          DefaultFlushInterval,
		SessionIdleTimeout:     DefaultSessionIdleTimeout,
		SessionCleanupInterval: DefaultSessionCleanupInterval,
		RulesPath:              DefaultRulesPath(),
	}
}

// Load loads configuration from the settings file, merging with defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	// Load settings into a map to preserve unknown fields
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return cfg, nil // Return defaults on parse error
	}

	if v, ok := settings["DEKR_WORKER_PORT"].(float64); ok && v > 0 {
		cfg.WorkerPort = int(v)
	}
	if v, ok := settings["DEKR_DATABASE_DSN"].(string); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := settings["DEKR_MAX_CONNS"].(float64); ok && v > 0 {
		cfg.MaxConns = int(v)
	}
	if v, ok := settings["DEKR_REDIS_ADDR"].(string); ok {
		cfg.RedisAddr = v
	}
	if v, ok := settings["DEKR_ORDER_CACHE_TTL_SECONDS"].(float64); ok && v > 0 {
		cfg.OrderCacheTTL = int(v)
	}
	if v, ok := settings["DEKR_QUEUE_CAPACITY"].(float64); ok && v > 0 {
		cfg.QueueCapacity = int(v)
	}
	if v, ok := settings["DEKR_STORE_TIMEOUT_MS"].(float64); ok && v > 0 {
		cfg.StoreTimeout = time.Duration(v) * time.Millisecond
	}
	if v, ok := settings["DEKR_FLUSH_INTERVAL_MS"].(float64); ok && v > 0 {
		cfg.FlushInterval = time.Duration(v) * time.Millisecond
	}
	if v, ok := settings["DEKR_SESSION_IDLE_TIMEOUT_MS"].(float64); ok && v > 0 {
		cfg.SessionIdleTimeout = time.Duration(v) * time.Millisecond
	}
	if v, ok := settings["DEKR_SESSION_CLEANUP_INTERVAL_MS"].(float64); ok && v > 0 {
		cfg.SessionCleanupInterval = time.Duration(v) * time.Millisecond
	}
	if v, ok := settings["DEKR_RULES_PATH"].(string); ok && v != "" {
		cfg.RulesPath = v
	}

	return cfg, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})
	return globalConfig
}

// GetWorkerPort returns the worker port from environment or config.
func GetWorkerPort() int {
	if port := os.Getenv("DEKR_WORKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			return p
		}
	}
	return Get().WorkerPort
}

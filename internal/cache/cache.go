// Package cache provides an optional Redis-backed cache for current content
// orders. The engine treats it as best effort: a missing or failing Redis
// never blocks a request, it only costs a database read.
package cache

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// DefaultTTL is how long a cached order stays valid without invalidation.
const DefaultTTL = 5 * time.Minute

// OrderCache caches per-user content orders in Redis. A nil *OrderCache is
// valid and behaves as a permanent miss.
type OrderCache struct {
	pool *redis.Pool
	ttl  time.Duration
}

// New creates an order cache against the given Redis address. An empty
// address disables caching and returns nil.
func New(addr string, ttl time.Duration) *OrderCache {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	pool := &redis.Pool{
		MaxIdle:     4,
		MaxActive:   16,
		IdleTimeout: 60 * time.Second,
		Wait:        true,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr,
				redis.DialConnectTimeout(1*time.Second),
				redis.DialReadTimeout(500*time.Millisecond),
				redis.DialWriteTimeout(500*time.Millisecond),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < 30*time.Second {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	return &OrderCache{pool: pool, ttl: ttl}
}

func orderKey(userID string) string {
	return fmt.Sprintf("dekr:order:%s", userID)
}

// Get returns the cached order for a user, or nil on miss or cache failure.
func (c *OrderCache) Get(ctx context.Context, userID string) *models.ReorderResult {
	if c == nil {
		return nil
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Order cache unavailable")
		return nil
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", orderKey(userID)))
	if err != nil {
		if err != redis.ErrNil {
			log.Debug().Err(err).Str("user_id", userID).Msg("Order cache read failed")
		}
		return nil
	}

	var result models.ReorderResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Corrupt cached order, ignoring")
		return nil
	}
	return &result
}

// Set stores the user's current order. Failures are logged and swallowed.
func (c *OrderCache) Set(ctx context.Context, userID string, result models.ReorderResult) {
	if c == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Marshal order for cache failed")
		return
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Order cache unavailable")
		return
	}
	defer conn.Close()

	if _, err := conn.Do("SET", orderKey(userID), data, "PX", c.ttl.Milliseconds()); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Order cache write failed")
	}
}

// Invalidate drops the cached order so the next read recomputes it.
func (c *OrderCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}

	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", orderKey(userID)); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Order cache invalidation failed")
	}
}

// Close releases the connection pool.
func (c *OrderCache) Close() error {
	if c == nil {
		return nil
	}
	return c.pool.Close()
}

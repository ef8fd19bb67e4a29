// Package cache keeps profile embeddings between requests: L1 in memory, L2
// in Redis when configured. Keys hash the model name with the normalized
// text, so an edited profile misses and is re-embedded lazily.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL        = 6 * time.Hour
	DefaultMaxEntries = 10000
	keyPrefix         = "jr:"
)

type Config struct {
	RedisURL        string        `mapstructure:"redis-url"`
	TTL             time.Duration `mapstructure:"ttl" validate:"gte=0"`
	MaxEntries      int           `mapstructure:"max-entries" validate:"gte=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup-interval" validate:"gte=0"`
}

// Tiered implements L1 (memory) + L2 (Redis) caching.
type Tiered struct {
	mu         sync.Mutex
	l1         map[string]*entry
	rdb        *redis.Client // nil if Redis unavailable
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New sets up the cache. An empty or unreachable Redis URL disables L2; the
// cache still works in memory.
func New(ctx context.Context, cfg Config, logger *zap.Logger) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	c := &Tiered{
		l1:         make(map[string]*entry),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
		logger:     logger,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid redis url, L2 disabled", zap.Error(err))
		} else {
			rdb := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				logger.Warn("redis unreachable, L2 disabled", zap.Error(err))
				_ = rdb.Close()
			} else {
				c.rdb = rdb
				logger.Info("L2 redis connected", zap.String("addr", opts.Addr))
			}
		}
	}

	logger.Info("cache initialized", zap.Duration("ttl", c.ttl), zap.Bool("redis", c.rdb != nil), zap.Int("max_entries", c.maxEntries))
	return c
}

// Key builds a deterministic cache key from parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Get tries L1, then L2. An L2 hit populates L1.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	if e, ok := c.l1[key]; ok {
		if c.now().Before(e.expiresAt) {
			c.mu.Unlock()
			c.hits.Add(1)
			return e.data, true
		}
		delete(c.l1, key)
	}
	c.mu.Unlock()

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			c.hits.Add(1)
			c.storeL1(key, data)
			return data, true
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("L2 get failed", zap.Error(err))
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores value in both tiers. L2 failures are logged, not returned.
func (c *Tiered) Set(ctx context.Context, key string, data []byte) {
	c.storeL1(key, data)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("L2 set failed", zap.Error(err))
		}
	}
}

func (c *Tiered) storeL1(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.l1[key]; !ok {
		c.evictLocked()
	}
	c.l1[key] = &entry{data: data, expiresAt: c.now().Add(c.ttl)}
}

// evictLocked makes room for one entry: expired entries go first, then the
// ones closest to expiry.
func (c *Tiered) evictLocked() {
	if len(c.l1) < c.maxEntries {
		return
	}
	now := c.now()
	for k, e := range c.l1 {
		if now.After(e.expiresAt) {
			delete(c.l1, k)
		}
	}
	for len(c.l1) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.l1 {
			if oldestKey == "" || e.expiresAt.Before(oldest) || (e.expiresAt.Equal(oldest) && k < oldestKey) {
				oldestKey, oldest = k, e.expiresAt
			}
		}
		delete(c.l1, oldestKey)
	}
}

// Cleanup drops expired L1 entries every interval until ctx ends.
func (c *Tiered) Cleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for k, e := range c.l1 {
				if now.After(e.expiresAt) {
					delete(c.l1, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Stats returns hit and miss counters.
func (c *Tiered) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Tiered) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.l1)
}

func (c *Tiered) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

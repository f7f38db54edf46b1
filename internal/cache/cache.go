// Package cache keeps query results in Redis so repeated patterns skip the
// index, and coalesces concurrent identical queries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/viniciusth/rankindex/internal/logger"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "rankindex:"

var ErrMiss = errors.New("cache: miss")

// Backend is the key-value store behind the cache.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type QueryCache struct {
	backend   Backend
	namespace string
	ttl       time.Duration
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// New returns a cache whose keys are scoped by namespace, which should
// identify the indexed text and its build options.
func New(backend Backend, namespace string, ttl time.Duration) *QueryCache {
	return &QueryCache{
		backend:   backend,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger.WithComponent("query-cache"),
	}
}

// Namespace derives a namespace from the indexed text and a description of
// the options it was built with.
func Namespace(text []byte, options string) string {
	h := sha256.New()
	h.Write(text)
	h.Write([]byte{0})
	h.Write([]byte(options))
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}

func (c *QueryCache) get(ctx context.Context, key string) ([]int, bool) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var positions []int
	if err := json.Unmarshal([]byte(data), &positions); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return positions, true
}

func (c *QueryCache) set(ctx context.Context, key string, positions []int) {
	data, err := json.Marshal(positions)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached positions for (mode, pattern) or runs
// compute and stores its result. Errors from compute are not cached. The
// boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	mode string,
	pattern []byte,
	compute func() ([]int, error),
) ([]int, bool, error) {
	key := c.buildKey(mode, pattern)
	if positions, ok := c.get(ctx, key); ok {
		return positions, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		positions, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, positions)
		return positions, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]int), false, nil
}

// Stats returns the lookups served from the backend and those that fell
// through to compute since the cache was created.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(mode string, pattern []byte) string {
	hash := sha256.Sum256(pattern)
	return fmt.Sprintf("%s%s:%s:%x", keyPrefix, c.namespace, mode, hash[:16])
}

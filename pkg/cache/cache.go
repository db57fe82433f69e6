package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/sphinxql/pkg/async"
	"github.com/platinummonkey/sphinxql/pkg/observability"
	"github.com/platinummonkey/sphinxql/pkg/sphinxql"
)

// DefaultKeyPrefix namespaces result keys in redis
const DefaultKeyPrefix = "sphinxql:result:"

// Config holds result cache settings
type Config struct {
	Size      int           // max L1 entries
	TTL       time.Duration // applies to both tiers
	KeyPrefix string
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		Size:      1024,
		TTL:       5 * time.Minute,
		KeyPrefix: DefaultKeyPrefix,
	}
}

// Stats holds cache statistics
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	ItemCount int64   `json:"item_count"`
	HitRate   float64 `json:"hit_rate"`
}

// Executor is a sphinxql.Executor that serves repeated statements from an
// in-process LRU and, when configured, a shared redis tier before falling
// through to the wrapped executor.
//
// Results returned from the cache are shared and must not be modified.
type Executor struct {
	next    sphinxql.Executor
	local   *lru.LRU[string, *sphinxql.ResultSet]
	redis   *redis.Client
	config  Config
	logger  *logrus.Logger
	metrics *observability.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps next. redisClient and metrics may be nil; without redis only the
// local tier is used.
func New(next sphinxql.Executor, config Config, redisClient *redis.Client, logger *logrus.Logger, metrics *observability.Metrics) *Executor {
	defaults := DefaultConfig()
	if config.Size <= 0 {
		config.Size = defaults.Size
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Executor{
		next:    next,
		local:   lru.NewLRU[string, *sphinxql.ResultSet](config.Size, nil, config.TTL),
		redis:   redisClient,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Key returns the cache key for q's rendered statement
func (e *Executor) Key(q *sphinxql.Query) string {
	sum := sha256.Sum256([]byte(q.Render()))
	return e.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// Query implements sphinxql.Executor
func (e *Executor) Query(ctx context.Context, q *sphinxql.Query) (*sphinxql.ResultSet, error) {
	if q == nil {
		return e.next.Query(ctx, q)
	}

	key := e.Key(q)
	log := observability.WithTraceContext(ctx, e.logger.WithField("cache_key", key))

	if result, ok := e.local.Get(key); ok {
		e.hits.Add(1)
		e.metrics.RecordCacheHit("l1")
		return result, nil
	}

	if result, ok := e.getRemote(ctx, key, log); ok {
		e.hits.Add(1)
		e.metrics.RecordCacheHit("l2")
		e.local.Add(key, result)
		return result, nil
	}

	e.misses.Add(1)
	e.metrics.RecordCacheMiss()

	result, err := e.next.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	e.local.Add(key, result)
	e.setRemote(ctx, key, result, log)
	return result, nil
}

func (e *Executor) getRemote(ctx context.Context, key string, log *logrus.Entry) (*sphinxql.ResultSet, bool) {
	if e.redis == nil {
		return nil, false
	}

	data, err := e.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		e.metrics.RecordCacheError("get")
		log.WithError(err).Warn("Redis get failed, using local cache only")
		return nil, false
	}

	var result sphinxql.ResultSet
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		e.metrics.RecordCacheError("decode")
		log.WithError(err).Warn("Discarding undecodable cache entry")
		return nil, false
	}
	return &result, true
}

func (e *Executor) setRemote(ctx context.Context, key string, result *sphinxql.ResultSet, log *logrus.Entry) {
	if e.redis == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		e.metrics.RecordCacheError("encode")
		log.WithError(err).Warn("Failed to encode result for cache")
		return
	}

	if err := e.redis.Set(ctx, key, data, e.config.TTL).Err(); err != nil {
		e.metrics.RecordCacheError("set")
		log.WithError(err).Warn("Redis set failed, using local cache only")
	}
}

// Invalidate drops q's cached result from both tiers
func (e *Executor) Invalidate(ctx context.Context, q *sphinxql.Query) error {
	key := e.Key(q)
	e.local.Remove(key)

	if e.redis == nil {
		return nil
	}
	if err := e.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	return nil
}

// Purge clears the local tier and deletes every redis key under the prefix
func (e *Executor) Purge(ctx context.Context) error {
	e.local.Purge()

	if e.redis == nil {
		return nil
	}

	iter := e.redis.Scan(ctx, 0, e.config.KeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := e.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}

	e.logger.WithField("keys", len(keys)).Info("Purged result cache")
	return nil
}

// Warm executes queries through the cache, at most workers at a time, so
// that later identical statements are served from it. Failed statements are
// joined into the returned error; the rest stay cached.
func (e *Executor) Warm(ctx context.Context, workers int, queries ...*sphinxql.Query) error {
	errs := async.Batch(ctx, queries, workers, e.config.TTL, func(ctx context.Context, q *sphinxql.Query) error {
		_, err := e.Query(ctx, q)
		switch {
		case err == nil:
			return nil
		case q == nil:
			return fmt.Errorf("warm nil query: %w", err)
		default:
			return fmt.Errorf("warm %q: %w", q.Render(), err)
		}
	})
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	e.logger.WithField("statements", len(queries)).Info("Warmed result cache")
	return nil
}

// Stats returns hit and miss counts since creation
func (e *Executor) Stats() Stats {
	stats := Stats{
		Hits:      e.hits.Load(),
		Misses:    e.misses.Load(),
		ItemCount: int64(e.local.Len()),
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

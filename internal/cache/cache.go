// Package cache stores computed analytics payloads so repeated summary and
// trend requests with the same filter skip the row scan.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

const keyPrefix = "ecovision"

// Key kinds
const (
	KindSummary = "summary"
	KindTrends  = "trends"
)

// Config holds Redis connection configuration
type Config struct {
	Address        string
	Password       string
	DB             int
	TTL            time.Duration
	ConnectTimeout time.Duration
}

// Cache is a JSON value cache
type Cache interface {
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Close() error
}

// Key builds "ecovision:<kind>:<parts...>"
func Key(kind string, parts ...interface{}) string {
	key := keyPrefix + ":" + kind
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}

// New returns a Redis cache, or a no-op cache when no address is configured.
func New(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (Cache, error) {
	if cfg.Address == "" {
		logger.Info(context.Background(), "[CACHE_DISABLED] No Redis address configured, analytics cache disabled", logging.Fields{})
		return Noop{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := pingWithRetry(client, cfg, logger); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info(context.Background(), "[CACHE_INIT] Redis cache connected", logging.Fields{
		"address": cfg.Address,
		"db":      cfg.DB,
		"ttl":     cfg.TTL.String(),
	})

	return NewRedis(client, cfg.TTL, metricsCollector), nil
}

func pingWithRetry(client *redis.Client, cfg Config, logger *logging.StructuredLogger) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = cfg.ConnectTimeout
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 5 * time.Second
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "[CACHE_PING_RETRY] Redis not reachable yet", logging.Fields{
				"attempt": attempt,
				"address": cfg.Address,
				"error":   err.Error(),
			})
			return err
		}
		return nil
	}, bo)
}

// Redis is a Cache backed by go-redis
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Collector
}

// NewRedis wraps an existing client. A zero ttl keeps entries until evicted.
func NewRedis(client *redis.Client, ttl time.Duration, metricsCollector *metrics.Collector) *Redis {
	return &Redis{
		client:  client,
		ttl:     ttl,
		metrics: metricsCollector,
	}
}

// Get implements Cache
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.record(key, "miss")
		return false, nil
	}
	if err != nil {
		r.record(key, "error")
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		r.record(key, "error")
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}

	r.record(key, "hit")
	return true, nil
}

// Set implements Cache
func (r *Redis) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.record(key, "error")
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	return nil
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) record(key, result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordCache(kindOf(key), result)
}

// kindOf extracts <kind> from "ecovision:<kind>:..."
func kindOf(key string) string {
	rest := strings.TrimPrefix(key, keyPrefix+":")
	kind, _, _ := strings.Cut(rest, ":")
	return kind
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (Noop) Set(context.Context, string, interface{}) error          { return nil }
func (Noop) Close() error                                            { return nil }

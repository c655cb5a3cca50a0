package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

type payload struct {
	Name  string   `json:"name"`
	Avg   *float64 `json:"avg"`
	Count int      `json:"count"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis, *metrics.Collector) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	collector := metrics.NewCollector("test", prometheus.NewRegistry())
	return NewRedis(client, ttl, collector), mr, collector
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ecovision:summary:metric=temperature:1:10", Key(KindSummary, "metric=temperature", 1, 10))
	assert.Equal(t, "ecovision:trends:all", Key(KindTrends, "all"))
	assert.Equal(t, "summary", kindOf(Key(KindSummary, "all", 1, 10)))
	assert.Equal(t, "trends", kindOf(Key(KindTrends, "all")))
}

func TestRedis_SetGet(t *testing.T) {
	c, _, collector := newTestCache(t, time.Minute)
	ctx := context.Background()
	key := Key(KindSummary, "all", 1, 10)

	var got payload
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	avg := 6.0
	require.NoError(t, c.Set(ctx, key, payload{Name: "temperature", Avg: &avg, Count: 2}))

	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "temperature", got.Name)
	require.NotNil(t, got.Avg)
	assert.Equal(t, 6.0, *got.Avg)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheRequestsTotal.WithLabelValues(KindSummary, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheRequestsTotal.WithLabelValues(KindSummary, "hit")))
}

func TestRedis_NullFieldsSurvive(t *testing.T) {
	c, _, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	key := Key(KindSummary, "empty")

	require.NoError(t, c.Set(ctx, key, payload{Name: "humidity"}))

	var got payload
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, got.Avg)
}

func TestRedis_TTLExpiry(t *testing.T) {
	c, mr, _ := newTestCache(t, 30*time.Second)
	ctx := context.Background()
	key := Key(KindTrends, "all")

	require.NoError(t, c.Set(ctx, key, payload{Name: "temperature"}))
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	mr.FastForward(31 * time.Second)

	var got payload
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_CorruptValue(t *testing.T) {
	c, mr, collector := newTestCache(t, time.Minute)
	key := Key(KindTrends, "all")
	require.NoError(t, mr.Set(key, "{not json"))

	var got payload
	found, err := c.Get(context.Background(), key, &got)
	assert.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheRequestsTotal.WithLabelValues(KindTrends, "error")))
}

func TestRedis_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	c := NewRedis(client, time.Minute, nil)
	mr.Close()

	var got payload
	_, err = c.Get(context.Background(), Key(KindSummary, "all"), &got)
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), Key(KindSummary, "all"), payload{}))
}

func TestNew_EmptyAddressIsNoop(t *testing.T) {
	logger := logging.NewStructuredLogger("test", "0.0.0", logging.ErrorLevel)
	logger.SetOutput(io.Discard)

	c, err := New(Config{}, logger, nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	var got payload
	found, err := c.Get(context.Background(), "k", &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Set(context.Background(), "k", got))
	assert.NoError(t, c.Close())
}

func TestNew_ConnectsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.NewStructuredLogger("test", "0.0.0", logging.ErrorLevel)
	logger.SetOutput(io.Discard)

	c, err := New(Config{Address: mr.Addr(), TTL: time.Minute}, logger, metrics.NewCollector("test", prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.IsType(t, &Redis{}, c)
}

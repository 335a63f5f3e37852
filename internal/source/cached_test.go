package source

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/pkg/config"
	"github.com/wonny/trendlens/pkg/logger"
	"github.com/wonny/trendlens/pkg/redis"
)

type countingSource struct {
	topicCalls  atomic.Int32
	seriesCalls atomic.Int32
	release     chan struct{}
}

func (s *countingSource) Topic(ctx context.Context, id contracts.TopicID) (*contracts.Topic, error) {
	s.topicCalls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if id == "missing" {
		return nil, fmt.Errorf("lookup %s: %w", id, ErrNotFound)
	}
	return &contracts.Topic{ID: id, Name: "Topic " + string(id), Stage: contracts.StageEmerging}, nil
}

func (s *countingSource) TimeSeries(ctx context.Context, id contracts.TopicID) ([]contracts.TimeSeriesPoint, error) {
	s.seriesCalls.Add(1)
	v := 12.5
	return []contracts.TimeSeriesPoint{{Date: "2024-01-01", Source: "reddit", NormalizedValue: &v}}, nil
}

func (s *countingSource) Forecast(ctx context.Context, id contracts.TopicID) (*contracts.ForecastResponse, error) {
	return &contracts.ForecastResponse{ModelVersion: "prophet-v2"}, nil
}

func disabledCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	return redis.NewCache(client, "test")
}

func TestCached_PassThroughWhenDisabled(t *testing.T) {
	next := &countingSource{}
	src := NewCached(next, disabledCache(t), time.Minute, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		topic, err := src.Topic(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, "Topic 7", topic.Name)
	}
	assert.Equal(t, int32(3), next.topicCalls.Load())

	points, err := src.TimeSeries(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, points, 1)

	fc, err := src.Forecast(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "prophet-v2", fc.ModelVersion)

	assert.NoError(t, src.Invalidate(ctx, "7"))
}

func TestCached_NotFoundPropagates(t *testing.T) {
	src := NewCached(&countingSource{}, disabledCache(t), 0, logger.Nop())

	_, err := src.Topic(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestCached_CollapsesConcurrentMisses(t *testing.T) {
	next := &countingSource{release: make(chan struct{})}
	src := NewCached(next, disabledCache(t), time.Minute, logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			topic, err := src.Topic(context.Background(), "9")
			assert.NoError(t, err)
			assert.Equal(t, contracts.TopicID("9"), topic.ID)
		}()
	}

	// 모든 고루틴이 대기열에 들어갈 때까지 잠시 대기
	require.Eventually(t, func() bool { return next.topicCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.release)
	wg.Wait()

	assert.LessOrEqual(t, next.topicCalls.Load(), int32(5))
	assert.GreaterOrEqual(t, next.topicCalls.Load(), int32(1))
}

func TestCached_RedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer rdb.Close()
	cache := redis.NewCache(redis.NewFromRedis(rdb), fmt.Sprintf("test-%d", time.Now().UnixNano()))

	next := &countingSource{}
	src := NewCached(next, cache, time.Minute, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		points, err := src.TimeSeries(ctx, "11")
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, 12.5, *points[0].NormalizedValue)
	}
	assert.Equal(t, int32(1), next.seriesCalls.Load())

	require.NoError(t, src.Invalidate(ctx, "11"))
	_, err := src.TimeSeries(ctx, "11")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.seriesCalls.Load())
}

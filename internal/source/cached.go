package source

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/pkg/logger"
	"github.com/wonny/trendlens/pkg/redis"
)

// Cached wraps a Source with a Redis payload cache
// 캐시 장애는 조회 실패로 취급하지 않음 (로그 후 원본 조회)
type Cached struct {
	next   Source
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
	group  singleflight.Group
}

// NewCached creates a caching decorator; a disabled cache is a pass-through
func NewCached(next Source, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Cached {
	if ttl <= 0 {
		ttl = redis.TTLShort
	}
	return &Cached{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log,
	}
}

// Topic implements Source
func (c *Cached) Topic(ctx context.Context, id contracts.TopicID) (*contracts.Topic, error) {
	var topic contracts.Topic
	v, err := c.load(ctx, redis.TopicKey(string(id)), &topic, func() (interface{}, error) {
		return c.next.Topic(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*contracts.Topic), nil
}

// TimeSeries implements Source
func (c *Cached) TimeSeries(ctx context.Context, id contracts.TopicID) ([]contracts.TimeSeriesPoint, error) {
	var points []contracts.TimeSeriesPoint
	v, err := c.load(ctx, redis.TimeSeriesKey(string(id)), &points, func() (interface{}, error) {
		return c.next.TimeSeries(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.([]contracts.TimeSeriesPoint), nil
}

// Forecast implements Source
func (c *Cached) Forecast(ctx context.Context, id contracts.TopicID) (*contracts.ForecastResponse, error) {
	var resp contracts.ForecastResponse
	v, err := c.load(ctx, redis.ForecastKey(string(id)), &resp, func() (interface{}, error) {
		return c.next.Forecast(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*contracts.ForecastResponse), nil
}

// Invalidate drops all cached payloads for a topic
func (c *Cached) Invalidate(ctx context.Context, id contracts.TopicID) error {
	for _, key := range []string{
		redis.TopicKey(string(id)),
		redis.TimeSeriesKey(string(id)),
		redis.ForecastKey(string(id)),
	} {
		if err := c.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// load checks the cache, then collapses concurrent misses into one fetch
// dest must be a pointer; the returned value has fetch's dynamic type
func (c *Cached) load(ctx context.Context, key string, dest interface{}, fetch func() (interface{}, error)) (interface{}, error) {
	if c.cache.Enabled() {
		hit, err := c.cache.Get(ctx, key, dest)
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		if hit {
			return deref(dest), nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, v, c.ttl); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
		return v, nil
	})
	return v, err
}

// deref turns the decode target back into the type fetch returns
func deref(dest interface{}) interface{} {
	switch d := dest.(type) {
	case *[]contracts.TimeSeriesPoint:
		return *d
	default:
		return dest
	}
}

package source

import (
	"context"
	"errors"

	"github.com/wonny/trendlens/internal/contracts"
)

// ErrNotFound is returned when the upstream has no record for the topic
var ErrNotFound = errors.New("topic not found")

// Source reads the three upstream payloads for a topic
// ⭐ SSOT: 토픽/시계열/예측 조회 계약
//
// Implementations: trendapi.Client (HTTP), trenddb.Repository (PostgreSQL),
// and the Cached decorator over either.
type Source interface {
	Topic(ctx context.Context, id contracts.TopicID) (*contracts.Topic, error)
	TimeSeries(ctx context.Context, id contracts.TopicID) ([]contracts.TimeSeriesPoint, error)
	Forecast(ctx context.Context, id contracts.TopicID) (*contracts.ForecastResponse, error)
}

// IsNotFound reports whether err means the topic does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

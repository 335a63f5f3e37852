package trendapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/source"
	"github.com/wonny/trendlens/pkg/config"
	"github.com/wonny/trendlens/pkg/httputil"
	"github.com/wonny/trendlens/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, apiKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{TrendAPI: config.TrendAPIConfig{Timeout: 2 * time.Second}}
	hc := httputil.New(cfg, logger.Nop()).WithRetry(1, time.Millisecond)
	return NewClient(hc, srv.URL+"/", apiKey, logger.Nop())
}

func TestTopic(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/topics/42", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 42,
			"name": "Mushroom coffee",
			"stage": "peaking",
			"primary_category": "beverages",
			"latest_scores": {
				"opportunity": {"value": 64, "explanation": {
					"confidence": "medium",
					"dampener_applied": true,
					"components": {
						"review_gap":   {"weight": 0.2, "contribution": "9.5", "severity": 71},
						"cross_source": {"weight": 0.2, "contribution": 12, "sources_positive": 1, "total_sources": 3},
						"mystery":      null
					}
				}},
				"competition": {"value": 72}
			}
		}`))
	}, "secret")

	topic, err := c.Topic(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, contracts.TopicID("42"), topic.ID)
	assert.Equal(t, contracts.StagePeaking, topic.Stage)
	require.NotNil(t, topic.LatestScores.CompetitionValue())
	assert.Equal(t, 72.0, *topic.LatestScores.CompetitionValue())
	assert.Nil(t, topic.LatestScores.DemandValue())

	exp := topic.LatestScores.Explanation()
	require.NotNil(t, exp)
	require.Len(t, exp.Components, 2, "non-object components are skipped")
	assert.Equal(t, "review_gap", exp.Components[0].Key, "upstream key order is kept")
	assert.Equal(t, 9.5, exp.Components[0].Contribution)
	assert.Equal(t, contracts.KindReviewGap, exp.Components[0].Kind())
	assert.Equal(t, 3, *exp.Components[1].CrossSource.TotalSources)
}

func TestTopic_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, "")

	_, err := c.Topic(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, source.IsNotFound(err))
}

func TestTopic_ServerErrorIsStatusError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}, "")

	_, err := c.Topic(context.Background(), "1")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Contains(t, se.Body, "upstream exploded")
	assert.False(t, source.IsNotFound(err))
	assert.Equal(t, 2, calls, "one retry configured")
}

func TestTimeSeries_ArrayAndWrapped(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"array", `[{"date":"2024-01-01","source":"reddit","normalized_value":4},{"date":"2024-01-01","source":"tiktok","raw_value":9}]`, 2},
		{"wrapped", `{"data":[{"date":"2024-01-02","source":"google_trends","normalized_value":55}]}`, 1},
		{"wrapped empty", `{"data":null}`, 0},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/topics/5/timeseries", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}, "")

			points, err := c.TimeSeries(context.Background(), "5")
			require.NoError(t, err)
			assert.Len(t, points, tt.want)
			assert.NotNil(t, points)
		})
	}
}

func TestForecast(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/topics/5/forecast", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"model_version": "prophet-1.1",
			"generated_at": "2024-03-05T06:00:00Z",
			"forecasts": [
				{"forecast_date": "2024-03-06", "yhat": 51.2, "yhat_lower": 44.0, "yhat_upper": 58.1},
				{"forecast_date": "2024-03-07", "yhat": 0, "yhat_lower": 0, "yhat_upper": 3}
			]
		}`))
	}, "")

	fc, err := c.Forecast(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "prophet-1.1", fc.ModelVersion)
	require.NotNil(t, fc.GeneratedAt)
	assert.Len(t, fc.Forecasts, 2, "filtering happens in the merge, not the client")
}

func TestForecast_NaiveGeneratedAt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"model_version": "prophet-1.1",
			"generated_at": "2024-03-05T06:00:00.123456",
			"forecasts": [
				{"forecast_date": "2024-03-06", "yhat": 51.2, "yhat_lower": 44.0, "yhat_upper": 58.1}
			]
		}`))
	}, "")

	fc, err := c.Forecast(context.Background(), "5")
	require.NoError(t, err)
	require.NotNil(t, fc.GeneratedAt)
	assert.Equal(t, time.Date(2024, 3, 5, 6, 0, 0, 123456000, time.UTC), fc.GeneratedAt.UTC())
	assert.Len(t, fc.Forecasts, 1)
}

func TestForecast_UnparseableGeneratedAtKeepsForecasts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"model_version": "prophet-1.1",
			"generated_at": "n/a",
			"forecasts": [
				{"forecast_date": "2024-03-06", "yhat": 51.2, "yhat_lower": 44.0, "yhat_upper": 58.1}
			]
		}`))
	}, "")

	fc, err := c.Forecast(context.Background(), "5")
	require.NoError(t, err)
	assert.Nil(t, fc.GeneratedAt)
	assert.Len(t, fc.Forecasts, 1)
}

func TestTopicPath_EscapesID(t *testing.T) {
	c := NewClient(nil, "http://trend.local/api/", "", logger.Nop())
	assert.Equal(t, "http://trend.local/api/topics/a%2Fb/forecast", c.topicPath("a/b", "forecast"))
}

package trendapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/source"
	"github.com/wonny/trendlens/pkg/httputil"
	"github.com/wonny/trendlens/pkg/logger"
)

// maxErrorBody bounds how much of a failed response is kept for the error
const maxErrorBody = 512

// Client handles communication with the upstream trend service
// ⭐ SSOT: 트렌드 서비스 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// StatusError is returned for non-2xx responses other than 404
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("trend api %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("trend api %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// NewClient creates a new trend service client
func NewClient(httpClient *httputil.Client, baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

var _ source.Source = (*Client)(nil)

// Topic fetches GET /topics/{id}
func (c *Client) Topic(ctx context.Context, id contracts.TopicID) (*contracts.Topic, error) {
	var topic contracts.Topic
	if err := c.getJSON(ctx, c.topicPath(id, ""), &topic); err != nil {
		return nil, err
	}
	if topic.ID == "" {
		topic.ID = id
	}
	return &topic, nil
}

// TimeSeries fetches GET /topics/{id}/timeseries
// 응답은 배열 또는 {"data": [...]} 둘 다 허용
func (c *Client) TimeSeries(ctx context.Context, id contracts.TopicID) ([]contracts.TimeSeriesPoint, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, c.topicPath(id, "timeseries"), &raw); err != nil {
		return nil, err
	}

	points, err := decodeTimeSeries(raw)
	if err != nil {
		return nil, fmt.Errorf("decode timeseries for topic %s: %w", id, err)
	}
	return points, nil
}

// Forecast fetches GET /topics/{id}/forecast
func (c *Client) Forecast(ctx context.Context, id contracts.TopicID) (*contracts.ForecastResponse, error) {
	var resp contracts.ForecastResponse
	if err := c.getJSON(ctx, c.topicPath(id, "forecast"), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) topicPath(id contracts.TopicID, suffix string) string {
	path := fmt.Sprintf("%s/topics/%s", c.baseURL, url.PathEscape(string(id)))
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

// getJSON fetches a URL and decodes the JSON body into dest
func (c *Client) getJSON(ctx context.Context, fullURL string, dest interface{}) error {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Get(ctx, fullURL, header)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: %w", fullURL, source.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			StatusCode: resp.StatusCode,
			URL:        fullURL,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}

func decodeTimeSeries(raw json.RawMessage) ([]contracts.TimeSeriesPoint, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []contracts.TimeSeriesPoint{}, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Data []contracts.TimeSeriesPoint `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Data == nil {
			wrapped.Data = []contracts.TimeSeriesPoint{}
		}
		return wrapped.Data, nil
	}

	var points []contracts.TimeSeriesPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, err
	}
	return points, nil
}

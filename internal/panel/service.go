package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/evidence"
	"github.com/wonny/trendlens/internal/evidenceconfig"
	"github.com/wonny/trendlens/internal/source"
	"github.com/wonny/trendlens/internal/timeline"
	"github.com/wonny/trendlens/pkg/logger"
)

// Update sections
const (
	SectionTopic    = "topic"
	SectionSignals  = "signals"
	SectionTimeline = "timeline"
)

// SectionUpdate is one incremental piece of the evidence panel
type SectionUpdate struct {
	Section  string                   `json:"section"`
	State    contracts.SectionState   `json:"state"`
	Error    string                   `json:"error,omitempty"`
	Topic    *contracts.TopicSummary  `json:"topic,omitempty"`
	Score    *contracts.ScoreEvidence `json:"score,omitempty"`
	Signals  *contracts.Convergence   `json:"signals,omitempty"`
	Timeline *contracts.Timeline      `json:"timeline,omitempty"`
}

// Service loads a topic's three upstream payloads and derives its evidence
// ⭐ SSOT: 근거 패널 조립은 여기서만
//
// The three fetches are independent; a failure in one never blocks or
// fails the others.
type Service struct {
	src    source.Source
	engine *evidence.Engine
	cfg    *evidenceconfig.Config
	hash   string
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a panel service
func NewService(src source.Source, cfg *evidenceconfig.Config, log *logger.Logger) (*Service, error) {
	if cfg == nil {
		cfg = evidenceconfig.Default()
	}
	hash, err := evidenceconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash evidence config: %w", err)
	}

	return &Service{
		src:    src,
		engine: evidence.NewEngine(cfg),
		cfg:    cfg,
		hash:   hash,
		logger: log,
		now:    time.Now,
	}, nil
}

// Config returns the active evidence configuration
func (s *Service) Config() *evidenceconfig.Config {
	return s.cfg
}

// ConfigHash returns the SHA-256 of the active evidence configuration
func (s *Service) ConfigHash() string {
	return s.hash
}

// fetchResult holds the outcome of the three fetches
type fetchResult struct {
	topic       *contracts.Topic
	topicErr    error
	series      []contracts.TimeSeriesPoint
	seriesErr   error
	forecast    *contracts.ForecastResponse
	forecastErr error
}

// Load fetches everything for one topic and returns the assembled evidence
// Returns source.ErrNotFound only when the topic itself does not exist.
func (s *Service) Load(ctx context.Context, id contracts.TopicID) (*contracts.TopicEvidence, error) {
	var res fetchResult

	// 각 고루틴은 자기 결과만 기록하고 그룹을 실패시키지 않음
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.topic, res.topicErr = s.src.Topic(gctx, id)
		return nil
	})
	g.Go(func() error {
		res.series, res.seriesErr = s.src.TimeSeries(gctx, id)
		return nil
	})
	g.Go(func() error {
		res.forecast, res.forecastErr = s.src.Forecast(gctx, id)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if source.IsNotFound(res.topicErr) {
		return nil, res.topicErr
	}

	return s.assemble(id, &res), nil
}

// assemble derives every section from the fetch outcomes
func (s *Service) assemble(id contracts.TopicID, res *fetchResult) *contracts.TopicEvidence {
	ev := &contracts.TopicEvidence{
		TopicID:     id,
		ConfigHash:  s.hash,
		GeneratedAt: s.now().UTC(),
	}

	ev.Sections.Topic = s.sectionFor("topic", id, res.topicErr, res.topic != nil)
	if res.topicErr == nil && res.topic != nil {
		ev.Topic = summarize(res.topic)
		ev.Score = s.engine.Analyze(res.topic)
	}

	ev.Sections.TimeSeries = s.sectionFor("timeseries", id, res.seriesErr, len(res.series) > 0)
	if res.seriesErr == nil {
		sig := timeline.Converge(res.series, s.cfg)
		ev.Signals = &sig
	}

	hasForecast := res.forecast != nil && len(res.forecast.Forecasts) > 0
	ev.Sections.Forecast = s.sectionFor("forecast", id, res.forecastErr, hasForecast)

	ev.Timeline = s.mergeTimeline(res)

	return ev
}

// sectionFor maps a fetch outcome to a section state
func (s *Service) sectionFor(name string, id contracts.TopicID, err error, hasData bool) contracts.Section {
	switch {
	case err != nil:
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"topic_id": id,
			"section":  name,
		}).Warn("Section fetch failed")
		return contracts.Section{State: contracts.SectionError, Error: errorText(err)}
	case !hasData:
		return contracts.Section{State: contracts.SectionUnavailable}
	default:
		return contracts.Section{State: contracts.SectionReady}
	}
}

// mergeTimeline runs the merge once both inputs have resolved
// 한쪽이 실패하면 빈 입력으로 취급, 둘 다 실패하면 nil
func (s *Service) mergeTimeline(res *fetchResult) *contracts.Timeline {
	if res.seriesErr != nil && res.forecastErr != nil {
		return nil
	}

	var series []contracts.TimeSeriesPoint
	if res.seriesErr == nil {
		series = res.series
	}

	var forecasts []contracts.ForecastPoint
	var modelVersion string
	if res.forecastErr == nil && res.forecast != nil {
		forecasts = res.forecast.Forecasts
		modelVersion = res.forecast.ModelVersion
	}

	tl := timeline.Merge(series, forecasts)
	tl.ModelVersion = modelVersion
	return &tl
}

// Stream emits section updates as each fetch resolves
//
// Order: topic as soon as the topic resolves, signals when the time series
// resolves, timeline once both time series and forecast have resolved.
// emit is never called concurrently. An emit error cancels the remaining
// fetches and is returned.
func (s *Service) Stream(ctx context.Context, id contracts.TopicID, emit func(SectionUpdate) error) error {
	var (
		mu  sync.Mutex
		res fetchResult
		// 시계열/예측 둘 다 도착해야 타임라인 계산
		pending = 2
	)

	send := func(u SectionUpdate) error {
		mu.Lock()
		defer mu.Unlock()
		if err := ctx.Err(); err != nil {
			return err
		}
		return emit(u)
	}

	timelineReady := func() (*contracts.Timeline, bool) {
		mu.Lock()
		defer mu.Unlock()
		pending--
		if pending > 0 {
			return nil, false
		}
		return s.mergeTimeline(&res), true
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		topic, err := s.src.Topic(gctx, id)
		u := SectionUpdate{Section: SectionTopic}
		u.State, u.Error = s.stateFor("topic", id, err, topic != nil)
		if err == nil && topic != nil {
			u.Topic = summarize(topic)
			u.Score = s.engine.Analyze(topic)
		}
		return send(u)
	})

	g.Go(func() error {
		series, err := s.src.TimeSeries(gctx, id)
		mu.Lock()
		res.series, res.seriesErr = series, err
		mu.Unlock()

		u := SectionUpdate{Section: SectionSignals}
		u.State, u.Error = s.stateFor("timeseries", id, err, len(series) > 0)
		if err == nil {
			sig := timeline.Converge(series, s.cfg)
			u.Signals = &sig
		}
		if err := send(u); err != nil {
			return err
		}
		return s.emitTimeline(timelineReady, send)
	})

	g.Go(func() error {
		fc, err := s.src.Forecast(gctx, id)
		mu.Lock()
		res.forecast, res.forecastErr = fc, err
		mu.Unlock()
		return s.emitTimeline(timelineReady, send)
	})

	return g.Wait()
}

func (s *Service) emitTimeline(ready func() (*contracts.Timeline, bool), send func(SectionUpdate) error) error {
	tl, ok := ready()
	if !ok {
		return nil
	}

	u := SectionUpdate{Section: SectionTimeline, Timeline: tl}
	switch {
	case tl == nil:
		u.State = contracts.SectionError
		u.Error = "timeline inputs failed to load"
	case len(tl.Points) == 0:
		u.State = contracts.SectionUnavailable
	default:
		u.State = contracts.SectionReady
	}
	return send(u)
}

func (s *Service) stateFor(name string, id contracts.TopicID, err error, hasData bool) (contracts.SectionState, string) {
	sec := s.sectionFor(name, id, err, hasData)
	return sec.State, sec.Error
}

func summarize(t *contracts.Topic) *contracts.TopicSummary {
	return &contracts.TopicSummary{
		ID:              t.ID,
		Name:            t.Name,
		Stage:           t.Stage,
		PrimaryCategory: t.PrimaryCategory,
	}
}

// errorText is the user-facing message for a failed fetch
func errorText(err error) string {
	switch {
	case source.IsNotFound(err):
		return "not found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}

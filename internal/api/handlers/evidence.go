package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/panel"
	"github.com/wonny/trendlens/internal/source"
	"github.com/wonny/trendlens/pkg/logger"
)

// LoadTimeout bounds a single evidence load from an HTTP request
const LoadTimeout = 20 * time.Second

// EvidenceHandler handles topic evidence endpoints
// ⭐ SSOT: 근거 API 핸들러는 이 구조체에서만
type EvidenceHandler struct {
	service *panel.Service
	logger  *logger.Logger
}

// NewEvidenceHandler creates a new evidence handler
func NewEvidenceHandler(service *panel.Service, log *logger.Logger) *EvidenceHandler {
	return &EvidenceHandler{
		service: service,
		logger:  log,
	}
}

// BreakdownResponse is the score-only view
type BreakdownResponse struct {
	TopicID    contracts.TopicID        `json:"topic_id"`
	Topic      *contracts.TopicSummary  `json:"topic,omitempty"`
	Section    contracts.Section        `json:"section"`
	Score      *contracts.ScoreEvidence `json:"score,omitempty"`
	ConfigHash string                   `json:"config_hash"`
}

// TimelineResponse is the convergence + chart view
type TimelineResponse struct {
	TopicID    contracts.TopicID      `json:"topic_id"`
	TimeSeries contracts.Section      `json:"timeseries"`
	Forecast   contracts.Section      `json:"forecast"`
	Signals    *contracts.Convergence `json:"signals,omitempty"`
	Timeline   *contracts.Timeline    `json:"timeline,omitempty"`
	ConfigHash string                 `json:"config_hash"`
}

// ConfigResponse reports the active evidence configuration
type ConfigResponse struct {
	Hash   string      `json:"hash"`
	Config interface{} `json:"config"`
}

// GetEvidence returns the full evidence for a topic
// GET /api/topics/{id}/evidence
func (h *EvidenceHandler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

// GetBreakdown returns score evidence only
// GET /api/topics/{id}/breakdown
func (h *EvidenceHandler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.load(w, r)
	if !ok {
		return
	}

	status := http.StatusOK
	if ev.Sections.Topic.State == contracts.SectionError {
		status = http.StatusBadGateway
	}

	respondJSON(w, status, BreakdownResponse{
		TopicID:    ev.TopicID,
		Topic:      ev.Topic,
		Section:    ev.Sections.Topic,
		Score:      ev.Score,
		ConfigHash: ev.ConfigHash,
	})
}

// GetTimeline returns signal convergence and the merged chart series
// GET /api/topics/{id}/timeline
func (h *EvidenceHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.load(w, r)
	if !ok {
		return
	}

	status := http.StatusOK
	if ev.Sections.TimeSeries.State == contracts.SectionError &&
		ev.Sections.Forecast.State == contracts.SectionError {
		status = http.StatusBadGateway
	}

	respondJSON(w, status, TimelineResponse{
		TopicID:    ev.TopicID,
		TimeSeries: ev.Sections.TimeSeries,
		Forecast:   ev.Sections.Forecast,
		Signals:    ev.Signals,
		Timeline:   ev.Timeline,
		ConfigHash: ev.ConfigHash,
	})
}

// GetConfig returns the active thresholds, theme and labels
// GET /api/evidence/config
func (h *EvidenceHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Hash:   h.service.ConfigHash(),
		Config: h.service.Config(),
	})
}

// GetPanel renders the evidence panel as HTML
// GET /topics/{id}/panel
func (h *EvidenceHandler) GetPanel(w http.ResponseWriter, r *http.Request) {
	ev, err := h.loadEvidence(r)
	if err != nil {
		status, msg := h.statusFor(r, err)
		http.Error(w, msg, status)
		return
	}

	// 렌더링 실패 시 부분 출력 방지
	var buf bytes.Buffer
	if err := panel.Render(&buf, ev, h.service.Config()); err != nil {
		logger.FromContext(r.Context(), h.logger).WithError(err).WithTopic(string(ev.TopicID)).Error("Failed to render panel")
		http.Error(w, "failed to render panel", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// load runs the panel service and writes the error response on failure
func (h *EvidenceHandler) load(w http.ResponseWriter, r *http.Request) (*contracts.TopicEvidence, bool) {
	ev, err := h.loadEvidence(r)
	if err != nil {
		status, msg := h.statusFor(r, err)
		respondError(w, status, msg)
		return nil, false
	}
	return ev, true
}

func (h *EvidenceHandler) loadEvidence(r *http.Request) (*contracts.TopicEvidence, error) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		return nil, errMissingID
	}

	ctx, cancel := context.WithTimeout(r.Context(), LoadTimeout)
	defer cancel()

	return h.service.Load(ctx, contracts.TopicID(id))
}

var errMissingID = errors.New("topic id is required")

// statusFor maps a load error to an HTTP status
func (h *EvidenceHandler) statusFor(r *http.Request, err error) (int, string) {
	switch {
	case errors.Is(err, errMissingID):
		return http.StatusBadRequest, err.Error()
	case source.IsNotFound(err):
		return http.StatusNotFound, "topic not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timed out"
	case errors.Is(err, context.Canceled):
		// 클라이언트가 먼저 끊음
		return 499, "request cancelled"
	default:
		logger.FromContext(r.Context(), h.logger).WithError(err).WithField("path", r.URL.Path).Error("Failed to load evidence")
		return http.StatusInternalServerError, "failed to load evidence"
	}
}

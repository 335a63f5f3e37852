package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Stage 토픽 라이프사이클 단계
type Stage string

const (
	StageEmerging  Stage = "emerging"
	StageExploding Stage = "exploding"
	StagePeaking   Stage = "peaking"
	StageDeclining Stage = "declining"
)

// Confidence 설명 신뢰도
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Well-known component keys
const (
	ComponentDemandGrowth   = "demand_growth"
	ComponentAcceleration   = "acceleration"
	ComponentLowCompetition = "low_competition"
	ComponentCrossSource    = "cross_source"
	ComponentReviewGap      = "review_gap"
	ComponentForecastUplift = "forecast_uplift"
	ComponentGeoExpansion   = "geo_expansion"
)

// TopicID accepts both string and numeric ids from upstream
type TopicID string

// UnmarshalJSON implements json.Unmarshaler
func (id *TopicID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TopicID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("topic id: %w", err)
	}
	*id = TopicID(n.String())
	return nil
}

// Topic 업스트림 토픽 상세
type Topic struct {
	ID              TopicID        `json:"id"`
	Name            string         `json:"name"`
	Stage           Stage          `json:"stage"`
	PrimaryCategory string         `json:"primary_category"` // 엔진에서는 사용하지 않음
	LatestScores    *ScoreSnapshot `json:"latest_scores,omitempty"`
}

// ScoreSnapshot 한 시점의 계산된 점수 묶음
// nil 필드 = 아직 계산되지 않음 (0으로 취급 금지)
type ScoreSnapshot struct {
	Opportunity *OpportunityScore `json:"opportunity,omitempty"`
	Competition *ScoreValue       `json:"competition,omitempty"`
	Demand      *ScoreValue       `json:"demand,omitempty"`
}

// ScoreValue is a single 0-100 sub-score
type ScoreValue struct {
	Value *float64 `json:"value"`
}

// OpportunityScore carries the composite score and its decomposition
type OpportunityScore struct {
	Value       *float64     `json:"value"`
	Explanation *Explanation `json:"explanation,omitempty"`
}

// Explanation decomposes the opportunity score
type Explanation struct {
	OverallScore    *float64     `json:"overall_score,omitempty"`
	Confidence      Confidence   `json:"confidence"`
	DampenerApplied bool         `json:"dampener_applied"`
	Components      ComponentSet `json:"components"`
}

// OpportunityValue returns the opportunity score if computed
func (s *ScoreSnapshot) OpportunityValue() *float64 {
	if s == nil || s.Opportunity == nil {
		return nil
	}
	return Finite(s.Opportunity.Value)
}

// CompetitionValue returns the competition score if computed
func (s *ScoreSnapshot) CompetitionValue() *float64 {
	if s == nil || s.Competition == nil {
		return nil
	}
	return Finite(s.Competition.Value)
}

// DemandValue returns the demand score if computed
func (s *ScoreSnapshot) DemandValue() *float64 {
	if s == nil || s.Demand == nil {
		return nil
	}
	return Finite(s.Demand.Value)
}

// Explanation returns the opportunity explanation if present
func (s *ScoreSnapshot) Explanation() *Explanation {
	if s == nil || s.Opportunity == nil {
		return nil
	}
	return s.Opportunity.Explanation
}

// Finite returns v unless it is nil, NaN or ±Inf
func Finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// Diagnostic is an optional scalar shown next to a component (raw/normalized)
// 값 그대로 표시만 하고 계산에는 쓰지 않음
type Diagnostic json.RawMessage

// Present reports whether the diagnostic carries a value
func (d Diagnostic) Present() bool {
	t := bytes.TrimSpace(d)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

// String renders the diagnostic for display
func (d Diagnostic) String() string {
	if !d.Present() {
		return ""
	}
	t := bytes.TrimSpace(d)
	switch t[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err == nil {
			return s
		}
	case 't', 'f':
		return string(t)
	case '{', '[':
		return string(t)
	}
	f, err := strconv.ParseFloat(string(t), 64)
	if err != nil {
		return string(t)
	}
	return formatDiagnosticNumber(f)
}

func formatDiagnosticNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	s := strconv.FormatFloat(f, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// MarshalJSON implements json.Marshaler
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	if !d.Present() {
		return []byte("null"), nil
	}
	return bytes.TrimSpace(d), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Diagnostic) UnmarshalJSON(data []byte) error {
	*d = append((*d)[:0], data...)
	return nil
}

// TimeSeriesPoint 소스별 원시 관측값 (같은 날짜에 여러 소스 가능)
type TimeSeriesPoint struct {
	Date            string   `json:"date"` // YYYY-MM-DD
	Source          string   `json:"source"`
	NormalizedValue *float64 `json:"normalized_value,omitempty"`
	RawValue        *float64 `json:"raw_value,omitempty"`
}

// Value returns normalized_value, falling back to raw_value, then 0
func (p TimeSeriesPoint) Value() float64 {
	if v := Finite(p.NormalizedValue); v != nil {
		return *v
	}
	if v := Finite(p.RawValue); v != nil {
		return *v
	}
	return 0
}

// Day returns the day part of the date (tolerates full timestamps)
func (p TimeSeriesPoint) Day() string {
	return DayKey(p.Date)
}

// ForecastPoint 예측 포인트 (yhat_lower <= yhat <= yhat_upper)
type ForecastPoint struct {
	ForecastDate string  `json:"forecast_date"`
	Yhat         float64 `json:"yhat"`
	YhatLower    float64 `json:"yhat_lower"`
	YhatUpper    float64 `json:"yhat_upper"`
}

// Day returns the day part of the forecast date
func (p ForecastPoint) Day() string {
	return DayKey(p.ForecastDate)
}

// ForecastResponse 업스트림 예측 응답
type ForecastResponse struct {
	ModelVersion string          `json:"model_version"`
	GeneratedAt  *time.Time      `json:"generated_at,omitempty"`
	Forecasts    []ForecastPoint `json:"forecasts"`
}

// 업스트림 타임스탬프 포맷 (타임존 없는 값은 UTC로 간주)
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON decodes the response with a lenient generated_at.
// An unparseable timestamp leaves GeneratedAt nil instead of failing the
// whole forecast.
func (r *ForecastResponse) UnmarshalJSON(data []byte) error {
	type alias ForecastResponse
	var raw struct {
		alias
		GeneratedAt json.RawMessage `json:"generated_at,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ForecastResponse(raw.alias)
	r.GeneratedAt = parseTimestamp(raw.GeneratedAt)
	return nil
}

// parseTimestamp returns nil for null, non-string or unknown formats
func parseTimestamp(raw json.RawMessage) *time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// DayKey trims an ISO date or timestamp to YYYY-MM-DD
// ISO 날짜는 사전순 정렬 = 시간순 정렬
func DayKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

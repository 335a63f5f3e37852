package contracts

import "time"

// Placeholder is displayed wherever a value has not been computed
const Placeholder = "—"

// Archetype 기회 근거 유형
type Archetype string

const (
	ArchetypeScienceLed Archetype = "science-led"
	ArchetypeSocialLed  Archetype = "social-led"
	ArchetypeProblemLed Archetype = "problem-led"
	ArchetypeDemandLed  Archetype = "demand-led"
)

// Severity of a finding
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityInfo     Severity = "info"
	SeverityPositive Severity = "positive" // "리스크 없음" 류의 긍정 결과
)

// Finding is one risk or counter-evidence item, in render order
type Finding struct {
	Category string   `json:"category"` // competition, lifecycle, data, confidence, none
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail"`
}

// ScoreCard is a sub-score with its display text
type ScoreCard struct {
	Value   *float64 `json:"value"`
	Display string   `json:"display"` // "72" or Placeholder
}

// BreakdownRow is one rendered component row
type BreakdownRow struct {
	Key              string  `json:"key"`
	Label            string  `json:"label"`
	Color            string  `json:"color"`
	Weight           float64 `json:"weight"`
	WeightPct        float64 `json:"weight_pct"` // weight * 100
	Contribution     float64 `json:"contribution"`
	ContributionText string  `json:"contribution_text"` // one decimal
	Pct              float64 `json:"pct"`               // bar fill, [0,100]
	Raw              string  `json:"raw,omitempty"`
	Normalized       string  `json:"normalized,omitempty"`
}

// Breakdown is the ordered component decomposition
type Breakdown struct {
	Available       bool           `json:"available"`
	Rows            []BreakdownRow `json:"rows"`
	Count           int            `json:"count"`
	DampenerApplied bool           `json:"dampener_applied"`
	DampenerBadge   string         `json:"dampener_badge,omitempty"`
	Confidence      Confidence     `json:"confidence,omitempty"`
	OverallScore    *float64       `json:"overall_score,omitempty"`
}

// ScoreEvidence 점수 분해 + 아키타입 + 리스크 + 반대 근거
type ScoreEvidence struct {
	Opportunity     ScoreCard `json:"opportunity"`
	Competition     ScoreCard `json:"competition"`
	Demand          ScoreCard `json:"demand"`
	Breakdown       Breakdown `json:"breakdown"`
	Archetype       Archetype `json:"archetype"`
	ArchetypeLabel  string    `json:"archetype_label"`
	Risks           []Finding `json:"risks"`
	CounterEvidence []Finding `json:"counter_evidence"`
	SignalCount     *int      `json:"signal_count"`
	SignalCountText string    `json:"signal_count_text"`
	TimeToPeak      string    `json:"time_to_peak"`
}

// ConvergenceVerdict 신호 수렴 판정
type ConvergenceVerdict string

const (
	ConvergenceStrong  ConvergenceVerdict = "strong"
	ConvergenceGood    ConvergenceVerdict = "good"
	ConvergencePartial ConvergenceVerdict = "partial"
	ConvergenceSingle  ConvergenceVerdict = "single"
	ConvergenceNone    ConvergenceVerdict = "none"
)

// SignalFamilyStatus is one tracked family and whether it is active
type SignalFamilyStatus struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Sources []string `json:"sources"`
	Active  bool     `json:"active"`
}

// Convergence is the signal convergence tally
type Convergence struct {
	ActiveCount int                  `json:"active_count"`
	Total       int                  `json:"total"`
	Verdict     ConvergenceVerdict   `json:"verdict"`
	Label       string               `json:"label"`
	Families    []SignalFamilyStatus `json:"families"`
	Sources     []string             `json:"sources"` // distinct raw source values
}

// ChartPoint is one point of the merged history + forecast series
// 히스토리 구간은 Yhat* nil, 예측 구간은 Value/소스별 값 nil
type ChartPoint struct {
	Date         string   `json:"date"`
	Value        *float64 `json:"value"`
	GoogleTrends *float64 `json:"google_trends"`
	Reddit       *float64 `json:"reddit"`
	Yhat         *float64 `json:"yhat"`
	YhatLower    *float64 `json:"yhat_lower"`
	YhatUpper    *float64 `json:"yhat_upper"`
	Bridge       bool     `json:"bridge,omitempty"`
}

// Timeline is the merged chart series
type Timeline struct {
	Points        []ChartPoint `json:"points"`
	HistoryCount  int          `json:"history_count"`
	ForecastCount int          `json:"forecast_count"`
	HasBridge     bool         `json:"has_bridge"`
	ModelVersion  string       `json:"model_version,omitempty"`
}

// SectionState 섹션별 로딩 상태 (부분 실패 격리)
type SectionState string

const (
	SectionLoading     SectionState = "loading"
	SectionReady       SectionState = "ready"
	SectionError       SectionState = "error"
	SectionUnavailable SectionState = "unavailable"
)

// Section reports the outcome of one upstream fetch
type Section struct {
	State SectionState `json:"state"`
	Error string       `json:"error,omitempty"`
}

// TopicSummary is the subset of the topic shown in the panel header
type TopicSummary struct {
	ID              TopicID `json:"id"`
	Name            string  `json:"name"`
	Stage           Stage   `json:"stage"`
	PrimaryCategory string  `json:"primary_category"`
}

// TopicEvidence is everything the evidence panel renders for one topic
type TopicEvidence struct {
	TopicID     TopicID        `json:"topic_id"`
	Topic       *TopicSummary  `json:"topic,omitempty"`
	Score       *ScoreEvidence `json:"score,omitempty"`
	Signals     *Convergence   `json:"signals,omitempty"`
	Timeline    *Timeline      `json:"timeline,omitempty"`
	Sections    Sections       `json:"sections"`
	ConfigHash  string         `json:"config_hash"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Sections groups the three independent fetch outcomes
type Sections struct {
	Topic      Section `json:"topic"`
	TimeSeries Section `json:"timeseries"`
	Forecast   Section `json:"forecast"`
}

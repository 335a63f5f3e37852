package evidenceconfig

// Config는 근거 패널의 임계값/테마/라벨 설정
// 임계값은 관측된 동작에서 가져온 튜닝 파라미터 (비즈니스 규칙 아님)
type Config struct {
	Thresholds     Thresholds        `yaml:"thresholds" json:"thresholds"`
	Theme          Theme             `yaml:"theme" json:"theme"`
	Labels         map[string]string `yaml:"labels" json:"labels"` // component key -> label
	SignalFamilies []SignalFamily    `yaml:"signal_families" json:"signal_families"`
	TimeToPeak     map[string]string `yaml:"time_to_peak" json:"time_to_peak"` // stage -> label
	Text           Text              `yaml:"text" json:"text"`
}

// Thresholds 아키타입/리스크/반대근거 판정 임계값
type Thresholds struct {
	// Archetype
	ScienceGeoContribution float64 `yaml:"science_geo_contribution" json:"science_geo_contribution"` // geo_expansion.contribution > 3
	SocialSourcesPositive  int     `yaml:"social_sources_positive" json:"social_sources_positive"`   // cross_source.sources_positive >= 2
	ProblemReviewSeverity  float64 `yaml:"problem_review_severity" json:"problem_review_severity"`   // review_gap.severity > 50

	// Risk (stricter) vs counter-evidence (earlier warning) - 의도적으로 분리
	RiskCompetition    float64 `yaml:"risk_competition" json:"risk_competition"`       // > 70
	CounterCompetition float64 `yaml:"counter_competition" json:"counter_competition"` // > 60
	DefaultCompetition float64 `yaml:"default_competition" json:"default_competition"` // 값 없을 때 50

	DampenerPercent float64 `yaml:"dampener_percent" json:"dampener_percent"` // ~15% (표시용)
}

// Theme 색상 토큰 (렌더링 계층에 명시적으로 전달)
type Theme struct {
	ComponentColors map[string]string `yaml:"component_colors" json:"component_colors"`
	NeutralColor    string            `yaml:"neutral_color" json:"neutral_color"`
	SeverityColors  map[string]string `yaml:"severity_colors" json:"severity_colors"`
	HistoryColor    string            `yaml:"history_color" json:"history_color"`
	ForecastColor   string            `yaml:"forecast_color" json:"forecast_color"`
	BandColor       string            `yaml:"band_color" json:"band_color"`
}

// SignalFamily 추적하는 신호 계열 (소스 이름 중 하나라도 있으면 활성)
type SignalFamily struct {
	ID      string   `yaml:"id" json:"id"`
	Label   string   `yaml:"label" json:"label"`
	Sources []string `yaml:"sources" json:"sources"`
}

// Text 고정 문구
type Text struct {
	DampenerBadge      string            `yaml:"dampener_badge" json:"dampener_badge"`
	UnknownTimeToPeak  string            `yaml:"unknown_time_to_peak" json:"unknown_time_to_peak"`
	ArchetypeLabels    map[string]string `yaml:"archetype_labels" json:"archetype_labels"`
	ConvergenceLabels  map[string]string `yaml:"convergence_labels" json:"convergence_labels"`
	BreakdownMissing   string            `yaml:"breakdown_missing" json:"breakdown_missing"`
	TimelineMissing    string            `yaml:"timeline_missing" json:"timeline_missing"`
	SectionErrorPrefix string            `yaml:"section_error_prefix" json:"section_error_prefix"`
}

// Default returns the built-in configuration (observed production values)
func Default() *Config {
	return &Config{
		Thresholds: Thresholds{
			ScienceGeoContribution: 3,
			SocialSourcesPositive:  2,
			ProblemReviewSeverity:  50,
			RiskCompetition:        70,
			CounterCompetition:     60,
			DefaultCompetition:     50,
			DampenerPercent:        15,
		},
		Theme: Theme{
			ComponentColors: map[string]string{
				"demand_growth":   "#6366f1",
				"acceleration":    "#8b5cf6",
				"low_competition": "#10b981",
				"cross_source":    "#f59e0b",
				"review_gap":      "#ef4444",
				"forecast_uplift": "#3b82f6",
				"geo_expansion":   "#14b8a6",
			},
			NeutralColor: "#94a3b8",
			SeverityColors: map[string]string{
				"high":     "#dc2626",
				"medium":   "#f59e0b",
				"info":     "#64748b",
				"positive": "#16a34a",
			},
			HistoryColor:  "#6366f1",
			ForecastColor: "#f59e0b",
			BandColor:     "#fde68a",
		},
		Labels: map[string]string{
			"demand_growth":   "Demand Growth",
			"acceleration":    "Acceleration",
			"low_competition": "Low Competition",
			"cross_source":    "Cross-Source Signal",
			"review_gap":      "Review Gap",
			"forecast_uplift": "Forecast Uplift",
			"geo_expansion":   "Geo Expansion",
		},
		SignalFamilies: []SignalFamily{
			{ID: "google_trends", Label: "Google Trends", Sources: []string{"google_trends"}},
			{ID: "reddit", Label: "Reddit", Sources: []string{"reddit"}},
			{ID: "meta", Label: "Instagram/Facebook", Sources: []string{"instagram", "facebook"}},
			{ID: "tiktok", Label: "TikTok", Sources: []string{"tiktok"}},
			{ID: "science", Label: "Science", Sources: []string{"science", "bioRxiv"}},
		},
		TimeToPeak: map[string]string{
			"emerging":  "6–12 months",
			"exploding": "1–3 months",
			"peaking":   "At peak",
			"declining": "Past peak",
		},
		Text: Text{
			DampenerBadge:     "Dampener applied (~15% reduction for limited data)",
			UnknownTimeToPeak: "Unknown",
			ArchetypeLabels: map[string]string{
				"science-led": "Science-led",
				"social-led":  "Social-led",
				"problem-led": "Problem-led",
				"demand-led":  "Demand-led",
			},
			ConvergenceLabels: map[string]string{
				"strong":  "Strong convergence",
				"good":    "Good convergence",
				"partial": "Partial convergence",
				"single":  "Single source, needs validation",
				"none":    "No signal data",
			},
			BreakdownMissing:   "Score breakdown not yet available",
			TimelineMissing:    "No timeline data available",
			SectionErrorPrefix: "Could not load",
		},
	}
}

// ComponentLabel returns the label for a key (fallback: underscores -> spaces)
func (c *Config) ComponentLabel(key string) string {
	if label, ok := c.Labels[key]; ok && label != "" {
		return label
	}
	return underscoresToSpaces(key)
}

// ComponentColor returns the color for a key (fallback: neutral)
func (c *Config) ComponentColor(key string) string {
	if color, ok := c.Theme.ComponentColors[key]; ok && color != "" {
		return color
	}
	return c.Theme.NeutralColor
}

func underscoresToSpaces(s string) string {
	out := []byte(s)
	for i := range out {
		if out[i] == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}

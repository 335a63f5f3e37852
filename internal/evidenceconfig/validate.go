package evidenceconfig

import (
	"fmt"
	"regexp"
)

// ValidationError 검증 실패 (로드 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	t := cfg.Thresholds

	// === Thresholds ===
	if t.ScienceGeoContribution < 0 || t.ScienceGeoContribution > 100 {
		return ValidationError{"thresholds.science_geo_contribution", "must be in [0, 100]"}
	}
	if t.SocialSourcesPositive < 1 {
		return ValidationError{"thresholds.social_sources_positive", "must be >= 1"}
	}
	if t.ProblemReviewSeverity < 0 || t.ProblemReviewSeverity > 100 {
		return ValidationError{"thresholds.problem_review_severity", "must be in [0, 100]"}
	}
	for field, v := range map[string]float64{
		"thresholds.risk_competition":    t.RiskCompetition,
		"thresholds.counter_competition": t.CounterCompetition,
		"thresholds.default_competition": t.DefaultCompetition,
	} {
		if v < 0 || v > 100 {
			return ValidationError{field, "must be in [0, 100]"}
		}
	}
	// 반대근거는 리스크보다 먼저 경고해야 함
	if t.CounterCompetition > t.RiskCompetition {
		return ValidationError{"thresholds.counter_competition", "must be <= risk_competition"}
	}
	if t.DampenerPercent < 0 || t.DampenerPercent >= 100 {
		return ValidationError{"thresholds.dampener_percent", "must be in [0, 100)"}
	}

	// === Theme ===
	if !hexColor.MatchString(cfg.Theme.NeutralColor) {
		return ValidationError{"theme.neutral_color", "must be a hex color"}
	}
	for key, color := range cfg.Theme.ComponentColors {
		if !hexColor.MatchString(color) {
			return ValidationError{"theme.component_colors." + key, "must be a hex color"}
		}
	}

	// === Signal families ===
	if len(cfg.SignalFamilies) == 0 {
		return ValidationError{"signal_families", "at least one family required"}
	}
	seen := make(map[string]bool)
	for i, f := range cfg.SignalFamilies {
		field := fmt.Sprintf("signal_families[%d]", i)
		if f.ID == "" {
			return ValidationError{field + ".id", "required"}
		}
		if seen[f.ID] {
			return ValidationError{field + ".id", "duplicate id " + f.ID}
		}
		seen[f.ID] = true
		if len(f.Sources) == 0 {
			return ValidationError{field + ".sources", "at least one source required"}
		}
	}

	return nil
}

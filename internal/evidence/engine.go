package evidence

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/evidenceconfig"
)

// Engine derives score evidence from a topic's latest score snapshot
// ⭐ SSOT: 점수 분해/아키타입/리스크 판정은 이 엔진에서만
//
// All methods are pure: no I/O, no shared state, safe for concurrent use.
// Missing inputs degrade to explicit unavailable values; nothing panics.
type Engine struct {
	cfg *evidenceconfig.Config
}

// NewEngine creates an engine; nil cfg uses evidenceconfig.Default()
func NewEngine(cfg *evidenceconfig.Config) *Engine {
	if cfg == nil {
		cfg = evidenceconfig.Default()
	}
	return &Engine{cfg: cfg}
}

// Config returns the active configuration
func (e *Engine) Config() *evidenceconfig.Config {
	return e.cfg
}

// Analyze runs every sub-computation for one topic
// primary_category는 이 엔진에서 사용하지 않음
func (e *Engine) Analyze(topic *contracts.Topic) *contracts.ScoreEvidence {
	var snap *contracts.ScoreSnapshot
	var stage contracts.Stage
	if topic != nil {
		snap = topic.LatestScores
		stage = topic.Stage
	}
	exp := snap.Explanation()

	archetype := e.ClassifyArchetype(exp)
	count := SignalCount(exp)

	return &contracts.ScoreEvidence{
		Opportunity:     scoreCard(snap.OpportunityValue()),
		Competition:     scoreCard(snap.CompetitionValue()),
		Demand:          scoreCard(snap.DemandValue()),
		Breakdown:       e.Breakdown(exp),
		Archetype:       archetype,
		ArchetypeLabel:  e.archetypeLabel(archetype),
		Risks:           e.AssessRisks(snap, stage),
		CounterEvidence: e.CounterEvidence(snap, stage),
		SignalCount:     count,
		SignalCountText: countText(count),
		TimeToPeak:      e.TimeToPeak(stage),
	}
}

// Breakdown orders components by contribution and computes bar fractions
//
// pct is relative to the largest contribution present (not weight*100), so
// the top contributor always renders as a full bar.
func (e *Engine) Breakdown(exp *contracts.Explanation) contracts.Breakdown {
	if exp == nil {
		return contracts.Breakdown{Available: false, Rows: []contracts.BreakdownRow{}}
	}

	components := make([]contracts.Component, len(exp.Components))
	copy(components, exp.Components)

	// 동률은 업스트림 순서 유지
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].Contribution > components[j].Contribution
	})

	maxContribution := 0.0
	for _, c := range components {
		if c.Contribution > maxContribution {
			maxContribution = c.Contribution
		}
	}

	rows := make([]contracts.BreakdownRow, 0, len(components))
	for _, c := range components {
		pct := 0.0
		if maxContribution > 0 {
			pct = clamp(c.Contribution/maxContribution*100, 0, 100)
		}

		rows = append(rows, contracts.BreakdownRow{
			Key:              c.Key,
			Label:            e.cfg.ComponentLabel(c.Key),
			Color:            e.cfg.ComponentColor(c.Key),
			Weight:           c.Weight,
			WeightPct:        c.Weight * 100,
			Contribution:     c.Contribution,
			ContributionText: strconv.FormatFloat(c.Contribution, 'f', 1, 64),
			Pct:              pct,
			Raw:              c.Raw.String(),
			Normalized:       c.Normalized.String(),
		})
	}

	b := contracts.Breakdown{
		Available:       true,
		Rows:            rows,
		Count:           len(rows),
		DampenerApplied: exp.DampenerApplied,
		Confidence:      exp.Confidence,
		OverallScore:    contracts.Finite(exp.OverallScore),
	}
	if exp.DampenerApplied {
		b.DampenerBadge = e.cfg.Text.DampenerBadge
	}

	return b
}

// ClassifyArchetype returns exactly one archetype; first match wins
// 우선순위: science > social > problem > demand
func (e *Engine) ClassifyArchetype(exp *contracts.Explanation) contracts.Archetype {
	if exp == nil {
		return contracts.ArchetypeDemandLed
	}
	t := e.cfg.Thresholds

	if geo, ok := exp.Components.Get(contracts.ComponentGeoExpansion); ok &&
		geo.Contribution > t.ScienceGeoContribution {
		return contracts.ArchetypeScienceLed
	}

	if cs, ok := exp.Components.Get(contracts.ComponentCrossSource); ok &&
		cs.CrossSource != nil && cs.CrossSource.SourcesPositive != nil &&
		*cs.CrossSource.SourcesPositive >= t.SocialSourcesPositive {
		return contracts.ArchetypeSocialLed
	}

	if rg, ok := exp.Components.Get(contracts.ComponentReviewGap); ok &&
		rg.ReviewGap != nil && rg.ReviewGap.Severity != nil &&
		*rg.ReviewGap.Severity > t.ProblemReviewSeverity {
		return contracts.ArchetypeProblemLed
	}

	return contracts.ArchetypeDemandLed
}

// AssessRisks evaluates the independent risk rules in render order
// 아무것도 해당하지 않으면 긍정 결과 하나를 반환 (빈 목록 금지)
func (e *Engine) AssessRisks(snap *contracts.ScoreSnapshot, stage contracts.Stage) []contracts.Finding {
	t := e.cfg.Thresholds
	exp := snap.Explanation()
	var findings []contracts.Finding

	competition := t.DefaultCompetition
	if v := snap.CompetitionValue(); v != nil {
		competition = *v
	}

	if competition > t.RiskCompetition {
		findings = append(findings, contracts.Finding{
			Category: "competition",
			Severity: contracts.SeverityHigh,
			Title:    "High competition",
			Detail:   fmt.Sprintf("Competition score %.0f is above %.0f; entry will be contested.", competition, t.RiskCompetition),
		})
	}

	if stage == contracts.StagePeaking {
		findings = append(findings, contracts.Finding{
			Category: "lifecycle",
			Severity: contracts.SeverityMedium,
			Title:    "Trend is peaking",
			Detail:   "Interest is near its high point; the window for new entrants is narrowing.",
		})
	}

	if stage == contracts.StageDeclining {
		findings = append(findings, contracts.Finding{
			Category: "lifecycle",
			Severity: contracts.SeverityHigh,
			Title:    "Trend is declining",
			Detail:   "Interest is past its peak and falling.",
		})
	}

	if exp != nil && exp.DampenerApplied {
		findings = append(findings, contracts.Finding{
			Category: "data",
			Severity: contracts.SeverityMedium,
			Title:    "Limited data",
			Detail:   fmt.Sprintf("Score was reduced by ~%.0f%% because supporting data is sparse.", t.DampenerPercent),
		})
	}

	if exp != nil && exp.Confidence == contracts.ConfidenceLow {
		findings = append(findings, contracts.Finding{
			Category: "confidence",
			Severity: contracts.SeverityMedium,
			Title:    "Low confidence",
			Detail:   "The score rests on weak or inconsistent signals.",
		})
	}

	if len(findings) == 0 {
		return []contracts.Finding{{
			Category: "none",
			Severity: contracts.SeverityPositive,
			Title:    "No significant risks identified",
			Detail:   "None of the tracked risk conditions apply.",
		}}
	}

	return findings
}

// CounterEvidence lists facts that argue against the opportunity
// 경쟁 임계값은 리스크(70)보다 낮은 60: 조기 경고용
func (e *Engine) CounterEvidence(snap *contracts.ScoreSnapshot, stage contracts.Stage) []contracts.Finding {
	t := e.cfg.Thresholds
	exp := snap.Explanation()
	var findings []contracts.Finding

	competition := t.DefaultCompetition
	if v := snap.CompetitionValue(); v != nil {
		competition = *v
	}

	if competition > t.CounterCompetition {
		findings = append(findings, contracts.Finding{
			Category: "competition",
			Severity: contracts.SeverityInfo,
			Title:    "Established players dominate",
			Detail:   fmt.Sprintf("Competition score is %.0f.", competition),
		})
	}

	if stage == contracts.StagePeaking {
		findings = append(findings, contracts.Finding{
			Category: "lifecycle",
			Severity: contracts.SeverityInfo,
			Title:    "Growth may slow",
			Detail:   "Peaking trends usually decelerate.",
		})
	}

	if exp != nil && exp.DampenerApplied {
		findings = append(findings, contracts.Finding{
			Category: "data",
			Severity: contracts.SeverityInfo,
			Title:    "Limited data history",
			Detail:   "Few observations back this score.",
		})
	}

	if len(findings) == 0 {
		return []contracts.Finding{{
			Category: "none",
			Severity: contracts.SeverityPositive,
			Title:    "No strong counter-evidence",
			Detail:   "Nothing in the current data argues against this opportunity.",
		}}
	}

	return findings
}

// SignalCount reads cross_source.total_sources; nil when absent
func SignalCount(exp *contracts.Explanation) *int {
	if exp == nil {
		return nil
	}
	cs, ok := exp.Components.Get(contracts.ComponentCrossSource)
	if !ok || cs.CrossSource == nil {
		return nil
	}
	return cs.CrossSource.TotalSources
}

// TimeToPeak maps a stage to its canned estimate (no dates computed)
func (e *Engine) TimeToPeak(stage contracts.Stage) string {
	if label, ok := e.cfg.TimeToPeak[string(stage)]; ok && stage != "" {
		return label
	}
	return e.cfg.Text.UnknownTimeToPeak
}

func (e *Engine) archetypeLabel(a contracts.Archetype) string {
	if label, ok := e.cfg.Text.ArchetypeLabels[string(a)]; ok {
		return label
	}
	return string(a)
}

func scoreCard(v *float64) contracts.ScoreCard {
	if v == nil {
		return contracts.ScoreCard{Display: contracts.Placeholder}
	}
	return contracts.ScoreCard{
		Value:   v,
		Display: strconv.FormatFloat(math.Round(*v), 'f', 0, 64),
	}
}

func countText(n *int) string {
	if n == nil {
		return contracts.Placeholder
	}
	return strconv.Itoa(*n)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

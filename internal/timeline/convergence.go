package timeline

import (
	"sort"
	"strings"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/evidenceconfig"
)

// Converge tallies which tracked signal families have at least one observation
// 소스 이름은 대소문자 무시 비교 (bioRxiv / biorxiv)
func Converge(points []contracts.TimeSeriesPoint, cfg *evidenceconfig.Config) contracts.Convergence {
	if cfg == nil {
		cfg = evidenceconfig.Default()
	}

	present := make(map[string]bool)
	var sources []string
	for _, p := range points {
		src := strings.TrimSpace(p.Source)
		if src == "" {
			continue
		}
		key := strings.ToLower(src)
		if present[key] {
			continue
		}
		present[key] = true
		sources = append(sources, src)
	}
	sort.Strings(sources)

	families := make([]contracts.SignalFamilyStatus, 0, len(cfg.SignalFamilies))
	active := 0
	for _, f := range cfg.SignalFamilies {
		on := false
		for _, s := range f.Sources {
			if present[strings.ToLower(s)] {
				on = true
				break
			}
		}
		if on {
			active++
		}
		families = append(families, contracts.SignalFamilyStatus{
			ID:      f.ID,
			Label:   f.Label,
			Sources: f.Sources,
			Active:  on,
		})
	}

	verdict := Verdict(active)
	label := cfg.Text.ConvergenceLabels[string(verdict)]
	if label == "" {
		label = string(verdict)
	}

	if sources == nil {
		sources = []string{}
	}

	return contracts.Convergence{
		ActiveCount: active,
		Total:       len(families),
		Verdict:     verdict,
		Label:       label,
		Families:    families,
		Sources:     sources,
	}
}

// Verdict maps an active family count to a convergence verdict
// 0..N 전체에 대해 정의됨 (4 이상은 모두 strong)
func Verdict(active int) contracts.ConvergenceVerdict {
	switch {
	case active >= 4:
		return contracts.ConvergenceStrong
	case active == 3:
		return contracts.ConvergenceGood
	case active == 2:
		return contracts.ConvergencePartial
	case active == 1:
		return contracts.ConvergenceSingle
	default:
		return contracts.ConvergenceNone
	}
}

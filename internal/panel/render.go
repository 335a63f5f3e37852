package panel

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/evidenceconfig"
)

//go:embed templates/panel.html.tmpl
var templateFS embed.FS

var panelTemplate = template.Must(
	template.New("panel.html.tmpl").Funcs(template.FuncMap{
		"pct": formatPct,
	}).ParseFS(templateFS, "templates/panel.html.tmpl"),
)

// gaugeCircumference is 2πr for the donut (r = 40)
const gaugeCircumference = 2 * math.Pi * 40

// view is the template model; all colors come from the theme
type view struct {
	Ev        *contracts.TopicEvidence
	Theme     evidenceconfig.Theme
	Text      evidenceconfig.Text
	Title     string
	Gauge     gauge
	Cards     []card
	Risks     []finding
	Counter   []finding
	Errors    []string
	ChartJSON string
}

type gauge struct {
	Available bool
	Display   string
	Dash      string // stroke-dasharray "filled rest"
}

type card struct {
	Label   string
	Display string
}

type finding struct {
	contracts.Finding
	Color string
}

// Render writes the evidence panel as an HTML fragment
// 값이 없는 영역은 명시적 플레이스홀더로 표시 (0으로 채우지 않음)
func Render(w io.Writer, ev *contracts.TopicEvidence, cfg *evidenceconfig.Config) error {
	if cfg == nil {
		cfg = evidenceconfig.Default()
	}

	v := view{
		Ev:    ev,
		Theme: cfg.Theme,
		Text:  cfg.Text,
		Title: string(ev.TopicID),
	}
	if ev.Topic != nil && ev.Topic.Name != "" {
		v.Title = ev.Topic.Name
	}

	for _, s := range []struct {
		name string
		sec  contracts.Section
	}{
		{"topic", ev.Sections.Topic},
		{"time series", ev.Sections.TimeSeries},
		{"forecast", ev.Sections.Forecast},
	} {
		if s.sec.State == contracts.SectionError {
			v.Errors = append(v.Errors, fmt.Sprintf("%s %s: %s", cfg.Text.SectionErrorPrefix, s.name, s.sec.Error))
		}
	}

	if sc := ev.Score; sc != nil {
		v.Gauge = newGauge(sc.Opportunity)
		v.Cards = []card{
			{"Competition", sc.Competition.Display},
			{"Demand", sc.Demand.Display},
			{"Signals", sc.SignalCountText},
			{"Time to peak", sc.TimeToPeak},
		}
		v.Risks = colorFindings(sc.Risks, cfg.Theme)
		v.Counter = colorFindings(sc.CounterEvidence, cfg.Theme)
	} else {
		v.Gauge = gauge{Display: contracts.Placeholder}
	}

	if ev.Timeline != nil && len(ev.Timeline.Points) > 0 {
		data, err := json.Marshal(ev.Timeline.Points)
		if err != nil {
			return fmt.Errorf("encode chart data: %w", err)
		}
		v.ChartJSON = string(data)
	}

	return panelTemplate.Execute(w, v)
}

func newGauge(sc contracts.ScoreCard) gauge {
	if sc.Value == nil {
		return gauge{Display: contracts.Placeholder}
	}
	filled := math.Max(0, math.Min(100, *sc.Value)) / 100 * gaugeCircumference
	return gauge{
		Available: true,
		Display:   sc.Display,
		Dash:      fmt.Sprintf("%.2f %.2f", filled, gaugeCircumference-filled),
	}
}

func colorFindings(in []contracts.Finding, theme evidenceconfig.Theme) []finding {
	out := make([]finding, 0, len(in))
	for _, f := range in {
		color := theme.SeverityColors[string(f.Severity)]
		if color == "" {
			color = theme.NeutralColor
		}
		out = append(out, finding{Finding: f, Color: color})
	}
	return out
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

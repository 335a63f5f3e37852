package timeline

import (
	"math"
	"sort"

	"github.com/wonny/trendlens/internal/contracts"
)

// Sources retained per day next to the cross-source average
const (
	SourceGoogleTrends = "google_trends"
	SourceReddit       = "reddit"
)

type dayAccumulator struct {
	sum, n      float64
	google      float64
	googleCount float64
	reddit      float64
	redditCount float64
}

// Merge splices the averaged history with the forecast band
//
// The result is history (forecast fields nil), then forecast points
// (history fields nil). When both sides are non-empty the last history
// point doubles as the bridge: its yhat, yhat_lower and yhat_upper equal
// its value so both lines start at the same coordinate.
//
// ⭐ SSOT: 브리지 날짜 = 마지막 히스토리 날짜 (첫 예측 날짜 아님)
func Merge(history []contracts.TimeSeriesPoint, forecasts []contracts.ForecastPoint) contracts.Timeline {
	points := aggregateHistory(history)
	historyCount := len(points)

	fc := filterForecasts(forecasts)

	// 브리지 날짜 이후의 예측만 사용 (같은 날짜 중복 금지)
	if historyCount > 0 {
		bridgeDate := points[historyCount-1].Date
		kept := fc[:0]
		for _, f := range fc {
			if f.Day() > bridgeDate {
				kept = append(kept, f)
			}
		}
		fc = kept
	}

	// 남은 예측이 없으면 히스토리만 (브리지 없음)
	hasBridge := historyCount > 0 && len(fc) > 0
	if hasBridge {
		last := &points[historyCount-1]
		last.Yhat = ptr(*last.Value)
		last.YhatLower = ptr(*last.Value)
		last.YhatUpper = ptr(*last.Value)
		last.Bridge = true
	}

	for _, f := range fc {
		points = append(points, contracts.ChartPoint{
			Date:      f.Day(),
			Yhat:      ptr(f.Yhat),
			YhatLower: ptr(f.YhatLower),
			YhatUpper: ptr(f.YhatUpper),
		})
	}

	if points == nil {
		points = []contracts.ChartPoint{}
	}

	return contracts.Timeline{
		Points:        points,
		HistoryCount:  historyCount,
		ForecastCount: len(fc),
		HasBridge:     hasBridge,
	}
}

// aggregateHistory groups observations by day and averages across sources
func aggregateHistory(history []contracts.TimeSeriesPoint) []contracts.ChartPoint {
	days := make(map[string]*dayAccumulator)
	for _, p := range history {
		day := p.Day()
		if day == "" {
			continue
		}
		acc, ok := days[day]
		if !ok {
			acc = &dayAccumulator{}
			days[day] = acc
		}

		v := p.Value()
		acc.sum += v
		acc.n++

		switch p.Source {
		case SourceGoogleTrends:
			acc.google += v
			acc.googleCount++
		case SourceReddit:
			acc.reddit += v
			acc.redditCount++
		}
	}

	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	// ISO 날짜: 사전순 = 시간순
	sort.Strings(dates)

	out := make([]contracts.ChartPoint, 0, len(dates))
	for _, d := range dates {
		acc := days[d]
		cp := contracts.ChartPoint{
			Date:  d,
			Value: ptr(acc.sum / acc.n),
		}
		if acc.googleCount > 0 {
			cp.GoogleTrends = ptr(acc.google / acc.googleCount)
		}
		if acc.redditCount > 0 {
			cp.Reddit = ptr(acc.reddit / acc.redditCount)
		}
		out = append(out, cp)
	}

	return out
}

// filterForecasts drops yhat <= 0 (and non-finite) points, sorted by date
func filterForecasts(forecasts []contracts.ForecastPoint) []contracts.ForecastPoint {
	out := make([]contracts.ForecastPoint, 0, len(forecasts))
	for _, f := range forecasts {
		if f.Day() == "" || !finite(f.Yhat) || f.Yhat <= 0 {
			continue
		}
		if !finite(f.YhatLower) {
			f.YhatLower = f.Yhat
		}
		if !finite(f.YhatUpper) {
			f.YhatUpper = f.Yhat
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Day() < out[j].Day()
	})

	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ptr(v float64) *float64 {
	return &v
}

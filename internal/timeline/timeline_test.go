package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/evidenceconfig"
)

func f64(v float64) *float64 { return &v }

func obs(date, source string, v float64) contracts.TimeSeriesPoint {
	return contracts.TimeSeriesPoint{Date: date, Source: source, NormalizedValue: f64(v)}
}

func fc(date string, yhat float64) contracts.ForecastPoint {
	return contracts.ForecastPoint{ForecastDate: date, Yhat: yhat, YhatLower: yhat - 5, YhatUpper: yhat + 5}
}

func fiveDays() []contracts.TimeSeriesPoint {
	return []contracts.TimeSeriesPoint{
		obs("2024-03-03", "google_trends", 30),
		obs("2024-03-01", "google_trends", 10),
		obs("2024-03-02", "google_trends", 20),
		obs("2024-03-05", "google_trends", 60),
		obs("2024-03-05", "reddit", 40),
		obs("2024-03-04", "tiktok", 45),
	}
}

func TestConverge(t *testing.T) {
	cfg := evidenceconfig.Default()

	t.Run("three families", func(t *testing.T) {
		c := Converge([]contracts.TimeSeriesPoint{
			obs("2024-01-01", "google_trends", 1),
			obs("2024-01-02", "reddit", 1),
			obs("2024-01-02", "tiktok", 1),
			obs("2024-01-03", "tiktok", 1),
		}, cfg)

		assert.Equal(t, 3, c.ActiveCount)
		assert.Equal(t, 5, c.Total)
		assert.Equal(t, contracts.ConvergenceGood, c.Verdict)
		assert.Equal(t, "Good convergence", c.Label)
		assert.Equal(t, []string{"google_trends", "reddit", "tiktok"}, c.Sources)
	})

	t.Run("empty", func(t *testing.T) {
		c := Converge(nil, cfg)

		assert.Equal(t, 0, c.ActiveCount)
		assert.Equal(t, contracts.ConvergenceNone, c.Verdict)
		assert.Equal(t, "No signal data", c.Label)
		assert.Empty(t, c.Sources)
		assert.Len(t, c.Families, 5)
	})

	t.Run("either alias activates a family", func(t *testing.T) {
		c := Converge([]contracts.TimeSeriesPoint{
			obs("2024-01-01", "facebook", 1),
			obs("2024-01-01", "biorxiv", 1),
			obs("2024-01-01", "amazon_reviews", 1),
		}, cfg)

		assert.Equal(t, 2, c.ActiveCount)
		assert.Equal(t, contracts.ConvergencePartial, c.Verdict)

		active := map[string]bool{}
		for _, f := range c.Families {
			active[f.ID] = f.Active
		}
		assert.True(t, active["meta"])
		assert.True(t, active["science"])
		assert.False(t, active["reddit"])
	})
}

func TestVerdict_Total(t *testing.T) {
	want := map[int]contracts.ConvergenceVerdict{
		0: contracts.ConvergenceNone,
		1: contracts.ConvergenceSingle,
		2: contracts.ConvergencePartial,
		3: contracts.ConvergenceGood,
		4: contracts.ConvergenceStrong,
		5: contracts.ConvergenceStrong,
	}
	for n, v := range want {
		assert.Equal(t, v, Verdict(n), "active=%d", n)
	}
}

func TestMerge_HistoryOnly(t *testing.T) {
	tl := Merge(fiveDays(), nil)

	require.Len(t, tl.Points, 5)
	assert.Equal(t, 5, tl.HistoryCount)
	assert.Equal(t, 0, tl.ForecastCount)
	assert.False(t, tl.HasBridge)

	dates := make([]string, 0, len(tl.Points))
	for _, p := range tl.Points {
		dates = append(dates, p.Date)
		require.NotNil(t, p.Value)
		assert.Nil(t, p.Yhat)
		assert.Nil(t, p.YhatLower)
		assert.Nil(t, p.YhatUpper)
		assert.False(t, p.Bridge)
	}
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05"}, dates)

	last := tl.Points[4]
	assert.Equal(t, 50.0, *last.Value, "cross-source average")
	assert.Equal(t, 60.0, *last.GoogleTrends)
	assert.Equal(t, 40.0, *last.Reddit)
	assert.Nil(t, tl.Points[3].GoogleTrends)
}

func TestMerge_ForecastOnly(t *testing.T) {
	tl := Merge(nil, []contracts.ForecastPoint{fc("2024-03-07", 12), fc("2024-03-06", 11)})

	require.Len(t, tl.Points, 2)
	assert.False(t, tl.HasBridge)
	assert.Equal(t, 0, tl.HistoryCount)
	assert.Equal(t, "2024-03-06", tl.Points[0].Date)
	for _, p := range tl.Points {
		assert.Nil(t, p.Value)
		assert.Nil(t, p.GoogleTrends)
		assert.Nil(t, p.Reddit)
		assert.False(t, p.Bridge)
		require.NotNil(t, p.Yhat)
	}
}

func TestMerge_Bridge(t *testing.T) {
	tl := Merge(fiveDays(), []contracts.ForecastPoint{
		fc("2024-03-08", 58),
		fc("2024-03-06", 52),
		fc("2024-03-07", 55),
	})

	require.Len(t, tl.Points, 8)
	assert.True(t, tl.HasBridge)
	assert.Equal(t, 5, tl.HistoryCount)
	assert.Equal(t, 3, tl.ForecastCount)

	onBridgeDate := 0
	var bridge contracts.ChartPoint
	for _, p := range tl.Points {
		if p.Date == "2024-03-05" {
			onBridgeDate++
			bridge = p
		}
	}
	require.Equal(t, 1, onBridgeDate, "no other point shares the bridge date")

	assert.True(t, bridge.Bridge)
	require.NotNil(t, bridge.Value)
	assert.Equal(t, 50.0, *bridge.Value)
	assert.Equal(t, *bridge.Value, *bridge.Yhat)
	assert.Equal(t, *bridge.Value, *bridge.YhatLower)
	assert.Equal(t, *bridge.Value, *bridge.YhatUpper)

	assert.Equal(t, "2024-03-06", tl.Points[5].Date)
	assert.Equal(t, "2024-03-08", tl.Points[7].Date)
	assert.Nil(t, tl.Points[5].Value)
}

func TestMerge_DropsNonPositiveForecasts(t *testing.T) {
	tl := Merge(fiveDays(), []contracts.ForecastPoint{
		fc("2024-03-06", 0),
		fc("2024-03-07", -3),
		fc("2024-03-08", 0.5),
	})

	for _, p := range tl.Points {
		if p.Yhat != nil && !p.Bridge {
			assert.Greater(t, *p.Yhat, 0.0)
		}
	}
	assert.Equal(t, 1, tl.ForecastCount)
	assert.Len(t, tl.Points, 6)
}

func TestMerge_AllForecastsFilteredMeansNoBridge(t *testing.T) {
	tl := Merge(fiveDays(), []contracts.ForecastPoint{fc("2024-03-06", 0)})

	assert.False(t, tl.HasBridge)
	assert.Len(t, tl.Points, 5)
	assert.Nil(t, tl.Points[4].Yhat)
}

func TestMerge_StaleForecastsMeansNoBridge(t *testing.T) {
	history := []contracts.TimeSeriesPoint{
		obs("2024-01-01", "google_trends", 10),
		obs("2024-01-02", "google_trends", 12),
	}

	tests := []struct {
		name      string
		forecasts []contracts.ForecastPoint
	}{
		{"same day as last history", []contracts.ForecastPoint{fc("2024-01-02", 5)}},
		{"before last history", []contracts.ForecastPoint{fc("2023-12-30", 5), fc("2024-01-01", 7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := Merge(history, tt.forecasts)

			assert.False(t, tl.HasBridge)
			assert.Equal(t, 0, tl.ForecastCount)
			require.Len(t, tl.Points, 2)
			last := tl.Points[1]
			assert.False(t, last.Bridge)
			assert.Nil(t, last.Yhat)
			assert.Nil(t, last.YhatLower)
			assert.Nil(t, last.YhatUpper)
		})
	}
}

func TestMerge_ValueFallbacks(t *testing.T) {
	tl := Merge([]contracts.TimeSeriesPoint{
		{Date: "2024-03-01T00:00:00Z", Source: "reddit", RawValue: f64(8)},
		{Date: "2024-03-01", Source: "tiktok"},
	}, nil)

	require.Len(t, tl.Points, 1)
	assert.Equal(t, "2024-03-01", tl.Points[0].Date)
	assert.Equal(t, 4.0, *tl.Points[0].Value)
}

func TestMerge_Empty(t *testing.T) {
	tl := Merge(nil, nil)

	assert.NotNil(t, tl.Points)
	assert.Empty(t, tl.Points)
	assert.False(t, tl.HasBridge)
}

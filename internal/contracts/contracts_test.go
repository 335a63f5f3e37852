package contracts

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicID_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want TopicID
	}{
		{"string", `"abc-1"`, "abc-1"},
		{"integer", `42`, "42"},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id TopicID
			require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
			assert.Equal(t, tt.want, id)
		})
	}

	var id TopicID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestComponentSet_PreservesOrderAndKinds(t *testing.T) {
	var set ComponentSet
	require.NoError(t, json.Unmarshal([]byte(`{
		"review_gap": {"weight": 0.1, "contribution": "4.5", "severity": 62},
		"cross_source": {"weight": 0.2, "contribution": 8, "sources_positive": 2.7, "total_sources": "4"},
		"broken": null,
		"demand_growth": {"weight": 0.3, "contribution": "n/a", "raw": 1.25, "normalized": "high"}
	}`), &set))

	require.Len(t, set, 3)
	assert.Equal(t, []string{"review_gap", "cross_source", "demand_growth"}, []string{set[0].Key, set[1].Key, set[2].Key})

	gap := set[0]
	assert.Equal(t, KindReviewGap, gap.Kind())
	assert.Equal(t, 4.5, gap.Contribution)
	require.NotNil(t, gap.ReviewGap.Severity)
	assert.Equal(t, 62.0, *gap.ReviewGap.Severity)

	cross, ok := set.Get("cross_source")
	require.True(t, ok)
	assert.Equal(t, KindCrossSource, cross.Kind())
	assert.Equal(t, 2, *cross.CrossSource.SourcesPositive, "counts are floored")
	assert.Equal(t, 4, *cross.CrossSource.TotalSources)

	demand := set[2]
	assert.Equal(t, KindGeneric, demand.Kind())
	assert.Zero(t, demand.Contribution, "non-numeric contribution reads as 0")
	assert.Equal(t, "1.25", demand.Raw.String())
	assert.Equal(t, "high", demand.Normalized.String())

	_, ok = set.Get("missing")
	assert.False(t, ok)
}

func TestComponentSet_OutOfRangeCountsAreAbsent(t *testing.T) {
	var set ComponentSet
	require.NoError(t, json.Unmarshal([]byte(`{
		"cross_source": {"weight": 0.2, "contribution": 8, "sources_positive": 1e300, "total_sources": -9.5e18}
	}`), &set))

	cross, ok := set.Get("cross_source")
	require.True(t, ok)
	require.NotNil(t, cross.CrossSource)
	assert.Nil(t, cross.CrossSource.SourcesPositive)
	assert.Nil(t, cross.CrossSource.TotalSources)
	assert.Equal(t, 8.0, cross.Contribution)

	var edge ComponentSet
	require.NoError(t, json.Unmarshal([]byte(`{
		"cross_source": {"sources_positive": "2147483647.9", "total_sources": 2147483648}
	}`), &edge))
	cross, _ = edge.Get("cross_source")
	require.NotNil(t, cross.CrossSource.SourcesPositive)
	assert.Equal(t, 2147483647, *cross.CrossSource.SourcesPositive)
	assert.Nil(t, cross.CrossSource.TotalSources)
}

func TestComponentSet_DuplicateKeyLastWins(t *testing.T) {
	var set ComponentSet
	require.NoError(t, json.Unmarshal([]byte(`{"a":{"contribution":1},"b":{"contribution":2},"a":{"contribution":3}}`), &set))

	require.Len(t, set, 2)
	assert.Equal(t, "a", set[0].Key)
	assert.Equal(t, 3.0, set[0].Contribution)
}

func TestComponentSet_MarshalKeepsOrder(t *testing.T) {
	set := ComponentSet{
		{Key: "z", Weight: 0.5, Contribution: 10},
		{Key: "a", Weight: 0.5, Contribution: 20},
	}
	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, `{"z":{"weight":0.5,"contribution":10},"a":{"weight":0.5,"contribution":20}}`, string(data))
}

func TestComponentSet_RejectsNonObject(t *testing.T) {
	var set ComponentSet
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &set))
	require.NoError(t, json.Unmarshal([]byte(`null`), &set))
	assert.Nil(t, set)
}

func TestDiagnostic_String(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`12`, "12"},
		{`0.123456`, "0.123"},
		{`2.50`, "2.5"},
		{`"rising"`, "rising"},
		{`true`, "true"},
		{`null`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Diagnostic(tt.in).String(), "input %q", tt.in)
	}
}

func TestScoreSnapshot_Accessors(t *testing.T) {
	var nilSnap *ScoreSnapshot
	assert.Nil(t, nilSnap.OpportunityValue())
	assert.Nil(t, nilSnap.Explanation())

	nan := math.NaN()
	v := 71.0
	snap := &ScoreSnapshot{
		Opportunity: &OpportunityScore{Value: &nan},
		Competition: &ScoreValue{Value: &v},
	}
	assert.Nil(t, snap.OpportunityValue(), "NaN is not computed")
	assert.Equal(t, 71.0, *snap.CompetitionValue())
	assert.Nil(t, snap.DemandValue())
}

func TestTimeSeriesPoint_ValueFallbacks(t *testing.T) {
	raw, inf := 7.0, math.Inf(1)

	assert.Equal(t, 7.0, TimeSeriesPoint{NormalizedValue: &inf, RawValue: &raw}.Value())
	assert.Zero(t, TimeSeriesPoint{}.Value())
	assert.Equal(t, "2024-03-05", TimeSeriesPoint{Date: "2024-03-05T10:00:00Z"}.Day())
	assert.Equal(t, "2024-03-05", ForecastPoint{ForecastDate: " 2024-03-05 "}.Day())
}

func TestForecastResponse_LenientGeneratedAt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *time.Time
	}{
		{"rfc3339", `"2024-03-05T06:00:00Z"`, timePtr(time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC))},
		{"naive with micros", `"2024-03-05T06:00:00.123456"`, timePtr(time.Date(2024, 3, 5, 6, 0, 0, 123456000, time.UTC))},
		{"space separated", `"2024-03-05 06:00:00"`, timePtr(time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC))},
		{"date only", `"2024-03-05"`, timePtr(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))},
		{"garbage", `"yesterday"`, nil},
		{"number", `1709618400`, nil},
		{"null", `null`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := `{"model_version":"m1","generated_at":` + tt.in + `,"forecasts":[{"forecast_date":"2024-03-06","yhat":1,"yhat_lower":0,"yhat_upper":2}]}`

			var resp ForecastResponse
			require.NoError(t, json.Unmarshal([]byte(data), &resp))
			assert.Equal(t, "m1", resp.ModelVersion)
			assert.Len(t, resp.Forecasts, 1)
			if tt.want == nil {
				assert.Nil(t, resp.GeneratedAt)
				return
			}
			require.NotNil(t, resp.GeneratedAt)
			assert.True(t, tt.want.Equal(*resp.GeneratedAt), "got %s", resp.GeneratedAt)
		})
	}

	t.Run("missing", func(t *testing.T) {
		var resp ForecastResponse
		require.NoError(t, json.Unmarshal([]byte(`{"forecasts":[]}`), &resp))
		assert.Nil(t, resp.GeneratedAt)
		assert.NotNil(t, resp.Forecasts)
	})
}

func timePtr(t time.Time) *time.Time { return &t }

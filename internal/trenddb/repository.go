package trenddb

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/source"
)

// Schema is the DDL of the read model this repository queries
//
//go:embed schema.sql
var Schema string

const dateLayout = "2006-01-02"

// Repository implements source.Source on top of the trends schema
// ⭐ SSOT: trends 스키마 조회는 여기서만 (읽기 전용)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new trends repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ source.Source = (*Repository)(nil)

// Topic returns the topic with its latest score snapshot
func (r *Repository) Topic(ctx context.Context, id contracts.TopicID) (*contracts.Topic, error) {
	query := `
		SELECT t.id, t.name, COALESCE(t.stage, ''), COALESCE(t.primary_category, ''),
		       s.opportunity_score, s.competition_score, s.demand_score, s.explanation,
		       s.computed_at IS NOT NULL
		FROM trends.topics t
		LEFT JOIN LATERAL (
			SELECT opportunity_score, competition_score, demand_score, explanation, computed_at
			FROM trends.topic_scores
			WHERE topic_id = t.id
			ORDER BY computed_at DESC
			LIMIT 1
		) s ON true
		WHERE t.id = $1
	`

	var (
		t           contracts.Topic
		topicID     string
		stage       string
		opportunity *float64
		competition *float64
		demand      *float64
		explanation []byte
		hasScores   bool
	)
	err := r.pool.QueryRow(ctx, query, string(id)).Scan(
		&topicID, &t.Name, &stage, &t.PrimaryCategory,
		&opportunity, &competition, &demand, &explanation, &hasScores,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("topic %s: %w", id, source.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query topic %s: %w", id, err)
	}
	t.ID = contracts.TopicID(topicID)
	t.Stage = contracts.Stage(stage)

	if hasScores {
		snap, err := buildSnapshot(opportunity, competition, demand, explanation)
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", id, err)
		}
		t.LatestScores = snap
	}

	return &t, nil
}

// TimeSeries returns every observation for the topic, oldest first
func (r *Repository) TimeSeries(ctx context.Context, id contracts.TopicID) ([]contracts.TimeSeriesPoint, error) {
	query := `
		SELECT date, source, normalized_value, raw_value
		FROM trends.timeseries
		WHERE topic_id = $1
		ORDER BY date ASC, source ASC
	`

	rows, err := r.pool.Query(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("query timeseries %s: %w", id, err)
	}
	defer rows.Close()

	points := []contracts.TimeSeriesPoint{}
	for rows.Next() {
		var (
			p    contracts.TimeSeriesPoint
			date time.Time
		)
		if err := rows.Scan(&date, &p.Source, &p.NormalizedValue, &p.RawValue); err != nil {
			return nil, err
		}
		p.Date = date.Format(dateLayout)
		points = append(points, p)
	}
	return points, rows.Err()
}

// Forecast returns the points of the most recent forecast run
// 실행 기록이 없으면 빈 예측 (에러 아님)
func (r *Repository) Forecast(ctx context.Context, id contracts.TopicID) (*contracts.ForecastResponse, error) {
	runQuery := `
		SELECT id, model_version, generated_at
		FROM trends.forecast_runs
		WHERE topic_id = $1
		ORDER BY generated_at DESC
		LIMIT 1
	`

	var (
		runID       int64
		resp        contracts.ForecastResponse
		generatedAt time.Time
	)
	err := r.pool.QueryRow(ctx, runQuery, string(id)).Scan(&runID, &resp.ModelVersion, &generatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &contracts.ForecastResponse{Forecasts: []contracts.ForecastPoint{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query forecast run %s: %w", id, err)
	}
	resp.GeneratedAt = &generatedAt

	rows, err := r.pool.Query(ctx, `
		SELECT forecast_date, yhat, yhat_lower, yhat_upper
		FROM trends.forecasts
		WHERE run_id = $1
		ORDER BY forecast_date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query forecasts %s: %w", id, err)
	}
	defer rows.Close()

	resp.Forecasts = []contracts.ForecastPoint{}
	for rows.Next() {
		var (
			p    contracts.ForecastPoint
			date time.Time
		)
		if err := rows.Scan(&date, &p.Yhat, &p.YhatLower, &p.YhatUpper); err != nil {
			return nil, err
		}
		p.ForecastDate = date.Format(dateLayout)
		resp.Forecasts = append(resp.Forecasts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &resp, nil
}

// buildSnapshot assembles a ScoreSnapshot from score columns
// NULL 점수 = 아직 계산 안 됨 (nil 유지)
func buildSnapshot(opportunity, competition, demand *float64, explanation []byte) (*contracts.ScoreSnapshot, error) {
	snap := &contracts.ScoreSnapshot{}

	var exp *contracts.Explanation
	if len(explanation) > 0 && string(explanation) != "null" {
		exp = &contracts.Explanation{}
		if err := json.Unmarshal(explanation, exp); err != nil {
			return nil, fmt.Errorf("decode explanation: %w", err)
		}
	}

	if opportunity != nil || exp != nil {
		snap.Opportunity = &contracts.OpportunityScore{Value: opportunity, Explanation: exp}
	}
	if competition != nil {
		snap.Competition = &contracts.ScoreValue{Value: competition}
	}
	if demand != nil {
		snap.Demand = &contracts.ScoreValue{Value: demand}
	}

	return snap, nil
}

package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wonny/trendlens/pkg/config"
)

// Schema holding the trend tables read by the postgres source
const Schema = "trends"

// Tables the evidence source reads from
// ⭐ SSOT: trenddb 쿼리가 참조하는 테이블 목록
var Tables = []string{"topics", "topic_scores", "timeseries", "forecast_runs", "forecasts"}

// 느린 근거 쿼리 상한 (handlers.LoadTimeout 보다 짧게)
const statementTimeout = 10 * time.Second

const pingTimeout = 5 * time.Second

// DB is the read-only pool behind SOURCE_MODE=postgres
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New connects and pings
// ⭐ SSOT: 유일하게 pgxpool.NewWithConfig()를 호출하는 함수
func New(cfg *config.Config) (*DB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// poolConfig builds the read-only session settings for evidence queries
func poolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.Database.MaxConns > 0 {
		pc.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns > 0 && int32(cfg.Database.MinConns) <= pc.MaxConns {
		pc.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}
	if cfg.Database.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	}

	params := pc.ConnConfig.RuntimeParams
	params["default_transaction_read_only"] = "on"
	params["application_name"] = "trendlens"
	params["statement_timeout"] = strconv.FormatInt(statementTimeout.Milliseconds(), 10)
	// URL에 search_path가 있으면 그대로 둔다
	if _, ok := params["search_path"]; !ok {
		params["search_path"] = Schema + ",public"
	}

	return pc, nil
}

// Close closes the pool; safe to call twice
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// MissingTables returns the evidence tables absent from the schema
func (db *DB) MissingTables(ctx context.Context) ([]string, error) {
	var missing []string
	for _, table := range Tables {
		var found *string
		err := db.Pool.QueryRow(ctx, `SELECT to_regclass($1::text)::text`, Schema+"."+table).Scan(&found)
		if err != nil {
			return nil, fmt.Errorf("lookup %s.%s: %w", Schema, table, err)
		}
		if found == nil {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

// HealthCheck pings, reports pool stats and checks the evidence tables
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{Timestamp: time.Now()}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)
	status.Stats = statsOf(db.Pool.Stat())

	missing, err := db.MissingTables(ctx)
	if err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.MissingTables = missing
	status.Healthy = len(missing) == 0
	if !status.Healthy {
		status.Error = fmt.Sprintf("missing tables in %s: %v", Schema, missing)
	}
	return status, nil
}

func statsOf(s *pgxpool.Stat) PoolStats {
	return PoolStats{
		AcquireCount:  s.AcquireCount(),
		AcquiredConns: s.AcquiredConns(),
		IdleConns:     s.IdleConns(),
		MaxConns:      s.MaxConns(),
		TotalConns:    s.TotalConns(),
	}
}

// HealthStatus is the check-db report
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Timestamp     time.Time     `json:"timestamp"`
	ResponseTime  time.Duration `json:"response_time_ns"`
	Error         string        `json:"error,omitempty"`
	MissingTables []string      `json:"missing_tables,omitempty"`
	Stats         PoolStats     `json:"stats"`
}

// PoolStats mirrors pgxpool.Stat
type PoolStats struct {
	AcquireCount  int64 `json:"acquire_count"`
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
}

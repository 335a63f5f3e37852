package commands

import (
	"fmt"
	"time"

	"github.com/wonny/trendlens/internal/evidenceconfig"
	"github.com/wonny/trendlens/internal/external/trendapi"
	"github.com/wonny/trendlens/internal/panel"
	"github.com/wonny/trendlens/internal/source"
	"github.com/wonny/trendlens/internal/trenddb"
	"github.com/wonny/trendlens/pkg/config"
	"github.com/wonny/trendlens/pkg/database"
	"github.com/wonny/trendlens/pkg/httputil"
	"github.com/wonny/trendlens/pkg/logger"
	"github.com/wonny/trendlens/pkg/redis"
)

// app holds the wired dependencies shared by every command
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	cached  *source.Cached
	service *panel.Service

	closers []func()
}

// loadConfig reads env config and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if evidenceConfig != "" {
		cfg.EvidenceConfigPath = evidenceConfig
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires source -> cache -> panel service
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	rt := &app{cfg: cfg, log: logger.New(cfg)}

	evCfg, err := evidenceconfig.LoadOrDefault(cfg.EvidenceConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load evidence config: %w", err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = rdb.Close() })

	upstream, err := rt.newSource(rdb)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.cached = source.NewCached(upstream, redis.NewCache(rdb, "trendlens"), cfg.CacheTTL, rt.log)

	rt.service, err = panel.NewService(rt.cached, evCfg, rt.log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create panel service: %w", err)
	}

	rt.log.WithFields(map[string]interface{}{
		"source":      cfg.SourceMode,
		"redis":       rdb.Enabled(),
		"config_hash": rt.service.ConfigHash(),
	}).Debug("App initialized")

	return rt, nil
}

// newSource selects the upstream by SOURCE_MODE
func (rt *app) newSource(rdb *redis.Client) (source.Source, error) {
	switch rt.cfg.SourceMode {
	case config.SourceModePostgres:
		db, err := database.New(rt.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		rt.closers = append(rt.closers, db.Close)
		return trenddb.NewRepository(db.Pool), nil

	default:
		httpClient := httputil.New(rt.cfg, rt.log)
		// 여러 인스턴스가 같은 업스트림을 공유하면 Redis 슬라이딩 윈도우 사용
		if rdb.Enabled() && rt.cfg.TrendAPI.RPS > 0 {
			httpClient = httpClient.WithRateLimiter(redis.NewRateLimiter(rdb, "ratelimit"), redis.RateLimitConfig{
				Key:    "trendapi",
				Limit:  rt.cfg.TrendAPI.RPS,
				Window: time.Second,
			})
		} else {
			httpClient = httpClient.WithLocalLimit(rt.cfg.TrendAPI.RPS)
		}
		return trendapi.NewClient(httpClient, rt.cfg.TrendAPI.BaseURL, rt.cfg.TrendAPI.APIKey, rt.log), nil
	}
}

// Close releases connections in reverse order
func (rt *app) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

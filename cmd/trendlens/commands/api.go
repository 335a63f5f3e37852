package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/trendlens/internal/api"
	"github.com/wonny/trendlens/internal/api/handlers"
	"github.com/wonny/trendlens/internal/live"
	"github.com/wonny/trendlens/internal/scheduler"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API + WebSocket 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 토픽 근거 조회 엔드포인트 제공
- 실시간 근거 스트림 제공
- REFRESH_ENABLED=true 이면 캐시 프리워밍 스케줄러 시작

Endpoints:
  GET /health                       - Health check
  GET /api/topics/{id}/evidence     - 전체 근거
  GET /api/topics/{id}/breakdown    - 점수 분해
  GET /api/topics/{id}/timeline     - 신호 수렴 + 타임라인
  GET /api/evidence/config          - 활성 임계값/해시
  GET /topics/{id}/panel            - HTML 패널
  GET /ws/evidence                  - 실시간 스트림

Example:
  go run ./cmd/trendlens api
  go run ./cmd/trendlens api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== TrendLens API Server ===")

	// 1. Wire dependencies
	rt, err := newApp()
	if err != nil {
		return err
	}
	defer rt.Close()

	// Override port if flag is set
	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	log := rt.log
	log.WithFields(map[string]interface{}{
		"port":   rt.cfg.Port,
		"env":    rt.cfg.Env,
		"source": rt.cfg.SourceMode,
	}).Info("Initializing API server")

	// 2. Create handlers
	evidenceHandler := handlers.NewEvidenceHandler(rt.service, log)
	streamHandler := live.NewHandler(rt.service, rt.cfg.WSMaxMessagesPerSec, log)

	// 3. Create router + server
	router := api.NewRouter(evidenceHandler, streamHandler, log)
	server := api.New(rt.cfg, log, router)

	// 4. Optional refresh scheduler
	var sched *scheduler.Scheduler
	if rt.cfg.Refresh.Enabled {
		sched = scheduler.New(log)
		if err := sched.AddJob(newRefreshJob(rt)); err != nil {
			return fmt.Errorf("add refresh job: %w", err)
		}
		sched.Start()
	}

	// 5. Serve until interrupted (graceful shutdown)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Listen(); err != nil {
		if sched != nil {
			sched.Stop()
		}
		return err
	}

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://%s\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	err = server.Run(ctx, api.DefaultShutdownTimeout)

	if sched != nil {
		sched.Stop()
	}
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

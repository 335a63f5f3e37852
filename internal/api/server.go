package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wonny/trendlens/internal/api/handlers"
	"github.com/wonny/trendlens/pkg/config"
	"github.com/wonny/trendlens/pkg/logger"
)

// 근거 로드 타임아웃 이후 응답 직렬화 여유
const writeSlack = 10 * time.Second

// DefaultShutdownTimeout bounds graceful shutdown in Run
const DefaultShutdownTimeout = 30 * time.Second

// Server serves the evidence API and the live stream
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates the server; nothing is bound until Listen or Run
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// 웹소켓은 업그레이드 시 데드라인이 해제되므로 여기 영향 없음
			WriteTimeout: handlers.LoadTimeout + writeSlack,
			IdleTimeout:  60 * time.Second,
		},
		log: log.WithField("component", "api-server"),
	}
}

// Listen binds the configured address
// ":0" picks a free port; Addr reports the bound one.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Start binds (if needed) and serves until Shutdown
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	s.log.WithField("addr", ln.Addr().String()).Info("Serving evidence API")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
// A serve failure is returned immediately.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops accepting and waits for in-flight evidence loads
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down evidence API")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

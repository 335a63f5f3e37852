package api

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendlens/internal/api/handlers"
	"github.com/wonny/trendlens/pkg/config"
	"github.com/wonny/trendlens/pkg/logger"
)

func newLocalServer(t *testing.T) *Server {
	t.Helper()
	return New(&config.Config{Port: "0", Env: "development"}, logger.Nop(), http.HandlerFunc(healthCheckHandler))
}

func TestServer_TimeoutsCoverEvidenceLoad(t *testing.T) {
	s := newLocalServer(t)
	assert.Greater(t, int64(s.httpServer.WriteTimeout), int64(handlers.LoadTimeout))
	assert.NotZero(t, s.httpServer.ReadHeaderTimeout)
	assert.Equal(t, ":0", s.Addr(), "configured address before Listen")
}

func TestServer_RunServesUntilCancelled(t *testing.T) {
	s := newLocalServer(t)
	require.NoError(t, s.Listen())
	_, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	require.NotEqual(t, "0", port)
	addr := "127.0.0.1:" + port

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Second) }()

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	http.DefaultClient.CloseIdleConnections()
	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err, "listener closed after shutdown")
}

func TestServer_ListenErrorIsReturned(t *testing.T) {
	first := newLocalServer(t)
	require.NoError(t, first.Listen())
	t.Cleanup(func() { _ = first.listener.Close() })

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)

	second := New(&config.Config{Port: port}, logger.Nop(), http.NotFoundHandler())
	err = second.Run(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}

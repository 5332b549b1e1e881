package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/restaurant/internal/health"
	"github.com/vladislavdragonenkov/restaurant/internal/version"
)

func TestStartMetricsServer_Endpoints(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := healthcheck.NewHandler(version.ServiceName, version.GetVersion())
	srv := startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", "http"), healthHandler)
	require.NotNil(t, srv)

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForHTTP(t, base+"/livez")

	for path, want := range map[string]string{
		"/livez":  "ok",
		"/readyz": "ready",
	} {
		status, body := get(t, base+path)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, want, body, path)
	}

	status, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"healthy"`)
	assert.Contains(t, body, version.ServiceName)

	status, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body)
}

func TestStartMetricsServer_UnhealthyStorage(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := healthcheck.NewHandler(version.ServiceName, "test")
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("postgres", func(context.Context) error {
		return errors.New("connection refused")
	}))
	startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", "http"), healthHandler)

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForHTTP(t, base+"/livez")

	status, _ := get(t, base+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "connection refused")
}

func TestStartMetricsServer_StopsOnCancel(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())

	startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", "http-shutdown"),
		healthcheck.NewHandler(version.ServiceName, "test"))

	url := fmt.Sprintf("http://127.0.0.1:%d/livez", port)
	waitForHTTP(t, url)

	cancel()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return true
		}
		resp.Body.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond, "server should stop after context cancellation")
}

func TestShutdownHTTP_NilServer(t *testing.T) {
	assert.NotPanics(t, func() {
		shutdownHTTP(nil, log.WithField("test", "http-nil"))
	})
}

func waitForHTTP(t *testing.T, url string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond, "server did not start: %s", url)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

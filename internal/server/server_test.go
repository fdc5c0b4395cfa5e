package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/quic-go/quic-go/http3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/timecode/internal/config"
	"github.com/zsiec/timecode/internal/errors"
	"github.com/zsiec/timecode/pkg/framerate"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPPort:        0,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
			MaxBodyBytes:    1024,
			HTTP3: config.HTTP3Config{
				Port: 8443,
			},
		},
		RateLimit: config.RateLimitConfig{
			Enabled: false,
			Backend: config.RateLimitBackendMemory,
		},
		Timecode: config.TimecodeConfig{
			DefaultFrameRate: "25",
			RTPExtensionID:   1,
		},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T, cfg *config.Config, client redis.UniversalClient) *Server {
	t.Helper()

	s, err := New(cfg, quietLogger(), client)
	require.NoError(t, err)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	logger := quietLogger()

	server, err := New(cfg, logger, nil)
	require.NoError(t, err)

	assert.Equal(t, &cfg.Server, server.config)
	assert.Equal(t, logger, server.logger)
	assert.Nil(t, server.redis)
	assert.Nil(t, server.limiter)
	assert.Equal(t, framerate.FPS25, server.defaultRate)
	assert.NotNil(t, server.router)
	assert.NotNil(t, server.handler)
	assert.NotNil(t, server.healthMgr)
	assert.NotNil(t, server.errorHandler)
	assert.IsType(t, &mux.Router{}, server.router)
}

func TestNew_RateLimiter(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, Backend: "memory", RequestsPerSecond: 1, Burst: 1}

		s := newTestServer(t, cfg, nil)
		require.NotNil(t, s.limiter)
		assert.Equal(t, "memory", s.limiter.Backend())
	})

	t.Run("redis without client", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, Backend: "redis", RequestsPerSecond: 1, Burst: 1, Window: time.Second}

		_, err := New(cfg, quietLogger(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create rate limiter")
	})
}

func TestRegisterHealthCheckers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := newTestServer(t, testConfig(), client)
	results := s.healthMgr.RunChecks(context.Background())

	assert.Contains(t, results, "decoder")
	assert.Contains(t, results, "redis")

	withoutRedis := newTestServer(t, testConfig(), nil)
	results = withoutRedis.healthMgr.RunChecks(context.Background())
	assert.Contains(t, results, "decoder")
	assert.NotContains(t, results, "redis")
}

type blockingChecker struct{}

func (blockingChecker) Name() string { return "blocking" }

func (blockingChecker) Check(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestNew_HealthCheckTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Server.HealthCheckTimeout = 20 * time.Millisecond

	s := newTestServer(t, cfg, nil)
	s.healthMgr.Register(blockingChecker{})

	start := time.Now()
	results := s.healthMgr.RunChecks(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "Health check timed out", results["blocking"].Message)
}

func TestReadyWhenDown(t *testing.T) {
	t.Run("not yet checked", func(t *testing.T) {
		s := newTestServer(t, testConfig(), nil)

		rr := serve(s, httptest.NewRequest("GET", "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, errors.ErrorTypeServiceDown, body.Error.Type)
		assert.Equal(t, "timecode service is currently unavailable", body.Error.Message)
		assert.NotEmpty(t, body.TraceID)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { client.Close() })

		s := newTestServer(t, testConfig(), client)
		mr.Close()
		s.healthMgr.RunChecks(context.Background())

		rr := serve(s, httptest.NewRequest("GET", "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, errors.ErrorTypeServiceDown, body.Error.Type)

		checks, ok := body.Error.Details["checks"].(map[string]interface{})
		require.True(t, ok, rr.Body.String())
		assert.Contains(t, checks["redis"], "redis ping failed")
		assert.NotContains(t, checks, "decoder")
	})
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStart_HTTP3MissingCertificates(t *testing.T) {
	cfg := testConfig()
	cfg.Server.HTTP3 = config.HTTP3Config{
		Enabled:     true,
		Port:        0,
		TLSCertFile: "missing-cert.pem",
		TLSKeyFile:  "missing-key.pem",
	}
	s := newTestServer(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := s.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load TLS certificates")

	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestShutdown(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	assert.NoError(t, s.Shutdown(context.Background()), "nothing started")

	s.http3Server = &http3.Server{Addr: ":8443"}
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestDebugEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.Server.DebugEndpoints = true
	s := newTestServer(t, cfg, nil)

	rr := serve(s, httptest.NewRequest("GET", "/debug/info", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"default_frame_rate":"25"`)
	assert.Contains(t, rr.Body.String(), `"rate_limiter":"disabled"`)

	rr = serve(s, httptest.NewRequest("GET", "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	off := newTestServer(t, testConfig(), nil)
	rr = serve(off, httptest.NewRequest("GET", "/debug/info", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

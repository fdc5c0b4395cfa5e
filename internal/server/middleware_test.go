package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/timecode/internal/config"
	"github.com/zsiec/timecode/internal/errors"
	"github.com/zsiec/timecode/internal/logger"
)

func TestRequestID(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	rr := serve(s, httptest.NewRequest("GET", "/api/v1/framerates", nil))
	assert.NotEmpty(t, rr.Header().Get(logger.RequestIDHeader))

	req := httptest.NewRequest("GET", "/api/v1/framerates", nil)
	req.Header.Set(logger.RequestIDHeader, "test-request-id")
	rr = serve(s, req)
	assert.Equal(t, "test-request-id", rr.Header().Get(logger.RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	rr := serve(s, httptest.NewRequest("OPTIONS", "/api/v1/timecode/decode/smpte12m", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")

	rr = serve(s, httptest.NewRequest("GET", "/api/v1/framerates", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		s.recoveryMiddleware(panicking).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestBodyLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 8
	s := newTestServer(t, cfg, nil)

	t.Run("declared length", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/timecode/decode/smpte331m", bytes.NewReader(make([]byte, 17)))
		rr := serve(s, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Equal(t, errors.ErrorTypePayloadTooLarge, decodeError(t, rr).Error.Type)
	})

	t.Run("undeclared length", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/timecode/decode/smpte331m", bytes.NewReader(make([]byte, 17)))
		req.ContentLength = -1
		rr := serve(s, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("within limit", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/timecode/decode/smpte12m", bytes.NewReader([]byte{1, 2, 3, 4}))
		rr := serve(s, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRouteTemplate(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	var got string
	s.router.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = routeTemplate(r)
	})

	serve(s, httptest.NewRequest("GET", "/items/42", nil))
	assert.Equal(t, "/items/{id}", got)

	assert.Equal(t, "unmatched", routeTemplate(httptest.NewRequest("GET", "/", nil)))
}

func TestRateLimiting(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, Backend: "memory", RequestsPerSecond: 1, Burst: 1}
		s := newTestServer(t, cfg, nil)

		assertLimited(t, s)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		cfg := testConfig()
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, Backend: "redis", RequestsPerSecond: 1, Burst: 1, Window: time.Second}
		s := newTestServer(t, cfg, client)

		assertLimited(t, s)

		mr.FastForward(time.Second)
		rr := serve(s, limitedRequest())
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func limitedRequest() *http.Request {
	req := httptest.NewRequest("GET", "/api/v1/framerates", nil)
	req.RemoteAddr = "192.0.2.10:40000"
	return req
}

func assertLimited(t *testing.T, s *Server) {
	t.Helper()

	rr := serve(s, limitedRequest())
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(s, limitedRequest())
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, errors.ErrorTypeRateLimit, decodeError(t, rr).Error.Type)

	// Health endpoints are outside the API subrouter and never limited.
	rr = serve(s, httptest.NewRequest("GET", "/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

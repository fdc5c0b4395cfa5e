package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/timecode/internal/config"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemoryLimiter(rps float64, burst int) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(rps, burst)
	l.now = clock.Now
	return l, clock
}

func TestMemoryLimiter_Allow(t *testing.T) {
	l, clock := newMemoryLimiter(1, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}

	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok, "burst exhausted")

	other, _ := l.Allow(ctx, "10.0.0.2")
	assert.True(t, other, "keys are independent")

	clock.Advance(time.Second)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok, "one token refilled")

	assert.Equal(t, config.RateLimitBackendMemory, l.Backend())
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	l, clock := newMemoryLimiter(10, 10)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "old")
	clock.Advance(time.Minute)
	_, _ = l.Allow(ctx, "new")

	assert.Len(t, l.visitors, 2)
	assert.Equal(t, 1, l.Sweep(30*time.Second))
	assert.Len(t, l.visitors, 1)
	assert.Equal(t, 0, l.Sweep(30*time.Second))
}

func TestMemoryLimiter_StartSweeperStops(t *testing.T) {
	l := NewMemoryLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		l.StartSweeper(ctx, 5*time.Millisecond, time.Minute)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLimiter_Allow(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisLimiter(client, 3, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within window", i)
	}

	ok, err := l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, ok, "window exhausted")

	ok, err = l.Allow(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	assert.True(t, mr.Exists(KeyPrefix+"client-a"))
	assert.Greater(t, mr.TTL(KeyPrefix+"client-a"), time.Duration(0))

	mr.FastForward(time.Second)

	ok, err = l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, ok, "new window")

	assert.Equal(t, config.RateLimitBackendRedis, l.Backend())
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisLimiter(client, 3, time.Second)
	mr.Close()

	ok, err := l.Allow(context.Background(), "client-a")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	_, client := newRedis(t)

	tests := []struct {
		name        string
		cfg         config.RateLimitConfig
		client      redis.UniversalClient
		wantBackend string
		wantErr     string
	}{
		{
			name:        "memory",
			cfg:         config.RateLimitConfig{Backend: "memory", RequestsPerSecond: 5, Burst: 5},
			wantBackend: "memory",
		},
		{
			name:        "empty backend defaults to memory",
			cfg:         config.RateLimitConfig{RequestsPerSecond: 5, Burst: 5},
			wantBackend: "memory",
		},
		{
			name:        "redis",
			cfg:         config.RateLimitConfig{Backend: "redis", RequestsPerSecond: 5, Burst: 5, Window: time.Second},
			client:      client,
			wantBackend: "redis",
		},
		{
			name:    "redis without client",
			cfg:     config.RateLimitConfig{Backend: "redis", RequestsPerSecond: 5, Burst: 5, Window: time.Second},
			wantErr: "requires a redis client",
		},
		{
			name:    "unknown backend",
			cfg:     config.RateLimitConfig{Backend: "etcd"},
			wantErr: `unknown rate limit backend "etcd"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(&tt.cfg, tt.client)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBackend, l.Backend())
		})
	}
}

func TestWindowLimit(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RateLimitConfig
		want int64
	}{
		{"rate dominates", config.RateLimitConfig{RequestsPerSecond: 100, Burst: 20, Window: time.Second}, 100},
		{"burst floor", config.RateLimitConfig{RequestsPerSecond: 10, Burst: 50, Window: time.Second}, 50},
		{"fractional rounds up", config.RateLimitConfig{RequestsPerSecond: 2.5, Burst: 1, Window: time.Second}, 3},
		{"long window", config.RateLimitConfig{RequestsPerSecond: 10, Burst: 1, Window: time.Minute}, 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, windowLimit(&tt.cfg))
		})
	}
}

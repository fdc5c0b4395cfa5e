// Package ratelimit limits API requests per client, either in process or
// shared across replicas through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/zsiec/timecode/internal/config"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	// Allow reports whether one more request for key fits the limit.
	Allow(ctx context.Context, key string) (bool, error)
	// Backend names the implementation for logs and metrics.
	Backend() string
}

// New builds the limiter selected by cfg. client is only used by the redis
// backend.
func New(cfg *config.RateLimitConfig, client redis.UniversalClient) (Limiter, error) {
	switch cfg.Backend {
	case config.RateLimitBackendMemory, "":
		return NewMemoryLimiter(cfg.RequestsPerSecond, cfg.Burst), nil
	case config.RateLimitBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("redis rate limiter requires a redis client")
		}
		return NewRedisLimiter(client, windowLimit(cfg), cfg.Window), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

// windowLimit converts a token bucket rate into a fixed window count. The
// burst is the floor so short windows still admit a full burst.
func windowLimit(cfg *config.RateLimitConfig) int64 {
	n := int64(math.Ceil(cfg.RequestsPerSecond * cfg.Window.Seconds()))
	if n < int64(cfg.Burst) {
		n = int64(cfg.Burst)
	}
	return n
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time
}

// NewMemoryLimiter creates a limiter admitting requestsPerSecond per key
// with the given burst.
func NewMemoryLimiter(requestsPerSecond float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow implements Limiter. It never returns an error.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1), nil
}

// Backend implements Limiter.
func (m *MemoryLimiter) Backend() string {
	return config.RateLimitBackendMemory
}

// Sweep forgets keys idle for longer than idle and returns how many were
// removed.
func (m *MemoryLimiter) Sweep(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idle)
	removed := 0
	for key, v := range m.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(m.visitors, key)
			removed++
		}
	}
	return removed
}

// StartSweeper calls Sweep every interval until ctx is done.
func (m *MemoryLimiter) StartSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(idle)
		case <-ctx.Done():
			return
		}
	}
}

// KeyPrefix namespaces rate limit counters in Redis.
const KeyPrefix = "timecode:ratelimit:"

// The counter expires with the window that created it.
var incrScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return n
`)

// RedisLimiter counts requests per key in fixed windows shared by every
// replica using the same Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int64
	window time.Duration
}

// NewRedisLimiter admits limit requests per key in each window.
func NewRedisLimiter(client redis.UniversalClient, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := incrScript.Run(ctx, l.client, []string{KeyPrefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	return n <= l.limit, nil
}

// Backend implements Limiter.
func (l *RedisLimiter) Backend() string {
	return config.RateLimitBackendRedis
}

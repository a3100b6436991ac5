package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// WindowLimiter admits a fixed number of requests per key and window.
type WindowLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Throttle rejects requests once the client's budget for scope is spent. A
// limiter error lets the request through.
func Throttle(limiter WindowLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := limiter.Allow(r.Context(), scope+":"+ClientIP(r))
			if err != nil {
				slog.Warn("rate limiter unavailable", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				writeRateLimited(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
}

type windowEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryWindowLimiter keeps one token bucket per key in process memory. Its
// burst equals the limit and it refills limit tokens per window.
type MemoryWindowLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	keys   map[string]*windowEntry
}

func NewMemoryWindowLimiter(limit int, window time.Duration) *MemoryWindowLimiter {
	limit, window = windowDefaults(limit, window)

	return &MemoryWindowLimiter{
		limit:  limit,
		window: window,
		keys:   map[string]*windowEntry{},
	}
}

func (l *MemoryWindowLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.keys[key]
	if !ok {
		entry = &windowEntry{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)}
		l.keys[key] = entry
	}
	entry.lastSeen = now
	l.gcLocked(now)

	reservation := entry.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay, nil
	}

	return true, 0, nil
}

func (l *MemoryWindowLimiter) gcLocked(now time.Time) {
	if len(l.keys) < 1000 {
		return
	}

	cutoff := now.Add(-2 * l.window)
	for key, entry := range l.keys {
		if entry.lastSeen.Before(cutoff) {
			delete(l.keys, key)
		}
	}
}

// RedisWindowLimiter counts requests in fixed windows shared by every API
// instance: one INCR per request on a key that expires with its window.
type RedisWindowLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisWindowLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisWindowLimiter {
	limit, window = windowDefaults(limit, window)

	return &RedisWindowLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, slot)

	var count *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, counterKey)
		pipe.PExpire(ctx, counterKey, l.window)
		return nil
	})
	if err != nil {
		return true, 0, fmt.Errorf("increment rate counter: %w", err)
	}

	if count.Val() > int64(l.limit) {
		windowEnd := time.Unix(0, (slot+1)*int64(l.window))
		return false, windowEnd.Sub(now), nil
	}

	return true, 0, nil
}

func windowDefaults(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return limit, window
}

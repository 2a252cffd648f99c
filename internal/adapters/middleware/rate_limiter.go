package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/response"
)

// RateLimitStore is the subset of the Redis client used by RateLimiter.
type RateLimitStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

type RateLimitConfig struct {
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
	KeyPrefix     string
	// OnLimited is called for every rejected request.
	OnLimited func(prefix string)
}

// RateLimiter is a fixed-window limiter keyed by the peer address. Run RealIP
// first when the service sits behind proxies. It fails open when Redis is
// unavailable.
func RateLimiter(store RateLimitStore, cfg RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := cfg.KeyPrefix + ":ip:" + clientIP(r)
			blockKey := key + ":blocked"

			if blocked, _ := store.Get(ctx, blockKey).Result(); blocked == "1" {
				ttl, _ := store.TTL(ctx, blockKey).Result()
				reject(w, cfg, ttl)
				return
			}

			// The window is created with its expiry in one command.
			if err := store.SetNX(ctx, key, 0, cfg.Window).Err(); err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			count, err := store.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			ttl, err := store.TTL(ctx, key).Result()
			if err == nil && ttl < 0 {
				// The window expired between SETNX and INCR, leaving a counter
				// with no expiry.
				store.Expire(ctx, key, cfg.Window)
				ttl = cfg.Window
			}

			if count > int64(cfg.Limit) {
				store.Set(ctx, blockKey, "1", cfg.BlockDuration)
				logger.Info("rate limit exceeded", zap.String("key", key))
				reject(w, cfg, cfg.BlockDuration)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(cfg.Limit-int(count)))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, cfg RateLimitConfig, retryAfter time.Duration) {
	if cfg.OnLimited != nil {
		cfg.OnLimited(cfg.KeyPrefix)
	}
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	response.Error(w, http.StatusTooManyRequests, "too many requests")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

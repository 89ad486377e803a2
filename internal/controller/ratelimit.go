// internal/controller/ratelimit.go
package controller

import (
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter throttles webhook endpoints per client IP using a fixed Redis
// window. With Redis unavailable requests pass through; intake dedupe already
// protects against replay floods at the persistence layer.
type RateLimiter struct {
	Redis  *redis.Client
	Limit  int
	Window time.Duration
	Logger *zap.Logger
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.Redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		key := "ratelimit:" + ip

		count, err := rl.Redis.Incr(r.Context(), key).Result()
		if err != nil {
			rl.Logger.Warn("rate limiter unavailable, passing request", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.Redis.Expire(r.Context(), key, rl.Window)
		}
		if count > int64(rl.Limit) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

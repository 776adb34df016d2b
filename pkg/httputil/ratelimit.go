package httputil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// RateLimiter is a fixed-window request limiter backed by Redis. Callers
// are keyed by user id when authenticated, by client IP otherwise.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	log    *logger.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "wareflow:ratelimit:",
		log:    log,
	}
}

// Allow counts one request for key and reports whether it is within the
// limit, together with the time left in the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	windowStart := time.Now().Truncate(rl.window).Unix()
	redisKey := fmt.Sprintf("%s%s:%d", rl.prefix, key, windowStart)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}

	return incr.Val() <= int64(rl.limit), ttl.Val(), nil
}

// Middleware rejects requests over the limit with 429. Redis failures let
// the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		allowed, retryAfter, err := rl.Allow(r.Context(), key)
		if err != nil {
			rl.log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		if !allowed {
			if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			}
			Error(w, errors.TooManyRequests("rate limit exceeded, try again later"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if a := actor.FromContext(r.Context()); a != nil {
		return "user:" + strconv.FormatInt(a.ID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

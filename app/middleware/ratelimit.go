package appMiddleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/onelink-market/internal/api"
)

type RateLimitConfig struct {
	Limit    redis_rate.Limit
	KeyFunc  func(*http.Request) string
	FailOpen bool
}

// RateLimiter throttles requests with a Redis GCRA limiter and falls back to
// an in-process token bucket per key when Redis is unreachable.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
	logger   *slog.Logger
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: &localLimiter{},
		config:   cfg,
		logger:   logger,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)
		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if rl.config.FailOpen {
				rl.logger.WarnContext(r.Context(), "Rate limiter error, failing open", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			api.ErrorResponse(w, r, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit.Rate))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded", slog.String("key", key))
			api.ErrorResponse(w, r, http.StatusTooManyRequests,
				fmt.Sprintf("Too many requests. Retry after %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	res, err := rl.limiter.Allow(ctx, key, rl.config.Limit)
	if err != nil {
		rl.logger.DebugContext(ctx, "Redis limiter unavailable, using local fallback", slog.Any("error", err))
		return rl.fallback.allow(key, rl.config.Limit)
	}
	return res, nil
}

// KeyByIP keys on the client address. RealIP should run first so RemoteAddr
// already reflects X-Forwarded-For.
func KeyByIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ratelimit:ip:" + ip
}

// KeyByIPAndPath buckets each endpoint separately.
func KeyByIPAndPath(r *http.Request) string {
	return KeyByIP(r) + ":path:" + strings.TrimSuffix(r.URL.Path, "/")
}

func PerMinute(limit, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: limit, Burst: burst, Period: time.Minute}
}

type localLimiter struct {
	limiters sync.Map
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	perSec := float64(limit.Rate) / limit.Period.Seconds()

	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(perSec), limit.Burst))
	lim, ok := v.(*rate.Limiter)
	if !ok {
		return nil, fmt.Errorf("invalid limiter entry type %T", v)
	}

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1}
	if lim.Allow() {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(time.Second) / perSec)
	}
	if remaining := int(lim.Tokens()); remaining > 0 {
		res.Remaining = remaining
	}
	return res, nil
}

package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ledger-service/shared/response"
)

type Counter interface {
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error)
}

func RateLimiter(counter Counter, limit int, window time.Duration, keyPrefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Prefer username if known
			var clientID string
			if username, ok := GetUsername(r.Context()); ok {
				clientID = "user:" + username
			} else {
				// 2. Fallback: IP (check proxy headers first)
				ip := r.Header.Get("X-Forwarded-For")
				if ip == "" {
					ip = r.RemoteAddr
				}
				clientID = "ip:" + strings.TrimSpace(strings.Split(ip, ",")[0])
			}

			count, err := counter.IncrWithExpire(r.Context(), keyPrefix+":"+clientID, window)
			if err != nil {
				// Fail open → don't block traffic if Redis unavailable
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			if count > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests")
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))

			next.ServeHTTP(w, r)
		})
	}
}

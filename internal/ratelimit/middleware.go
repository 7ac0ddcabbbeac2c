package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/crmsnjhn/bughaw-api/internal/common"
)

// Middleware throttles requests per derived key. Redis outages fail open so a
// cache incident never locks operators out.
type Middleware struct {
	Limiter *Limiter
	Key     func(*http.Request) string
	Max     int
	Window  time.Duration
	Logger  zerolog.Logger
}

// Handle wraps next with the rate limit check.
func (m Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Limiter == nil || m.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		result, err := m.Limiter.Allow(r.Context(), m.Key(r), m.Max, m.Window)
		if err != nil {
			m.Logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(m.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, slow down", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ByClientIP keys the limit on the request's client address.
func ByClientIP(r *http.Request) string {
	return common.ClientIP(r)
}

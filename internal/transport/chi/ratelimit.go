package chi

import (
	"net/http"
	"strconv"

	"github.com/snipara/contextd/internal/metrics"
	ratelimituc "github.com/snipara/contextd/internal/usecase/ratelimit"
)

// RateLimitMiddleware runs the admission check for every non-exempt
// request. The caller key is the authenticated identity; requests that
// reached this middleware without one (auth disabled) are keyed by
// client IP. Denials get a 429 with Retry-After and are never silently
// dropped.
func RateLimitMiddleware(limiter *ratelimituc.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			callerID := CallerID(r.Context())
			if callerID == "" {
				callerID = clientIP(r)
			}

			decision := limiter.CheckAndIncrement(r.Context(), callerID)
			if !decision.Allowed {
				metrics.RateLimitDecisionsTotal.WithLabelValues("denied").Inc()
				retryAfter := int(decision.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
				return
			}
			metrics.RateLimitDecisionsTotal.WithLabelValues("allowed").Inc()

			next.ServeHTTP(w, r)
		})
	}
}

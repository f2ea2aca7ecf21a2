package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/pulse/internal/security"
	"github.com/go-chi/httprate"
)

const rateLimitWindow = time.Minute

// rateLimit limits requests per client IP with a sliding window. Rejections
// are audited like failed authentication attempts.
func (g *Gateway) rateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		g.config.RateLimit,
		rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			emitAuthEvent(g.audit, security.EventAuthFailure, r, "rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limit_exceeded"})
		}),
	)
}

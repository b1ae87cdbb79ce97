// Package middleware surfaces the cost-control layer on the HTTP request
// path. The rate-limit middleware is how limiter denials become user-visible:
// a 429 response with Retry-After, emitted before the handler runs.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/editorial-labs/costgate/ratelimit"
)

// RateLimit returns middleware enforcing maxRequests per window per client
// IP using the given limiter. Denied requests receive 429 with Retry-After
// and a JSON error body; admitted requests carry X-RateLimit-Remaining.
func RateLimit(limiter *ratelimit.SlidingWindow, maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.CheckAndRecord(ClientIP(r), maxRequests, window)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retry := res.ResetInSeconds()
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":            "rate limit exceeded",
					"retry_after_secs": retry,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client address from a request: the first
// X-Forwarded-For hop when present, otherwise the connection's remote host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

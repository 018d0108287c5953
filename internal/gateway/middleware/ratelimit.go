package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/auth/ratelimit"
	apperrors "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
)

// RateLimit rejects callers that exceed their request window before any
// handler runs. Callers are keyed by the host part of RemoteAddr. Health
// probes and static files are not limited. m may be nil.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !limiter.Allow(ip) {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				logger.FromContext(r.Context()).Warn("rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeError(w, apperrors.RateLimited())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func exempt(path string) bool {
	return strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/static/")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

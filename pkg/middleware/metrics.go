// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
)

// routes are the paths reported as their own label value. Everything else
// is folded so scanners probing random URLs cannot grow the series count.
var routes = map[string]bool{
	"/":             true,
	"/search/tasks": true,
	"/feedback":     true,
	"/requests/all": true,
	"/cache/all":    true,
	"/feedback/all": true,
	"/health/live":  true,
	"/health/ready": true,
}

// Metrics records request count, latency and the in-flight gauge, labelled
// by method, route and status.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// routeLabel maps every chart and asset under /static/ to one value, known
// routes to themselves and anything else to "other".
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/static/"):
		return "/static/*"
	case routes[path]:
		return path
	default:
		return "other"
	}
}

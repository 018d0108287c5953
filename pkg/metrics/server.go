package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const landingPage = `<html><head><title>job-keywords metrics</title></head><body>
<h1>job-keywords</h1>
<p>Scrape <a href="/metrics">/metrics</a>. Pipeline, cache and upstream series
share the <code>skill_</code> prefix.</p>
</body></html>`

// NewMux exposes g on /metrics with a short landing page at the root. A nil
// gatherer means the default registry.
func NewMux(g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", HandlerFor(g))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, landingPage)
	})
	return mux
}

// StartServer serves the scrape endpoint on its own port, away from the
// rate-limited API, and returns the shutdown func.
func StartServer(port int, g prometheus.Gatherer) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewMux(g),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}

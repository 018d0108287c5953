// Package router wires up all HTTP routes and applies the middleware chain
// (RequestID → Metrics → CORS → RateLimit → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/auth/admin"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/auth/ratelimit"
	gwhandler "github.com/Adithya-Monish-Kumar-K/job-keywords/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/job-keywords/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/middleware"
)

type Options struct {
	Handler   *gwhandler.Handler
	Admin     *admin.Validator
	Limiter   *ratelimit.Limiter
	Health    *health.Checker
	Metrics   *metrics.Metrics
	CORS      gwmw.CORSConfig
	StaticDir string // empty when charts are not served from local disk
	Timeout   time.Duration
}

// New builds the full HTTP handler.
//
// Route table:
//
//	GET    /                  → redirect to /static/index.html
//	GET    /static/           → static files and chart images
//	POST   /search/tasks      → run a skill search
//	POST   /feedback          → store a feedback message
//	GET    /requests/all      → request records   (admin)
//	GET    /cache/all         → cache entries     (admin)
//	DELETE /cache/all         → purge the cache   (admin)
//	GET    /feedback/all      → feedback records  (admin)
//	GET    /health/live       → liveness
//	GET    /health/ready      → readiness
func New(opts Options) http.Handler {
	h := opts.Handler
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())

	mux.HandleFunc("GET /{$}", h.Index)
	if opts.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	mux.HandleFunc("POST /search/tasks", h.SearchTask)
	mux.HandleFunc("POST /feedback", h.CreateFeedback)

	adminOnly := gwmw.AdminAuth(opts.Admin)
	mux.Handle("GET /requests/all", adminOnly(http.HandlerFunc(h.ListRequests)))
	mux.Handle("GET /cache/all", adminOnly(http.HandlerFunc(h.ListCache)))
	mux.Handle("DELETE /cache/all", adminOnly(http.HandlerFunc(h.PurgeCache)))
	mux.Handle("GET /feedback/all", adminOnly(http.HandlerFunc(h.ListFeedback)))

	// Applied inside-out:
	// request → RequestID → Metrics → CORS → RateLimit → Timeout → mux
	var chain http.Handler = mux
	if opts.Timeout > 0 {
		chain = pkgmw.Timeout(opts.Timeout)(chain)
	}
	chain = gwmw.RateLimit(opts.Limiter, opts.Metrics)(chain)
	chain = gwmw.CORS(opts.CORS)(chain)
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	chain = pkgmw.RequestID(chain)

	return chain
}

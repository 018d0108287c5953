package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/auth/admin"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/feedback"
	gwhandler "github.com/Adithya-Monish-Kumar-K/job-keywords/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/job-keywords/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/skills"
	apperrors "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
)

type fakeSearcher struct {
	mu   sync.Mutex
	reqs []pipeline.Request
	err  error
}

func (s *fakeSearcher) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperrors.InvalidQuery("searchToken must not be empty")
	}
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.Result{
		RequestID: "req-1",
		ImageURL:  "http://localhost:8000/static/req-1.png",
		Skills:    skills.Table{{Name: "python", Occurrences: 2}, {Name: "sql", Occurrences: 2}},
	}, nil
}

type fakeRequests struct{ recs []audit.Record }

func (f fakeRequests) List(context.Context) ([]audit.Record, error) { return f.recs, nil }

type fakeCache struct {
	entries []cache.Entry
}

func (c *fakeCache) Lookup(context.Context, string) (*cache.Entry, error) { return nil, nil }
func (c *fakeCache) Insert(context.Context, string, []byte, string) error  { return nil }
func (c *fakeCache) List(context.Context) ([]cache.Entry, error)           { return c.entries, nil }
func (c *fakeCache) PurgeAll(context.Context) (int64, error) {
	n := int64(len(c.entries))
	c.entries = nil
	return n, nil
}

type fakeFeedback struct {
	messages []string
}

func (f *fakeFeedback) Create(_ context.Context, message, _ string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", apperrors.InvalidQuery("message must not be empty")
	}
	f.messages = append(f.messages, message)
	return "01JAXZ0000000000000000000", nil
}

func (f *fakeFeedback) List(context.Context) ([]feedback.Record, error) { return nil, nil }

type env struct {
	handler  http.Handler
	search   *fakeSearcher
	cache    *fakeCache
	feedback *fakeFeedback
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
}

func newEnv(t *testing.T, adminToken string) *env {
	t.Helper()
	e := &env{
		search: &fakeSearcher{},
		cache: &fakeCache{entries: []cache.Entry{
			{SearchText: "go", Skills: json.RawMessage(`[]`), ArtifactRef: "cached_a.png", CreatedAt: time.Unix(0, 0).UTC()},
		}},
		feedback: &fakeFeedback{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	limiter := ratelimit.New(5, time.Second)
	t.Cleanup(limiter.Close)
	e.limiter = limiter
	e.handler = New(Options{
		Handler:   gwhandler.New(e.search, fakeRequests{}, e.cache, e.feedback),
		Admin:     admin.NewValidator(adminToken),
		Limiter:   limiter,
		Health:    health.NewChecker(),
		Metrics:   e.metrics,
		CORS:      gwmw.CORSConfig{AllowOrigins: []string{"http://localhost:63342"}, AllowMethods: []string{"GET", "POST"}},
		StaticDir: t.TempDir(),
		Timeout:   5 * time.Second,
	})
	return e
}

func (e *env) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.5:41234"
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestSearchTaskResponseShape(t *testing.T) {
	e := newEnv(t, "")
	rec := e.do(http.MethodPost, "/search/tasks", `{"searchToken":"data engineer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{
		"uuid": "req-1",
		"imageUrl": "http://localhost:8000/static/req-1.png",
		"skills": [{"name":"python","occurrences":2},{"name":"sql","occurrences":2}]
	}`, rec.Body.String())
	require.Len(t, e.search.reqs, 1)
	assert.Equal(t, "203.0.113.5", e.search.reqs[0].ClientIP)
}

func TestSearchTaskErrorsAreStructured(t *testing.T) {
	e := newEnv(t, "")

	rec := e.do(http.MethodPost, "/search/tasks", `{"searchToken":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidQuery", decode(t, rec)["kind"])

	rec = e.do(http.MethodPost, "/search/tasks", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.search.err = apperrors.Wrap(apperrors.ErrUpstreamFetchFailed, errors.New("dial tcp"), "fetching job postings failed")
	rec = e.do(http.MethodPost, "/search/tasks", `{"searchToken":"sre"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "UpstreamFetchFailed", body["kind"])
	assert.Equal(t, "fetching job postings failed", body["message"])
}

func TestSixthRequestIsRateLimitedBeforeThePipeline(t *testing.T) {
	e := newEnv(t, "")
	for i := 0; i < 5; i++ {
		rec := e.do(http.MethodPost, "/search/tasks", `{"searchToken":"go"}`)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
	rec := e.do(http.MethodPost, "/search/tasks", `{"searchToken":"go"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RateLimited", decode(t, rec)["kind"])
	assert.Len(t, e.search.reqs, 5)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.RateLimitedTotal))

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/health/live", "").Code)
}

func TestAdminEndpointsRejectWhenTokenUnset(t *testing.T) {
	e := newEnv(t, "")
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/requests/all"},
		{http.MethodGet, "/cache/all"},
		{http.MethodDelete, "/cache/all"},
		{http.MethodGet, "/feedback/all"},
	} {
		rec := e.do(tc.method, tc.path, "", "Authorization", "Bearer anything")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, "Unauthorized", decode(t, rec)["kind"])
	}
	assert.Len(t, e.cache.entries, 1)
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	e := newEnv(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/cache/all", "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/cache/all", "", "Authorization", "Bearer wrong").Code)

	rec := e.do(http.MethodGet, "/cache/all", "", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"searchText":"go","skills":[],"imageUrl":"cached_a.png","createdAt":"1970-01-01T00:00:00Z"}]`, rec.Body.String())

	e.limiter.Reset("203.0.113.5")
	rec = e.do(http.MethodDelete, "/cache/all", "", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","deleted":1}`, rec.Body.String())

	rec = e.do(http.MethodDelete, "/cache/all", "", "Authorization", "Bearer s3cret")
	assert.JSONEq(t, `{"status":"ok","deleted":0}`, rec.Body.String())

	rec = e.do(http.MethodGet, "/requests/all", "", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestFeedback(t *testing.T) {
	e := newEnv(t, "")
	rec := e.do(http.MethodPost, "/feedback", `{"message":"nice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "01JAXZ0000000000000000000", decode(t, rec)["id"])

	rec = e.do(http.MethodPost, "/feedback", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"nice"}, e.feedback.messages)
}

func TestIndexRedirectsAndCORS(t *testing.T) {
	e := newEnv(t, "")
	rec := e.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/static/index.html", rec.Header().Get("Location"))

	rec = e.do(http.MethodOptions, "/search/tasks", "", "Origin", "http://localhost:63342")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:63342", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = e.do(http.MethodPost, "/search/tasks", `{"searchToken":"go"}`, "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

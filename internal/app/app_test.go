package app

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
)

func newProvider(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("start") != "0" {
			w.Write([]byte(`{"error":"Google hasn't returned any results for this query."}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jobs_results": []map[string]any{
				{"title": "Data Engineer", "description": "About us\n• Build pipelines in Python\n• Maintain dashboards"},
				{"title": "Analyst", "description": "• Build reports with SQL"},
				{"title": "No description"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newApp(t *testing.T, providerURL string) *App {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.SQLitePath = filepath.Join(dir, "jk.db")
	cfg.Artifacts.StaticDir = filepath.Join(dir, "static")
	cfg.Artifacts.PublicBaseURL = "http://jobs.test"
	cfg.Admin.AuthToken = "tok"
	cfg.Search.BaseURL = providerURL
	cfg.Search.APIKey = "key"
	cfg.Metrics.Enabled = false
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	a.Start(context.Background())
	return a
}

func call(h http.Handler, method, path, body string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type searchBody struct {
	UUID     string `json:"uuid"`
	ImageURL string `json:"imageUrl"`
	Skills   []struct {
		Name        string `json:"name"`
		Occurrences int    `json:"occurrences"`
	} `json:"skills"`
}

func TestSearchEndToEnd(t *testing.T) {
	provider, calls := newProvider(t)
	a := newApp(t, provider.URL)
	h := a.Handler()

	rec := call(h, http.MethodPost, "/search/tasks", `{"searchToken":" data engineer "}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first searchBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.NotEmpty(t, first.Skills)
	assert.Equal(t, "http://jobs.test/static/"+first.UUID+".png", first.ImageURL)
	assert.Equal(t, int32(4), calls.Load())

	img, err := os.ReadFile(filepath.Join(a.Config.Artifacts.StaticDir, first.UUID+".png"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(img))
	require.NoError(t, err)

	rec = call(h, http.MethodGet, "/static/"+first.UUID+".png", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(h, http.MethodPost, "/search/tasks", `{"searchToken":"data engineer"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second searchBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.Skills, second.Skills)
	assert.NotEqual(t, first.UUID, second.UUID)
	assert.Equal(t, int32(4), calls.Load(), "second search is served from cache")

	rec = call(h, http.MethodGet, "/requests/all", "", "tok")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "data engineer", records[0]["searchText"])
	assert.Equal(t, "192.0.2.10", records[0]["ipAddress"])

	rec = call(h, http.MethodDelete, "/cache/all", "", "tok")
	assert.JSONEq(t, `{"status":"ok","deleted":1}`, rec.Body.String())

	rec = call(h, http.MethodPost, "/search/tasks", `{"searchToken":"data engineer"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(8), calls.Load(), "purge forces a fresh computation")
}

func TestUpstreamFailureLeavesNoTrace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid API key."}`))
	}))
	t.Cleanup(srv.Close)
	a := newApp(t, srv.URL)
	h := a.Handler()

	rec := call(h, http.MethodPost, "/search/tasks", `{"searchToken":"sre"}`, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"UpstreamFetchFailed"`)

	n, err := a.Audit.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	entries, err := a.Cache.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFeedbackRoundTrip(t *testing.T) {
	provider, _ := newProvider(t)
	a := newApp(t, provider.URL)
	h := a.Handler()

	rec := call(h, http.MethodPost, "/feedback", `{"message":"more cities please"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(h, http.MethodGet, "/feedback/all", "", "tok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "more cities please")
}

func TestReadiness(t *testing.T) {
	provider, _ := newProvider(t)
	a := newApp(t, provider.URL)

	rec := call(a.Handler(), http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"database"`)
}

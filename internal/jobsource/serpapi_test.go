package jobsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
)

func testConfig(baseURL string) config.SearchConfig {
	cfg := config.Default().Search
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.Timeout = 2 * time.Second
	cfg.RetryMax = 2
	return cfg
}

func TestFetchBuildsProviderQueryAndOrdersPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google_jobs", q.Get("engine"))
		assert.Equal(t, "google.com", q.Get("google_domain"))
		assert.Equal(t, "data engineer", q.Get("q"))
		assert.Equal(t, "us", q.Get("gl"))
		assert.Equal(t, "en", q.Get("hl"))
		assert.Equal(t, "date_posted;week", q.Get("chips"))
		assert.Equal(t, "New York, New York, United States", q.Get("location"))
		assert.Equal(t, "test-key", q.Get("api_key"))

		start, _ := strconv.Atoi(q.Get("start"))
		// Later pages answer first to exercise ordering.
		time.Sleep(time.Duration(30-start) * time.Millisecond)
		fmt.Fprintf(w, `{"jobs_results":[{"title":"job-%d","description":"• Go"}]}`, start)
	}))
	defer srv.Close()

	docs, err := NewSerpAPI(testConfig(srv.URL)).Fetch(context.Background(), "data engineer", []int{0, 10, 20, 30})
	require.NoError(t, err)
	require.Len(t, docs, 4)
	for i, want := range []string{"job-0", "job-10", "job-20", "job-30"} {
		assert.Equal(t, want, docs[i].Title)
	}
	assert.Equal(t, "• Go", docs[0].DescriptionText())
}

func TestFetchTreatsNoResultsAsEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "0" {
			fmt.Fprint(w, `{"jobs_results":[{"title":"only"}]}`)
			return
		}
		fmt.Fprint(w, `{"error":"Google hasn't returned any results for this query."}`)
	}))
	defer srv.Close()

	docs, err := NewSerpAPI(testConfig(srv.URL)).Fetch(context.Background(), "rare", []int{0, 10})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "only", docs[0].Title)
}

func TestFetchFailsOnProviderError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		retried bool
	}{
		{"invalid key", http.StatusUnauthorized, `{"error":"Invalid API key."}`, false},
		{"error field", http.StatusOK, `{"error":"Your account has run out of searches."}`, false},
		{"missing results", http.StatusOK, `{}`, false},
		{"bad json", http.StatusOK, `not json`, false},
		{"server error", http.StatusBadGateway, ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewSerpAPI(testConfig(srv.URL)).Fetch(context.Background(), "q", []int{0})
			require.Error(t, err)
			var fe *FetchError
			require.True(t, errors.As(err, &fe), "error %v", err)
			if tt.retried {
				assert.Equal(t, int32(2), calls.Load())
			} else {
				assert.Equal(t, int32(1), calls.Load())
			}
		})
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jobs_results": []map[string]string{{"title": "ok"}}})
	}))
	defer srv.Close()

	docs, err := NewSerpAPI(testConfig(srv.URL)).Fetch(context.Background(), "q", []int{0})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	_, err := NewSerpAPI(cfg).Fetch(context.Background(), "slow", []int{0})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

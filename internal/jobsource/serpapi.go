package jobsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/skills"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/resilience"
)

// noResultsMarker appears in the provider's error field when the search
// succeeded but matched nothing.
const noResultsMarker = "hasn't returned any results"

const maxBodyBytes = 16 << 20

type searchResponse struct {
	JobsResults []skills.Document `json:"jobs_results"`
	Error       string            `json:"error"`
}

// SerpAPI queries the Google Jobs engine of serpapi.com.
type SerpAPI struct {
	cfg        config.SearchConfig
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*SerpAPI)

func WithHTTPClient(c *http.Client) Option {
	return func(s *SerpAPI) { s.httpClient = c }
}

// WithMetrics records fetch latency, document counts and breaker state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SerpAPI) { s.metrics = m }
}

func NewSerpAPI(cfg config.SearchConfig, opts ...Option) *SerpAPI {
	s := &SerpAPI{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default().With("component", "serpapi"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = resilience.NewCircuitBreaker("serpapi", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerLimit,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			if s.metrics != nil {
				s.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
		IsFailure: func(err error) bool {
			var fe *FetchError
			if errors.As(err, &fe) {
				return fe.Retryable
			}
			return !errors.Is(err, context.Canceled)
		},
	})
	return s
}

// Fetch requests every offset concurrently and concatenates the pages in
// offset order. Any page failure fails the whole fetch.
func (s *SerpAPI) Fetch(ctx context.Context, query string, offsets []int) ([]skills.Document, error) {
	start := time.Now()
	docs, err := resilience.WithTimeoutValue(ctx, s.cfg.Timeout, "serpapi_fetch", func(ctx context.Context) ([]skills.Document, error) {
		var docs []skills.Document
		err := s.breaker.Execute(func() error {
			var err error
			docs, err = s.fetchAll(ctx, query, offsets)
			return err
		})
		return docs, err
	})
	s.observe(start, len(docs), err)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched postings", "query", query, "pages", len(offsets), "documents", len(docs))
	return docs, nil
}

func (s *SerpAPI) fetchAll(ctx context.Context, query string, offsets []int) ([]skills.Document, error) {
	pages := make([][]skills.Document, len(offsets))
	g, gctx := errgroup.WithContext(ctx)
	for i, offset := range offsets {
		g.Go(func() error {
			page, err := s.fetchPageWithRetry(gctx, query, offset)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var docs []skills.Document
	for _, page := range pages {
		docs = append(docs, page...)
	}
	return docs, nil
}

func (s *SerpAPI) fetchPageWithRetry(ctx context.Context, query string, offset int) ([]skills.Document, error) {
	var page []skills.Document
	err := resilience.Retry(ctx, "serpapi_page", resilience.RetryConfig{
		MaxAttempts:  s.cfg.RetryMax,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Retryable: func(err error) bool {
			var fe *FetchError
			return errors.As(err, &fe) && fe.Retryable
		},
	}, func() error {
		var err error
		page, err = s.fetchPage(ctx, query, offset)
		return err
	})
	return page, err
}

func (s *SerpAPI) fetchPage(ctx context.Context, query string, offset int) ([]skills.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL(query, offset), nil)
	if err != nil {
		return nil, &FetchError{Offset: offset, Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{
			Offset:    offset,
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: ctx.Err() == nil,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, &FetchError{Offset: offset, StatusCode: resp.StatusCode, Message: "provider unavailable", Retryable: true}
	case resp.StatusCode >= 300:
		return nil, &FetchError{Offset: offset, StatusCode: resp.StatusCode, Message: providerMessage(resp.Body)}
	}

	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, &FetchError{Offset: offset, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if body.JobsResults == nil {
		if strings.Contains(body.Error, noResultsMarker) {
			return []skills.Document{}, nil
		}
		msg := body.Error
		if msg == "" {
			msg = "response has no jobs_results"
		}
		return nil, &FetchError{Offset: offset, Message: msg}
	}
	return body.JobsResults, nil
}

func (s *SerpAPI) pageURL(query string, offset int) string {
	params := url.Values{}
	params.Set("engine", s.cfg.Engine)
	params.Set("google_domain", s.cfg.GoogleDomain)
	params.Set("q", query)
	params.Set("gl", s.cfg.Country)
	params.Set("hl", s.cfg.Language)
	params.Set("chips", s.cfg.Chips)
	params.Set("location", s.cfg.Location)
	params.Set("api_key", s.cfg.APIKey)
	params.Set("start", strconv.Itoa(offset))
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/search.json?" + params.Encode()
}

func (s *SerpAPI) observe(start time.Time, docs int, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.UpstreamFetchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err == nil {
		s.metrics.DocumentsFetched.Observe(float64(docs))
	}
}

func providerMessage(r io.Reader) string {
	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return "provider rejected request"
}

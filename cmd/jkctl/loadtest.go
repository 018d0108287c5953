package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var defaultQueries = []string{
	"data engineer",
	"backend developer",
	"site reliability engineer",
	"machine learning engineer",
	"product analyst",
	"frontend developer",
	"devops engineer",
	"data scientist",
}

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
}

type loadStats struct {
	total       atomic.Int64
	success     atomic.Int64
	failed      atomic.Int64
	rateLimited atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 10000),
		statusCodes: make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	switch {
	case status >= 200 && status < 300:
		s.success.Add(1)
	case status == http.StatusTooManyRequests:
		s.rateLimited.Add(1)
	default:
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func newLoadTestCmd() *cobra.Command {
	cfg := loadConfig{}
	var queries string
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive POST /search/tasks on a running service and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Queries = defaultQueries
			if queries != "" {
				cfg.Queries = strings.Split(queries, ",")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Skill Search Load Test ===")
			fmt.Fprintf(out, "Target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Duration:    %s\n", cfg.Duration)
			fmt.Fprintf(out, "Queries:     %d unique\n\n", len(cfg.Queries))

			stats := runLoadTest(cmd.Context(), cfg)
			printReport(out, stats, cfg.Duration)
			if stats.total.Load() == 0 {
				return fmt.Errorf("no requests completed, is the service running at %s?", cfg.BaseURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:8000", "base URL of the service")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().StringVar(&queries, "queries", "", "comma-separated search tokens (default: built-in list)")
	return cmd
}

func runLoadTest(ctx context.Context, cfg loadConfig) *loadStats {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/search/tasks"
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; ctx.Err() == nil; i++ {
				body, _ := json.Marshal(map[string]string{"searchToken": cfg.Queries[i%len(cfg.Queries)]})
				req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
				if err != nil {
					stats.record(0, 0, err)
					return
				}
				req.Header.Set("Content-Type", "application/json")

				start := time.Now()
				resp, err := client.Do(req)
				d := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.record(d, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(d, resp.StatusCode, nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func printReport(w io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(w, "Rate limited:    %d\n", stats.rateLimited.Load())
	fmt.Fprintf(w, "Errors:          %d\n", stats.failed.Load())
	if total > 0 {
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	counts := make([]int64, len(codes))
	for i, code := range codes {
		counts[i] = stats.statusCodes[code]
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(len(latencies)))
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	for i, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, counts[i])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

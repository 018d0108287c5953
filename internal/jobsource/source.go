// Package jobsource fetches raw job postings for a query from the external
// job-search provider.
package jobsource

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/skills"
)

// Source returns the postings matching query, one page per offset, in offset
// order.
type Source interface {
	Fetch(ctx context.Context, query string, offsets []int) ([]skills.Document, error)
}

// FetchError describes a failed page request.
type FetchError struct {
	Offset     int
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("page %d: %s (status %d)", e.Offset, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("page %d: %s", e.Offset, e.Message)
}

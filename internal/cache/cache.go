// Package cache stores computed skill tables keyed by the trimmed query text.
// Entries are fresh for a fixed window after creation; a lookup that finds a
// stale entry removes it and reports a miss.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one cached result. Skills holds the encoded skill table exactly
// as it was computed.
type Entry struct {
	SearchText  string          `json:"searchText"`
	Skills      json.RawMessage `json:"skills"`
	ArtifactRef string          `json:"imageUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Store is implemented by SQLStore and RedisStore.
//
// Lookup returns nil without error on a miss, including the stale case.
// Insert replaces any existing entry for key. PurgeAll reports how many
// entries it removed.
type Store interface {
	Lookup(ctx context.Context, key string) (*Entry, error)
	Insert(ctx context.Context, key string, skills []byte, artifactRef string) error
	PurgeAll(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]Entry, error)
}

// Clock returns the current time. Stores default to time.Now.
type Clock func() time.Time

func isFresh(created, now time.Time, window time.Duration) bool {
	return now.Sub(created) <= window
}

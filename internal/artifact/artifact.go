// Package artifact stores rendered chart images and builds their public
// links. Artifacts are addressed by a flat name such as "<id>.png".
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
)

// ErrNotFound is returned by Copy when the source artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Copy(ctx context.Context, src, dst string) error
	URL(name string) string
}

// RequestName is the artifact returned to the caller of one request.
func RequestName(requestID string) string {
	return requestID + ".png"
}

// CachedName is the copy referenced by a cache entry. It outlives the
// per-request artifact it was copied from.
func CachedName(requestID string) string {
	return "cached_" + requestID + ".png"
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.ArtifactsConfig) (Store, error) {
	switch cfg.Backend {
	case config.ArtifactBackendLocal:
		return NewLocalStore(cfg.StaticDir, cfg.PublicBaseURL)
	case config.ArtifactBackendS3:
		return NewS3Store(ctx, cfg.S3, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported artifact backend %q", cfg.Backend)
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Package pipeline serves skill search requests. Each request moves through
// cache check, then either the cached result or a fresh computation (fetch,
// aggregate, render, store), then an audit record.
//
// Concurrent misses for the same query share one computation. Audit and
// cache writes are best-effort: their failure is logged and the computed
// result is still returned. A failed fetch or render writes nothing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/jobsource"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/skills"
	apperrors "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/tracing"
)

const (
	outcomeHit         = "hit"
	outcomeMiss        = "miss"
	outcomeInvalid     = "invalid"
	outcomeUpstream    = "upstream_error"
	outcomeComputation = "computation_error"
	outcomeCanceled    = "canceled"

	writeTimeout = 5 * time.Second
)

// Renderer turns a table into image bytes.
type Renderer interface {
	Render(ctx context.Context, table skills.Table) ([]byte, error)
}

// AuditLog receives one record per served request.
type AuditLog interface {
	Append(ctx context.Context, rec audit.Record) error
}

// Tracker receives request events. *analytics.Collector satisfies it.
type Tracker interface {
	Track(event analytics.SkillSearchEvent)
}

type Request struct {
	Query    string
	ClientIP string
}

type Result struct {
	RequestID string
	ImageURL  string
	Skills    skills.Table
	// SkillsJSON is the encoded table as stored in the cache and audit log.
	SkillsJSON []byte
	CacheHit   bool
}

type Config struct {
	PageOffsets []int
	// ComputeTimeout bounds one shared miss computation. Zero means no bound.
	ComputeTimeout time.Duration
}

// Deps are the collaborators of a Pipeline. Metrics and Tracker are
// optional.
type Deps struct {
	Cache      cache.Store
	Audit      AuditLog
	Source     jobsource.Source
	Aggregator *skills.Aggregator
	Renderer   Renderer
	Artifacts  artifact.Store
	Metrics    *metrics.Metrics
	Tracker    Tracker
}

type Pipeline struct {
	cfg   Config
	deps  Deps
	group singleflight.Group
	newID func() string
}

func New(cfg Config, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		deps:  deps,
		newID: uuid.NewString,
	}
}

// computed is the shared outcome of one miss computation.
type computed struct {
	table      skills.Table
	skillsJSON []byte
	image      []byte
}

// Run serves one request.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		p.countOutcome(outcomeInvalid)
		return nil, apperrors.InvalidQuery("searchToken must not be empty")
	}

	requestID := p.newID()
	ctx, root := tracing.StartSpan(ctx, "skill_search", requestID)
	root.SetAttr("query", query)
	log := logger.FromContext(ctx).With("component", "pipeline", "search_request_id", requestID)
	defer func() {
		root.End()
		root.Log(log)
	}()

	res, shared, err := p.serve(ctx, log, requestID, query)
	if err != nil {
		p.countOutcome(outcomeFor(err))
		log.Warn("search failed", "query", query, "error", err)
		return nil, err
	}

	p.appendAudit(ctx, log, audit.Record{
		RequestID:  requestID,
		SearchText: query,
		Skills:     res.SkillsJSON,
		IPAddress:  req.ClientIP,
	})

	status := outcomeMiss
	if res.CacheHit {
		status = outcomeHit
	}
	elapsed := time.Since(start)
	if m := p.deps.Metrics; m != nil {
		m.PipelineRequests.WithLabelValues(status).Inc()
		m.PipelineLatency.WithLabelValues(status).Observe(elapsed.Seconds())
		m.SkillsPerResult.Observe(float64(len(res.Skills)))
	}
	if p.deps.Tracker != nil {
		p.deps.Tracker.Track(analytics.SkillSearchEvent{
			Type:       analytics.EventSkillSearch,
			RequestID:  requestID,
			Query:      query,
			CacheHit:   res.CacheHit,
			Shared:     shared,
			LatencyMs:  elapsed.Milliseconds(),
			SkillCount: len(res.Skills),
			TopSkills:  res.Skills.Top(5).Names(),
			Timestamp:  time.Now().UTC(),
		})
	}
	log.Info("search served", "query", query, "cache", status, "skills", len(res.Skills), "duration_ms", elapsed.Milliseconds())
	return res, nil
}

func (p *Pipeline) serve(ctx context.Context, log *slog.Logger, requestID, query string) (*Result, bool, error) {
	if res, ok := p.fromCache(ctx, log, requestID, query); ok {
		return res, false, nil
	}
	if m := p.deps.Metrics; m != nil {
		m.CacheMissesTotal.Inc()
	}

	c, shared, err := p.compute(ctx, requestID, query)
	if err != nil {
		return nil, shared, err
	}

	name := artifact.RequestName(requestID)
	err = tracing.Trace(ctx, "publish_artifact", func(ctx context.Context) error {
		return p.deps.Artifacts.Put(ctx, name, c.image)
	})
	if err != nil {
		return nil, shared, apperrors.Wrap(apperrors.ErrComputationFailed, err, "storing chart failed")
	}
	return &Result{
		RequestID:  requestID,
		ImageURL:   p.deps.Artifacts.URL(name),
		Skills:     c.table,
		SkillsJSON: c.skillsJSON,
	}, shared, nil
}

// fromCache returns the cached result with a per-request copy of its chart.
// Any failure along the way, including a lookup error, falls back to a miss.
func (p *Pipeline) fromCache(ctx context.Context, log *slog.Logger, requestID, query string) (*Result, bool) {
	var entry *cache.Entry
	_ = tracing.Trace(ctx, "cache_check", func(ctx context.Context) error {
		var err error
		entry, err = p.deps.Cache.Lookup(ctx, query)
		if err != nil {
			log.Error("cache lookup failed, treating as miss", "query", query, "error", err)
		}
		return err
	})
	if entry == nil {
		return nil, false
	}

	table, err := skills.Decode(entry.Skills)
	if err != nil {
		log.Error("cached skills undecodable, recomputing", "query", query, "error", err)
		return nil, false
	}
	name := artifact.RequestName(requestID)
	err = tracing.Trace(ctx, "clone_artifact", func(ctx context.Context) error {
		return p.deps.Artifacts.Copy(ctx, entry.ArtifactRef, name)
	})
	if err != nil {
		log.Warn("cached chart unavailable, recomputing", "query", query, "artifact", entry.ArtifactRef, "error", err)
		return nil, false
	}

	if m := p.deps.Metrics; m != nil {
		m.CacheHitsTotal.Inc()
	}
	return &Result{
		RequestID:  requestID,
		ImageURL:   p.deps.Artifacts.URL(name),
		Skills:     table,
		SkillsJSON: entry.Skills,
		CacheHit:   true,
	}, true
}

// compute runs or joins the shared computation for query. The computation
// is detached from the caller's cancellation so one caller leaving does not
// fail the others; the caller still stops waiting when its ctx ends.
func (p *Pipeline) compute(ctx context.Context, requestID, query string) (*computed, bool, error) {
	ch := p.group.DoChan(query, func() (any, error) {
		cctx := context.WithoutCancel(ctx)
		if p.cfg.ComputeTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(cctx, p.cfg.ComputeTimeout)
			defer cancel()
		}
		return p.computeOnce(cctx, requestID, query)
	})

	select {
	case <-ctx.Done():
		return nil, false, apperrors.Wrap(apperrors.ErrUpstreamFetchFailed, ctx.Err(), "request cancelled while computing")
	case r := <-ch:
		if r.Shared {
			if m := p.deps.Metrics; m != nil {
				m.SharedComputations.Inc()
			}
		}
		if r.Err != nil {
			return nil, r.Shared, r.Err
		}
		return r.Val.(*computed), r.Shared, nil
	}
}

func (p *Pipeline) computeOnce(ctx context.Context, requestID, query string) (*computed, error) {
	log := logger.FromContext(ctx).With("component", "pipeline", "query", query)

	var docs []skills.Document
	err := tracing.Trace(ctx, "fetch", func(ctx context.Context) error {
		var err error
		docs, err = p.deps.Source.Fetch(ctx, query, p.cfg.PageOffsets)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUpstreamFetchFailed, err, "fetching job postings failed")
	}

	var table skills.Table
	_ = tracing.Trace(ctx, "aggregate", func(ctx context.Context) error {
		table = p.deps.Aggregator.Aggregate(docs)
		return nil
	})
	skillsJSON, err := skills.Encode(table)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrComputationFailed, err, "encoding skills failed")
	}

	var image []byte
	err = tracing.Trace(ctx, "render", func(ctx context.Context) error {
		var err error
		image, err = p.deps.Renderer.Render(ctx, table)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrComputationFailed, err, "rendering chart failed")
	}

	c := &computed{table: table, skillsJSON: skillsJSON, image: image}
	_ = tracing.Trace(ctx, "store", func(ctx context.Context) error {
		err := p.store(ctx, requestID, query, c)
		if err != nil {
			if m := p.deps.Metrics; m != nil {
				m.CacheWriteFailures.Inc()
			}
			log.Error("caching result failed, serving uncached", "error", err)
		}
		return err
	})
	log.Debug("computed skills", "documents", len(docs), "skills", len(table))
	return c, nil
}

// store writes the cached chart copy and then the entry referencing it, so
// an entry never points at a missing artifact.
func (p *Pipeline) store(ctx context.Context, requestID, query string, c *computed) error {
	ref := artifact.CachedName(requestID)
	if err := p.deps.Artifacts.Put(ctx, ref, c.image); err != nil {
		return fmt.Errorf("writing cached chart: %w", err)
	}
	return p.deps.Cache.Insert(ctx, query, c.skillsJSON, ref)
}

func (p *Pipeline) appendAudit(ctx context.Context, log *slog.Logger, rec audit.Record) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	err := tracing.Trace(ctx, "audit", func(context.Context) error {
		return p.deps.Audit.Append(actx, rec)
	})
	if err != nil {
		if m := p.deps.Metrics; m != nil {
			m.AuditWriteFailures.Inc()
		}
		log.Error("audit write failed", "request_id", rec.RequestID, "error", err)
	}
}

func (p *Pipeline) countOutcome(outcome string) {
	if m := p.deps.Metrics; m != nil {
		m.PipelineRequests.WithLabelValues(outcome).Inc()
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.Is(err, apperrors.ErrUpstreamFetchFailed):
		return outcomeUpstream
	default:
		return outcomeComputation
	}
}

// Package handler implements the HTTP endpoints of the skill search service:
// search tasks, feedback, and the administrative views over request records,
// cache entries and feedback.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/skills"
	apperrors "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/logger"
)

const maxBodyBytes = 64 << 10

type Searcher interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type RequestLister interface {
	List(ctx context.Context) ([]audit.Record, error)
}

type FeedbackStore interface {
	Create(ctx context.Context, message, ipAddress string) (string, error)
	List(ctx context.Context) ([]feedback.Record, error)
}

// Handler serves the public and administrative API.
type Handler struct {
	search   Searcher
	requests RequestLister
	cache    cache.Store
	feedback FeedbackStore
	logger   *slog.Logger
}

func New(search Searcher, requests RequestLister, store cache.Store, fb FeedbackStore) *Handler {
	return &Handler{
		search:   search,
		requests: requests,
		cache:    store,
		feedback: fb,
		logger:   slog.Default().With("component", "http-handler"),
	}
}

type searchRequest struct {
	SearchToken string `json:"searchToken"`
}

type searchResponse struct {
	UUID     string       `json:"uuid"`
	ImageURL string       `json:"imageUrl"`
	Skills   skills.Table `json:"skills"`
}

// SearchTask runs the skill pipeline for the posted search token.
func (h *Handler) SearchTask(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.search.Run(r.Context(), pipeline.Request{
		Query:    req.SearchToken,
		ClientIP: ClientIP(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	table := res.Skills
	if table == nil {
		table = skills.Table{}
	}
	h.writeJSON(w, http.StatusOK, searchResponse{
		UUID:     res.RequestID,
		ImageURL: res.ImageURL,
		Skills:   table,
	})
}

type feedbackRequest struct {
	Message string `json:"message"`
}

func (h *Handler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.feedback.Create(r.Context(), req.Message, ClientIP(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// ---------- Admin handlers ----------

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	recs, err := h.requests.List(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.Wrap(apperrors.ErrStorage, err, "listing requests failed"))
		return
	}
	if recs == nil {
		recs = []audit.Record{}
	}
	h.writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) ListCache(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cache.List(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.Wrap(apperrors.ErrStorage, err, "listing cache failed"))
		return
	}
	if entries == nil {
		entries = []cache.Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.PurgeAll(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.Wrap(apperrors.ErrStorage, err, "purging cache failed"))
		return
	}
	logger.FromContext(r.Context()).Info("cache purged", "deleted", n)
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "deleted": n})
}

func (h *Handler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	recs, err := h.feedback.List(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.Wrap(apperrors.ErrStorage, err, "listing feedback failed"))
		return
	}
	if recs == nil {
		recs = []feedback.Record{}
	}
	h.writeJSON(w, http.StatusOK, recs)
}

// Index sends browsers to the search page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/static/index.html", http.StatusFound)
}

// ---------- Helpers ----------

// ClientIP is the caller's network identity: the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidQuery("request body is required")
		}
		return apperrors.InvalidQuery("request body must be valid JSON")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	WriteError(w, err)
}

// WriteError writes the structured {kind, message} body for err.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(apperrors.ToResponse(err))
}

// Package middleware provides HTTP middleware for the service's public
// surface: administrative authentication, CORS, and per-client rate limiting.
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/auth/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/logger"
)

// AdminAuth rejects requests without the configured bearer token. When no
// token is configured every request is rejected.
func AdminAuth(validator *admin.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := validator.ValidateRequest(r)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			msg := "invalid bearer token"
			switch {
			case errors.Is(err, admin.ErrDisabled):
				msg = "administrative access is disabled"
			case errors.Is(err, admin.ErrMissingToken):
				msg = "missing bearer token"
			}
			logger.FromContext(r.Context()).Warn("admin request rejected", "path", r.URL.Path, "reason", err)
			writeError(w, apperrors.Unauthorized(msg))
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(apperrors.ToResponse(err))
}

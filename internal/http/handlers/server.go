package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/inventory"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
)

// Server holds the services behind the JSON API.
type Server struct {
	inventory *inventory.Service
	auth      *auth.Service
	log       zerolog.Logger

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

func NewServer(inv *inventory.Service, authService *auth.Service, logger zerolog.Logger) *Server {
	return &Server{inventory: inv, auth: authService, log: logger}
}

// writeError maps an error kind to its status code. Storage and unknown
// failures are logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := models.IsValidation(err); ok {
		status := http.StatusBadRequest
		if errors.Is(err, models.ErrConflict) {
			status = http.StatusConflict
		}
		_ = writeJSON(w, status, ErrorsResponse{Errors: ve.Errors})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidCredentials):
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, models.ErrUnauthenticated):
		http.Error(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, models.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, models.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		s.log.Warn().Err(err).Msg("failed to write JSON response")
	}
}

func badRequest(field, description string) error {
	return models.NewValidationError(models.FieldError{Field: field, Description: description})
}

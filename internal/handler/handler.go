package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ifimgone/ifimgone/internal/config"
	"github.com/ifimgone/ifimgone/internal/database"
	"github.com/ifimgone/ifimgone/internal/logger"
	"github.com/ifimgone/ifimgone/internal/repository"
	"github.com/ifimgone/ifimgone/internal/service"
)

// Handler holds all HTTP handlers
type Handler struct {
	db            *database.Postgres
	rdb           *database.Redis
	log           *logger.Logger
	cfg           *config.Config
	activationSvc *service.ActivationService
	sharingSvc    *service.SharingService
}

// New creates a new Handler instance. db and rdb may be nil in
// memory-only deployments; readiness reflects that.
func New(db *database.Postgres, rdb *database.Redis, log *logger.Logger, cfg *config.Config, activationSvc *service.ActivationService, sharingSvc *service.SharingService) *Handler {
	return &Handler{
		db:            db,
		rdb:           rdb,
		log:           log,
		cfg:           cfg,
		activationSvc: activationSvc,
		sharingSvc:    sharingSvc,
	}
}

// timeNow is a test hook for the cleanup sweep's clock
var timeNow = time.Now

// JSON helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes the uniform failure envelope
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// writeInvalid writes a verification/token failure: 401 with valid:false
func writeInvalid(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"success": false,
		"valid":   false,
		"error":   message,
	})
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// serviceError maps typed service errors to the response table:
// 400 validation, 401 verification (valid:false), 404 unknown id,
// 409 invalid transition, 500 otherwise with a generic message.
func (h *Handler) serviceError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAlreadyResolved),
		errors.Is(err, service.ErrCodeExpired),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrTokenInvalid):
		writeInvalid(w, err.Error())
	default:
		h.log.Error().Err(err).Str("context", context).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

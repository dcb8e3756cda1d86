package router

import (
	"net/http"
	"time"

	"github.com/ifimgone/ifimgone/internal/handler"
	"github.com/ifimgone/ifimgone/internal/logger"
	"github.com/ifimgone/ifimgone/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no rate limiting)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	// Opening and verifying activation requests is abuse-prone;
	// keep the limits tight.
	requestRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  5,
		Window: 15 * time.Minute,
		KeyFn:  middleware.IPKey,
	})
	verifyRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  10,
		Window: 5 * time.Minute,
		KeyFn:  middleware.IPKey,
	})
	validateRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  20,
		Window: 1 * time.Minute,
		KeyFn:  middleware.IPKey,
	})

	// Activation workflow
	mux.Handle("POST /api/emergency/activation/request", requestRateLimit(http.HandlerFunc(h.RequestActivation)))
	mux.HandleFunc("GET /api/emergency/activation/active", h.ListActiveActivations)
	mux.HandleFunc("GET /api/emergency/activation/{id}", h.GetActivation)
	mux.Handle("POST /api/emergency/activation/{id}/verify", verifyRateLimit(http.HandlerFunc(h.SubmitVerification)))
	mux.HandleFunc("POST /api/emergency/activation/{id}/reject", h.RejectActivation)
	mux.HandleFunc("POST /api/emergency/activation/{id}/cancel", h.CancelActivation)
	mux.HandleFunc("GET /api/emergency/activation/{id}/audit", h.GetAuditReport)

	// Emergency sharing and access
	mux.HandleFunc("POST /api/emergency/sharing/tokens/revoke", h.RevokeToken)
	mux.Handle("POST /api/emergency/access/validate", validateRateLimit(http.HandlerFunc(h.ValidateAccess)))
	mux.HandleFunc("GET /api/emergency/access/logs", h.AccessLogs)
	mux.HandleFunc("POST /api/emergency/access/cleanup", h.Cleanup)
	mux.HandleFunc("GET /api/emergency/sharing/stats", h.SharingStats)

	// Apply global middleware (innermost first)
	var root http.Handler = mux
	root = mw.Logger(root)
	root = mw.RequestID(root)
	root = mw.Recover(root)

	return root
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ifimgone/ifimgone/internal/auth"
	"github.com/ifimgone/ifimgone/internal/config"
	"github.com/ifimgone/ifimgone/internal/database"
	"github.com/ifimgone/ifimgone/internal/handler"
	"github.com/ifimgone/ifimgone/internal/logger"
	"github.com/ifimgone/ifimgone/internal/middleware"
	"github.com/ifimgone/ifimgone/internal/repository"
	"github.com/ifimgone/ifimgone/internal/router"
	"github.com/ifimgone/ifimgone/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting If I'm Gone activation server")

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Connect to Redis
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("connected to Redis")

	// Initialize repositories
	activationRepo := repository.NewActivationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	// Initialize grant signing
	grantSvc, err := auth.NewGrantService(cfg.Sharing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize grant service")
	}
	if cfg.Sharing.GrantSigningSecret == "" {
		log.Warn().Msg("no grant signing secret configured; using ephemeral key")
	}

	// Initialize services
	scorer := service.NewRiskScorer()
	policy := service.NewVerificationPolicy(cfg.Activation)
	events := service.NewRedisPublisher(rdb, log)
	sharingSvc := service.NewSharingService(tokenRepo, auditRepo, grantSvc, scorer, cfg, log)
	activationSvc := service.NewActivationService(activationRepo, auditRepo, sharingSvc, policy, scorer, events, cfg, log)
	log.Info().Msg("activation workflow initialized")

	// Initialize handlers and middleware
	h := handler.New(db, rdb, log, cfg, activationSvc, sharingSvc)
	mw := middleware.New(rdb, log, cfg)

	// Set up router
	r := router.New(h, mw, log)

	// Background expiry sweep. The workflow tolerates redundant and
	// concurrent sweeps, so an external scheduler hitting the cleanup
	// endpoint alongside this ticker is fine.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if interval := cfg.Activation.SweepInterval; interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case <-ticker.C:
					if _, err := activationSvc.CleanupExpired(sweepCtx, time.Now()); err != nil {
						log.Error().Err(err).Msg("expiry sweep failed")
					}
					if _, err := sharingSvc.PurgeExpired(sweepCtx, time.Now()); err != nil {
						log.Error().Err(err).Msg("token purge failed")
					}
				}
			}
		}()
		log.Info().Dur("interval", interval).Msg("expiry sweep started")
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	stopSweep()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

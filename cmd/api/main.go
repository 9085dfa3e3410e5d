package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/nazek/booking-api/config"
	"github.com/nazek/booking-api/internal/app"
	appointmentHandler "github.com/nazek/booking-api/internal/handler/appointment"
	authHandler "github.com/nazek/booking-api/internal/handler/auth"
	catalogHandler "github.com/nazek/booking-api/internal/handler/catalog"
	clientHandler "github.com/nazek/booking-api/internal/handler/client"
	employerHandler "github.com/nazek/booking-api/internal/handler/employer"
	healthHandler "github.com/nazek/booking-api/internal/handler/health"
	notificationHandler "github.com/nazek/booking-api/internal/handler/notification"
	"github.com/nazek/booking-api/internal/middleware"
	"github.com/nazek/booking-api/internal/router"
	"github.com/nazek/booking-api/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize logger
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	l.SetGlobal()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage and services
	a, err := app.New(ctx, cfg, l.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	svc := a.Services
	authMiddleware := middleware.NewAuthMiddleware(svc.Auth)

	var gatherer prometheus.Gatherer
	if cfg.Monitoring.PrometheusEnabled {
		gatherer = a.Registry
	}

	// Setup router
	r, err := router.NewRouter(authMiddleware, router.RouterConfig{
		Mode: cfg.Server.Mode,
		RateLimit: middleware.RateLimiterConfig{
			RPS:   cfg.RateLimit.RequestsPerSecond,
			Burst: cfg.RateLimit.Burst,
		},
		RateLimitOn: cfg.RateLimit.Enabled,
		CORSConfig: middleware.CORSConfig{
			AllowOrigins:  cfg.Security.AllowedOrigins,
			AllowMethods:  cfg.Security.AllowedMethods,
			AllowHeaders:  cfg.Security.AllowedHeaders,
			ExposeHeaders: []string{"X-Request-ID"},
			MaxAge:        600,
		},
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodySize:    cfg.Server.MaxBodyBytes,
		MetricsPrefix:  cfg.Monitoring.Namespace,
		Registerer:     a.Registry,
		Logger:         l.ZL,
	},
		healthHandler.NewHandler(a.Repos.Health, gatherer),
		authHandler.NewHandler(svc.Auth),
		catalogHandler.NewHandler(svc.Catalog),
		employerHandler.NewHandler(svc.Catalog, svc.Profile, svc.Availability),
		clientHandler.NewHandler(svc.Profile),
		appointmentHandler.NewHandler(svc.Appointment),
		notificationHandler.NewHandler(svc.Notification),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}
	r.Setup()

	// Background processing, when this process owns it
	var workers *app.Workers
	if cfg.Server.EmbedWorker {
		workers, err = a.NewWorkers()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize workers")
		}
		if err := workers.Start(ctx, cfg.Scheduler.Enabled); err != nil {
			log.Fatal().Err(err).Msg("failed to start workers")
		}
	}

	// Create server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if workers != nil {
		workers.Stop()
	}

	log.Info().Msg("server exited properly")
}

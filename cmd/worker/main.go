package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/nazek/booking-api/config"
	"github.com/nazek/booking-api/internal/app"
	"github.com/nazek/booking-api/internal/repository"
	"github.com/nazek/booking-api/pkg/logger"
)

func setupHealthCheck(addr string, db repository.Pinger, a *app.App) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize logger
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	l = l.WithFields(map[string]interface{}{"process": "worker"})
	l.SetGlobal()

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	workers, err := a.NewWorkers()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize workers")
	}

	healthSrv := setupHealthCheck(cfg.Monitoring.WorkerAddr, a.Repos.Health, a)

	if err := workers.Start(ctx, cfg.Scheduler.Enabled); err != nil {
		log.Fatal().Err(err).Msg("failed to start workers")
	}
	log.Info().Bool("scheduler", cfg.Scheduler.Enabled).Msg("worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down...")
	workers.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health check server forced to shutdown")
	}
}

// Package app assembles repositories and services from configuration.
// Both binaries build on it so the API and the worker share one wiring.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nazek/booking-api/config"
	"github.com/nazek/booking-api/internal/repository"
	"github.com/nazek/booking-api/internal/repository/memory"
	"github.com/nazek/booking-api/internal/repository/postgres"
	redisrepo "github.com/nazek/booking-api/internal/repository/redis"
	"github.com/nazek/booking-api/internal/service/appointment"
	"github.com/nazek/booking-api/internal/service/auth"
	"github.com/nazek/booking-api/internal/service/availability"
	"github.com/nazek/booking-api/internal/service/catalog"
	"github.com/nazek/booking-api/internal/service/notification"
	"github.com/nazek/booking-api/internal/service/payment"
	"github.com/nazek/booking-api/internal/service/profile"
	jwtauth "github.com/nazek/booking-api/pkg/auth"
	"github.com/nazek/booking-api/pkg/messaging/redis"
	"github.com/nazek/booking-api/pkg/metrics"
	"github.com/nazek/booking-api/pkg/security"
)

type Services struct {
	Auth         *auth.Service
	Catalog      *catalog.Service
	Profile      *profile.Service
	Availability *availability.Service
	Notification *notification.Service
	Appointment  *appointment.Service
}

// App owns the long-lived resources of a process.
type App struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Services *Services
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Redis    *goredis.Client
	Logger   zerolog.Logger

	closers []io.Closer
}

// New opens the configured stores and builds every service on top of them.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Metrics:  metrics.New(cfg.Monitoring.Namespace),
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := a.Metrics.Register(a.Registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.buildServices(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config

	switch cfg.Database.Driver {
	case "memory":
		a.Repos, _ = memory.NewRepositories()
		a.Logger.Warn().Msg("using in-memory storage, data is lost on exit")
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db)
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		a.Repos = postgres.NewRepositories(db)
		a.watchPool(db)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
		if err != nil {
			return err
		}
		a.Redis = client
		a.closers = append(a.closers, client)
		a.Repos.Tokens = redisrepo.NewTokenRepository(client)
	}
	return nil
}

// watchPool exposes the sqlx pool statistics.
func (a *App) watchPool(db *sqlx.DB) {
	a.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: a.Config.Monitoring.Namespace,
		Name:      "db_open_connections",
		Help:      "Open connections in the database pool",
	}, func() float64 {
		return float64(db.Stats().OpenConnections)
	}))
}

func (a *App) buildServices() error {
	cfg := a.Config
	repos := a.Repos

	loc, err := cfg.Booking.Location()
	if err != nil {
		return fmt.Errorf("invalid booking timezone: %w", err)
	}

	jwtSvc := jwtauth.NewJWTService(jwtauth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})

	var gateway payment.Gateway
	switch cfg.Payment.Provider {
	case "stripe":
		gateway = payment.NewStripeGateway(cfg.Payment.StripeSecretKey)
	default:
		gateway = payment.NewDisabledGateway()
	}

	catalogSvc := catalog.NewService(repos.Services, repos.Employers, repos.Availability, cfg.Booking.CatalogCacheTTL, a.Logger)
	availabilitySvc := availability.NewService(repos.Availability, repos.Employers, repos.Appointments, catalogSvc, availability.Config{
		SlotStep:        cfg.Booking.SlotStep,
		DefaultDuration: cfg.Booking.DefaultDuration,
		Location:        loc,
	}, a.Logger)
	notificationSvc := notification.NewService(repos.Notifications, repos.Users, a.Metrics, a.Logger)

	a.Services = &Services{
		Auth:         auth.NewService(repos.Users, repos.Tokens, jwtSvc, security.NewBcryptHasher(0), cfg.JWT.RefreshTTL, a.Logger),
		Catalog:      catalogSvc,
		Profile:      profile.NewService(repos.Users, repos.Clients, repos.Employers, repos.Services, catalogSvc, a.Logger),
		Availability: availabilitySvc,
		Notification: notificationSvc,
		Appointment: appointment.NewService(appointment.Deps{
			Appointments: repos.Appointments,
			Clients:      repos.Clients,
			Employers:    repos.Employers,
			Services:     repos.Services,
			Availability: availabilitySvc,
			Notifier:     notificationSvc,
			Payments:     gateway,
			Cache:        catalogSvc,
			Metrics:      a.Metrics,
		}, appointment.Config{
			DefaultDuration: cfg.Booking.DefaultDuration,
			Currency:        cfg.Payment.Currency,
		}, a.Logger),
	}
	return nil
}

// Close releases stores in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil
}

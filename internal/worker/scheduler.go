package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nazek/booking-api/internal/repository"
	"github.com/nazek/booking-api/pkg/metrics"
)

// AppointmentJobs is the part of the appointment service driven by the clock.
type AppointmentJobs interface {
	CompleteDue(ctx context.Context) (int, error)
	ExpireStale(ctx context.Context) (int, error)
	SendReminders(ctx context.Context, lead time.Duration) (int, error)
}

type Config struct {
	Completion   string
	Reminders    string
	Expiry       string
	Cleanup      string
	ReminderLead time.Duration
	Retention    time.Duration
}

// Scheduler runs the periodic maintenance jobs of the booking system.
type Scheduler struct {
	cron    *cron.Cron
	jobs    AppointmentJobs
	outbox  repository.OutboxRepository
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	runCtx  context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

func NewScheduler(jobs AppointmentJobs, outbox repository.OutboxRepository, cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		outbox:  outbox,
		cfg:     cfg,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// Start registers every job and starts the cron runner. A bad spec is
// reported before anything runs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runCtx, s.cancel = context.WithCancel(ctx)
	// overlapping runs of the same job are skipped
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	entries := []struct {
		name string
		spec string
		fn   func(context.Context) (int, error)
	}{
		{"complete_due", s.cfg.Completion, s.jobs.CompleteDue},
		{"send_reminders", s.cfg.Reminders, s.sendReminders},
		{"expire_stale", s.cfg.Expiry, s.jobs.ExpireStale},
		{"outbox_cleanup", s.cfg.Cleanup, s.cleanupOutbox},
	}
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		name, fn := e.name, e.fn
		if _, err := c.AddFunc(e.spec, func() { s.Run(s.runCtx, name, fn) }); err != nil {
			s.cancel()
			return fmt.Errorf("invalid cron spec %q for %s: %w", e.spec, name, err)
		}
		s.logger.Info().Str("job", name).Str("spec", e.spec).Msg("job scheduled")
	}

	c.Start()
	s.cron = c
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Run executes one job and records its outcome.
func (s *Scheduler) Run(ctx context.Context, name string, fn func(context.Context) (int, error)) {
	start := s.now()
	n, err := fn(ctx)
	status := "success"
	if err != nil {
		status = "error"
		s.logger.Error().Err(err).Str("job", name).Msg("job failed")
	} else if n > 0 {
		s.logger.Info().Str("job", name).Int("affected", n).Dur("took", time.Since(start)).Msg("job finished")
	}
	if s.metrics != nil {
		s.metrics.JobRuns.WithLabelValues(name, status).Inc()
	}
}

func (s *Scheduler) sendReminders(ctx context.Context) (int, error) {
	return s.jobs.SendReminders(ctx, s.cfg.ReminderLead)
}

func (s *Scheduler) cleanupOutbox(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.Retention)
	rows, err := s.outbox.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up outbox: %w", err)
	}
	return int(rows), nil
}

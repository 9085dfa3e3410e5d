package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/nazek/booking-api/internal/email"
	"github.com/nazek/booking-api/internal/model"
	iworker "github.com/nazek/booking-api/internal/worker"
	"github.com/nazek/booking-api/pkg/messaging"
	"github.com/nazek/booking-api/pkg/messaging/redis"
	"github.com/nazek/booking-api/pkg/worker"
)

// Workers are the background loops: outbox delivery and the cron jobs.
type Workers struct {
	Outbox    *worker.OutboxProcessor
	Scheduler *iworker.Scheduler
	wg        sync.WaitGroup
}

// NewWorkers builds the outbox processor and the scheduler. Events are
// published to Redis when it is enabled and mailed through SMTP when that is.
func (a *App) NewWorkers() (*Workers, error) {
	cfg := a.Config

	var broker messaging.Broker
	if a.Redis != nil {
		broker = redis.NewRedisBroker(a.Redis, a.Logger)
	}

	var mailer email.Service
	if cfg.SMTP.Enabled {
		mailer = email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, a.Logger)
	} else {
		mailer = email.NewLogService(a.Logger)
	}

	processor, err := worker.NewOutboxProcessor(a.Repos.Outbox, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		Lease:         cfg.Outbox.Lease,
	}, a.Logger, a.Metrics)
	if err != nil {
		return nil, err
	}
	processor.Handle(model.EventNotificationCreated, email.NotificationHandler(mailer))

	scheduler := iworker.NewScheduler(a.Services.Appointment, a.Repos.Outbox, iworker.Config{
		Completion:   cfg.Scheduler.Completion,
		Reminders:    cfg.Scheduler.Reminders,
		Expiry:       cfg.Scheduler.Expiry,
		Cleanup:      cfg.Scheduler.Cleanup,
		ReminderLead: cfg.Booking.ReminderLead,
		Retention:    cfg.Scheduler.Retention,
	}, a.Logger, a.Metrics)

	return &Workers{Outbox: processor, Scheduler: scheduler}, nil
}

// Start runs the outbox loop in the background and, when enabled, the cron
// jobs. Cancelling ctx stops the outbox loop; call Wait after Stop.
func (w *Workers) Start(ctx context.Context, schedulerOn bool) error {
	if schedulerOn {
		if err := w.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Outbox.Start(ctx)
	}()
	return nil
}

// Stop waits for running cron jobs and the outbox loop to finish.
func (w *Workers) Stop() {
	w.Scheduler.Stop()
	w.wg.Wait()
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	"github.com/nazek/booking-api/pkg/messaging"
	"github.com/nazek/booking-api/pkg/metrics"
)

const maxRetryDelay = time.Hour

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Lease is how long a claimed event stays invisible to other processors.
	Lease time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	case c.Lease <= 0:
		return errors.New("Lease must be greater than 0")
	}
	return nil
}

// Handler delivers one outbox event. Returning an error schedules a retry.
type Handler func(ctx context.Context, event *model.OutboxEvent) error

// OutboxProcessor drains the transactional outbox: each claimed event is
// published to the broker and passed to the handler registered for its type.
type OutboxProcessor struct {
	repo     repository.OutboxRepository
	broker   messaging.Broker
	handlers map[string]Handler
	config   OutboxProcessorConfig
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewOutboxProcessor builds a processor. broker may be nil when no message
// bus is configured; events are then only dispatched to handlers.
func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox config: %w", err)
	}

	return &OutboxProcessor{
		repo:     repo,
		broker:   broker,
		handlers: make(map[string]Handler),
		config:   config,
		logger:   logger.With().Str("component", "outbox").Logger(),
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// Handle registers h for events of eventType. Not safe to call after Start.
func (p *OutboxProcessor) Handle(eventType string, h Handler) {
	p.handlers[eventType] = h
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Dur("poll_interval", p.config.PollInterval).Msg("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to process events")
			}
		}
	}
}

// ProcessBatch claims up to BatchSize due events and delivers them. It
// returns how many were delivered successfully.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		p.dbOp("claim_pending", "error")
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.dbOp("claim_pending", "success")

	delivered := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Int("retry_count", event.RetryCount).
				Msg("failed to process event")
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	if err := p.deliver(ctx, event); err != nil {
		return p.fail(ctx, event, err)
	}

	if p.metrics != nil {
		p.metrics.OutboxEventsProcessed.Inc()
	}
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.dbOp("mark_processed", "error")
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	p.dbOp("mark_processed", "success")
	return nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent) error {
	if p.broker != nil {
		msg := messaging.Message{
			ID:      event.ID.String(),
			Type:    event.EventType,
			Payload: json.RawMessage(event.Payload),
		}
		if err := p.broker.Publish(ctx, event.EventType, msg); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	if h, ok := p.handlers[event.EventType]; ok {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("handle: %w", err)
		}
	}
	return nil
}

// fail schedules the next attempt with exponential backoff, or parks the
// event as FAILED once RetryAttempts is exhausted.
func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) error {
	attempts := event.RetryCount + 1
	msg := cause.Error()

	if attempts >= p.config.RetryAttempts {
		if p.metrics != nil {
			p.metrics.OutboxEventsFailed.Inc()
		}
		if err := p.repo.MarkFailed(ctx, event.ID, msg); err != nil {
			p.dbOp("mark_failed", "error")
			return fmt.Errorf("failed to mark event failed: %w", err)
		}
		p.dbOp("mark_failed", "success")
		return fmt.Errorf("giving up after %d attempts: %w", attempts, cause)
	}

	if p.metrics != nil {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	}
	retryAt := p.now().Add(backoff(p.config.RetryDelay, event.RetryCount))
	if err := p.repo.MarkRetry(ctx, event.ID, attempts, retryAt, msg); err != nil {
		p.dbOp("mark_retry", "error")
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	p.dbOp("mark_retry", "success")
	return cause
}

func (p *OutboxProcessor) dbOp(op, status string) {
	if p.metrics != nil {
		p.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
	}
}

// backoff doubles base for every previous attempt, capped at maxRetryDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

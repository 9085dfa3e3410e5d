package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	apperrors "github.com/nazek/booking-api/pkg/errors"
	"github.com/nazek/booking-api/pkg/metrics"
)

const defaultListLimit = 100

type Service struct {
	repo    repository.NotificationRepository
	users   repository.UserRepository
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo repository.NotificationRepository, users repository.UserRepository, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		metrics: m,
		logger:  logger.With().Str("service", "notification").Logger(),
		now:     time.Now,
	}
}

// Notify stores an in-app notification for recipientID and queues its
// delivery through the outbox in the same transaction.
func (s *Service) Notify(ctx context.Context, recipientID uuid.UUID, typ model.NotificationType, title, message string, appointmentID *uuid.UUID) error {
	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}

	now := s.now()
	n := &model.Notification{
		Base:          model.NewBase(now),
		RecipientID:   recipientID,
		Type:          typ,
		Title:         title,
		Message:       message,
		AppointmentID: appointmentID,
	}

	event, err := model.NewOutboxEvent(model.EventNotificationCreated, model.NotificationPayload{
		NotificationID: n.ID,
		RecipientID:    recipientID,
		RecipientEmail: recipient.Email,
		RecipientName:  recipient.FullName(),
		Type:           typ,
		Title:          title,
		Message:        message,
		AppointmentID:  appointmentID,
	}, now)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := s.repo.CreateWithEvent(ctx, n, event); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.metrics != nil {
		s.metrics.NotificationsCreated.WithLabelValues(string(typ)).Inc()
	}
	s.logger.Debug().
		Str("notification_id", n.ID.String()).
		Str("recipient_id", recipientID.String()).
		Str("type", string(typ)).
		Msg("notification created")
	return nil
}

func (s *Service) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	notifications, err := s.repo.List(ctx, recipientID, &model.NotificationFilter{UnreadOnly: unreadOnly, Limit: defaultListLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *Service) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

// MarkRead marks one of the recipient's notifications as read. Notifications
// of other users are reported as not found.
func (s *Service) MarkRead(ctx context.Context, recipientID, id uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id, recipientID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return apperrors.NotFound("notification", err)
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return count, nil
}

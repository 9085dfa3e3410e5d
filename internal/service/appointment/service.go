package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	"github.com/nazek/booking-api/internal/service/payment"
	apperrors "github.com/nazek/booking-api/pkg/errors"
	"github.com/nazek/booking-api/pkg/metrics"
)

const (
	expiredReason = "expired"
	dateLayout    = "Mon 02 Jan 2006 at 15:04"
)

// Notifier records a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, typ model.NotificationType, title, message string, appointmentID *uuid.UUID) error
}

// AvailabilityChecker answers whether an interval fits an employer's schedule.
type AvailabilityChecker interface {
	CheckWithinAvailability(ctx context.Context, employerID uuid.UUID, start time.Time, duration int) error
	Location() *time.Location
}

// CacheInvalidator drops cached employer listings.
type CacheInvalidator interface {
	InvalidateEmployers()
}

type Config struct {
	DefaultDuration int
	Currency        string
}

type Service struct {
	repo         repository.AppointmentRepository
	clients      repository.ClientRepository
	employers    repository.EmployerRepository
	services     repository.ServiceRepository
	availability AvailabilityChecker
	notifier     Notifier
	payments     payment.Gateway
	cache        CacheInvalidator
	metrics      *metrics.Metrics
	cfg          Config
	logger       zerolog.Logger
	now          func() time.Time
}

type Deps struct {
	Appointments repository.AppointmentRepository
	Clients      repository.ClientRepository
	Employers    repository.EmployerRepository
	Services     repository.ServiceRepository
	Availability AvailabilityChecker
	Notifier     Notifier
	Payments     payment.Gateway
	Cache        CacheInvalidator
	Metrics      *metrics.Metrics
}

func NewService(deps Deps, cfg Config, logger zerolog.Logger) *Service {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = model.DefaultAppointmentDuration
	}
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	if deps.Payments == nil {
		deps.Payments = payment.NewDisabledGateway()
	}
	return &Service{
		repo:         deps.Appointments,
		clients:      deps.Clients,
		employers:    deps.Employers,
		services:     deps.Services,
		availability: deps.Availability,
		notifier:     deps.Notifier,
		payments:     deps.Payments,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		cfg:          cfg,
		logger:       logger.With().Str("service", "appointment").Logger(),
		now:          time.Now,
	}
}

// Create books an appointment for the calling client. The slot must be in
// the future, inside one availability window of the employer, and free of
// any pending or accepted appointment; the last check runs under the
// repository's per-employer lock.
func (s *Service) Create(ctx context.Context, caller model.Identity, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	client, err := s.clients.GetByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.Forbidden("only clients can book appointments")
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	start, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return nil, apperrors.BadRequest("date must be an RFC 3339 timestamp", err)
	}
	if !start.After(s.now()) {
		return nil, apperrors.BadRequest("appointment must be scheduled in the future", nil)
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = s.cfg.DefaultDuration
	}
	if duration < model.MinAppointmentDuration || duration > model.MaxAppointmentDuration {
		return nil, apperrors.BadRequest(fmt.Sprintf("duration_minutes must be between %d and %d",
			model.MinAppointmentDuration, model.MaxAppointmentDuration), nil)
	}

	method := req.PaymentMethod
	if method == "" {
		method = model.PaymentMethodCash
	}
	if !method.Valid() {
		return nil, model.ErrInvalidPayment
	}

	employer, err := s.employers.GetByID(ctx, req.EmployerID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.NotFound("employer", err)
		}
		return nil, fmt.Errorf("failed to get employer: %w", err)
	}
	if !employer.IsActive {
		return nil, model.ErrEmployerInactive
	}

	serviceID := employer.ServiceID
	if req.ServiceID != nil {
		if _, err := s.services.Get(ctx, *req.ServiceID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, apperrors.BadRequest("unknown service_id", err)
			}
			return nil, fmt.Errorf("failed to get service: %w", err)
		}
		serviceID = req.ServiceID
	}

	if err := s.availability.CheckWithinAvailability(ctx, employer.ID, start, duration); err != nil {
		return nil, err
	}

	now := s.now()
	apt := &model.Appointment{
		Base:            model.NewBase(now),
		ClientID:        client.ID,
		EmployerID:      employer.ID,
		ServiceID:       serviceID,
		Date:            start.UTC(),
		DurationMinutes: duration,
		Status:          model.AppointmentStatusPending,
		Description:     req.Description,
		Location:        req.Location,
		PaymentMethod:   method,
		TotalAmount:     model.QuoteAmount(employer.HourlyRate, duration),
	}

	if err := s.repo.CreateIfAvailable(ctx, apt); err != nil {
		if errors.Is(err, model.ErrSlotUnavailable) && s.metrics != nil {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AppointmentsCreated.Inc()
	}

	s.logger.Info().
		Str("appointment_id", apt.ID.String()).
		Str("employer_id", employer.ID.String()).
		Time("date", apt.Date).
		Msg("appointment requested")

	created, err := s.repo.Get(ctx, apt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload appointment: %w", err)
	}

	s.notify(ctx, created.EmployerUserID, model.NotificationAppointmentRequest, created,
		"New appointment request",
		fmt.Sprintf("%s requested an appointment on %s.", client.Name, s.formatDate(created.Date)))

	return created, nil
}

// List returns the caller's appointments, newest first.
func (s *Service) List(ctx context.Context, caller model.Identity, status model.AppointmentStatus) ([]*model.Appointment, error) {
	filters := &model.AppointmentFilters{Status: status}
	switch caller.Role {
	case model.RoleClient:
		client, err := s.clients.GetByUserID(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get client: %w", err)
		}
		filters.ClientID = &client.ID
	case model.RoleEmployer:
		employer, err := s.employers.GetByUserID(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get employer: %w", err)
		}
		filters.EmployerID = &employer.ID
	case model.RoleAdmin:
	default:
		return nil, model.ErrForbidden
	}

	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// Get returns an appointment the caller takes part in.
func (s *Service) Get(ctx context.Context, caller model.Identity, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	if !apt.IsParticipant(caller.UserID) && caller.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	return apt, nil
}

// UpdateStatus moves the appointment along its lifecycle on behalf of the caller.
func (s *Service) UpdateStatus(ctx context.Context, caller model.Identity, id uuid.UUID, to model.AppointmentStatus, reason string) (*model.Appointment, error) {
	apt, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(apt.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", model.ErrInvalidTransition, apt.Status, to)
	}
	if !model.TransitionAllowed(apt.Status, to, s.roleIn(apt, caller)) {
		return nil, model.ErrForbidden
	}

	var reasonPtr *string
	if reason != "" && (to == model.AppointmentStatusCancelled || to == model.AppointmentStatusRejected) {
		reasonPtr = &reason
	}

	if err := s.repo.UpdateStatus(ctx, id, apt.Status, to, reasonPtr); err != nil {
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}
	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(apt.Status)).
		Str("to", string(to)).
		Str("by", caller.UserID.String()).
		Msg("appointment status changed")

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload appointment: %w", err)
	}
	s.notifyTransition(ctx, updated, caller.UserID)
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, caller model.Identity, id uuid.UUID, reason string) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, caller, id, model.AppointmentStatusCancelled, reason)
}

// Review stores the client's rating of a completed appointment and refreshes
// the employer's rating aggregates. An appointment can be reviewed once.
func (s *Service) Review(ctx context.Context, caller model.Identity, id uuid.UUID, req *model.ReviewRequest) (*model.Appointment, error) {
	apt, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if apt.ClientUserID != caller.UserID {
		return nil, apperrors.Forbidden("only the client can review an appointment")
	}
	if apt.Status != model.AppointmentStatusCompleted {
		return nil, model.ErrNotReviewable
	}
	if apt.Rating != nil {
		return nil, model.ErrAlreadyReviewed
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperrors.BadRequest("rating must be between 1 and 5", nil)
	}

	if err := s.repo.SaveReview(ctx, id, req.Rating, req.Feedback); err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	summary, err := s.repo.RatingSummary(ctx, apt.EmployerID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rating: %w", err)
	}
	if err := s.employers.UpdateRating(ctx, apt.EmployerID, summary); err != nil {
		return nil, fmt.Errorf("failed to update employer rating: %w", err)
	}
	if s.cache != nil {
		s.cache.InvalidateEmployers()
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload appointment: %w", err)
	}
	s.notify(ctx, updated.EmployerUserID, model.NotificationReviewReceived, updated,
		"New review",
		fmt.Sprintf("%s rated the appointment of %s %d/5.", updated.ClientName, s.formatDate(updated.Date), req.Rating))
	return updated, nil
}

// Pay settles the appointment. Paying an already paid appointment returns it
// unchanged; card charges carry an idempotency key derived from the
// appointment so retries never charge twice.
func (s *Service) Pay(ctx context.Context, caller model.Identity, id uuid.UUID, req *model.PaymentRequest) (*model.Appointment, error) {
	apt, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if apt.ClientUserID != caller.UserID {
		return nil, apperrors.Forbidden("only the client can pay for an appointment")
	}
	if apt.IsPaid {
		return apt, nil
	}
	if apt.Status == model.AppointmentStatusCancelled || apt.Status == model.AppointmentStatusRejected {
		return nil, model.ErrNotPayable
	}
	if !req.PaymentMethod.Valid() {
		return nil, model.ErrInvalidPayment
	}

	var flipped bool
	switch req.PaymentMethod {
	case model.PaymentMethodCard:
		charge, err := s.payments.Charge(ctx, payment.ChargeRequest{
			Amount:         apt.TotalAmount,
			Currency:       s.cfg.Currency,
			PaymentToken:   req.PaymentToken,
			IdempotencyKey: payment.IdempotencyKey(apt.ID.String(), req.PaymentToken),
			Description:    fmt.Sprintf("Appointment with %s on %s", apt.EmployerName, s.formatDate(apt.Date)),
			Metadata:       map[string]string{"appointment_id": apt.ID.String()},
		})
		if err != nil {
			s.recordPayment(req.PaymentMethod, "failed")
			if errors.Is(err, payment.ErrDeclined) || errors.Is(err, payment.ErrUnavailable) {
				return nil, apperrors.BadRequest(err.Error(), err)
			}
			if errors.Is(err, payment.ErrIdempotencyConflict) {
				return nil, apperrors.Conflict(err.Error(), err)
			}
			return nil, fmt.Errorf("failed to charge card: %w", err)
		}
		reference := charge.Reference
		flipped, err = s.repo.MarkPaid(ctx, id, model.PaymentMethodCard, &reference, true)
		if err != nil {
			return nil, fmt.Errorf("failed to record payment: %w", err)
		}
		s.recordPayment(req.PaymentMethod, "paid")
	case model.PaymentMethodCash:
		if _, err := s.repo.MarkPaid(ctx, id, model.PaymentMethodCash, nil, false); err != nil {
			return nil, fmt.Errorf("failed to record payment method: %w", err)
		}
		s.recordPayment(req.PaymentMethod, "on_site")
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload appointment: %w", err)
	}
	if flipped {
		s.notify(ctx, updated.EmployerUserID, model.NotificationPaymentReceived, updated,
			"Payment received",
			fmt.Sprintf("%s paid %s for the appointment on %s.", updated.ClientName, updated.TotalAmount.StringFixed(2), s.formatDate(updated.Date)))
	}
	return updated, nil
}

// Delete removes a cancelled or rejected appointment.
func (s *Service) Delete(ctx context.Context, caller model.Identity, id uuid.UUID) error {
	apt, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if apt.Status != model.AppointmentStatusCancelled && apt.Status != model.AppointmentStatusRejected {
		return model.ErrNotDeletable
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

// CompleteDue marks accepted appointments whose end has passed as completed.
func (s *Service) CompleteDue(ctx context.Context) (int, error) {
	due, err := s.repo.ListDueForCompletion(ctx, s.now())
	if err != nil {
		return 0, err
	}
	done := 0
	for _, apt := range due {
		if err := s.systemTransition(ctx, apt, model.AppointmentStatusCompleted, nil); err != nil {
			continue
		}
		done++
		s.notify(ctx, apt.ClientUserID, model.NotificationAppointmentCompleted, apt,
			"Appointment completed",
			fmt.Sprintf("Your appointment with %s on %s is complete. You can now leave a review.", apt.EmployerName, s.formatDate(apt.Date)))
	}
	return done, nil
}

// ExpireStale cancels requests the employer never answered before their start.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.repo.ListExpiredPending(ctx, s.now())
	if err != nil {
		return 0, err
	}
	reason := expiredReason
	done := 0
	for _, apt := range stale {
		if err := s.systemTransition(ctx, apt, model.AppointmentStatusCancelled, &reason); err != nil {
			continue
		}
		done++
		s.notify(ctx, apt.ClientUserID, model.NotificationAppointmentCancelled, apt,
			"Appointment request expired",
			fmt.Sprintf("%s did not answer your request for %s in time.", apt.EmployerName, s.formatDate(apt.Date)))
	}
	return done, nil
}

// SendReminders notifies both parties of accepted appointments starting within lead.
func (s *Service) SendReminders(ctx context.Context, lead time.Duration) (int, error) {
	now := s.now()
	// Claim before notifying so overlapping runs never remind twice.
	due, err := s.repo.ClaimDueForReminder(ctx, now, now.Add(lead), now)
	if err != nil {
		return 0, err
	}
	for _, apt := range due {
		when := s.formatDate(apt.Date)
		s.notify(ctx, apt.ClientUserID, model.NotificationReminder, apt,
			"Upcoming appointment", fmt.Sprintf("Reminder: appointment with %s on %s.", apt.EmployerName, when))
		s.notify(ctx, apt.EmployerUserID, model.NotificationReminder, apt,
			"Upcoming appointment", fmt.Sprintf("Reminder: appointment with %s on %s.", apt.ClientName, when))
	}
	return len(due), nil
}

func (s *Service) systemTransition(ctx context.Context, apt *model.Appointment, to model.AppointmentStatus, reason *string) error {
	if err := s.repo.UpdateStatus(ctx, apt.ID, apt.Status, to, reason); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", apt.ID.String()).Str("to", string(to)).Msg("scheduled transition skipped")
		return err
	}
	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	}
	apt.Status = to
	return nil
}

func (s *Service) roleIn(apt *model.Appointment, caller model.Identity) model.Role {
	switch caller.UserID {
	case apt.EmployerUserID:
		return model.RoleEmployer
	case apt.ClientUserID:
		return model.RoleClient
	}
	return caller.Role
}

func (s *Service) notifyTransition(ctx context.Context, apt *model.Appointment, actor uuid.UUID) {
	when := s.formatDate(apt.Date)
	switch apt.Status {
	case model.AppointmentStatusAccepted:
		s.notify(ctx, apt.ClientUserID, model.NotificationAppointmentAccepted, apt,
			"Appointment accepted", fmt.Sprintf("%s accepted your appointment on %s.", apt.EmployerName, when))
	case model.AppointmentStatusRejected:
		s.notify(ctx, apt.ClientUserID, model.NotificationAppointmentRejected, apt,
			"Appointment rejected", fmt.Sprintf("%s declined your appointment on %s.", apt.EmployerName, when))
	case model.AppointmentStatusCompleted:
		s.notify(ctx, apt.ClientUserID, model.NotificationAppointmentCompleted, apt,
			"Appointment completed", fmt.Sprintf("Your appointment with %s on %s is complete. You can now leave a review.", apt.EmployerName, when))
	case model.AppointmentStatusCancelled:
		who := apt.ClientName
		if actor == apt.EmployerUserID {
			who = apt.EmployerName
		}
		s.notify(ctx, apt.Counterpart(actor), model.NotificationAppointmentCancelled, apt,
			"Appointment cancelled", fmt.Sprintf("%s cancelled the appointment on %s.", who, when))
	}
}

// notify never fails the calling operation; delivery problems are logged.
func (s *Service) notify(ctx context.Context, recipient uuid.UUID, typ model.NotificationType, apt *model.Appointment, title, message string) {
	if s.notifier == nil || recipient == uuid.Nil {
		return
	}
	id := apt.ID
	if err := s.notifier.Notify(ctx, recipient, typ, title, message, &id); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", apt.ID.String()).
			Str("type", string(typ)).
			Msg("failed to create notification")
	}
}

func (s *Service) recordPayment(method model.PaymentMethod, status string) {
	if s.metrics != nil {
		s.metrics.PaymentsProcessed.WithLabelValues(string(method), status).Inc()
	}
}

func (s *Service) formatDate(t time.Time) string {
	loc := time.UTC
	if s.availability != nil {
		loc = s.availability.Location()
	}
	return t.In(loc).Format(dateLayout)
}

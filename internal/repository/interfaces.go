package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nazek/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles accounts and login bookkeeping
	UserRepository interface {
		// CreateWithProfile inserts the user and, in the same transaction, exactly
		// one of client or employer.
		CreateWithProfile(ctx context.Context, user *model.User, client *model.Client, employer *model.Employer) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		// RecordLoginFailure increments the failure counter in place. The
		// increment that reaches maxAttempts resets it and locks the account
		// until lockUntil; locked reports that this call set the lock.
		RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (locked bool, err error)
		RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	ClientRepository interface {
		GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Client, error)
		Update(ctx context.Context, client *model.Client) error
	}

	EmployerRepository interface {
		GetByID(ctx context.Context, id uuid.UUID) (*model.Employer, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Employer, error)
		List(ctx context.Context, filter *model.EmployerFilter) ([]*model.Employer, error)
		Update(ctx context.Context, employer *model.Employer) error
		UpdateRating(ctx context.Context, id uuid.UUID, summary model.RatingSummary) error
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		Update(ctx context.Context, service *model.Service) error
		List(ctx context.Context, activeOnly bool) ([]*model.Service, error)
	}

	AvailabilityRepository interface {
		// Create inserts the window unless it overlaps another window of the
		// same employer, returning model.ErrOverlappingWindow. The check and
		// the insert are serialized per employer.
		Create(ctx context.Context, availability *model.Availability) error
		Get(ctx context.Context, id uuid.UUID) (*model.Availability, error)
		ListByEmployer(ctx context.Context, employerID uuid.UUID) ([]*model.Availability, error)
		// Replace swaps all windows of the employer atomically.
		Replace(ctx context.Context, employerID uuid.UUID, windows []*model.Availability) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	AppointmentRepository interface {
		// CreateIfAvailable serializes bookings per employer and inserts the
		// appointment only when no active appointment overlaps it. Returns
		// model.ErrSlotUnavailable otherwise.
		CreateIfAvailable(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		ListActiveForEmployer(ctx context.Context, employerID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		// UpdateStatus applies from → to only if the stored status is still from.
		// Returns model.ErrInvalidTransition when it is not.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, reason *string) error
		// SaveReview stores the review of a completed, unreviewed appointment.
		SaveReview(ctx context.Context, id uuid.UUID, rating int, feedback string) error
		RatingSummary(ctx context.Context, employerID uuid.UUID) (model.RatingSummary, error)
		// MarkPaid records the payment unless the appointment is already paid.
		// It reports true only for the call that moved is_paid to true.
		MarkPaid(ctx context.Context, id uuid.UUID, method model.PaymentMethod, reference *string, paid bool) (bool, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListDueForCompletion(ctx context.Context, before time.Time) ([]*model.Appointment, error)
		// ClaimDueForReminder stamps reminder_sent_at on accepted appointments
		// starting in [from, to) that have none yet and returns them. Concurrent
		// callers never claim the same appointment.
		ClaimDueForReminder(ctx context.Context, from, to, at time.Time) ([]*model.Appointment, error)
		ListExpiredPending(ctx context.Context, before time.Time) ([]*model.Appointment, error)
	}

	NotificationRepository interface {
		// CreateWithEvent stores the notification and its outbox event in one transaction.
		CreateWithEvent(ctx context.Context, notification *model.Notification, event *model.OutboxEvent) error
		List(ctx context.Context, recipientID uuid.UUID, filter *model.NotificationFilter) ([]*model.Notification, error)
		MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
		MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
		CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
	}

	OutboxRepository interface {
		// ClaimPending leases up to limit due events so concurrent workers never
		// receive the same event while the lease holds.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, retryAt time.Time, errMsg string) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// TokenRepository is the refresh token blocklist.
	TokenRepository interface {
		// Revoke blocklists jti for ttl. It reports false when jti was already
		// revoked, so exactly one caller wins a concurrent rotation.
		Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error)
		IsRevoked(ctx context.Context, jti string) (bool, error)
	}

	// Pinger reports store health.
	Pinger interface {
		PingContext(ctx context.Context) error
	}
)

// Repositories bundles every store the services need.
type Repositories struct {
	Users         UserRepository
	Clients       ClientRepository
	Employers     EmployerRepository
	Services      ServiceRepository
	Availability  AvailabilityRepository
	Appointments  AppointmentRepository
	Notifications NotificationRepository
	Outbox        OutboxRepository
	Tokens        TokenRepository
	Health        Pinger
}

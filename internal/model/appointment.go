package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusAccepted  AppointmentStatus = "accepted"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodCash
}

const (
	DefaultAppointmentDuration = 60
	MinAppointmentDuration     = 15
	MaxAppointmentDuration     = 480
)

// transitions lists, per current status, the reachable statuses and who may move there.
var transitions = map[AppointmentStatus]map[AppointmentStatus][]Role{
	AppointmentStatusPending: {
		AppointmentStatusAccepted:  {RoleEmployer},
		AppointmentStatusRejected:  {RoleEmployer},
		AppointmentStatusCancelled: {RoleClient, RoleEmployer},
	},
	AppointmentStatusAccepted: {
		AppointmentStatusCompleted: {RoleEmployer},
		AppointmentStatusCancelled: {RoleClient, RoleEmployer},
	},
}

// CanTransition reports whether from → to is an edge of the lifecycle.
func CanTransition(from, to AppointmentStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// TransitionAllowed reports whether role may perform from → to.
func TransitionAllowed(from, to AppointmentStatus, role Role) bool {
	for _, r := range transitions[from][to] {
		if r == role {
			return true
		}
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

type Appointment struct {
	Base
	ClientID         uuid.UUID         `json:"client_id" db:"client_id"`
	EmployerID       uuid.UUID         `json:"employer_id" db:"employer_id"`
	ServiceID        *uuid.UUID        `json:"service_id,omitempty" db:"service_id"`
	Date             time.Time         `json:"date" db:"date"`
	DurationMinutes  int               `json:"duration_minutes" db:"duration_minutes"`
	Status           AppointmentStatus `json:"status" db:"status"`
	Description      string            `json:"description" db:"description"`
	Location         string            `json:"location" db:"location"`
	PaymentMethod    PaymentMethod     `json:"payment_method" db:"payment_method"`
	TotalAmount      decimal.Decimal   `json:"total_amount" db:"total_amount"`
	IsPaid           bool              `json:"is_paid" db:"is_paid"`
	PaymentReference *string           `json:"payment_reference,omitempty" db:"payment_reference"`
	Feedback         *string           `json:"feedback,omitempty" db:"feedback"`
	Rating           *int              `json:"rating,omitempty" db:"rating"`
	CancelReason     *string           `json:"cancel_reason,omitempty" db:"cancel_reason"`
	ReminderSentAt   *time.Time        `json:"-" db:"reminder_sent_at"`

	// Joined for display and authorization.
	ClientName     string    `json:"client_name,omitempty" db:"client_name"`
	EmployerName   string    `json:"employer_name,omitempty" db:"employer_name"`
	ServiceName    *string   `json:"service_name,omitempty" db:"service_name"`
	ClientUserID   uuid.UUID `json:"-" db:"client_user_id"`
	EmployerUserID uuid.UUID `json:"-" db:"employer_user_id"`
}

// End is the exclusive end of the booked interval.
func (a *Appointment) End() time.Time {
	return a.Date.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// IsActive reports whether the appointment still holds its slot.
func (a *Appointment) IsActive() bool {
	return a.Status == AppointmentStatusPending || a.Status == AppointmentStatusAccepted
}

// Overlaps reports whether the appointment intersects [start, end).
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.Date.Before(end) && start.Before(a.End())
}

// IsParticipant reports whether userID is the client or the employer of the appointment.
func (a *Appointment) IsParticipant(userID uuid.UUID) bool {
	return a.ClientUserID == userID || a.EmployerUserID == userID
}

// Counterpart returns the user on the other side of the appointment.
func (a *Appointment) Counterpart(userID uuid.UUID) uuid.UUID {
	if userID == a.ClientUserID {
		return a.EmployerUserID
	}
	return a.ClientUserID
}

// QuoteAmount prices duration minutes at an hourly rate, rounded to cents.
func QuoteAmount(hourlyRate decimal.Decimal, duration int) decimal.Decimal {
	return hourlyRate.Mul(decimal.NewFromInt(int64(duration))).Div(decimal.NewFromInt(60)).Round(2)
}

type CreateAppointmentRequest struct {
	EmployerID      uuid.UUID     `json:"employer_id" binding:"required"`
	ServiceID       *uuid.UUID    `json:"service_id"`
	Date            string        `json:"date" binding:"required"`
	DurationMinutes int           `json:"duration_minutes" binding:"omitempty,min=15,max=480"`
	Description     string        `json:"description" binding:"max=1000"`
	Location        string        `json:"location" binding:"max=255"`
	PaymentMethod   PaymentMethod `json:"payment_method" binding:"omitempty,oneof=card cash"`
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,oneof=accepted rejected completed cancelled"`
	Reason string            `json:"reason" binding:"max=500"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type ReviewRequest struct {
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
	Feedback string `json:"feedback" binding:"required,max=2000"`
}

type PaymentRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	PaymentToken  string        `json:"payment_token"`
}

type AppointmentFilters struct {
	ClientID   *uuid.UUID
	EmployerID *uuid.UUID
	Status     AppointmentStatus
	From       *time.Time
	To         *time.Time
}

package model

import (
	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationAppointmentRequest   NotificationType = "appointment_request"
	NotificationAppointmentAccepted  NotificationType = "appointment_accepted"
	NotificationAppointmentRejected  NotificationType = "appointment_rejected"
	NotificationAppointmentCancelled NotificationType = "appointment_cancelled"
	NotificationAppointmentCompleted NotificationType = "appointment_completed"
	NotificationReviewReceived       NotificationType = "review_received"
	NotificationPaymentReceived      NotificationType = "payment_received"
	NotificationReminder             NotificationType = "reminder"
)

// EventNotificationCreated is the outbox event type written alongside every notification.
const EventNotificationCreated = "notification.created"

type Notification struct {
	Base
	RecipientID   uuid.UUID        `json:"recipient_id" db:"recipient_id"`
	Type          NotificationType `json:"notification_type" db:"notification_type"`
	Title         string           `json:"title" db:"title"`
	Message       string           `json:"message" db:"message"`
	IsRead        bool             `json:"is_read" db:"is_read"`
	AppointmentID *uuid.UUID       `json:"appointment_id,omitempty" db:"appointment_id"`
}

// NotificationPayload is the body of a notification.created outbox event.
type NotificationPayload struct {
	NotificationID uuid.UUID        `json:"notification_id"`
	RecipientID    uuid.UUID        `json:"recipient_id"`
	RecipientEmail string           `json:"recipient_email"`
	RecipientName  string           `json:"recipient_name"`
	Type           NotificationType `json:"notification_type"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	AppointmentID  *uuid.UUID       `json:"appointment_id,omitempty"`
}

type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

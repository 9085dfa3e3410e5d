package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Employer is a service provider that clients book.
type Employer struct {
	Base
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	ServiceID     *uuid.UUID      `json:"service_id,omitempty" db:"service_id"`
	ServiceName   *string         `json:"service_name,omitempty" db:"service_name"`
	Name          string          `json:"name" db:"name"`
	Email         string          `json:"email" db:"email"`
	Phone         string          `json:"phone" db:"phone"`
	Description   string          `json:"description" db:"description"`
	HourlyRate    decimal.Decimal `json:"hourly_rate" db:"hourly_rate"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	IsVerified    bool            `json:"is_verified" db:"is_verified"`
	AverageRating float64         `json:"average_rating" db:"average_rating"`
	TotalReviews  int             `json:"total_reviews" db:"total_reviews"`

	Availabilities []*Availability `json:"availabilities,omitempty" db:"-"`
}

type UpdateEmployerRequest struct {
	FirstName   *string          `json:"first_name" binding:"omitempty,max=100"`
	LastName    *string          `json:"last_name" binding:"omitempty,max=100"`
	Phone       *string          `json:"phone" binding:"omitempty,max=32"`
	ServiceID   *uuid.UUID       `json:"service_id"`
	Description *string          `json:"description" binding:"omitempty,max=2000"`
	HourlyRate  *decimal.Decimal `json:"hourly_rate"`
	IsActive    *bool            `json:"is_active"`
}

// UserFields returns the part of the request that belongs to the user record.
func (r *UpdateEmployerRequest) UserFields() *UpdateUserRequest {
	return &UpdateUserRequest{FirstName: r.FirstName, LastName: r.LastName, Phone: r.Phone}
}

type EmployerFilter struct {
	ServiceID  *uuid.UUID
	ActiveOnly bool
}

// RatingSummary is the aggregate of reviewed appointments for one employer.
type RatingSummary struct {
	Average float64 `db:"average"`
	Count   int     `db:"count"`
}

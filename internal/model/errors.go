package model

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked, please try again later")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrForbidden          = errors.New("not allowed to access this resource")

	ErrSlotUnavailable     = errors.New("slot unavailable")
	ErrOutsideAvailability = errors.New("requested time is outside the employer's availability")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAlreadyReviewed     = errors.New("appointment already reviewed")
	ErrNotReviewable       = errors.New("only completed appointments can be reviewed")
	ErrNotPayable          = errors.New("appointment cannot be paid in its current status")
	ErrNotDeletable        = errors.New("only cancelled or rejected appointments can be deleted")
	ErrInvalidPayment      = errors.New("invalid payment method")
	ErrOverlappingWindow   = errors.New("availability windows overlap")
	ErrEmployerInactive    = errors.New("employer is not accepting bookings")
)

package model

import "github.com/google/uuid"

// Client is the profile of a user who books appointments.
type Client struct {
	Base
	UserID  uuid.UUID `json:"user_id" db:"user_id"`
	Name    string    `json:"name" db:"name"`
	Email   string    `json:"email" db:"email"`
	Phone   string    `json:"phone" db:"phone"`
	Address string    `json:"address" db:"address"`
}

type UpdateClientRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,max=32"`
	Address   *string `json:"address" binding:"omitempty,max=500"`
}

func (r *UpdateClientRequest) UserFields() *UpdateUserRequest {
	return &UpdateUserRequest{FirstName: r.FirstName, LastName: r.LastName, Phone: r.Phone}
}

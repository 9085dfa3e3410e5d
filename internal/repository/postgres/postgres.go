package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/nazek/booking-api/internal/repository"
)

// NewRepositories wires every Postgres-backed store onto one connection pool.
// Tokens defaults to the revoked_tokens table; callers may swap in Redis.
func NewRepositories(db *sqlx.DB) *repository.Repositories {
	base := NewBaseRepository(db)
	return &repository.Repositories{
		Users:         NewUserRepository(base),
		Clients:       NewClientRepository(base),
		Employers:     NewEmployerRepository(base),
		Services:      NewServiceRepository(base),
		Availability:  NewAvailabilityRepository(base),
		Appointments:  NewAppointmentRepository(base),
		Notifications: NewNotificationRepository(base),
		Outbox:        NewOutboxRepository(base),
		Tokens:        NewTokenRepository(base),
		Health:        db,
	}
}

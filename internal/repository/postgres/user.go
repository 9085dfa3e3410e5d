package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
)

const userColumns = `id, email, password_hash, first_name, last_name, phone, role,
	is_active, login_attempts, locked_until, last_login_at, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) CreateWithProfile(ctx context.Context, user *model.User, client *model.Client, employer *model.Employer) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (
				id, email, password_hash, first_name, last_name, phone,
				role, is_active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			user.ID,
			user.Email,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.Phone,
			user.Role,
			user.IsActive,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			return mapError(err, "create user")
		}

		if client != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO clients (id, user_id, address, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5)
			`, client.ID, user.ID, client.Address, client.CreatedAt, client.UpdatedAt)
			if err != nil {
				return mapError(err, "create client profile")
			}
		}

		if employer != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO employers (
					id, user_id, service_id, description, hourly_rate,
					is_active, is_verified, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`,
				employer.ID,
				user.ID,
				employer.ServiceID,
				employer.Description,
				employer.HourlyRate,
				employer.IsActive,
				employer.IsVerified,
				employer.CreatedAt,
				employer.UpdatedAt,
			)
			if err != nil {
				return mapError(err, "create employer profile")
			}
		}
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return nil, mapError(err, "get user by email")
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, phone = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, user.FirstName, user.LastName, user.Phone, user.IsActive, user.UpdatedAt, user.ID)
	if err != nil {
		return mapError(err, "update user")
	}
	return expectRows(result, "update user")
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (bool, error) {
	var locked bool
	err := r.db.GetContext(ctx, &locked, `
		UPDATE users SET
			login_attempts = CASE WHEN login_attempts + 1 >= $2 THEN 0 ELSE login_attempts + 1 END,
			locked_until = CASE WHEN login_attempts + 1 >= $2 THEN $3::timestamptz ELSE locked_until END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING login_attempts = 0 AND locked_until IS NOT DISTINCT FROM $3::timestamptz
	`, id, maxAttempts, lockUntil)
	if err != nil {
		return false, mapError(err, "record login failure")
	}
	return locked, nil
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET login_attempts = 0, locked_until = NULL, last_login_at = $1, updated_at = $1
		WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
)

const availabilityColumns = `id, employer_id, day_of_week, start_time, end_time, is_available, created_at, updated_at`

const insertAvailability = `
	INSERT INTO availabilities (` + availabilityColumns + `)
	VALUES (:id, :employer_id, :day_of_week, :start_time, :end_time, :is_available, :created_at, :updated_at)
`

type availabilityRepository struct {
	BaseRepository
}

func NewAvailabilityRepository(base BaseRepository) repository.AvailabilityRepository {
	return &availabilityRepository{base}
}

func (r *availabilityRepository) Create(ctx context.Context, availability *model.Availability) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockEmployer(ctx, tx, availability.EmployerID); err != nil {
			return err
		}

		sameDay := []*model.Availability{}
		err := tx.SelectContext(ctx, &sameDay, `
			SELECT `+availabilityColumns+` FROM availabilities
			WHERE employer_id = $1 AND day_of_week = $2
		`, availability.EmployerID, availability.DayOfWeek)
		if err != nil {
			return fmt.Errorf("failed to list availabilities: %w", err)
		}
		for _, w := range sameDay {
			if w.Overlaps(availability) {
				return model.ErrOverlappingWindow
			}
		}

		if _, err := tx.NamedExecContext(ctx, insertAvailability, availability); err != nil {
			return mapError(err, "create availability")
		}
		return nil
	})
}

func (r *availabilityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Availability, error) {
	var availability model.Availability
	err := r.db.GetContext(ctx, &availability, `SELECT `+availabilityColumns+` FROM availabilities WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "get availability")
	}
	return &availability, nil
}

func (r *availabilityRepository) ListByEmployer(ctx context.Context, employerID uuid.UUID) ([]*model.Availability, error) {
	windows := []*model.Availability{}
	err := r.db.SelectContext(ctx, &windows, `
		SELECT `+availabilityColumns+` FROM availabilities
		WHERE employer_id = $1
		ORDER BY day_of_week, start_time
	`, employerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities: %w", err)
	}
	return windows, nil
}

func (r *availabilityRepository) Replace(ctx context.Context, employerID uuid.UUID, windows []*model.Availability) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockEmployer(ctx, tx, employerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM availabilities WHERE employer_id = $1`, employerID); err != nil {
			return fmt.Errorf("failed to clear availabilities: %w", err)
		}
		for _, w := range windows {
			if _, err := tx.NamedExecContext(ctx, insertAvailability, w); err != nil {
				return mapError(err, "insert availability")
			}
		}
		return nil
	})
}

func (r *availabilityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM availabilities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	return expectRows(result, "delete availability")
}

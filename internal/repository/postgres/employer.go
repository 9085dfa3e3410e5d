package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
)

const employerSelect = `
	SELECT e.id, e.user_id, e.service_id, e.description, e.hourly_rate,
		   e.is_active, e.is_verified, e.average_rating, e.total_reviews,
		   e.created_at, e.updated_at,
		   s.name AS service_name,
		   TRIM(u.first_name || ' ' || u.last_name) AS name, u.email, u.phone
	FROM employers e
	JOIN users u ON u.id = e.user_id
	LEFT JOIN services s ON s.id = e.service_id
`

type employerRepository struct {
	BaseRepository
}

func NewEmployerRepository(base BaseRepository) repository.EmployerRepository {
	return &employerRepository{base}
}

func (r *employerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Employer, error) {
	var employer model.Employer
	if err := r.db.GetContext(ctx, &employer, employerSelect+` WHERE e.id = $1`, id); err != nil {
		return nil, mapError(err, "get employer")
	}
	return &employer, nil
}

func (r *employerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Employer, error) {
	var employer model.Employer
	if err := r.db.GetContext(ctx, &employer, employerSelect+` WHERE e.user_id = $1`, userID); err != nil {
		return nil, mapError(err, "get employer by user")
	}
	return &employer, nil
}

func (r *employerRepository) List(ctx context.Context, filter *model.EmployerFilter) ([]*model.Employer, error) {
	query := employerSelect + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filter != nil {
		if filter.ActiveOnly {
			query += " AND e.is_active = TRUE AND u.is_active = TRUE"
		}
		if filter.ServiceID != nil {
			query += fmt.Sprintf(" AND e.service_id = $%d", argCount)
			args = append(args, *filter.ServiceID)
			argCount++
		}
	}

	query += " ORDER BY e.average_rating DESC, e.created_at ASC"

	employers := []*model.Employer{}
	if err := r.db.SelectContext(ctx, &employers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list employers: %w", err)
	}
	return employers, nil
}

func (r *employerRepository) Update(ctx context.Context, employer *model.Employer) error {
	employer.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE employers
		SET service_id = $1, description = $2, hourly_rate = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`,
		employer.ServiceID,
		employer.Description,
		employer.HourlyRate,
		employer.IsActive,
		employer.UpdatedAt,
		employer.ID,
	)
	if err != nil {
		return mapError(err, "update employer")
	}
	return expectRows(result, "update employer")
}

func (r *employerRepository) UpdateRating(ctx context.Context, id uuid.UUID, summary model.RatingSummary) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE employers SET average_rating = $1, total_reviews = $2, updated_at = NOW()
		WHERE id = $3
	`, summary.Average, summary.Count, id)
	if err != nil {
		return mapError(err, "update employer rating")
	}
	return expectRows(result, "update employer rating")
}

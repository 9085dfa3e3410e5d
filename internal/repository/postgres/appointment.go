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

const appointmentSelect = `
	SELECT a.id, a.client_id, a.employer_id, a.service_id, a.date, a.duration_minutes,
		   a.status, a.description, a.location, a.payment_method, a.total_amount,
		   a.is_paid, a.payment_reference, a.feedback, a.rating, a.cancel_reason,
		   a.reminder_sent_at, a.created_at, a.updated_at,
		   TRIM(cu.first_name || ' ' || cu.last_name) AS client_name,
		   TRIM(eu.first_name || ' ' || eu.last_name) AS employer_name,
		   s.name AS service_name,
		   c.user_id AS client_user_id,
		   e.user_id AS employer_user_id
	FROM appointments a
	JOIN clients c ON c.id = a.client_id
	JOIN users cu ON cu.id = c.user_id
	JOIN employers e ON e.id = a.employer_id
	JOIN users eu ON eu.id = e.user_id
	LEFT JOIN services s ON s.id = a.service_id
`

// activeOverlap matches pending or accepted appointments intersecting [$2, $3).
const activeOverlap = `
	a.status IN ('pending', 'accepted')
	AND a.date < $3
	AND a.date + make_interval(mins => a.duration_minutes) > $2
`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) CreateIfAvailable(ctx context.Context, appointment *model.Appointment) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockEmployer(ctx, tx, appointment.EmployerID); err != nil {
			return err
		}

		var conflict bool
		err := tx.GetContext(ctx, &conflict, `
			SELECT EXISTS (SELECT 1 FROM appointments a WHERE a.employer_id = $1 AND `+activeOverlap+`)
		`, appointment.EmployerID, appointment.Date, appointment.End())
		if err != nil {
			return fmt.Errorf("failed to check conflicts: %w", err)
		}
		if conflict {
			return model.ErrSlotUnavailable
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO appointments (
				id, client_id, employer_id, service_id, date, duration_minutes,
				status, description, location, payment_method, total_amount,
				is_paid, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			appointment.ID,
			appointment.ClientID,
			appointment.EmployerID,
			appointment.ServiceID,
			appointment.Date,
			appointment.DurationMinutes,
			appointment.Status,
			appointment.Description,
			appointment.Location,
			appointment.PaymentMethod,
			appointment.TotalAmount,
			appointment.IsPaid,
			appointment.CreatedAt,
			appointment.UpdatedAt,
		)
		return mapError(err, "create appointment")
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, appointmentSelect+` WHERE a.id = $1`, id); err != nil {
		return nil, mapError(err, "get appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := appointmentSelect + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.ClientID != nil {
			query += fmt.Sprintf(" AND a.client_id = $%d", argCount)
			args = append(args, *filters.ClientID)
			argCount++
		}
		if filters.EmployerID != nil {
			query += fmt.Sprintf(" AND a.employer_id = $%d", argCount)
			args = append(args, *filters.EmployerID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND a.status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if filters.From != nil {
			query += fmt.Sprintf(" AND a.date >= $%d", argCount)
			args = append(args, *filters.From)
			argCount++
		}
		if filters.To != nil {
			query += fmt.Sprintf(" AND a.date < $%d", argCount)
			args = append(args, *filters.To)
			argCount++
		}
	}

	query += " ORDER BY a.date DESC"

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListActiveForEmployer(ctx context.Context, employerID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	appointments := []*model.Appointment{}
	err := r.db.SelectContext(ctx, &appointments,
		appointmentSelect+` WHERE a.employer_id = $1 AND `+activeOverlap+` ORDER BY a.date ASC`,
		employerID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list employer appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, reason *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET status = $1, cancel_reason = COALESCE($2, cancel_reason), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, to, reason, id, from)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrInvalidTransition
	}
	return nil
}

func (r *appointmentRepository) SaveReview(ctx context.Context, id uuid.UUID, rating int, feedback string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments SET rating = $1, feedback = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'completed' AND rating IS NULL
	`, rating, feedback, id)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrAlreadyReviewed
	}
	return nil
}

func (r *appointmentRepository) RatingSummary(ctx context.Context, employerID uuid.UUID) (model.RatingSummary, error) {
	var summary model.RatingSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT COALESCE(AVG(rating), 0)::float8 AS average, COUNT(rating) AS count
		FROM appointments
		WHERE employer_id = $1 AND rating IS NOT NULL
	`, employerID)
	if err != nil {
		return summary, fmt.Errorf("failed to compute rating summary: %w", err)
	}
	return summary, nil
}

func (r *appointmentRepository) MarkPaid(ctx context.Context, id uuid.UUID, method model.PaymentMethod, reference *string, paid bool) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET payment_method = $1, payment_reference = $2, is_paid = $3, updated_at = NOW()
		WHERE id = $4 AND is_paid = FALSE
	`, method, reference, paid, id)
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}
	return paid && rows == 1, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return expectRows(result, "delete appointment")
}

func (r *appointmentRepository) ListDueForCompletion(ctx context.Context, before time.Time) ([]*model.Appointment, error) {
	return r.selectAppointments(ctx, "list appointments due for completion", `
		WHERE a.status = 'accepted'
		AND a.date + make_interval(mins => a.duration_minutes) <= $1
		ORDER BY a.date ASC
	`, before)
}

// ClaimDueForReminder stamps and returns due appointments in one statement.
// Rows locked by a concurrent claimer are skipped rather than waited on.
func (r *appointmentRepository) ClaimDueForReminder(ctx context.Context, from, to, at time.Time) ([]*model.Appointment, error) {
	appointments := []*model.Appointment{}
	err := r.db.SelectContext(ctx, &appointments, `
		WITH claimed AS (
			UPDATE appointments SET reminder_sent_at = $3
			WHERE reminder_sent_at IS NULL AND id IN (
				SELECT id FROM appointments
				WHERE status = 'accepted'
				AND reminder_sent_at IS NULL
				AND date >= $1 AND date < $2
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id
		)
	`+appointmentSelect+`
		WHERE a.id IN (SELECT id FROM claimed)
		ORDER BY a.date ASC
	`, from, to, at)
	if err != nil {
		return nil, mapError(err, "claim appointments due for reminder")
	}
	return appointments, nil
}

func (r *appointmentRepository) ListExpiredPending(ctx context.Context, before time.Time) ([]*model.Appointment, error) {
	return r.selectAppointments(ctx, "list expired requests", `
		WHERE a.status = 'pending' AND a.date <= $1
		ORDER BY a.date ASC
	`, before)
}

func (r *appointmentRepository) selectAppointments(ctx context.Context, op, where string, args ...interface{}) ([]*model.Appointment, error) {
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, appointmentSelect+where, args...); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return appointments, nil
}

// lockEmployer takes the employer row lock that serializes bookings and
// schedule edits. Concurrent writers for the same employer queue here until
// the transaction ends.
func lockEmployer(ctx context.Context, tx *sqlx.Tx, employerID uuid.UUID) error {
	var locked uuid.UUID
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM employers WHERE id = $1 FOR UPDATE`, employerID); err != nil {
		return mapError(err, "lock employer")
	}
	return nil
}

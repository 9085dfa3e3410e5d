package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
)

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(base BaseRepository) repository.ServiceRepository {
	return &serviceRepository{base}
}

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO services (id, name, description, icon, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		service.ID,
		service.Name,
		service.Description,
		service.Icon,
		service.IsActive,
		service.CreatedAt,
		service.UpdatedAt,
	)
	return mapError(err, "create service")
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var service model.Service
	err := r.db.GetContext(ctx, &service, `
		SELECT id, name, description, icon, is_active, created_at, updated_at
		FROM services WHERE id = $1
	`, id)
	if err != nil {
		return nil, mapError(err, "get service")
	}
	return &service, nil
}

func (r *serviceRepository) Update(ctx context.Context, service *model.Service) error {
	service.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE services SET name = $1, description = $2, icon = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, service.Name, service.Description, service.Icon, service.IsActive, service.UpdatedAt, service.ID)
	if err != nil {
		return mapError(err, "update service")
	}
	return expectRows(result, "update service")
}

func (r *serviceRepository) List(ctx context.Context, activeOnly bool) ([]*model.Service, error) {
	query := `SELECT id, name, description, icon, is_active, created_at, updated_at FROM services`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	services := []*model.Service{}
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

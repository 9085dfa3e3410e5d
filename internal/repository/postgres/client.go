package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
)

const clientSelect = `
	SELECT c.id, c.user_id, c.address, c.created_at, c.updated_at,
		   TRIM(u.first_name || ' ' || u.last_name) AS name, u.email, u.phone
	FROM clients c
	JOIN users u ON u.id = c.user_id
`

type clientRepository struct {
	BaseRepository
}

func NewClientRepository(base BaseRepository) repository.ClientRepository {
	return &clientRepository{base}
}

func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := r.db.GetContext(ctx, &client, clientSelect+` WHERE c.id = $1`, id); err != nil {
		return nil, mapError(err, "get client")
	}
	return &client, nil
}

func (r *clientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := r.db.GetContext(ctx, &client, clientSelect+` WHERE c.user_id = $1`, userID); err != nil {
		return nil, mapError(err, "get client by user")
	}
	return &client, nil
}

func (r *clientRepository) Update(ctx context.Context, client *model.Client) error {
	client.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE clients SET address = $1, updated_at = $2 WHERE id = $3
	`, client.Address, client.UpdatedAt, client.ID)
	if err != nil {
		return mapError(err, "update client")
	}
	return expectRows(result, "update client")
}

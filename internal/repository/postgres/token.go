package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/nazek/booking-api/internal/repository"
)

// tokenRepository keeps the refresh token blocklist in revoked_tokens when
// Redis is not configured.
type tokenRepository struct {
	BaseRepository
}

func NewTokenRepository(base BaseRepository) repository.TokenRepository {
	return &tokenRepository{base}
}

func (r *tokenRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	// An expired row is reclaimed; a live one leaves the insert a no-op.
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (jti) DO UPDATE
		SET expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
		WHERE revoked_tokens.expires_at <= NOW()
	`, jti, time.Now().Add(ttl))
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *tokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.db.GetContext(ctx, &revoked, `
		SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1 AND expires_at > NOW())
	`, jti)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return revoked, nil
}

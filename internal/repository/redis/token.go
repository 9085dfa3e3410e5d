package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nazek/booking-api/internal/repository"
)

const revokedPrefix = "auth:revoked:"

type tokenRepository struct {
	client redis.UniversalClient
}

// NewTokenRepository stores revoked refresh token ids as expiring keys.
func NewTokenRepository(client redis.UniversalClient) repository.TokenRepository {
	return &tokenRepository{client: client}
}

func (r *tokenRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	created, err := r.client.SetNX(ctx, revokedPrefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return created, nil
}

func (r *tokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.client.Get(ctx, revokedPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return true, nil
}

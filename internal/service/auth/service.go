package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	"github.com/nazek/booking-api/pkg/auth"
	apperrors "github.com/nazek/booking-api/pkg/errors"
	"github.com/nazek/booking-api/pkg/security"
)

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
)

type Service struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.TokenRepository
	jwtSvc     auth.JWTService
	hasher     security.PasswordHasher
	refreshTTL time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository,
	jwtSvc auth.JWTService, hasher security.PasswordHasher, refreshTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtSvc:     jwtSvc,
		hasher:     hasher,
		refreshTTL: refreshTTL,
		logger:     logger.With().Str("service", "auth").Logger(),
		now:        time.Now,
	}
}

// Register creates the account and its client or employer profile, then signs the user in.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	if req.Role != model.RoleClient && req.Role != model.RoleEmployer {
		return nil, apperrors.BadRequest("role must be client or employer", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), err)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		Base:         model.NewBase(now),
		Email:        model.NormalizeEmail(req.Email),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         req.Role,
		IsActive:     true,
	}

	var (
		client   *model.Client
		employer *model.Employer
	)
	switch req.Role {
	case model.RoleClient:
		client = &model.Client{Base: model.NewBase(now), UserID: user.ID}
	case model.RoleEmployer:
		employer = &model.Employer{
			Base:       model.NewBase(now),
			UserID:     user.ID,
			HourlyRate: decimal.Zero,
			IsActive:   true,
		}
	}

	if err := s.userRepo.CreateWithProfile(ctx, user, client, employer); err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("user registered")
	return s.issue(user)
}

// Login checks credentials. Unknown emails and wrong passwords both yield
// ErrInvalidCredentials; repeated failures lock the account for a while.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, model.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	now := s.now()
	if user.IsLocked(now) {
		return nil, model.ErrAccountLocked
	}
	if !user.IsActive {
		return nil, model.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		locked, err := s.userRepo.RecordLoginFailure(ctx, user.ID, maxLoginAttempts, now.Add(lockoutDuration))
		if err != nil {
			return nil, fmt.Errorf("failed to update login attempts: %w", err)
		}
		if locked {
			s.logger.Warn().Str("user_id", user.ID.String()).Msg("account locked after repeated login failures")
		}
		return nil, model.ErrInvalidCredentials
	}

	if err := s.userRepo.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update login timestamp: %w", err)
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	return s.issue(user)
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token", err)
	}

	// Claim the token before anything else: of concurrent requests carrying
	// the same refresh token, only the one that revokes it gets a new pair.
	revoked, err := s.revoke(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, model.ErrTokenRevoked
	}

	userID, _ := claims.UserID()
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.Unauthorized("user no longer exists", err)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account disabled", nil)
	}
	return s.issue(user)
}

// Logout revokes the refresh token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return apperrors.BadRequest("invalid refresh token", err)
	}
	_, err = s.revoke(ctx, claims)
	return err
}

// Authenticate resolves an access token to the caller identity.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*model.Identity, error) {
	claims, err := s.jwtSvc.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	return &model.Identity{UserID: userID, Email: claims.Email, Role: model.Role(claims.Role)}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	req.Apply(user)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// revoke blocklists the token until it would have expired anyway and
// reports whether this call was the one that revoked it.
func (s *Service) revoke(ctx context.Context, claims *auth.Claims) (bool, error) {
	ttl := s.refreshTTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	revoked, err := s.tokenRepo.Revoke(ctx, claims.ID, ttl)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return revoked, nil
}

func (s *Service) issue(user *model.User) (*model.AuthResponse, error) {
	sub := auth.Subject{UserID: user.ID, Email: user.Email, Role: string(user.Role)}
	access, err := s.jwtSvc.GenerateAccessToken(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, _, err := s.jwtSvc.GenerateRefreshToken(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &model.AuthResponse{User: user, Access: access, Refresh: refresh}, nil
}

package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	apperrors "github.com/nazek/booking-api/pkg/errors"
)

// CacheInvalidator drops cached employer listings.
type CacheInvalidator interface {
	InvalidateEmployers()
}

// Service handles the self-service profiles of employers and clients.
type Service struct {
	users     repository.UserRepository
	clients   repository.ClientRepository
	employers repository.EmployerRepository
	services  repository.ServiceRepository
	cache     CacheInvalidator
	logger    zerolog.Logger
}

func NewService(users repository.UserRepository, clients repository.ClientRepository,
	employers repository.EmployerRepository, services repository.ServiceRepository,
	cache CacheInvalidator, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		clients:   clients,
		employers: employers,
		services:  services,
		cache:     cache,
		logger:    logger.With().Str("service", "profile").Logger(),
	}
}

func (s *Service) GetEmployerProfile(ctx context.Context, userID uuid.UUID) (*model.Employer, error) {
	employer, err := s.employers.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.NotFound("employer profile", err)
		}
		return nil, fmt.Errorf("failed to get employer profile: %w", err)
	}
	return employer, nil
}

func (s *Service) UpdateEmployerProfile(ctx context.Context, userID uuid.UUID, req *model.UpdateEmployerRequest) (*model.Employer, error) {
	employer, err := s.GetEmployerProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.HourlyRate != nil {
		if req.HourlyRate.IsNegative() {
			return nil, apperrors.BadRequest("hourly_rate must not be negative", nil)
		}
		employer.HourlyRate = req.HourlyRate.Round(2)
	}
	if req.ServiceID != nil {
		svc, err := s.services.Get(ctx, *req.ServiceID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, apperrors.BadRequest("unknown service_id", err)
			}
			return nil, fmt.Errorf("failed to get service: %w", err)
		}
		if !svc.IsActive {
			return nil, apperrors.BadRequest("service is not active", nil)
		}
		employer.ServiceID = &svc.ID
	}
	if req.Description != nil {
		employer.Description = *req.Description
	}
	if req.IsActive != nil {
		employer.IsActive = *req.IsActive
	}

	if err := s.updateUser(ctx, userID, req.UserFields()); err != nil {
		return nil, err
	}
	if err := s.employers.Update(ctx, employer); err != nil {
		return nil, fmt.Errorf("failed to update employer profile: %w", err)
	}
	if s.cache != nil {
		s.cache.InvalidateEmployers()
	}

	return s.GetEmployerProfile(ctx, userID)
}

func (s *Service) GetClientProfile(ctx context.Context, userID uuid.UUID) (*model.Client, error) {
	client, err := s.clients.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.NotFound("client profile", err)
		}
		return nil, fmt.Errorf("failed to get client profile: %w", err)
	}
	return client, nil
}

func (s *Service) UpdateClientProfile(ctx context.Context, userID uuid.UUID, req *model.UpdateClientRequest) (*model.Client, error) {
	client, err := s.GetClientProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.updateUser(ctx, userID, req.UserFields()); err != nil {
		return nil, err
	}
	if req.Address != nil {
		client.Address = *req.Address
		if err := s.clients.Update(ctx, client); err != nil {
			return nil, fmt.Errorf("failed to update client profile: %w", err)
		}
	}
	return s.GetClientProfile(ctx, userID)
}

func (s *Service) updateUser(ctx context.Context, userID uuid.UUID, req *model.UpdateUserRequest) error {
	if req.FirstName == nil && req.LastName == nil && req.Phone == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	req.Apply(user)
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

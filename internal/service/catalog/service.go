package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	apperrors "github.com/nazek/booking-api/pkg/errors"
)

const (
	keyActiveServices = "services:active"
	keyEmployersAll   = "employers:all"
	employersPrefix   = "employers:"
)

// Service serves the public catalog: service categories and employer listings.
// Reads go through an in-process cache; every write invalidates it.
type Service struct {
	services     repository.ServiceRepository
	employers    repository.EmployerRepository
	availability repository.AvailabilityRepository
	cache        *cache.Cache
	logger       zerolog.Logger
}

func NewService(services repository.ServiceRepository, employers repository.EmployerRepository,
	availability repository.AvailabilityRepository, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		services:     services,
		employers:    employers,
		availability: availability,
		cache:        cache.New(ttl, 2*ttl),
		logger:       logger.With().Str("service", "catalog").Logger(),
	}
}

func (s *Service) ListServices(ctx context.Context) ([]*model.Service, error) {
	if v, ok := s.cache.Get(keyActiveServices); ok {
		return v.([]*model.Service), nil
	}
	services, err := s.services.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	s.cache.SetDefault(keyActiveServices, services)
	return services, nil
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	svc, err := s.services.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.NotFound("service", err)
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return svc, nil
}

func (s *Service) CreateService(ctx context.Context, req *model.ServiceRequest) (*model.Service, error) {
	svc := &model.Service{
		Base:        model.NewBase(time.Now()),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Icon:        req.Icon,
		IsActive:    true,
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
	if svc.Name == "" {
		return nil, apperrors.BadRequest("name is required", nil)
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	s.InvalidateServices()
	return svc, nil
}

func (s *Service) UpdateService(ctx context.Context, id uuid.UUID, req *model.ServiceRequest) (*model.Service, error) {
	svc, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	svc.Name = strings.TrimSpace(req.Name)
	svc.Description = req.Description
	svc.Icon = req.Icon
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
	if err := s.services.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	s.InvalidateServices()
	return svc, nil
}

// DeleteService deactivates the service. Employers and past appointments keep referencing it.
func (s *Service) DeleteService(ctx context.Context, id uuid.UUID) error {
	svc, err := s.GetService(ctx, id)
	if err != nil {
		return err
	}
	svc.IsActive = false
	if err := s.services.Update(ctx, svc); err != nil {
		return fmt.Errorf("failed to deactivate service: %w", err)
	}
	s.InvalidateServices()
	return nil
}

// ListEmployers returns active employers, optionally offering serviceID.
func (s *Service) ListEmployers(ctx context.Context, serviceID *uuid.UUID) ([]*model.Employer, error) {
	key := keyEmployersAll
	if serviceID != nil {
		key = employersPrefix + serviceID.String()
	}
	if v, ok := s.cache.Get(key); ok {
		return v.([]*model.Employer), nil
	}

	employers, err := s.employers.List(ctx, &model.EmployerFilter{ServiceID: serviceID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list employers: %w", err)
	}
	s.cache.SetDefault(key, employers)
	return employers, nil
}

// GetEmployer returns the employer with its availability windows.
func (s *Service) GetEmployer(ctx context.Context, id uuid.UUID) (*model.Employer, error) {
	employer, err := s.employers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.NotFound("employer", err)
		}
		return nil, fmt.Errorf("failed to get employer: %w", err)
	}
	windows, err := s.availability.ListByEmployer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load availabilities: %w", err)
	}
	employer.Availabilities = windows
	return employer, nil
}

func (s *Service) InvalidateServices() {
	s.cache.Delete(keyActiveServices)
	// Employer listings embed service names.
	s.InvalidateEmployers()
}

func (s *Service) InvalidateEmployers() {
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, employersPrefix) {
			s.cache.Delete(key)
		}
	}
}

package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nazek/booking-api/internal/model"
)

type userRepository struct{ s *Store }

func (r *userRepository) CreateWithProfile(ctx context.Context, user *model.User, client *model.Client, employer *model.Employer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := model.NormalizeEmail(user.Email)
	for _, u := range r.s.users {
		if model.NormalizeEmail(u.Email) == email {
			return model.ErrAlreadyExists
		}
	}

	cp := *user
	r.s.users[user.ID] = &cp
	if client != nil {
		c := *client
		c.UserID = user.ID
		r.s.clients[c.ID] = &c
	}
	if employer != nil {
		e := *employer
		e.UserID = user.ID
		r.s.employers[e.ID] = &e
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range r.s.users {
		if model.NormalizeEmail(u.Email) == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[user.ID]
	if !ok {
		return model.ErrNotFound
	}
	user.UpdatedAt = r.s.now()
	u.FirstName = user.FirstName
	u.LastName = user.LastName
	u.Phone = user.Phone
	u.IsActive = user.IsActive
	u.UpdatedAt = user.UpdatedAt
	return nil
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return false, model.ErrNotFound
	}
	u.LoginAttempts++
	if u.LoginAttempts < maxAttempts {
		return false, nil
	}
	u.LoginAttempts = 0
	u.LockedUntil = &lockUntil
	return true, nil
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	u.LoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	return nil
}

type clientRepository struct{ s *Store }

func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r.s.hydrateClient(c), nil
}

func (r *clientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.clients {
		if c.UserID == userID {
			return r.s.hydrateClient(c), nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *clientRepository) Update(ctx context.Context, client *model.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[client.ID]
	if !ok {
		return model.ErrNotFound
	}
	client.UpdatedAt = r.s.now()
	c.Address = client.Address
	c.UpdatedAt = client.UpdatedAt
	return nil
}

type employerRepository struct{ s *Store }

func (r *employerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Employer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employers[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r.s.hydrateEmployer(e), nil
}

func (r *employerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Employer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.employers {
		if e.UserID == userID {
			return r.s.hydrateEmployer(e), nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *employerRepository) List(ctx context.Context, filter *model.EmployerFilter) ([]*model.Employer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	employers := []*model.Employer{}
	for _, e := range r.s.employers {
		if filter != nil {
			if filter.ActiveOnly {
				if u, ok := r.s.users[e.UserID]; !e.IsActive || !ok || !u.IsActive {
					continue
				}
			}
			if filter.ServiceID != nil && (e.ServiceID == nil || *e.ServiceID != *filter.ServiceID) {
				continue
			}
		}
		employers = append(employers, r.s.hydrateEmployer(e))
	}
	sortByRating(employers)
	return employers, nil
}

func (r *employerRepository) Update(ctx context.Context, employer *model.Employer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employers[employer.ID]
	if !ok {
		return model.ErrNotFound
	}
	employer.UpdatedAt = r.s.now()
	e.ServiceID = employer.ServiceID
	e.Description = employer.Description
	e.HourlyRate = employer.HourlyRate
	e.IsActive = employer.IsActive
	e.UpdatedAt = employer.UpdatedAt
	return nil
}

func (r *employerRepository) UpdateRating(ctx context.Context, id uuid.UUID, summary model.RatingSummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employers[id]
	if !ok {
		return model.ErrNotFound
	}
	e.AverageRating = summary.Average
	e.TotalReviews = summary.Count
	return nil
}

type serviceRepository struct{ s *Store }

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[service.ID]; ok {
		return model.ErrAlreadyExists
	}
	cp := *service
	r.s.services[service.ID] = &cp
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

func (r *serviceRepository) Update(ctx context.Context, service *model.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[service.ID]; !ok {
		return model.ErrNotFound
	}
	service.UpdatedAt = r.s.now()
	cp := *service
	r.s.services[service.ID] = &cp
	return nil
}

func (r *serviceRepository) List(ctx context.Context, activeOnly bool) ([]*model.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	services := []*model.Service{}
	for _, svc := range r.s.services {
		if activeOnly && !svc.IsActive {
			continue
		}
		cp := *svc
		services = append(services, &cp)
	}
	sortServices(services)
	return services, nil
}

type tokenRepository struct{ s *Store }

func (r *tokenRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	if exp, ok := r.s.revoked[jti]; ok && now.Before(exp) {
		return false, nil
	}
	r.s.revoked[jti] = now.Add(ttl)
	return true, nil
}

func (r *tokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	exp, ok := r.s.revoked[jti]
	return ok && r.s.now().Before(exp), nil
}

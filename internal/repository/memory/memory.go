// Package memory implements the repository interfaces on in-process maps.
// It backs the test suites and the "memory" database driver for local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
)

// Store holds every table. A single mutex makes each repository call atomic,
// which is the in-memory counterpart of a transaction.
type Store struct {
	mu sync.Mutex

	users          map[uuid.UUID]*model.User
	clients        map[uuid.UUID]*model.Client
	employers      map[uuid.UUID]*model.Employer
	services       map[uuid.UUID]*model.Service
	availabilities map[uuid.UUID]*model.Availability
	appointments   map[uuid.UUID]*model.Appointment
	notifications  map[uuid.UUID]*model.Notification
	outbox         map[uuid.UUID]*model.OutboxEvent
	revoked        map[string]time.Time

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:          make(map[uuid.UUID]*model.User),
		clients:        make(map[uuid.UUID]*model.Client),
		employers:      make(map[uuid.UUID]*model.Employer),
		services:       make(map[uuid.UUID]*model.Service),
		availabilities: make(map[uuid.UUID]*model.Availability),
		appointments:   make(map[uuid.UUID]*model.Appointment),
		notifications:  make(map[uuid.UUID]*model.Notification),
		outbox:         make(map[uuid.UUID]*model.OutboxEvent),
		revoked:        make(map[string]time.Time),
		now:            time.Now,
	}
}

// SetClock overrides the time source used for leases and token expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// NewRepositories returns a full repository set sharing one Store.
func NewRepositories() (*repository.Repositories, *Store) {
	s := NewStore()
	return &repository.Repositories{
		Users:         &userRepository{s},
		Clients:       &clientRepository{s},
		Employers:     &employerRepository{s},
		Services:      &serviceRepository{s},
		Availability:  &availabilityRepository{s},
		Appointments:  &appointmentRepository{s},
		Notifications: &notificationRepository{s},
		Outbox:        &outboxRepository{s},
		Tokens:        &tokenRepository{s},
		Health:        s,
	}, s
}

func (s *Store) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// OutboxEvents returns a snapshot of all outbox events, oldest first.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		cp := *e
		events = append(events, &cp)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events
}

// AddOutboxEvent inserts an event directly.
func (s *Store) AddOutboxEvent(e *model.OutboxEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.outbox[e.ID] = &cp
}

func (s *Store) fullName(userID uuid.UUID) string {
	if u, ok := s.users[userID]; ok {
		return u.FullName()
	}
	return ""
}

func (s *Store) hydrateEmployer(e *model.Employer) *model.Employer {
	cp := *e
	cp.Availabilities = nil
	if u, ok := s.users[e.UserID]; ok {
		cp.Name = u.FullName()
		cp.Email = u.Email
		cp.Phone = u.Phone
	}
	cp.ServiceName = nil
	if e.ServiceID != nil {
		if svc, ok := s.services[*e.ServiceID]; ok {
			name := svc.Name
			cp.ServiceName = &name
		}
	}
	return &cp
}

func (s *Store) hydrateClient(c *model.Client) *model.Client {
	cp := *c
	if u, ok := s.users[c.UserID]; ok {
		cp.Name = u.FullName()
		cp.Email = u.Email
		cp.Phone = u.Phone
	}
	return &cp
}

func (s *Store) hydrateAppointment(a *model.Appointment) *model.Appointment {
	cp := *a
	if c, ok := s.clients[a.ClientID]; ok {
		cp.ClientUserID = c.UserID
		cp.ClientName = s.fullName(c.UserID)
	}
	if e, ok := s.employers[a.EmployerID]; ok {
		cp.EmployerUserID = e.UserID
		cp.EmployerName = s.fullName(e.UserID)
	}
	cp.ServiceName = nil
	if a.ServiceID != nil {
		if svc, ok := s.services[*a.ServiceID]; ok {
			name := svc.Name
			cp.ServiceName = &name
		}
	}
	return &cp
}

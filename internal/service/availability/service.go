package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	apperrors "github.com/nazek/booking-api/pkg/errors"
)

const DefaultSlotStep = 30 * time.Minute

// CacheInvalidator drops cached employer listings.
type CacheInvalidator interface {
	InvalidateEmployers()
}

type Config struct {
	SlotStep        time.Duration
	DefaultDuration int
	Location        *time.Location
}

// Service manages employer availability windows and derives bookable slots from them.
type Service struct {
	availability repository.AvailabilityRepository
	employers    repository.EmployerRepository
	appointments repository.AppointmentRepository
	cache        CacheInvalidator
	cfg          Config
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(availability repository.AvailabilityRepository, employers repository.EmployerRepository,
	appointments repository.AppointmentRepository, cache CacheInvalidator, cfg Config, logger zerolog.Logger) *Service {
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = DefaultSlotStep
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = model.DefaultAppointmentDuration
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		availability: availability,
		employers:    employers,
		appointments: appointments,
		cache:        cache,
		cfg:          cfg,
		logger:       logger.With().Str("service", "availability").Logger(),
		now:          time.Now,
	}
}

// Location is the zone availability windows are expressed in.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

func (s *Service) List(ctx context.Context, employerID uuid.UUID) ([]*model.Availability, error) {
	if _, err := s.employer(ctx, employerID); err != nil {
		return nil, err
	}
	windows, err := s.availability.ListByEmployer(ctx, employerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities: %w", err)
	}
	return windows, nil
}

// Add creates one window. Only the owning employer may edit its availability.
func (s *Service) Add(ctx context.Context, caller model.Identity, employerID uuid.UUID, req *model.AvailabilityRequest) (*model.Availability, error) {
	if _, err := s.owned(ctx, caller, employerID); err != nil {
		return nil, err
	}

	window := req.ToModel(employerID)
	window.Base = model.NewBase(s.now())
	if err := window.Validate(); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	if err := s.availability.Create(ctx, window); err != nil {
		if errors.Is(err, model.ErrOverlappingWindow) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create availability: %w", err)
	}
	s.invalidate()
	return window, nil
}

// Replace swaps the whole weekly schedule in one step.
func (s *Service) Replace(ctx context.Context, caller model.Identity, employerID uuid.UUID, reqs []model.AvailabilityRequest) ([]*model.Availability, error) {
	if _, err := s.owned(ctx, caller, employerID); err != nil {
		return nil, err
	}

	now := s.now()
	windows := make([]*model.Availability, 0, len(reqs))
	for i := range reqs {
		w := reqs[i].ToModel(employerID)
		w.Base = model.NewBase(now)
		if err := w.Validate(); err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("availabilities[%d]: %v", i, err), err)
		}
		for _, prev := range windows {
			if prev.Overlaps(w) {
				return nil, model.ErrOverlappingWindow
			}
		}
		windows = append(windows, w)
	}

	if err := s.availability.Replace(ctx, employerID, windows); err != nil {
		return nil, fmt.Errorf("failed to replace availabilities: %w", err)
	}
	s.invalidate()
	return s.availability.ListByEmployer(ctx, employerID)
}

func (s *Service) Delete(ctx context.Context, caller model.Identity, employerID, availabilityID uuid.UUID) error {
	if _, err := s.owned(ctx, caller, employerID); err != nil {
		return err
	}
	window, err := s.availability.Get(ctx, availabilityID)
	if err != nil || window.EmployerID != employerID {
		if err == nil || errors.Is(err, model.ErrNotFound) {
			return apperrors.NotFound("availability", err)
		}
		return fmt.Errorf("failed to get availability: %w", err)
	}
	if err := s.availability.Delete(ctx, availabilityID); err != nil {
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	s.invalidate()
	return nil
}

// ParseDate reads a YYYY-MM-DD day in the booking location.
func (s *Service) ParseDate(value string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", value, s.cfg.Location)
	if err != nil {
		return time.Time{}, apperrors.BadRequest("date must be formatted as YYYY-MM-DD", err)
	}
	return day, nil
}

// AvailableSlots lists the bookable slots of employerID on day: generated
// slots minus past ones and those overlapping a pending or accepted appointment.
func (s *Service) AvailableSlots(ctx context.Context, employerID uuid.UUID, day time.Time, duration int) ([]model.TimeSlot, error) {
	if duration <= 0 {
		duration = s.cfg.DefaultDuration
	}
	if duration < model.MinAppointmentDuration || duration > model.MaxAppointmentDuration {
		return nil, apperrors.BadRequest(fmt.Sprintf("duration must be between %d and %d minutes",
			model.MinAppointmentDuration, model.MaxAppointmentDuration), nil)
	}

	if _, err := s.employer(ctx, employerID); err != nil {
		return nil, err
	}
	windows, err := s.availability.ListByEmployer(ctx, employerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities: %w", err)
	}

	day = day.In(s.cfg.Location)
	slots := GenerateSlots(windows, day, s.cfg.SlotStep, time.Duration(duration)*time.Minute)
	if len(slots) == 0 {
		return slots, nil
	}

	booked, err := s.appointments.ListActiveForEmployer(ctx, employerID, slots[0].Start, slots[len(slots)-1].End)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked appointments: %w", err)
	}

	now := s.now()
	free := make([]model.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.Start.Before(now) {
			continue
		}
		taken := false
		for _, apt := range booked {
			if apt.Overlaps(slot.Start, slot.End) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, slot)
		}
	}
	return free, nil
}

// CheckWithinAvailability verifies that [start, start+duration) lies inside
// one available window of the employer.
func (s *Service) CheckWithinAvailability(ctx context.Context, employerID uuid.UUID, start time.Time, duration int) error {
	windows, err := s.availability.ListByEmployer(ctx, employerID)
	if err != nil {
		return fmt.Errorf("failed to list availabilities: %w", err)
	}
	local := start.In(s.cfg.Location)
	end := local.Add(time.Duration(duration) * time.Minute)
	weekday := int(local.Weekday())
	for _, w := range windows {
		if !w.IsAvailable || w.DayOfWeek != weekday {
			continue
		}
		ws, we, err := w.On(local)
		if err != nil {
			continue
		}
		if !local.Before(ws) && !end.After(we) {
			return nil
		}
	}
	return model.ErrOutsideAvailability
}

// GenerateSlots emits, for every available window matching day's weekday,
// slots of length duration starting at the window start and advancing by
// step while the slot still ends inside the window. Slots are sorted by start.
func GenerateSlots(windows []*model.Availability, day time.Time, step, duration time.Duration) []model.TimeSlot {
	slots := []model.TimeSlot{}
	if step <= 0 || duration <= 0 {
		return slots
	}
	weekday := int(day.Weekday())
	for _, w := range windows {
		if !w.IsAvailable || w.DayOfWeek != weekday {
			continue
		}
		start, end, err := w.On(day)
		if err != nil {
			continue
		}
		for t := start; !t.Add(duration).After(end); t = t.Add(step) {
			slots = append(slots, model.TimeSlot{Start: t, End: t.Add(duration)})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

func (s *Service) employer(ctx context.Context, id uuid.UUID) (*model.Employer, error) {
	employer, err := s.employers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, apperrors.NotFound("employer", err)
		}
		return nil, fmt.Errorf("failed to get employer: %w", err)
	}
	return employer, nil
}

func (s *Service) owned(ctx context.Context, caller model.Identity, employerID uuid.UUID) (*model.Employer, error) {
	employer, err := s.employer(ctx, employerID)
	if err != nil {
		return nil, err
	}
	if employer.UserID != caller.UserID && caller.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	return employer, nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.InvalidateEmployers()
	}
}

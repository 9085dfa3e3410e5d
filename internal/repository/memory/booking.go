package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nazek/booking-api/internal/model"
)

type availabilityRepository struct{ s *Store }

func (r *availabilityRepository) Create(ctx context.Context, availability *model.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.availabilities {
		if a.EmployerID == availability.EmployerID && a.Overlaps(availability) {
			return model.ErrOverlappingWindow
		}
	}
	cp := *availability
	r.s.availabilities[availability.ID] = &cp
	return nil
}

func (r *availabilityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.availabilities[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *availabilityRepository) ListByEmployer(ctx context.Context, employerID uuid.UUID) ([]*model.Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	windows := []*model.Availability{}
	for _, a := range r.s.availabilities {
		if a.EmployerID == employerID {
			cp := *a
			windows = append(windows, &cp)
		}
	}
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].DayOfWeek != windows[j].DayOfWeek {
			return windows[i].DayOfWeek < windows[j].DayOfWeek
		}
		return windows[i].StartTime < windows[j].StartTime
	})
	return windows, nil
}

func (r *availabilityRepository) Replace(ctx context.Context, employerID uuid.UUID, windows []*model.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, a := range r.s.availabilities {
		if a.EmployerID == employerID {
			delete(r.s.availabilities, id)
		}
	}
	for _, w := range windows {
		cp := *w
		r.s.availabilities[w.ID] = &cp
	}
	return nil
}

func (r *availabilityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.availabilities[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.s.availabilities, id)
	return nil
}

type appointmentRepository struct{ s *Store }

func (r *appointmentRepository) CreateIfAvailable(ctx context.Context, appointment *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.employers[appointment.EmployerID]; !ok {
		return model.ErrNotFound
	}
	for _, a := range r.s.appointments {
		if a.EmployerID == appointment.EmployerID && a.IsActive() && a.Overlaps(appointment.Date, appointment.End()) {
			return model.ErrSlotUnavailable
		}
	}
	cp := *appointment
	r.s.appointments[appointment.ID] = &cp
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r.s.hydrateAppointment(a), nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return r.filter(func(a *model.Appointment) bool {
		if filters == nil {
			return true
		}
		if filters.ClientID != nil && a.ClientID != *filters.ClientID {
			return false
		}
		if filters.EmployerID != nil && a.EmployerID != *filters.EmployerID {
			return false
		}
		if filters.Status != "" && a.Status != filters.Status {
			return false
		}
		if filters.From != nil && a.Date.Before(*filters.From) {
			return false
		}
		if filters.To != nil && !a.Date.Before(*filters.To) {
			return false
		}
		return true
	}, true), nil
}

func (r *appointmentRepository) ListActiveForEmployer(ctx context.Context, employerID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return r.filter(func(a *model.Appointment) bool {
		return a.EmployerID == employerID && a.IsActive() && a.Overlaps(from, to)
	}, false), nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, reason *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok || a.Status != from {
		return model.ErrInvalidTransition
	}
	a.Status = to
	if reason != nil {
		v := *reason
		a.CancelReason = &v
	}
	a.UpdatedAt = r.s.now()
	return nil
}

func (r *appointmentRepository) SaveReview(ctx context.Context, id uuid.UUID, rating int, feedback string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok || a.Status != model.AppointmentStatusCompleted || a.Rating != nil {
		return model.ErrAlreadyReviewed
	}
	a.Rating = &rating
	a.Feedback = &feedback
	a.UpdatedAt = r.s.now()
	return nil
}

func (r *appointmentRepository) RatingSummary(ctx context.Context, employerID uuid.UUID) (model.RatingSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var summary model.RatingSummary
	total := 0
	for _, a := range r.s.appointments {
		if a.EmployerID == employerID && a.Rating != nil {
			summary.Count++
			total += *a.Rating
		}
	}
	if summary.Count > 0 {
		summary.Average = float64(total) / float64(summary.Count)
	}
	return summary, nil
}

func (r *appointmentRepository) MarkPaid(ctx context.Context, id uuid.UUID, method model.PaymentMethod, reference *string, paid bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return false, model.ErrNotFound
	}
	if a.IsPaid {
		return false, nil
	}
	a.PaymentMethod = method
	a.PaymentReference = reference
	a.IsPaid = paid
	a.UpdatedAt = r.s.now()
	return paid, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepository) ListDueForCompletion(ctx context.Context, before time.Time) ([]*model.Appointment, error) {
	return r.filter(func(a *model.Appointment) bool {
		return a.Status == model.AppointmentStatusAccepted && !a.End().After(before)
	}, false), nil
}

func (r *appointmentRepository) ClaimDueForReminder(ctx context.Context, from, to, at time.Time) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if a.Status != model.AppointmentStatusAccepted || a.ReminderSentAt != nil ||
			a.Date.Before(from) || !a.Date.Before(to) {
			continue
		}
		stamp := at
		a.ReminderSentAt = &stamp
		out = append(out, r.s.hydrateAppointment(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *appointmentRepository) ListExpiredPending(ctx context.Context, before time.Time) ([]*model.Appointment, error) {
	return r.filter(func(a *model.Appointment) bool {
		return a.Status == model.AppointmentStatusPending && !a.Date.After(before)
	}, false), nil
}

func (r *appointmentRepository) filter(keep func(*model.Appointment) bool, newestFirst bool) []*model.Appointment {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if keep(a) {
			out = append(out, r.s.hydrateAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

type notificationRepository struct{ s *Store }

func (r *notificationRepository) CreateWithEvent(ctx context.Context, n *model.Notification, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *n
	r.s.notifications[n.ID] = &cp
	if event != nil {
		e := *event
		r.s.outbox[event.ID] = &e
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, recipientID uuid.UUID, filter *model.NotificationFilter) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Notification{}
	for _, n := range r.s.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if filter != nil && filter.UnreadOnly && n.IsRead {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return model.ErrNotFound
	}
	n.IsRead = true
	n.UpdatedAt = r.s.now()
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()

	due := []*model.OutboxEvent{}
	for _, e := range r.s.outbox {
		switch e.Status {
		case model.OutboxStatusPending:
			if e.RetryAt == nil || !e.RetryAt.After(now) {
				due = append(due, e)
			}
		case model.OutboxStatusProcessing:
			if e.LockedUntil != nil && e.LockedUntil.Before(now) {
				due = append(due, e)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	until := now.Add(lease)
	claimed := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.Status = model.OutboxStatusProcessing
		e.LockedUntil = &until
		e.UpdatedAt = now
		cp := *e
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent, now time.Time) {
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.LockedUntil = nil
		e.ErrorMessage = nil
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, retryAt time.Time, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent, now time.Time) {
		e.Status = model.OutboxStatusPending
		e.RetryCount = retryCount
		e.RetryAt = &retryAt
		e.ErrorMessage = &errMsg
		e.LockedUntil = nil
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent, now time.Time) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.LockedUntil = nil
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			count++
		}
	}
	return count, nil
}

func (r *outboxRepository) update(id uuid.UUID, fn func(*model.OutboxEvent, time.Time)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return model.ErrNotFound
	}
	now := r.s.now()
	fn(e, now)
	e.UpdatedAt = now
	return nil
}

func sortByRating(employers []*model.Employer) {
	sort.SliceStable(employers, func(i, j int) bool {
		if employers[i].AverageRating != employers[j].AverageRating {
			return employers[i].AverageRating > employers[j].AverageRating
		}
		return employers[i].CreatedAt.Before(employers[j].CreatedAt)
	})
}

func sortServices(services []*model.Service) {
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
}

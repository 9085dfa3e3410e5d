package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Availability is a recurring weekly window in which an employer accepts bookings.
// Times are "HH:MM" wall-clock values in the booking location.
type Availability struct {
	Base
	EmployerID  uuid.UUID `json:"employer_id" db:"employer_id"`
	DayOfWeek   int       `json:"day_of_week" db:"day_of_week"`
	StartTime   string    `json:"start_time" db:"start_time"`
	EndTime     string    `json:"end_time" db:"end_time"`
	IsAvailable bool      `json:"is_available" db:"is_available"`
}

// Bounds returns the window as minutes since midnight.
func (a *Availability) Bounds() (start, end int, err error) {
	if start, err = ParseClock(a.StartTime); err != nil {
		return 0, 0, err
	}
	if end, err = ParseClock(a.EndTime); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Validate checks the weekday range and that the window is non-empty.
func (a *Availability) Validate() error {
	if a.DayOfWeek < 0 || a.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be between 0 and 6")
	}
	start, end, err := a.Bounds()
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("start_time must be before end_time")
	}
	return nil
}

// Overlaps reports whether two windows share a weekday and any minute.
func (a *Availability) Overlaps(b *Availability) bool {
	if a.DayOfWeek != b.DayOfWeek {
		return false
	}
	as, ae, err := a.Bounds()
	if err != nil {
		return false
	}
	bs, be, err := b.Bounds()
	if err != nil {
		return false
	}
	return as < be && bs < ae
}

// On returns the concrete start and end of the window on the given day.
func (a *Availability) On(day time.Time) (time.Time, time.Time, error) {
	start, end, err := a.Bounds()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return clockOn(day, start), clockOn(day, end), nil
}

func clockOn(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

// ParseClock parses "HH:MM" into minutes since midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	if s == "24:00" {
		return 24 * 60, nil
	}
	// Stored values compare as strings, so only zero-padded HH:MM is accepted.
	if len(s) != len("15:04") {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type AvailabilityRequest struct {
	DayOfWeek   *int   `json:"day_of_week" binding:"required,weekday"`
	StartTime   string `json:"start_time" binding:"required,hhmm"`
	EndTime     string `json:"end_time" binding:"required,hhmm"`
	IsAvailable *bool  `json:"is_available"`
}

// ToModel builds an Availability for employerID.
func (r *AvailabilityRequest) ToModel(employerID uuid.UUID) *Availability {
	a := &Availability{
		EmployerID:  employerID,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		IsAvailable: true,
	}
	if r.DayOfWeek != nil {
		a.DayOfWeek = *r.DayOfWeek
	}
	if r.IsAvailable != nil {
		a.IsAvailable = *r.IsAvailable
	}
	return a
}

type ReplaceAvailabilityRequest struct {
	Availabilities []AvailabilityRequest `json:"availabilities" binding:"dive"`
}

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s TimeSlot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

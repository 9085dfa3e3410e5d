package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		role     Role
		edge     bool
		allowed  bool
	}{
		{AppointmentStatusPending, AppointmentStatusAccepted, RoleEmployer, true, true},
		{AppointmentStatusPending, AppointmentStatusAccepted, RoleClient, true, false},
		{AppointmentStatusPending, AppointmentStatusRejected, RoleEmployer, true, true},
		{AppointmentStatusPending, AppointmentStatusCancelled, RoleClient, true, true},
		{AppointmentStatusPending, AppointmentStatusCompleted, RoleEmployer, false, false},
		{AppointmentStatusAccepted, AppointmentStatusCompleted, RoleEmployer, true, true},
		{AppointmentStatusAccepted, AppointmentStatusCompleted, RoleClient, true, false},
		{AppointmentStatusAccepted, AppointmentStatusCancelled, RoleEmployer, true, true},
		{AppointmentStatusAccepted, AppointmentStatusRejected, RoleEmployer, false, false},
		{AppointmentStatusCompleted, AppointmentStatusCancelled, RoleClient, false, false},
		{AppointmentStatusCancelled, AppointmentStatusPending, RoleAdmin, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to)+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.edge, CanTransition(tt.from, tt.to))
			assert.Equal(t, tt.allowed, TransitionAllowed(tt.from, tt.to, tt.role))
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, AppointmentStatusPending.Terminal())
	assert.False(t, AppointmentStatusAccepted.Terminal())
	assert.True(t, AppointmentStatusCompleted.Terminal())
	assert.True(t, AppointmentStatusRejected.Terminal())
	assert.True(t, AppointmentStatusCancelled.Terminal())
}

func TestQuoteAmount(t *testing.T) {
	rate := decimal.RequireFromString("25.50")
	assert.True(t, QuoteAmount(rate, 60).Equal(decimal.RequireFromString("25.50")))
	assert.True(t, QuoteAmount(rate, 90).Equal(decimal.RequireFromString("38.25")))
	assert.True(t, QuoteAmount(decimal.RequireFromString("10"), 20).Equal(decimal.RequireFromString("3.33")))
	assert.True(t, QuoteAmount(decimal.Zero, 120).IsZero())
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 1440, m)

	for _, bad := range []string{"", "9h", "9:00", "09:5", "25:00", "12:60", "noon"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestAvailabilityValidate(t *testing.T) {
	ok := &Availability{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"}
	assert.NoError(t, ok.Validate())

	assert.Error(t, (&Availability{DayOfWeek: 7, StartTime: "09:00", EndTime: "17:00"}).Validate())
	assert.Error(t, (&Availability{DayOfWeek: 1, StartTime: "17:00", EndTime: "09:00"}).Validate())
	assert.Error(t, (&Availability{DayOfWeek: 1, StartTime: "09:00", EndTime: "09:00"}).Validate())
	assert.Error(t, (&Availability{DayOfWeek: 1, StartTime: "9am", EndTime: "17:00"}).Validate())
	assert.Error(t, (&Availability{DayOfWeek: 1, StartTime: "9:00", EndTime: "17:00"}).Validate())
}

func TestAvailabilityOverlaps(t *testing.T) {
	morning := &Availability{DayOfWeek: 2, StartTime: "08:00", EndTime: "12:00"}

	assert.True(t, morning.Overlaps(&Availability{DayOfWeek: 2, StartTime: "11:00", EndTime: "13:00"}))
	assert.True(t, morning.Overlaps(&Availability{DayOfWeek: 2, StartTime: "09:00", EndTime: "10:00"}))
	assert.False(t, morning.Overlaps(&Availability{DayOfWeek: 2, StartTime: "12:00", EndTime: "14:00"}), "touching windows do not overlap")
	assert.False(t, morning.Overlaps(&Availability{DayOfWeek: 3, StartTime: "08:00", EndTime: "12:00"}))
}

func TestAvailabilityOn(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	w := &Availability{DayOfWeek: 1, StartTime: "09:00", EndTime: "24:00"}
	start, end, err := w.On(day)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, loc), end)
}

func TestAvailabilityRequestDefaults(t *testing.T) {
	employerID := uuid.New()
	day := 0
	req := &AvailabilityRequest{DayOfWeek: &day, StartTime: "10:00", EndTime: "12:00"}

	a := req.ToModel(employerID)
	assert.Equal(t, employerID, a.EmployerID)
	assert.Equal(t, 0, a.DayOfWeek)
	assert.True(t, a.IsAvailable)

	off := false
	req.IsAvailable = &off
	assert.False(t, req.ToModel(employerID).IsAvailable)
}

func TestAppointmentEnd(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	apt := &Appointment{Date: start, DurationMinutes: 90}
	assert.Equal(t, start.Add(90*time.Minute), apt.End())
}

package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	"github.com/nazek/booking-api/internal/repository/memory"
	apperrors "github.com/nazek/booking-api/pkg/errors"
)

type countingCache struct {
	mu sync.Mutex
	n  int
}

func (c *countingCache) InvalidateEmployers() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func window(day int, start, end string) *model.Availability {
	return &model.Availability{DayOfWeek: day, StartTime: start, EndTime: end, IsAvailable: true}
}

func req(day int, start, end string) *model.AvailabilityRequest {
	return &model.AvailabilityRequest{DayOfWeek: &day, StartTime: start, EndTime: end}
}

func TestGenerateSlots(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		windows  []*model.Availability
		step     time.Duration
		duration time.Duration
		want     []string
	}{
		{
			name:     "hour slots every half hour",
			windows:  []*model.Availability{window(1, "09:00", "11:00")},
			step:     30 * time.Minute,
			duration: time.Hour,
			want:     []string{"09:00", "09:30", "10:00"},
		},
		{
			name:     "slot must end inside the window",
			windows:  []*model.Availability{window(1, "09:00", "10:15")},
			step:     30 * time.Minute,
			duration: time.Hour,
			want:     []string{"09:00"},
		},
		{
			name:     "duration longer than window",
			windows:  []*model.Availability{window(1, "09:00", "09:30")},
			step:     30 * time.Minute,
			duration: time.Hour,
			want:     []string{},
		},
		{
			name:     "other weekdays ignored",
			windows:  []*model.Availability{window(2, "09:00", "17:00")},
			step:     30 * time.Minute,
			duration: time.Hour,
			want:     []string{},
		},
		{
			name: "unavailable windows ignored",
			windows: []*model.Availability{
				{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsAvailable: false},
			},
			step:     30 * time.Minute,
			duration: time.Hour,
			want:     []string{},
		},
		{
			name:     "multiple windows are merged in order",
			windows:  []*model.Availability{window(1, "14:00", "15:00"), window(1, "08:00", "09:00")},
			step:     time.Hour,
			duration: time.Hour,
			want:     []string{"08:00", "14:00"},
		},
		{
			name:     "window until midnight",
			windows:  []*model.Availability{window(1, "23:00", "24:00")},
			step:     30 * time.Minute,
			duration: 30 * time.Minute,
			want:     []string{"23:00", "23:30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := GenerateSlots(tt.windows, monday, tt.step, tt.duration)
			got := make([]string, 0, len(slots))
			for _, s := range slots {
				assert.Equal(t, tt.duration, s.End.Sub(s.Start))
				got = append(got, s.Start.Format("15:04"))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateSlotsHonoursLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	slots := GenerateSlots([]*model.Availability{window(1, "09:00", "10:00")}, day, 30*time.Minute, time.Hour)
	require.Len(t, slots, 1)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), slots[0].Start.UTC())
}

type fixture struct {
	svc      *Service
	repos    *repository.Repositories
	cache    *countingCache
	employer model.Identity
	emp      *model.Employer
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos, _ := memory.NewRepositories()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	user := &model.User{Base: model.NewBase(now), Email: "eve@example.com", Role: model.RoleEmployer, IsActive: true}
	emp := &model.Employer{Base: model.NewBase(now), HourlyRate: decimal.NewFromInt(30), IsActive: true}
	require.NoError(t, repos.Users.CreateWithProfile(context.Background(), user, nil, emp))

	f := &fixture{
		repos:    repos,
		cache:    &countingCache{},
		employer: model.Identity{UserID: user.ID, Role: model.RoleEmployer},
		now:      now,
	}
	f.emp, _ = repos.Employers.GetByUserID(context.Background(), user.ID)
	f.svc = NewService(repos.Availability, repos.Employers, repos.Appointments, f.cache, Config{}, zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestAddAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Add(ctx, f.employer, f.emp.ID, req(1, "09:00", "12:00"))
	require.NoError(t, err)
	assert.Equal(t, f.emp.ID, w.EmployerID)
	assert.True(t, w.IsAvailable)
	assert.Equal(t, 1, f.cache.n)

	_, err = f.svc.Add(ctx, f.employer, f.emp.ID, req(1, "11:00", "13:00"))
	assert.ErrorIs(t, err, model.ErrOverlappingWindow)

	_, err = f.svc.Add(ctx, f.employer, f.emp.ID, req(1, "12:00", "13:00"))
	assert.NoError(t, err)

	_, err = f.svc.Add(ctx, f.employer, f.emp.ID, req(2, "13:00", "12:00"))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)

	windows, err := f.svc.List(ctx, f.emp.ID)
	require.NoError(t, err)
	assert.Len(t, windows, 2)
}

func TestConcurrentOverlappingAddsKeepOne(t *testing.T) {
	f := newFixture(t)

	var (
		wg       sync.WaitGroup
		created  atomic.Int32
		rejected atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			<-start
			begin := fmt.Sprintf("09:%02d", offset)
			_, err := f.svc.Add(context.Background(), f.employer, f.emp.ID, req(3, begin, "12:00"))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, model.ErrOverlappingWindow):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
	assert.EqualValues(t, 9, rejected.Load())
	windows, err := f.repos.Availability.ListByEmployer(context.Background(), f.emp.ID)
	require.NoError(t, err)
	assert.Len(t, windows, 1)
}

func TestAvailabilityOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := model.Identity{UserID: uuid.New(), Role: model.RoleEmployer}
	admin := model.Identity{UserID: uuid.New(), Role: model.RoleAdmin}

	_, err := f.svc.Add(ctx, stranger, f.emp.ID, req(1, "09:00", "12:00"))
	assert.ErrorIs(t, err, model.ErrForbidden)

	w, err := f.svc.Add(ctx, admin, f.emp.ID, req(1, "09:00", "12:00"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, stranger, f.emp.ID, w.ID), model.ErrForbidden)
	assert.NoError(t, f.svc.Delete(ctx, f.employer, f.emp.ID, w.ID))

	err = f.svc.Delete(ctx, f.employer, f.emp.ID, w.ID)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)

	_, err = f.svc.Add(ctx, f.employer, uuid.New(), req(1, "09:00", "12:00"))
	require.ErrorAs(t, err, &appErr)
}

func TestReplaceAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, f.employer, f.emp.ID, req(3, "09:00", "12:00"))
	require.NoError(t, err)

	windows, err := f.svc.Replace(ctx, f.employer, f.emp.ID, []model.AvailabilityRequest{
		*req(1, "09:00", "12:00"),
		*req(1, "13:00", "17:00"),
		*req(5, "10:00", "14:00"),
	})
	require.NoError(t, err)
	assert.Len(t, windows, 3)
	for _, w := range windows {
		assert.NotEqual(t, 3, w.DayOfWeek)
	}

	_, err = f.svc.Replace(ctx, f.employer, f.emp.ID, []model.AvailabilityRequest{
		*req(1, "09:00", "12:00"),
		*req(1, "11:00", "13:00"),
	})
	assert.ErrorIs(t, err, model.ErrOverlappingWindow)

	// A rejected replacement leaves the schedule untouched.
	windows, err = f.svc.List(ctx, f.emp.ID)
	require.NoError(t, err)
	assert.Len(t, windows, 3)

	windows, err = f.svc.Replace(ctx, f.employer, f.emp.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestAvailableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Add(ctx, f.employer, f.emp.ID, req(1, "09:00", "12:00"))
	require.NoError(t, err)

	slots, err := f.svc.AvailableSlots(ctx, f.emp.ID, monday, 60)
	require.NoError(t, err)
	assert.Len(t, slots, 5)

	booked := &model.Appointment{
		Base:            model.NewBase(f.now),
		EmployerID:      f.emp.ID,
		Date:            monday.Add(10 * time.Hour),
		DurationMinutes: 60,
		Status:          model.AppointmentStatusAccepted,
	}
	require.NoError(t, f.repos.Appointments.CreateIfAvailable(ctx, booked))

	slots, err = f.svc.AvailableSlots(ctx, f.emp.ID, monday, 60)
	require.NoError(t, err)
	starts := []string{}
	for _, s := range slots {
		starts = append(starts, s.Start.Format("15:04"))
	}
	assert.Equal(t, []string{"09:00", "11:00"}, starts)

	// Cancelled appointments free their slot.
	require.NoError(t, f.repos.Appointments.UpdateStatus(ctx, booked.ID, model.AppointmentStatusAccepted, model.AppointmentStatusCancelled, nil))
	slots, err = f.svc.AvailableSlots(ctx, f.emp.ID, monday, 60)
	require.NoError(t, err)
	assert.Len(t, slots, 5)

	// Past slots are dropped.
	f.now = monday.Add(10*time.Hour + time.Minute)
	slots, err = f.svc.AvailableSlots(ctx, f.emp.ID, monday, 60)
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	_, err = f.svc.AvailableSlots(ctx, f.emp.ID, monday, 5)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)

	_, err = f.svc.AvailableSlots(ctx, uuid.New(), monday, 60)
	require.ErrorAs(t, err, &appErr)
}

func TestCheckWithinAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Add(ctx, f.employer, f.emp.ID, req(1, "09:00", "12:00"))
	require.NoError(t, err)

	assert.NoError(t, f.svc.CheckWithinAvailability(ctx, f.emp.ID, monday.Add(9*time.Hour), 60))
	assert.NoError(t, f.svc.CheckWithinAvailability(ctx, f.emp.ID, monday.Add(11*time.Hour), 60))
	assert.ErrorIs(t, f.svc.CheckWithinAvailability(ctx, f.emp.ID, monday.Add(11*time.Hour+30*time.Minute), 60), model.ErrOutsideAvailability)
	assert.ErrorIs(t, f.svc.CheckWithinAvailability(ctx, f.emp.ID, monday.Add(8*time.Hour), 60), model.ErrOutsideAvailability)
	assert.ErrorIs(t, f.svc.CheckWithinAvailability(ctx, f.emp.ID, monday.AddDate(0, 0, 1).Add(9*time.Hour), 60), model.ErrOutsideAvailability)
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	svc := NewService(nil, nil, nil, nil, Config{Location: loc}, zerolog.Nop())

	day, err := svc.ParseDate("2026-07-14")
	require.NoError(t, err)
	assert.Equal(t, loc, day.Location())
	assert.Equal(t, 14, day.Day())

	_, err = svc.ParseDate("14/07/2026")
	assert.Error(t, err)
}

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazek/booking-api/internal/model"
)

func newEvent(t *testing.T, created time.Time) *model.OutboxEvent {
	t.Helper()
	e, err := model.NewOutboxEvent(model.EventNotificationCreated, map[string]string{"k": "v"}, created)
	require.NoError(t, err)
	return e
}

func TestClaimPendingLease(t *testing.T) {
	repos, store := NewRepositories()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	older := newEvent(t, now.Add(-2*time.Minute))
	newer := newEvent(t, now.Add(-time.Minute))
	store.AddOutboxEvent(newer)
	store.AddOutboxEvent(older)

	claimed, err := repos.Outbox.ClaimPending(ctx, 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, older.ID, claimed[0].ID, "oldest first")
	assert.Equal(t, model.OutboxStatusProcessing, claimed[0].Status)

	claimed, err = repos.Outbox.ClaimPending(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, newer.ID, claimed[0].ID)

	// Both leased: nothing more to claim.
	claimed, err = repos.Outbox.ClaimPending(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	// An expired lease is reclaimed.
	now = now.Add(31 * time.Second)
	claimed, err = repos.Outbox.ClaimPending(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
}

func TestOutboxRetryAndCleanup(t *testing.T) {
	repos, store := NewRepositories()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	e := newEvent(t, now)
	store.AddOutboxEvent(e)

	_, err := repos.Outbox.ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.NoError(t, repos.Outbox.MarkRetry(ctx, e.ID, 1, now.Add(10*time.Second), "smtp down"))

	claimed, err := repos.Outbox.ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed, "not due before retry_at")

	now = now.Add(10 * time.Second)
	claimed, err = repos.Outbox.ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 1, claimed[0].RetryCount)

	require.NoError(t, repos.Outbox.MarkProcessed(ctx, e.ID))
	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
	assert.Nil(t, events[0].ErrorMessage)

	n, err := repos.Outbox.DeleteProcessedBefore(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repos.Outbox.DeleteProcessedBefore(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Empty(t, store.OutboxEvents())

	assert.ErrorIs(t, repos.Outbox.MarkFailed(ctx, uuid.New(), "x"), model.ErrNotFound)
}

func TestCreateIfAvailableSerializesOverlaps(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()
	now := time.Now()

	user := &model.User{Base: model.NewBase(now), Email: "e@example.com", Role: model.RoleEmployer, IsActive: true}
	emp := &model.Employer{Base: model.NewBase(now), HourlyRate: decimal.NewFromInt(10), IsActive: true}
	require.NoError(t, repos.Users.CreateWithProfile(ctx, user, nil, emp))

	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			apt := &model.Appointment{
				Base:            model.NewBase(now),
				EmployerID:      emp.ID,
				Date:            start.Add(time.Duration(offset) * time.Minute),
				DurationMinutes: 60,
				Status:          model.AppointmentStatusPending,
			}
			if err := repos.Appointments.CreateIfAvailable(ctx, apt); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, model.ErrSlotUnavailable)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestUsersEmailIsCaseInsensitive(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()
	now := time.Now()

	u := &model.User{Base: model.NewBase(now), Email: "ada@example.com", Role: model.RoleClient, IsActive: true}
	require.NoError(t, repos.Users.CreateWithProfile(ctx, u, &model.Client{Base: model.NewBase(now)}, nil))

	dup := &model.User{Base: model.NewBase(now), Email: "ADA@example.com", Role: model.RoleClient, IsActive: true}
	assert.ErrorIs(t, repos.Users.CreateWithProfile(ctx, dup, &model.Client{Base: model.NewBase(now)}, nil), model.ErrAlreadyExists)

	got, err := repos.Users.GetByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	client, err := repos.Clients.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", client.Email)
}

func TestRevokedTokensExpire(t *testing.T) {
	repos, store := NewRepositories()
	ctx := context.Background()
	now := time.Now()
	store.SetClock(func() time.Time { return now })

	first, err := repos.Tokens.Revoke(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	second, err := repos.Tokens.Revoke(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second, "already revoked")

	revoked, err := repos.Tokens.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = repos.Tokens.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// An expired entry can be revoked again.
	again, err := repos.Tokens.Revoke(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

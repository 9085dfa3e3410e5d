package profile

import (
	"context"
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

type countingCache struct{ n int }

func (c *countingCache) InvalidateEmployers() { c.n++ }

func setup(t *testing.T) (*Service, *repository.Repositories, *countingCache) {
	t.Helper()
	repos, _ := memory.NewRepositories()
	cache := &countingCache{}
	return NewService(repos.Users, repos.Clients, repos.Employers, repos.Services, cache, zerolog.Nop()), repos, cache
}

func seedUser(t *testing.T, repos *repository.Repositories, role model.Role) uuid.UUID {
	t.Helper()
	now := time.Now()
	user := &model.User{Base: model.NewBase(now), Email: uuid.NewString() + "@example.com", FirstName: "Jo", LastName: "Doe", Role: role, IsActive: true}
	var (
		client   *model.Client
		employer *model.Employer
	)
	if role == model.RoleEmployer {
		employer = &model.Employer{Base: model.NewBase(now), HourlyRate: decimal.Zero, IsActive: true}
	} else {
		client = &model.Client{Base: model.NewBase(now)}
	}
	require.NoError(t, repos.Users.CreateWithProfile(context.Background(), user, client, employer))
	return user.ID
}

func ptr[T any](v T) *T { return &v }

func TestUpdateEmployerProfile(t *testing.T) {
	svc, repos, cache := setup(t)
	ctx := context.Background()
	userID := seedUser(t, repos, model.RoleEmployer)

	plumbing := &model.Service{Base: model.NewBase(time.Now()), Name: "Plumbing", IsActive: true}
	require.NoError(t, repos.Services.Create(ctx, plumbing))

	rate := decimal.RequireFromString("32.505")
	emp, err := svc.UpdateEmployerProfile(ctx, userID, &model.UpdateEmployerRequest{
		FirstName:   ptr("Joanna"),
		ServiceID:   &plumbing.ID,
		Description: ptr("Leaks and boilers"),
		HourlyRate:  &rate,
	})
	require.NoError(t, err)
	assert.True(t, emp.HourlyRate.Equal(decimal.RequireFromString("32.51")))
	assert.Equal(t, &plumbing.ID, emp.ServiceID)
	assert.Equal(t, "Leaks and boilers", emp.Description)
	assert.Equal(t, "Joanna Doe", emp.Name)
	require.NotNil(t, emp.ServiceName)
	assert.Equal(t, "Plumbing", *emp.ServiceName)
	assert.Equal(t, 1, cache.n)
}

func TestUpdateEmployerProfileRejects(t *testing.T) {
	svc, repos, cache := setup(t)
	ctx := context.Background()
	userID := seedUser(t, repos, model.RoleEmployer)

	retired := &model.Service{Base: model.NewBase(time.Now()), Name: "Retired", IsActive: false}
	require.NoError(t, repos.Services.Create(ctx, retired))

	negative := decimal.NewFromInt(-1)
	unknown := uuid.New()
	tests := []struct {
		name string
		req  *model.UpdateEmployerRequest
	}{
		{"negative rate", &model.UpdateEmployerRequest{HourlyRate: &negative}},
		{"unknown service", &model.UpdateEmployerRequest{ServiceID: &unknown}},
		{"inactive service", &model.UpdateEmployerRequest{ServiceID: &retired.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateEmployerProfile(ctx, userID, tt.req)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
		})
	}
	assert.Zero(t, cache.n)

	clientID := seedUser(t, repos, model.RoleClient)
	_, err := svc.GetEmployerProfile(ctx, clientID)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestUpdateClientProfile(t *testing.T) {
	svc, repos, _ := setup(t)
	ctx := context.Background()
	userID := seedUser(t, repos, model.RoleClient)

	client, err := svc.UpdateClientProfile(ctx, userID, &model.UpdateClientRequest{
		Phone:   ptr(" 0600000000 "),
		Address: ptr("12 rue de la Paix"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0600000000", client.Phone)
	assert.Equal(t, "12 rue de la Paix", client.Address)

	client, err = svc.GetClientProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Jo Doe", client.Name)
}

package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/repository"
	"github.com/nazek/booking-api/internal/repository/memory"
	"github.com/nazek/booking-api/pkg/auth"
	apperrors "github.com/nazek/booking-api/pkg/errors"
	"github.com/nazek/booking-api/pkg/security"
)

func newTestService(t *testing.T) (*Service, *repository.Repositories) {
	t.Helper()
	repos, _ := memory.NewRepositories()
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:     "access-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		Issuer:     "nazek-test",
	})
	svc := NewService(repos.Users, repos.Tokens, jwtSvc, security.NewBcryptHasher(4), 24*time.Hour, zerolog.Nop())
	return svc, repos
}

func registerRequest(email string, role model.Role) *model.RegisterRequest {
	return &model.RegisterRequest{
		Email:     email,
		Password:  "correct-horse",
		FirstName: "Sam",
		LastName:  "Tester",
		Role:      role,
	}
}

func TestRegister(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerRequest("  Sam@Example.COM ", model.RoleEmployer))
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.Access)
	assert.NotEmpty(t, resp.Refresh)
	assert.NotEqual(t, "correct-horse", resp.User.PasswordHash)

	emp, err := repos.Employers.GetByUserID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.True(t, emp.IsActive)
	assert.True(t, emp.HourlyRate.IsZero())

	_, err = repos.Clients.GetByUserID(ctx, resp.User.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	identity, err := svc.Authenticate(ctx, resp.Access)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, identity.UserID)
	assert.Equal(t, model.RoleEmployer, identity.Role)
}

func TestRegisterRejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerRequest("SAM@example.com", model.RoleClient))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)

	_, err = svc.Register(ctx, registerRequest("root@example.com", model.RoleAdmin))
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)

	short := registerRequest("short@example.com", model.RoleClient)
	short.Password = "abc"
	_, err = svc.Register(ctx, short)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	resp, err := svc.Login(ctx, &model.LoginRequest{Email: "Sam@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotNil(t, resp.User.LastLoginAt)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "sam@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestLoginLockout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	bad := &model.LoginRequest{Email: "sam@example.com", Password: "wrong"}
	for i := 0; i < maxLoginAttempts; i++ {
		_, err = svc.Login(ctx, bad)
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	good := &model.LoginRequest{Email: "sam@example.com", Password: "correct-horse"}
	_, err = svc.Login(ctx, good)
	assert.ErrorIs(t, err, model.ErrAccountLocked)

	now = now.Add(lockoutDuration + time.Second)
	_, err = svc.Login(ctx, good)
	assert.NoError(t, err)
}

func TestConcurrentLoginFailuresAllCount(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < maxLoginAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = svc.Login(ctx, &model.LoginRequest{Email: "sam@example.com", Password: "wrong"})
		}()
	}
	close(start)
	wg.Wait()

	user, err := repos.Users.GetByID(ctx, reg.User.ID)
	require.NoError(t, err)
	require.NotNil(t, user.LockedUntil)
	assert.Zero(t, user.LoginAttempts)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "sam@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, model.ErrAccountLocked)
}

func TestLoginSuccessResetsAttempts(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	for i := 0; i < maxLoginAttempts-1; i++ {
		_, _ = svc.Login(ctx, &model.LoginRequest{Email: "sam@example.com", Password: "wrong"})
	}
	_, err = svc.Login(ctx, &model.LoginRequest{Email: "sam@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	user, err := repos.Users.GetByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Zero(t, user.LoginAttempts)
	assert.Nil(t, user.LockedUntil)
}

func TestRefreshRotation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, reg.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, reg.Refresh, rotated.Refresh)

	_, err = svc.Refresh(ctx, reg.Refresh)
	assert.ErrorIs(t, err, model.ErrTokenRevoked)

	// An access token is not a refresh token.
	_, err = svc.Refresh(ctx, reg.Access)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)

	require.NoError(t, svc.Logout(ctx, rotated.Refresh))
	_, err = svc.Refresh(ctx, rotated.Refresh)
	assert.ErrorIs(t, err, model.ErrTokenRevoked)

	assert.Error(t, svc.Logout(ctx, "garbage"))
}

func TestConcurrentRefreshRotatesOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		successes atomic.Int32
		replays   atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Refresh(ctx, reg.Refresh)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, model.ErrTokenRevoked):
				replays.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, callers-1, replays.Load())
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, reg.Refresh)
	assert.Error(t, err)
	_, err = svc.Authenticate(ctx, "not.a.token")
	assert.Error(t, err)
}

func TestUpdateUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerRequest("sam@example.com", model.RoleClient))
	require.NoError(t, err)

	phone := "+33 6 12 34 56 78"
	user, err := svc.UpdateUser(ctx, reg.User.ID, &model.UpdateUserRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, user.Phone)
	assert.Equal(t, "Sam", user.FirstName)

	got, err := svc.GetUser(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, phone, got.Phone)
}

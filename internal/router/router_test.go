package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazek/booking-api/config"
	"github.com/nazek/booking-api/internal/app"
	appointmentHandler "github.com/nazek/booking-api/internal/handler/appointment"
	authHandler "github.com/nazek/booking-api/internal/handler/auth"
	catalogHandler "github.com/nazek/booking-api/internal/handler/catalog"
	clientHandler "github.com/nazek/booking-api/internal/handler/client"
	employerHandler "github.com/nazek/booking-api/internal/handler/employer"
	healthHandler "github.com/nazek/booking-api/internal/handler/health"
	notificationHandler "github.com/nazek/booking-api/internal/handler/notification"
	"github.com/nazek/booking-api/internal/middleware"
	"github.com/nazek/booking-api/internal/router"
)

// TestResponse wraps the API envelope for assertions.
type TestResponse struct {
	Code    int
	Status  string
	Message string
	Data    map[string]interface{}
	RawData json.RawMessage
	Header  http.Header
}

func (r TestResponse) IsSuccess() bool {
	return r.Status == "success"
}

func (r TestResponse) GetString(key string) string {
	if r.Data == nil {
		return ""
	}
	if v, ok := r.Data[key].(string); ok {
		return v
	}
	return ""
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Mode: gin.TestMode, RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20},
		Database:   config.DatabaseConfig{Driver: "memory"},
		JWT:        config.JWTConfig{Secret: "test-secret", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour, Issuer: "nazek-test"},
		Booking:    config.BookingConfig{Timezone: "UTC", SlotStep: 30 * time.Minute, DefaultDuration: 60, CatalogCacheTTL: time.Minute},
		Payment:    config.PaymentConfig{Provider: "none", Currency: "eur"},
		Monitoring: config.MonitoringConfig{PrometheusEnabled: true, Namespace: "nazek_test"},
		Security:   config.SecurityConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	a, err := app.New(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	svc := a.Services
	r, err := router.NewRouter(middleware.NewAuthMiddleware(svc.Auth), router.RouterConfig{
		Mode:           gin.TestMode,
		CORSConfig:     middleware.CORSConfig{AllowOrigins: []string{"http://localhost:5173"}},
		RequestTimeout: 5 * time.Second,
		MaxBodySize:    1 << 20,
		MetricsPrefix:  "nazek_test",
		Registerer:     a.Registry,
		Logger:         zerolog.Nop(),
	},
		healthHandler.NewHandler(a.Repos.Health, a.Registry),
		authHandler.NewHandler(svc.Auth),
		catalogHandler.NewHandler(svc.Catalog),
		employerHandler.NewHandler(svc.Catalog, svc.Profile, svc.Availability),
		clientHandler.NewHandler(svc.Profile),
		appointmentHandler.NewHandler(svc.Appointment),
		notificationHandler.NewHandler(svc.Notification),
	)
	require.NoError(t, err)
	r.Setup()

	return &testServer{t: t, engine: r.Engine()}
}

func (s *testServer) makeRequest(method, path string, body interface{}, token string) TestResponse {
	s.t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	resp := TestResponse{Code: w.Code, Header: w.Header()}
	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		resp.RawData = w.Body.Bytes()
		return resp
	}
	resp.Status = envelope.Status
	resp.Message = envelope.Message
	resp.RawData = envelope.Data
	_ = json.Unmarshal(envelope.Data, &resp.Data)
	return resp
}

// register signs up a user and returns the access token and user id.
func (s *testServer) register(role, email string) (string, string) {
	s.t.Helper()
	resp := s.makeRequest(http.MethodPost, "/auth/register", map[string]interface{}{
		"email":      email,
		"password":   "password123",
		"first_name": "Test",
		"last_name":  role,
		"role":       role,
	}, "")
	require.Equal(s.t, http.StatusCreated, resp.Code, resp.Message)
	user := resp.Data["user"].(map[string]interface{})
	return resp.GetString("access"), user["id"].(string)
}

func bookingDay() time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 8)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.makeRequest(http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1.0", resp.Header.Get("X-API-Version"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = s.makeRequest(http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = s.makeRequest(http.MethodGet, "/health/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, string(resp.RawData), "nazek_test_")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	token, userID := s.register("client", "Ana@Example.com")
	assert.NotEmpty(t, token)

	// Duplicate email, case-insensitive
	resp := s.makeRequest(http.MethodPost, "/auth/register", map[string]interface{}{
		"email": "ana@example.com", "password": "password123",
		"first_name": "Ana", "last_name": "Dup", "role": "client",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.Code)

	// Login
	resp = s.makeRequest(http.MethodPost, "/auth/login", map[string]interface{}{
		"email": "ana@example.com", "password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	refresh := resp.GetString("refresh")
	require.NotEmpty(t, refresh)

	resp = s.makeRequest(http.MethodPost, "/auth/login", map[string]interface{}{
		"email": "ana@example.com", "password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "error", resp.Status)

	// Current user
	resp = s.makeRequest(http.MethodGet, "/auth/user", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID, resp.GetString("id"))
	assert.Equal(t, "ana@example.com", resp.GetString("email"))
	assert.NotContains(t, string(resp.RawData), "password")

	resp = s.makeRequest(http.MethodPut, "/auth/user", map[string]interface{}{"first_name": "Anna"}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	assert.Equal(t, "Anna", resp.GetString("first_name"))

	// Refresh rotates; the old refresh token is revoked
	resp = s.makeRequest(http.MethodPost, "/auth/refresh", map[string]interface{}{"refresh": refresh}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	rotated := resp.GetString("refresh")
	assert.NotEmpty(t, rotated)

	resp = s.makeRequest(http.MethodPost, "/auth/refresh", map[string]interface{}{"refresh": refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = s.makeRequest(http.MethodPost, "/auth/logout", map[string]interface{}{"refresh": rotated}, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	resp = s.makeRequest(http.MethodPost, "/auth/refresh", map[string]interface{}{"refresh": rotated}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		body    map[string]interface{}
		message string
	}{
		{
			name:    "missing email",
			body:    map[string]interface{}{"password": "password123", "first_name": "A", "last_name": "B", "role": "client"},
			message: "email",
		},
		{
			name:    "bad role",
			body:    map[string]interface{}{"email": "a@b.co", "password": "password123", "first_name": "A", "last_name": "B", "role": "admin"},
			message: "role",
		},
		{
			name:    "short password",
			body:    map[string]interface{}{"email": "a@b.co", "password": "short", "first_name": "A", "last_name": "B", "role": "client"},
			message: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.makeRequest(http.MethodPost, "/auth/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Contains(t, resp.Message, tt.message)
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/appointments", "/notifications", "/clients/profile", "/employers/profile", "/auth/user"} {
		resp := s.makeRequest(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code, path)
	}

	resp := s.makeRequest(http.MethodGet, "/appointments", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	clientToken, _ := s.register("client", "client@example.com")
	resp = s.makeRequest(http.MethodGet, "/employers/profile", nil, clientToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.makeRequest(http.MethodPost, "/services", map[string]interface{}{"name": "Cleaning"}, clientToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	day := bookingDay()

	employerToken, _ := s.register("employer", "employer@example.com")
	clientToken, _ := s.register("client", "client@example.com")

	// Employer sets a rate and a weekly window on the booking day
	resp := s.makeRequest(http.MethodPut, "/employers/profile", map[string]interface{}{
		"hourly_rate": "40.00",
		"description": "Deep cleaning",
	}, employerToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	employerID := resp.GetString("id")
	require.NotEmpty(t, employerID)

	resp = s.makeRequest(http.MethodPost, "/employers/"+employerID+"/availabilities", map[string]interface{}{
		"day_of_week": int(day.Weekday()),
		"start_time":  "09:00",
		"end_time":    "17:00",
	}, employerToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)

	resp = s.makeRequest(http.MethodPost, "/employers/"+employerID+"/availabilities", map[string]interface{}{
		"day_of_week": int(day.Weekday()),
		"start_time":  "16:00",
		"end_time":    "18:00",
	}, employerToken)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = s.makeRequest(http.MethodPost, "/employers/"+employerID+"/availabilities", map[string]interface{}{
		"day_of_week": 9,
		"start_time":  "09:00",
		"end_time":    "10:00",
	}, employerToken)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// Public listing and slots
	resp = s.makeRequest(http.MethodGet, "/employers", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var employers []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.RawData, &employers))
	assert.Len(t, employers, 1)

	slotsPath := fmt.Sprintf("/employers/%s/slots?date=%s", employerID, day.Format("2006-01-02"))
	resp = s.makeRequest(http.MethodGet, slotsPath, nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	slots := resp.Data["slots"].([]interface{})
	before := len(slots)
	assert.Equal(t, 15, before)

	// Book 10:00 for an hour
	start := day.Add(10 * time.Hour)
	booking := map[string]interface{}{
		"employer_id":      employerID,
		"date":             start.Format(time.RFC3339),
		"duration_minutes": 60,
		"payment_method":   "cash",
	}
	resp = s.makeRequest(http.MethodPost, "/appointments", booking, clientToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	appointmentID := resp.GetString("id")
	assert.Equal(t, "pending", resp.GetString("status"))
	assert.True(t, decimal.RequireFromString(resp.GetString("total_amount")).Equal(decimal.NewFromInt(40)))

	// Same slot again
	resp = s.makeRequest(http.MethodPost, "/appointments", booking, clientToken)
	assert.Equal(t, http.StatusConflict, resp.Code)

	// Outside the window
	booking["date"] = day.Add(20 * time.Hour).Format(time.RFC3339)
	resp = s.makeRequest(http.MethodPost, "/appointments", booking, clientToken)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// Employers cannot book
	resp = s.makeRequest(http.MethodPost, "/appointments", booking, employerToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.makeRequest(http.MethodGet, slotsPath, nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Less(t, len(resp.Data["slots"].([]interface{})), before)

	// Both parties see the appointment
	for _, token := range []string{clientToken, employerToken} {
		resp = s.makeRequest(http.MethodGet, "/appointments/"+appointmentID, nil, token)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	// Client cannot accept, employer can
	resp = s.makeRequest(http.MethodPatch, "/appointments/"+appointmentID+"/status", map[string]interface{}{"status": "accepted"}, clientToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.makeRequest(http.MethodPatch, "/appointments/"+appointmentID+"/status", map[string]interface{}{"status": "accepted"}, employerToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	assert.Equal(t, "accepted", resp.GetString("status"))

	// Not completed yet, so no review
	resp = s.makeRequest(http.MethodPost, "/appointments/"+appointmentID+"/review", map[string]interface{}{"rating": 5, "feedback": "great"}, clientToken)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// Cash payment is recorded as due on site
	resp = s.makeRequest(http.MethodPost, "/appointments/"+appointmentID+"/payment", map[string]interface{}{"payment_method": "cash"}, clientToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	assert.Contains(t, resp.GetString("message"), "on site")

	// The client was told about the acceptance
	resp = s.makeRequest(http.MethodGet, "/notifications", nil, clientToken)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Data["notifications"])
	assert.EqualValues(t, 1, resp.Data["unread_count"])

	resp = s.makeRequest(http.MethodPost, "/notifications/read-all", nil, clientToken)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = s.makeRequest(http.MethodGet, "/notifications?unread=true", nil, clientToken)
	assert.EqualValues(t, 0, resp.Data["unread_count"])

	// Cancelling frees the slot again; deleting is then allowed
	resp = s.makeRequest(http.MethodPost, "/appointments/"+appointmentID+"/cancel", map[string]interface{}{"reason": "plans changed"}, clientToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	assert.Equal(t, "cancelled", resp.GetString("status"))

	resp = s.makeRequest(http.MethodGet, slotsPath, nil, "")
	assert.Len(t, resp.Data["slots"], before)

	resp = s.makeRequest(http.MethodDelete, "/appointments/"+appointmentID, nil, clientToken)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = s.makeRequest(http.MethodGet, "/appointments/"+appointmentID, nil, clientToken)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUnknownAppointmentAndBadID(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register("client", "client@example.com")

	resp := s.makeRequest(http.MethodGet, "/appointments/not-a-uuid", nil, token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.makeRequest(http.MethodGet, "/appointments/7b0f6a4e-5f4c-4d59-9a44-0d5f5d3c2b11", nil, token)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.makeRequest(http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

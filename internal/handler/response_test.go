package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/service/payment"
	apperrors "github.com/nazek/booking-api/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"app not found", apperrors.NotFound("appointment", model.ErrNotFound), http.StatusNotFound, "appointment not found"},
		{"app bad request", apperrors.BadRequest("date must be in the future", nil), http.StatusBadRequest, "date must be in the future"},
		{"wrapped sentinel", fmt.Errorf("failed to book: %w", model.ErrSlotUnavailable), http.StatusConflict, "slot unavailable"},
		{"transition", model.ErrInvalidTransition, http.StatusConflict, "invalid status transition"},
		{"declined", fmt.Errorf("%w: card_declined", payment.ErrDeclined), http.StatusPaymentRequired, "payment declined"},
		{"idempotency", fmt.Errorf("%w: keys reused", payment.ErrIdempotencyConflict), http.StatusConflict, "payment already in progress with different details"},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, context.DeadlineExceeded.Error()},
		{"internal app error", apperrors.Internal(errors.New("pq: connection refused")), http.StatusInternalServerError, "internal server error"},
		{"unknown", errors.New("pq: relation does not exist"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestBindJSONReportsFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	type body struct {
		Rating int `json:"rating" binding:"required,min=1,max=5"`
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":9}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var b body
	assert.False(t, BindJSON(c, &b))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
	assert.Contains(t, w.Body.String(), "must be at most 5")
}

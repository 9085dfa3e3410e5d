package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/service/payment"
	"github.com/nazek/booking-api/pkg/auth"
	apperrors "github.com/nazek/booking-api/pkg/errors"
)

const identityKey = "identity"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// statusBySentinel maps domain errors to HTTP statuses. Order matters only
// for errors wrapping more than one sentinel.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{model.ErrNotFound, http.StatusNotFound},
	{model.ErrAlreadyExists, http.StatusConflict},
	{model.ErrInvalidCredentials, http.StatusUnauthorized},
	{model.ErrTokenRevoked, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{auth.ErrWrongTokenType, http.StatusUnauthorized},
	{model.ErrAccountLocked, http.StatusForbidden},
	{model.ErrForbidden, http.StatusForbidden},
	{model.ErrSlotUnavailable, http.StatusConflict},
	{model.ErrInvalidTransition, http.StatusConflict},
	{model.ErrAlreadyReviewed, http.StatusConflict},
	{model.ErrOverlappingWindow, http.StatusConflict},
	{model.ErrOutsideAvailability, http.StatusBadRequest},
	{model.ErrNotReviewable, http.StatusBadRequest},
	{model.ErrNotPayable, http.StatusBadRequest},
	{model.ErrNotDeletable, http.StatusBadRequest},
	{model.ErrInvalidPayment, http.StatusBadRequest},
	{model.ErrEmployerInactive, http.StatusBadRequest},
	{payment.ErrDeclined, http.StatusPaymentRequired},
	{payment.ErrUnavailable, http.StatusBadRequest},
	{payment.ErrIdempotencyConflict, http.StatusConflict},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// StatusFor returns the HTTP status and client-facing message for err.
// Unknown errors are reported as 500 without leaking their text.
func StatusFor(err error) (int, string) {
	if appErr, ok := apperrors.As(err); ok && appErr.Code != apperrors.ErrInternal {
		return appErr.StatusCode(), appErr.Message
	}
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// RespondError writes err as an error envelope and aborts the chain.
func RespondError(c *gin.Context, err error) {
	status, message := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, NewErrorResponse(message))
}

func RespondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// BindJSON decodes the body into obj and answers 400 on failure.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(FormatBindError(err)))
		return false
	}
	return true
}

// FormatBindError renders validator errors as "field: rule" pairs.
func FormatBindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body: " + err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describeField(fe))
	}
	return strings.Join(parts, "; ")
}

func describeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "hhmm":
		return field + " must be a time formatted as HH:MM"
	case "weekday":
		return field + " must be a weekday between 0 (Sunday) and 6"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ParamUUID parses the named path parameter, answering 400 when malformed.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(fmt.Sprintf("invalid %s", name)))
		return uuid.Nil, false
	}
	return id, true
}

func SetIdentity(c *gin.Context, id *model.Identity) {
	c.Set(identityKey, id)
}

// Identity returns the authenticated caller. Routes behind the auth
// middleware always have one; elsewhere ok is false.
func Identity(c *gin.Context) (model.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return model.Identity{}, false
	}
	id, ok := v.(*model.Identity)
	if !ok || id == nil {
		return model.Identity{}, false
	}
	return *id, true
}

// MustIdentity is Identity for authenticated routes; it answers 401 when absent.
func MustIdentity(c *gin.Context) (model.Identity, bool) {
	id, ok := Identity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse("authentication required"))
	}
	return id, ok
}

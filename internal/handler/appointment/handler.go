package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nazek/booking-api/internal/handler"
	"github.com/nazek/booking-api/internal/middleware"
	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/service/appointment"
)

var validStatuses = map[model.AppointmentStatus]bool{
	model.AppointmentStatusPending:   true,
	model.AppointmentStatusAccepted:  true,
	model.AppointmentStatusRejected:  true,
	model.AppointmentStatusCompleted: true,
	model.AppointmentStatusCancelled: true,
}

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	appointments := r.Group("/appointments", authMW.Authenticate(), middleware.NoStore())
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("", authMW.RequireRole(model.RoleClient), h.CreateAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
		appointments.PATCH("/:id/status", h.UpdateStatus)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/review", authMW.RequireRole(model.RoleClient), h.ReviewAppointment)
		appointments.POST("/:id/payment", authMW.RequireRole(model.RoleClient), h.PayAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Create(c.Request.Context(), identity, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusCreated, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}

	status := model.AppointmentStatus(c.Query("status"))
	if status != "" && !validStatuses[status] {
		c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid status"))
		return
	}

	appointments, err := h.service.List(c.Request.Context(), identity, status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), identity, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, apt)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.UpdateStatus(c.Request.Context(), identity, id, req.Status, req.Reason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, apt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.CancelAppointmentRequest
	// the body is optional
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), identity, id, req.Reason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, apt)
}

func (h *Handler) ReviewAppointment(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.ReviewRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Review(c.Request.Context(), identity, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, apt)
}

func (h *Handler) PayAppointment(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.PaymentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Pay(c.Request.Context(), identity, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	message := "payment recorded"
	if !apt.IsPaid && apt.PaymentMethod == model.PaymentMethodCash {
		message = "to be paid on site"
	}
	handler.RespondSuccess(c, http.StatusOK, gin.H{
		"message":     message,
		"appointment": apt,
	})
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), identity, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

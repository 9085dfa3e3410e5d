package employer

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nazek/booking-api/internal/handler"
	"github.com/nazek/booking-api/internal/middleware"
	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/service/availability"
	"github.com/nazek/booking-api/internal/service/catalog"
	"github.com/nazek/booking-api/internal/service/profile"
)

type Handler struct {
	catalog      *catalog.Service
	profiles     *profile.Service
	availability *availability.Service
}

func NewHandler(catalog *catalog.Service, profiles *profile.Service, availability *availability.Service) *Handler {
	return &Handler{
		catalog:      catalog,
		profiles:     profiles,
		availability: availability,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	employers := r.Group("/employers")
	{
		self := employers.Group("/profile", authMW.Authenticate(), authMW.RequireRole(model.RoleEmployer))
		self.GET("", h.GetProfile)
		self.PUT("", h.UpdateProfile)

		employers.GET("", h.ListEmployers)
		employers.GET("/:id", h.GetEmployer)
		employers.GET("/:id/slots", h.ListSlots)
		employers.GET("/:id/availabilities", h.ListAvailabilities)

		owner := employers.Group("/:id/availabilities", authMW.Authenticate(), authMW.RequireRole(model.RoleEmployer, model.RoleAdmin))
		owner.POST("", h.AddAvailability)
		owner.PUT("", h.ReplaceAvailabilities)
		owner.DELETE("/:availability_id", h.DeleteAvailability)
	}
}

func (h *Handler) ListEmployers(c *gin.Context) {
	var serviceID *uuid.UUID
	if raw := c.Query("service"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid service"))
			return
		}
		serviceID = &id
	}

	employers, err := h.catalog.ListEmployers(c.Request.Context(), serviceID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, employers)
}

func (h *Handler) GetEmployer(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	employer, err := h.catalog.GetEmployer(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, employer)
}

func (h *Handler) GetProfile(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}

	employer, err := h.profiles.GetEmployerProfile(c.Request.Context(), identity.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, employer)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	var req model.UpdateEmployerRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	employer, err := h.profiles.UpdateEmployerProfile(c.Request.Context(), identity.UserID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, employer)
}

func (h *Handler) ListAvailabilities(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	windows, err := h.availability.List(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, windows)
}

func (h *Handler) AddAvailability(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.AvailabilityRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	window, err := h.availability.Add(c.Request.Context(), identity, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusCreated, window)
}

func (h *Handler) ReplaceAvailabilities(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.ReplaceAvailabilityRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	windows, err := h.availability.Replace(c.Request.Context(), identity, id, req.Availabilities)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, windows)
}

func (h *Handler) DeleteAvailability(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	availabilityID, ok := handler.ParamUUID(c, "availability_id")
	if !ok {
		return
	}

	if err := h.availability.Delete(c.Request.Context(), identity, id, availabilityID); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSlots answers GET /employers/:id/slots?date=YYYY-MM-DD&duration=60.
func (h *Handler) ListSlots(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	rawDate := c.Query("date")
	if rawDate == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("date is required"))
		return
	}
	day, err := h.availability.ParseDate(rawDate)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	duration := 0
	if raw := c.Query("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("duration must be a number of minutes"))
			return
		}
	}

	slots, err := h.availability.AvailableSlots(c.Request.Context(), id, day, duration)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, gin.H{
		"date":  rawDate,
		"slots": slots,
	})
}

package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nazek/booking-api/internal/handler"
	"github.com/nazek/booking-api/internal/middleware"
	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/service/catalog"
)

type Handler struct {
	svc *catalog.Service
}

func NewHandler(svc *catalog.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	services := r.Group("/services")
	{
		services.GET("", middleware.Cache(middleware.DefaultCacheConfig()), h.ListServices)
		services.GET("/:id", middleware.Cache(middleware.DefaultCacheConfig()), h.GetService)

		admin := services.Group("", authMW.Authenticate(), authMW.RequireRole(model.RoleAdmin))
		admin.POST("", h.CreateService)
		admin.PUT("/:id", h.UpdateService)
		admin.DELETE("/:id", h.DeleteService)
	}
}

func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.svc.ListServices(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, services)
}

func (h *Handler) GetService(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	service, err := h.svc.GetService(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, service)
}

func (h *Handler) CreateService(c *gin.Context) {
	var req model.ServiceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	service, err := h.svc.CreateService(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusCreated, service)
}

func (h *Handler) UpdateService(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.ServiceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	service, err := h.svc.UpdateService(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, service)
}

func (h *Handler) DeleteService(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteService(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package client

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nazek/booking-api/internal/handler"
	"github.com/nazek/booking-api/internal/middleware"
	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/service/profile"
)

type Handler struct {
	profiles *profile.Service
}

func NewHandler(profiles *profile.Service) *Handler {
	return &Handler{profiles: profiles}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	clients := r.Group("/clients", authMW.Authenticate(), authMW.RequireRole(model.RoleClient))
	{
		clients.GET("/profile", h.GetProfile)
		clients.PUT("/profile", h.UpdateProfile)
	}
}

func (h *Handler) GetProfile(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}

	client, err := h.profiles.GetClientProfile(c.Request.Context(), identity.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, client)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	var req model.UpdateClientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	client, err := h.profiles.UpdateClientProfile(c.Request.Context(), identity.UserID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, client)
}

package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nazek/booking-api/internal/handler"
	"github.com/nazek/booking-api/internal/middleware"
	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/internal/service/auth"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)
		auth.POST("/logout", h.Logout)

		user := auth.Group("/user", authMW.Authenticate())
		user.GET("", h.GetUser)
		user.PUT("", h.UpdateUser)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondSuccess(c, http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondSuccess(c, http.StatusOK, resp)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req model.RefreshTokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondSuccess(c, http.StatusOK, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	var req model.RefreshTokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.Logout(c.Request.Context(), req.Refresh); err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondSuccess(c, http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (h *Handler) GetUser(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), identity.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondSuccess(c, http.StatusOK, user)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	var req model.UpdateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.UpdateUser(c.Request.Context(), identity.UserID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondSuccess(c, http.StatusOK, user)
}

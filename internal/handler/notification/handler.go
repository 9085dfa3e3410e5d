package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nazek/booking-api/internal/handler"
	"github.com/nazek/booking-api/internal/middleware"
	"github.com/nazek/booking-api/internal/service/notification"
)

type Handler struct {
	svc *notification.Service
}

func NewHandler(svc *notification.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	notifications := r.Group("/notifications", authMW.Authenticate(), middleware.NoStore())
	{
		notifications.GET("", h.List)
		notifications.POST("/read-all", h.MarkAllRead)
		notifications.POST("/:id/read", h.MarkRead)
	}
}

// List answers GET /notifications?unread=true.
func (h *Handler) List(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	unreadOnly := c.Query("unread") == "true"

	items, err := h.svc.List(c.Request.Context(), identity.UserID, unreadOnly)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	unread, err := h.svc.UnreadCount(c.Request.Context(), identity.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.RespondSuccess(c, http.StatusOK, gin.H{
		"notifications": items,
		"unread_count":  unread,
	})
}

func (h *Handler) MarkRead(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), identity.UserID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, gin.H{"message": "notification marked as read"})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	identity, ok := handler.MustIdentity(c)
	if !ok {
		return
	}

	count, err := h.svc.MarkAllRead(c.Request.Context(), identity.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, gin.H{"updated": count})
}

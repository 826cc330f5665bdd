// README: Notification handlers: device token registration and the live websocket feed.
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"busops/internal/http/middleware"
	"busops/internal/modules/notification"
	"busops/internal/types"
)

type TokenRegistrar interface {
	Register(ctx context.Context, userID types.ID, token string) error
}

type NotificationHandler struct {
	tokens TokenRegistrar
	hub    *notification.Hub
}

// NewNotificationHandler accepts nil for either dependency; the matching
// route then answers 503.
func NewNotificationHandler(tokens TokenRegistrar, hub *notification.Hub) *NotificationHandler {
	return &NotificationHandler{tokens: tokens, hub: hub}
}

type registerTokenReq struct {
	Token string `json:"token" binding:"required"`
}

func (h *NotificationHandler) RegisterToken(c *gin.Context) {
	if h.tokens == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "push notifications disabled")
		return
	}
	var req registerTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "token is required")
		return
	}
	uid := types.ID(middleware.CallerUID(c))
	if err := h.tokens.Register(c.Request.Context(), uid, req.Token); err != nil {
		if errors.Is(err, notification.ErrEmptyToken) {
			writeError(c, http.StatusBadRequest, "validation", err.Error())
			return
		}
		log.Printf("[HTTP] request_id=%s action=register_token uid=%s err=%v", middleware.RequestIDFrom(c), uid, err)
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) Live(c *gin.Context) {
	if h.hub == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "live feed disabled")
		return
	}
	uid := types.ID(middleware.CallerUID(c))
	if err := h.hub.Serve(c.Writer, c.Request, uid, middleware.CallerRole(c)); err != nil {
		log.Printf("[WS] action=upgrade uid=%s err=%v", uid, err)
	}
}

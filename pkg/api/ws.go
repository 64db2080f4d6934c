package api

import (
	"github.com/gin-gonic/gin"

	"campusride/pkg/logger"
	"campusride/pkg/socket"
)

// serveWS authenticates the handshake, derives the session's rooms from
// stored state and hands the connection to the hub.
func (h *Handler) serveWS(c *gin.Context) {
	user, err := h.resolve(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	rooms, err := h.Svc.Chat().ConnectRooms(c.Request.Context(), user.ID, user.Role)
	if err != nil {
		h.fail(c, err)
		return
	}

	ident := socket.Identity{UserID: user.ID, Role: user.Role}
	if _, err := h.Hub.ServeWS(c.Writer, c.Request, ident, rooms, h.Svc.Chat().HandleCommand); err != nil {
		h.Log.Warning("websocket handshake failed", logger.String("user", user.ID), logger.Error(err))
	}
}

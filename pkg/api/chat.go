package api

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

type messageRequest struct {
	Content string `json:"content" binding:"required,max=1000"`
}

func (h *Handler) currentRoom(c *gin.Context) {
	room, err := h.Svc.Chat().GetCurrentRoom(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Current room", room)
}

func (h *Handler) roomMessages(c *gin.Context) {
	limit := cast.ToInt(c.Query("limit"))
	msgs, err := h.Svc.Chat().GetRoomMessages(c.Request.Context(), currentUser(c).ID, c.Param("roomType"), c.Param("roomId"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Messages", msgs)
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req messageRequest
	if !h.bind(c, &req) {
		return
	}
	msg, err := h.Svc.Chat().SendMessageToRoom(c.Request.Context(), currentUser(c).ID, c.Param("roomType"), c.Param("roomId"), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, "Message sent", msg)
}

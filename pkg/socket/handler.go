package socket

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"campusride/pkg/logger"
	"campusride/pkg/models"
)

type readyPayload struct {
	SessionID string   `json:"sessionId"`
	UserID    string   `json:"userId"`
	Role      string   `json:"role"`
	Rooms     []string `json:"rooms"`
}

// ServeWS upgrades an already authenticated request. rooms are the rooms
// derived from the user's stored queue and ride state; the user and role
// rooms are always added.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, ident Identity, rooms []string, handler CommandHandler) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("failed to upgrade websocket", logger.String("user", ident.UserID), logger.Error(err))
		return nil, err
	}

	c := newClient(h, conn, uuid.NewString(), ident, handler)
	h.register(c, rooms)

	go c.WritePump()
	go c.ReadPump()

	data, _ := json.Marshal(readyPayload{
		SessionID: c.SessionID,
		UserID:    c.UserID,
		Role:      c.Role,
		Rooms:     h.registry.Rooms(c.SessionID),
	})
	frame, _ := json.Marshal(Frame{Event: models.EventSocketReady, Data: data})
	c.enqueue(frame)

	return c, nil
}

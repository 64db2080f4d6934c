package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campusride/pkg/apperr"
	"campusride/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBuffer     = 256
)

// Command is an inbound client frame. ID is echoed back on the ack.
type Command struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type ack struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// CommandHandler serves one inbound command. The returned value is sent
// back as the ack payload; an error becomes a failed ack.
type CommandHandler func(ctx context.Context, c *Client, cmd Command) (any, error)

type Client struct {
	SessionID string
	UserID    string
	Role      string

	conn    *websocket.Conn
	hub     *Hub
	send    chan []byte
	handler CommandHandler

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards send against a close racing an enqueue.
	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, sessionID string, ident Identity, handler CommandHandler) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		SessionID: sessionID,
		UserID:    ident.UserID,
		Role:      ident.Role,
		conn:      conn,
		hub:       hub,
		send:      make(chan []byte, sendBuffer),
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Join adds this session to rooms.
func (c *Client) Join(rooms ...string) {
	c.hub.JoinSession(c.SessionID, rooms...)
}

func (c *Client) Leave(rooms ...string) {
	c.hub.LeaveSession(c.SessionID, rooms...)
}

func (c *Client) InRoom(room string) bool {
	return c.hub.registry.InRoom(c.SessionID, room)
}

// enqueue never blocks. It reports false when the buffer is full or the
// client is already closed.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warning("websocket read failed", logger.String("session", c.SessionID), logger.Error(err))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.reply(cmd.ID, nil, apperr.Validation("Invalid message format"))
			continue
		}
		c.dispatch(cmd)
	}
}

func (c *Client) dispatch(cmd Command) {
	if cmd.Type == "ping" {
		c.reply(cmd.ID, map[string]string{"pong": time.Now().UTC().Format(time.RFC3339)}, nil)
		return
	}
	if c.handler == nil {
		c.reply(cmd.ID, nil, apperr.Validation("Unknown command"))
		return
	}
	payload, err := c.handler(c.ctx, c, cmd)
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		c.hub.log.Error("socket command failed",
			logger.String("type", cmd.Type),
			logger.String("user", c.UserID),
			logger.Error(err),
		)
	}
	c.reply(cmd.ID, payload, err)
}

func (c *Client) reply(id string, payload any, err error) {
	body := ack{OK: err == nil, Payload: payload}
	if err != nil {
		body.Message = apperr.Message(err)
		body.Payload = nil
	}
	data, mErr := json.Marshal(body)
	if mErr != nil {
		c.hub.log.Error("failed to marshal ack", logger.Error(mErr))
		return
	}
	frame, _ := json.Marshal(Frame{Event: "ack", ID: id, Data: data})
	if !c.enqueue(frame) {
		c.hub.log.Warning("dropped ack", logger.String("session", c.SessionID))
	}
}

// WritePump writes one frame per websocket message and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

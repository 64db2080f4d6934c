package socket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campusride/pkg/logger"
	"campusride/pkg/models"
)

// Frame is the outbound wire shape. ID is only set on command acks.
type Frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

type Identity struct {
	UserID string
	Role   string
}

const (
	opEmit       = "emit"
	opJoinQueue  = "joinQueue"
	opLeaveQueue = "leaveQueue"
	opJoinTrip   = "joinTrip"
	opLeaveTrip  = "leaveTrip"
	opDisconnect = "disconnect"
)

// op is one fan-out instruction. Ops are applied locally and, when a bridge
// is attached, replayed on every other node.
type op struct {
	Kind    string          `json:"kind"`
	Origin  string          `json:"origin"`
	Rooms   []string        `json:"rooms,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	UserIDs []string        `json:"userIds,omitempty"`
	RideID  string          `json:"rideId,omitempty"`
}

type publisher interface {
	publish(o op) error
}

// Hub owns the live sessions of this process.
type Hub struct {
	node     string
	registry *SessionRoomRegistry
	log      logger.ILogger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
	pub     publisher
}

var _ Emitter = (*Hub)(nil)

type Option func(*Hub)

// WithAllowedOrigins restricts browser upgrades to the listed origins.
// With no origins every origin is accepted.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

func NewHub(log logger.ILogger, opts ...Option) *Hub {
	h := &Hub{
		node:     uuid.NewString(),
		registry: NewSessionRoomRegistry(),
		log:      log,
		clients:  make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Registry() *SessionRoomRegistry {
	return h.registry
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) setPublisher(p publisher) {
	h.mu.Lock()
	h.pub = p
	h.mu.Unlock()
}

// register adds the client under its own user and role rooms plus extra.
func (h *Hub) register(c *Client, extra []string) {
	h.mu.Lock()
	h.clients[c.SessionID] = c
	total := len(h.clients)
	h.mu.Unlock()

	rooms := append([]string{UserRoom(c.UserID), RoleRoom(c.Role)}, extra...)
	h.registry.Join(c.SessionID, rooms...)

	h.log.Info("socket connected",
		logger.String("session", c.SessionID),
		logger.String("user", c.UserID),
		logger.String("role", c.Role),
		logger.Int("clients", total),
	)
}

func (h *Hub) unregister(c *Client) {
	h.registry.Remove(c.SessionID)

	h.mu.Lock()
	_, ok := h.clients[c.SessionID]
	delete(h.clients, c.SessionID)
	h.mu.Unlock()

	c.close()
	if ok {
		h.log.Info("socket disconnected", logger.String("session", c.SessionID), logger.String("user", c.UserID))
	}
}

func (h *Hub) EmitToUser(userID, event string, payload any) {
	h.EmitToRooms([]string{UserRoom(userID)}, event, payload)
}

func (h *Hub) EmitToRole(role, event string, payload any) {
	h.EmitToRooms([]string{RoleRoom(role)}, event, payload)
}

func (h *Hub) EmitToQueueRoom(event string, payload any) {
	h.EmitToRooms([]string{QueueRoom}, event, payload)
}

func (h *Hub) EmitToRide(rideID, event string, payload any) {
	h.EmitToRooms([]string{TripRoom(rideID)}, event, payload)
}

func (h *Hub) EmitToRooms(rooms []string, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal event", logger.String("event", event), logger.Error(err))
		return
	}
	h.dispatch(op{Kind: opEmit, Rooms: rooms, Event: event, Payload: data})
}

func (h *Hub) JoinQueueRoom(userIDs []string) {
	h.dispatch(op{Kind: opJoinQueue, UserIDs: userIDs})
}

func (h *Hub) LeaveQueueRoom(userIDs []string) {
	h.dispatch(op{Kind: opLeaveQueue, UserIDs: userIDs})
}

func (h *Hub) JoinTripRoom(userIDs []string, rideID string) {
	if rideID == "" {
		return
	}
	h.dispatch(op{Kind: opJoinTrip, UserIDs: userIDs, RideID: rideID})
}

func (h *Hub) LeaveTripRoom(userIDs []string, rideID string) {
	if rideID == "" {
		return
	}
	h.dispatch(op{Kind: opLeaveTrip, UserIDs: userIDs, RideID: rideID})
}

func (h *Hub) DisconnectUser(userID string) {
	h.dispatch(op{Kind: opDisconnect, UserIDs: []string{userID}})
}

// dispatch applies o here first, then hands it to the bridge for the other
// nodes.
func (h *Hub) dispatch(o op) {
	o.Origin = h.node
	h.apply(o)

	h.mu.RLock()
	pub := h.pub
	h.mu.RUnlock()
	if pub == nil {
		return
	}
	if err := pub.publish(o); err != nil {
		h.log.Warning("fan-out publish failed", logger.String("kind", o.Kind), logger.Error(err))
	}
}

func (h *Hub) apply(o op) {
	switch o.Kind {
	case opEmit:
		frame, err := json.Marshal(Frame{Event: o.Event, Data: o.Payload})
		if err != nil {
			h.log.Error("failed to encode frame", logger.String("event", o.Event), logger.Error(err))
			return
		}
		h.deliver(h.registry.Members(o.Rooms...), frame)
	case opJoinQueue:
		h.registry.MoveMembers(userRooms(o.UserIDs), nil, []string{QueueRoom})
	case opLeaveQueue:
		h.registry.MoveMembers(userRooms(o.UserIDs), []string{QueueRoom}, nil)
	case opJoinTrip:
		h.registry.MoveMembers(userRooms(o.UserIDs), []string{QueueRoom}, []string{TripRoom(o.RideID)})
		h.registry.MoveMembers([]string{RoleRoom(models.RoleDriver)}, nil, []string{QueueRoom})
	case opLeaveTrip:
		h.registry.MoveMembers(userRooms(o.UserIDs), []string{TripRoom(o.RideID)}, nil)
	case opDisconnect:
		for _, sessionID := range h.registry.Members(userRooms(o.UserIDs)...) {
			h.mu.RLock()
			c := h.clients[sessionID]
			h.mu.RUnlock()
			if c != nil {
				h.unregister(c)
			} else {
				h.registry.Remove(sessionID)
			}
		}
	default:
		h.log.Warning("unknown fan-out op", logger.String("kind", o.Kind))
	}
}

func (h *Hub) deliver(sessionIDs []string, frame []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, id := range sessionIDs {
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warning("client buffer full, disconnecting", logger.String("session", c.SessionID))
		h.unregister(c)
	}
}

// JoinSession and LeaveSession change one session's rooms, used by socket
// commands such as joinQueueChat.
func (h *Hub) JoinSession(sessionID string, rooms ...string) {
	h.registry.Join(sessionID, rooms...)
}

func (h *Hub) LeaveSession(sessionID string, rooms ...string) {
	h.registry.Leave(sessionID, rooms...)
}

// SendTo writes event to a single session.
func (h *Hub) SendTo(sessionID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal event", logger.String("event", event), logger.Error(err))
		return
	}
	frame, _ := json.Marshal(Frame{Event: event, Data: data})
	h.deliver([]string{sessionID}, frame)
}

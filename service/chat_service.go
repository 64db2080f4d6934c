package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"campusride/pkg/apperr"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/storage"
)

const defaultMessageLimit = 100

type MessageSender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type MessageView struct {
	ID            string        `json:"id"`
	RoomType      string        `json:"roomType"`
	RoomID        string        `json:"roomId"`
	Content       string        `json:"content"`
	Sender        MessageSender `json:"sender"`
	SenderDeleted bool          `json:"senderDeleted"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// ChatRoom is the room a user should currently be chatting in.
type ChatRoom struct {
	RoomType string `json:"roomType"`
	RoomID   string `json:"roomId"`
}

type ChatService interface {
	RequireQueueChatAccess(ctx context.Context, userID string) (*models.User, error)
	RequireTripChatAccess(ctx context.Context, userID, tripID string) (*models.User, *models.Trip, error)
	SendMessageToRoom(ctx context.Context, userID, roomType, roomID, content string) (*MessageView, error)
	GetRoomMessages(ctx context.Context, userID, roomType, roomID string, limit int) ([]MessageView, error)
	GetCurrentRoom(ctx context.Context, userID string) (*ChatRoom, error)
	// ConnectRooms derives a new session's rooms from stored queue and trip
	// state.
	ConnectRooms(ctx context.Context, userID, role string) ([]string, error)
	HandleCommand(ctx context.Context, c *socket.Client, cmd socket.Command) (any, error)
}

type chatService struct {
	stg  storage.IStorage
	emit socket.Emitter
	log  logger.ILogger
}

func NewChatService(stg storage.IStorage, emit socket.Emitter, log logger.ILogger) ChatService {
	return &chatService{
		stg:  stg,
		emit: emit,
		log:  log,
	}
}

func (s *chatService) activeUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.stg.User().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanParticipate() {
		return nil, apperr.Forbidden("Account is not active")
	}
	return user, nil
}

func (s *chatService) RequireQueueChatAccess(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch user.Role {
	case models.RoleDriver:
		return user, nil
	case models.RoleStudent:
		entry, err := s.stg.Queue().GetActiveByStudent(ctx, userID)
		if err != nil {
			return nil, err
		}
		if entry != nil && entry.Status == models.QueueStatusWaiting {
			return user, nil
		}
		return nil, apperr.Forbidden("Queue chat is only available while you are waiting")
	}
	return nil, apperr.Forbidden("You are not allowed to access this chat room")
}

func (s *chatService) RequireTripChatAccess(ctx context.Context, userID, tripID string) (*models.User, *models.Trip, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if tripID == "" {
		return nil, nil, apperr.Validation("Trip id is required")
	}

	trip, err := s.stg.Trip().GetByRideID(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}
	if trip == nil || trip.Status != models.TripStatusInTransit {
		return nil, nil, apperr.Forbidden("Trip chat is only available during an active trip")
	}

	member := (user.Role == models.RoleDriver && trip.IsDriver(userID)) ||
		(user.Role == models.RoleStudent && trip.HasStudent(userID))
	if !member {
		return nil, nil, apperr.Forbidden("You are not allowed to access this chat room")
	}
	return user, trip, nil
}

func (s *chatService) SendMessageToRoom(ctx context.Context, userID, roomType, roomID, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("Message cannot be empty")
	}
	if len([]rune(content)) > models.MaxMessageLength {
		return nil, apperr.Validation("Message is too long")
	}

	var (
		user  *models.User
		trip  *models.Trip
		err   error
		rooms []string
		event string
	)
	switch roomType {
	case models.RoomTypeQueue:
		roomID = models.QueueRoomID
		if user, err = s.RequireQueueChatAccess(ctx, userID); err != nil {
			return nil, err
		}
		event = models.EventQueueChatMessage
		if user.Role == models.RoleDriver {
			rooms = []string{socket.QueueRoom}
		} else {
			// students only ever see their own queue messages and the drivers'
			rooms = []string{socket.UserRoom(userID), socket.RoleRoom(models.RoleDriver)}
		}
	case models.RoomTypeTrip:
		if user, trip, err = s.RequireTripChatAccess(ctx, userID, roomID); err != nil {
			return nil, err
		}
		event = models.EventTripChatMessage
		rooms = []string{socket.TripRoom(trip.RideID)}
		if trip.DriverID != nil {
			rooms = append(rooms, socket.UserRoom(*trip.DriverID))
		}
		for _, studentID := range trip.Students {
			rooms = append(rooms, socket.UserRoom(studentID))
		}
	default:
		return nil, apperr.Validation("Unknown room type")
	}

	msg, err := s.stg.Message().Create(ctx, &models.Message{
		SenderID:   user.ID,
		SenderRole: user.Role,
		RoomType:   roomType,
		RoomID:     roomID,
		Content:    content,
	})
	if err != nil {
		return nil, err
	}

	view := messageView(msg, user)
	s.emit.EmitToRooms(rooms, event, view)
	return &view, nil
}

func (s *chatService) GetRoomMessages(ctx context.Context, userID, roomType, roomID string, limit int) ([]MessageView, error) {
	var (
		user *models.User
		err  error
	)
	switch roomType {
	case models.RoomTypeQueue:
		roomID = models.QueueRoomID
		user, err = s.RequireQueueChatAccess(ctx, userID)
	case models.RoomTypeTrip:
		user, _, err = s.RequireTripChatAccess(ctx, userID, roomID)
	default:
		err = apperr.Validation("Unknown room type")
	}
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultMessageLimit
	}
	messages, err := s.stg.Message().ListRoom(ctx, roomType, roomID, limit)
	if err != nil {
		return nil, err
	}

	filtered := messages[:0]
	for _, m := range messages {
		if roomType == models.RoomTypeQueue && user.Role == models.RoleStudent &&
			m.SenderID != user.ID && m.SenderRole != models.RoleDriver {
			continue
		}
		filtered = append(filtered, m)
	}

	senderIDs := make([]string, 0, len(filtered))
	for _, m := range filtered {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders, err := s.stg.User().GetByIDs(ctx, uniqueStrings(senderIDs))
	if err != nil {
		return nil, err
	}

	out := make([]MessageView, 0, len(filtered))
	for _, m := range filtered {
		out = append(out, messageView(m, senders[m.SenderID]))
	}
	return out, nil
}

func (s *chatService) GetCurrentRoom(ctx context.Context, userID string) (*ChatRoom, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin {
		return nil, nil
	}

	trip, err := s.stg.Trip().GetInTransitForUser(ctx, userID, user.Role)
	if err != nil {
		return nil, err
	}
	if trip != nil {
		return &ChatRoom{RoomType: models.RoomTypeTrip, RoomID: trip.RideID}, nil
	}

	if user.Role == models.RoleStudent {
		entry, err := s.stg.Queue().GetActiveByStudent(ctx, userID)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.Status != models.QueueStatusWaiting {
			return nil, nil
		}
	}
	return &ChatRoom{RoomType: models.RoomTypeQueue, RoomID: models.QueueRoomID}, nil
}

func (s *chatService) ConnectRooms(ctx context.Context, userID, role string) ([]string, error) {
	var rooms []string
	switch role {
	case models.RoleDriver:
		rooms = append(rooms, socket.QueueRoom)
	case models.RoleStudent:
		entry, err := s.stg.Queue().GetActiveByStudent(ctx, userID)
		if err != nil {
			return nil, err
		}
		if entry != nil && entry.Status == models.QueueStatusWaiting {
			rooms = append(rooms, socket.QueueRoom)
		}
	default:
		return nil, nil
	}

	trip, err := s.stg.Trip().GetInTransitForUser(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if trip != nil {
		rooms = append(rooms, socket.TripRoom(trip.RideID))
	}
	return rooms, nil
}

type tripCommand struct {
	TripID  string `json:"tripId"`
	Message string `json:"message"`
}

// HandleCommand serves the chat commands sent over the websocket.
func (s *chatService) HandleCommand(ctx context.Context, c *socket.Client, cmd socket.Command) (any, error) {
	var data tripCommand
	if len(cmd.Data) > 0 {
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return nil, apperr.Validation("Invalid command payload")
		}
	}

	switch cmd.Type {
	case "joinQueueChat":
		if _, err := s.RequireQueueChatAccess(ctx, c.UserID); err != nil {
			return nil, err
		}
		c.Join(socket.QueueRoom)
		return ChatRoom{RoomType: models.RoomTypeQueue, RoomID: models.QueueRoomID}, nil
	case "leaveQueueChat":
		c.Leave(socket.QueueRoom)
		return nil, nil
	case "joinTripChat":
		_, trip, err := s.RequireTripChatAccess(ctx, c.UserID, data.TripID)
		if err != nil {
			return nil, err
		}
		c.Join(socket.TripRoom(trip.RideID))
		return ChatRoom{RoomType: models.RoomTypeTrip, RoomID: trip.RideID}, nil
	case "leaveTripChat":
		c.Leave(socket.TripRoom(data.TripID))
		return nil, nil
	case models.EventQueueChatMessage:
		return s.SendMessageToRoom(ctx, c.UserID, models.RoomTypeQueue, models.QueueRoomID, data.Message)
	case models.EventTripChatMessage:
		return s.SendMessageToRoom(ctx, c.UserID, models.RoomTypeTrip, data.TripID, data.Message)
	}
	return nil, apperr.Validation("Unknown command")
}

func messageView(m *models.Message, sender *models.User) MessageView {
	v := MessageView{
		ID:            m.ID,
		RoomType:      m.RoomType,
		RoomID:        m.RoomID,
		Content:       m.Content,
		Sender:        MessageSender{ID: m.SenderID, Name: "Deleted user", Role: m.SenderRole},
		SenderDeleted: m.SenderDeleted,
		CreatedAt:     m.CreatedAt,
	}
	if sender != nil && !m.SenderDeleted {
		v.Sender.Name = sender.Name
	}
	return v
}

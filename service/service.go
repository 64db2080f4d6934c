package service

import (
	"time"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/pkg/socket"
	"campusride/storage"
)

type IServiceManager interface {
	Queue() QueueService
	Chat() ChatService
	Cleanup() CleanupService
	Complaint() ComplaintService
	User() UserService
	Auth() AuthService
	Schedule() ScheduleService
}

type service struct {
	queueService     QueueService
	chatService      ChatService
	cleanupService   CleanupService
	complaintService ComplaintService
	userService      UserService
	authService      AuthService
	scheduleService  ScheduleService
}

func New(cfg config.Config, stg storage.IStorage, emit socket.Emitter, log logger.ILogger) IServiceManager {
	queue := NewQueueService(stg, emit, log, cfg.MaxRideSeats)
	cleanup := NewCleanupService(stg, emit, queue, log)
	users := NewUserService(stg, cleanup, log)

	return &service{
		queueService:     queue,
		chatService:      NewChatService(stg, emit, log),
		cleanupService:   cleanup,
		complaintService: NewComplaintService(stg, emit, log),
		userService:      users,
		authService:      NewAuthService(stg, users, cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour, log),
		scheduleService:  NewScheduleService(stg, log),
	}
}

func (s *service) Queue() QueueService {
	return s.queueService
}

func (s *service) Chat() ChatService {
	return s.chatService
}

func (s *service) Cleanup() CleanupService {
	return s.cleanupService
}

func (s *service) Complaint() ComplaintService {
	return s.complaintService
}

func (s *service) User() UserService {
	return s.userService
}

func (s *service) Auth() AuthService {
	return s.authService
}

func (s *service) Schedule() ScheduleService {
	return s.scheduleService
}

func now() time.Time {
	return time.Now().UTC()
}

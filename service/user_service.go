package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"campusride/pkg/apperr"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

type CreateUserRequest struct {
	Name          string `json:"name" binding:"required,max=100"`
	Email         string `json:"email" binding:"required,email,max=254"`
	Password      string `json:"password" binding:"required,min=6,max=72"`
	Role          string `json:"role" binding:"required,oneof=student driver admin"`
	VehicleNumber string `json:"vehicleNumber" binding:"omitempty,max=32"`
}

var createUserMessages = map[string]string{
	"Name":          "Name is required",
	"Name.max":      "Name is too long",
	"Email":         "A valid email is required",
	"Password":      "Password must be at least 6 characters",
	"Password.max":  "Password must be at most 72 characters",
	"Role":          "Invalid role",
	"VehicleNumber": "Vehicle number is too long",
}

type UserService interface {
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, req CreateUserRequest) (*models.User, error)
	RemoveByID(ctx context.Context, adminID, id string, permanent bool) (*RemovalResult, error)
	RemoveByEmail(ctx context.Context, adminID, email string, permanent bool) (*RemovalResult, error)
	Reactivate(ctx context.Context, id string) (*models.User, error)
	// SeedAdmin creates the first admin account when none exists yet.
	SeedAdmin(ctx context.Context, name, email, password string) (bool, error)
}

type userService struct {
	stg     storage.IUserStorage
	cleanup CleanupService
	log     logger.ILogger
}

func NewUserService(stg storage.IStorage, cleanup CleanupService, log logger.ILogger) UserService {
	return &userService{
		stg:     stg.User(),
		cleanup: cleanup,
		log:     log,
	}
}

func (s *userService) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	if filter.Role != "" && !validRole(filter.Role) {
		return nil, apperr.Validation("Invalid role")
	}
	return s.stg.List(ctx, filter)
}

func (s *userService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.stg.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	return user, nil
}

func (s *userService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.VehicleNumber = strings.TrimSpace(req.VehicleNumber)
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err, createUserMessages, "Invalid user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     req.Role,
		Status:   models.UserStatusActive,
		IsActive: true,
	}
	if req.Role == models.RoleDriver && req.VehicleNumber != "" {
		user.VehicleNumber = models.StringPtr(req.VehicleNumber)
	}

	created, err := s.stg.Create(ctx, user)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, apperr.Duplicate("Email already exists")
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", logger.String("user", created.ID), logger.String("role", created.Role))
	return created, nil
}

func (s *userService) RemoveByID(ctx context.Context, adminID, id string, permanent bool) (*RemovalResult, error) {
	target, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.cleanup.RemoveUser(ctx, adminID, target, permanent)
}

func (s *userService) RemoveByEmail(ctx context.Context, adminID, email string, permanent bool) (*RemovalResult, error) {
	target, err := s.stg.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("User not found")
	}
	return s.cleanup.RemoveUser(ctx, adminID, target, permanent)
}

func (s *userService) Reactivate(ctx context.Context, id string) (*models.User, error) {
	if err := s.stg.Reactivate(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *userService) SeedAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	admins, err := s.stg.CountByRole(ctx, models.RoleAdmin)
	if err != nil || admins > 0 {
		return false, err
	}
	_, err = s.Create(ctx, CreateUserRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func validRole(role string) bool {
	return role == models.RoleStudent || role == models.RoleDriver || role == models.RoleAdmin
}

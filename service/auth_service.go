package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"campusride/pkg/apperr"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService interface {
	// Login checks credentials. A non-empty role must match the account.
	Login(ctx context.Context, email, password, role string) (*LoginResult, error)
	// Signup registers a new account and signs it in.
	Signup(ctx context.Context, req CreateUserRequest) (*LoginResult, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	IssueToken(user *models.User) (string, error)
	ParseToken(token string) (*Claims, error)
}

type authService struct {
	stg    storage.IUserStorage
	users  UserService
	secret []byte
	ttl    time.Duration
	log    logger.ILogger
}

func NewAuthService(stg storage.IStorage, users UserService, secret string, ttl time.Duration, log logger.ILogger) AuthService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &authService{
		stg:    stg.User(),
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		log:    log,
	}
}

func (s *authService) Login(ctx context.Context, email, password, role string) (*LoginResult, error) {
	user, err := s.stg.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperr.Unauthorized("Invalid email or password")
	}
	if role != "" && role != user.Role {
		return nil, apperr.Forbidden("Selected role does not match this account")
	}
	if !user.CanParticipate() {
		return nil, apperr.Forbidden("Account is deactivated")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	s.log.Info("login", logger.String("user", user.ID), logger.String("role", user.Role))
	return &LoginResult{Token: token, User: user}, nil
}

func (s *authService) Signup(ctx context.Context, req CreateUserRequest) (*LoginResult, error) {
	user, err := s.users.Create(ctx, req)
	if apperr.Is(err, apperr.KindDuplicate) {
		return nil, apperr.Duplicate("Email already registered")
	}
	if err != nil {
		return nil, err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	s.log.Info("signup", logger.String("user", user.ID), logger.String("role", user.Role))
	return &LoginResult{Token: token, User: user}, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.stg.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanParticipate() {
		return nil, apperr.Unauthorized("Account is no longer active")
	}
	return user, nil
}

func (s *authService) IssueToken(user *models.User) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	issued := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:  user.Role,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *authService) ParseToken(raw string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	return claims, nil
}

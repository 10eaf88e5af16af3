package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenIssuer interface {
	Issue(user models.User) (string, error)
}

const (
	msgUserExists     = "User already exists"
	msgNameLength     = "Name must be between 2 and 50 characters"
	msgPasswordLength = "Password must be at most 72 bytes"
	msgRegisterFailed = "Failed to register user"
	msgLoginFailed    = "Failed to log in"
	MsgUserRegistered = "User registered successfully"

	minNameLen = 2
	maxNameLen = 50
	// bcrypt rejects secrets longer than 72 bytes.
	maxPasswordBytes = 72
)

// AuthService registers users and exchanges credentials for a bearer token.
type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	log    *slog.Logger
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, log: log}
}

// Register creates the account. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.Name)

	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return nil, errors.Validation(msgNameLength)
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, errors.Validation(msgPasswordLength)
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, errors.Validation(msgUserExists)
	} else if !errors.Is(err, errors.ErrUserNotFound) {
		s.log.ErrorContext(ctx, "user lookup failed", "error", err)
		return nil, errors.Store(msgRegisterFailed, err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.log.ErrorContext(ctx, "password hashing failed", "error", err)
		return nil, errors.Store(msgRegisterFailed, err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, errors.ErrUserAlreadyExists) {
			return nil, errors.Validation(msgUserExists)
		}
		s.log.ErrorContext(ctx, "user creation failed", "error", err)
		return nil, errors.Store(msgRegisterFailed, err)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login never tells an unknown email apart from a wrong password.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.InvalidCredentials()
		}
		s.log.ErrorContext(ctx, "user lookup failed", "error", err)
		return nil, errors.Store(msgLoginFailed, err)
	}

	if !s.hasher.Verify(req.Password, user.Password) {
		return nil, errors.InvalidCredentials()
	}

	token, err := s.tokens.Issue(*user)
	if err != nil {
		s.log.ErrorContext(ctx, "token issuance failed", "user_id", user.ID, "error", err)
		return nil, errors.Store(msgLoginFailed, err)
	}

	return &models.LoginResponse{Token: token, User: user.Public()}, nil
}

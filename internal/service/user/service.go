package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"log/slog"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
)

// Service handles user profile workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger) Service {
	return Service{users: users, logger: logger}
}

// UpdateInput carries optional profile mutations; nil fields are left untouched.
type UpdateInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Timezone  *string
}

var (
	errInvalidEmail = errors.New("valid email is required")
	errEmptyName    = errors.New("name fields cannot be empty")
)

// Get returns the user's profile.
func (s Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// Update applies profile changes for the user.
func (s Service) Update(ctx context.Context, userID string, input UpdateInput) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, errInvalidEmail
		}
		user.Email = email
	}
	if input.FirstName != nil {
		if strings.TrimSpace(*input.FirstName) == "" {
			return nil, errEmptyName
		}
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		if strings.TrimSpace(*input.LastName) == "" {
			return nil, errEmptyName
		}
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Timezone != nil && strings.TrimSpace(*input.Timezone) != "" {
		user.Timezone = strings.TrimSpace(*input.Timezone)
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user profile updated", "user_id", user.ID)
	return user, nil
}

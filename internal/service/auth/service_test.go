package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
	"github.com/rafa761/task-management-api/pkg/config"
	"github.com/rafa761/task-management-api/pkg/crypto"
	jwtpkg "github.com/rafa761/task-management-api/pkg/jwt"
)

type stubUserRepository struct {
	users       map[string]domain.User
	lastLoginAt *time.Time
}

func newStubUserRepository(users ...domain.User) *stubUserRepository {
	s := &stubUserRepository{users: make(map[string]domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	s.lastLoginAt = &at
	return nil
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func newTestService(repo *stubUserRepository) Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, log, testConfig())
}

func seedUser(t *testing.T, repo *stubUserRepository, email, password string, active bool) domain.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := domain.User{
		ID:           "user-" + email,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Timezone:     "UTC",
		IsActive:     active,
		CreatedAt:    time.Now().UTC(),
	}
	repo.users[user.ID] = user
	return user
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	repo := newStubUserRepository()
	svc := newTestService(repo)

	user, tokens, err := svc.Register(context.Background(), RegisterInput{
		Email:     "  New.User@Example.COM ",
		Password:  "strongpassword",
		FirstName: "New",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Email != "new.user@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Timezone != "UTC" {
		t.Fatalf("expected default timezone, got %q", user.Timezone)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", tokens)
	}
	claims, err := jwtpkg.ParseType(tokens.AccessToken, "test-secret", jwtpkg.TypeAccess)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("unexpected claims subject: %q", claims.UserID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newStubUserRepository())

	cases := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"bad email", RegisterInput{Email: "nope", Password: "strongpassword", FirstName: "A", LastName: "B"}, errInvalidEmail},
		{"short password", RegisterInput{Email: "a@b.com", Password: "short", FirstName: "A", LastName: "B"}, errWeakPassword},
		{"missing name", RegisterInput{Email: "a@b.com", Password: "strongpassword", FirstName: " ", LastName: "B"}, errNameRequired},
	}
	for _, tc := range cases {
		if _, _, err := svc.Register(context.Background(), tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubUserRepository()
	seedUser(t, repo, "user@example.com", "correct-password", true)
	svc := newTestService(repo)

	_, _, err := svc.Login(context.Background(), "user@example.com", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(newStubUserRepository())
	_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	repo := newStubUserRepository()
	seedUser(t, repo, "user@example.com", "correct-password", false)
	svc := newTestService(repo)

	_, _, err := svc.Login(context.Background(), "user@example.com", "correct-password")
	if !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("expected ErrInactiveUser, got %v", err)
	}
}

func TestLoginStampsLastLogin(t *testing.T) {
	repo := newStubUserRepository()
	seedUser(t, repo, "user@example.com", "correct-password", true)
	svc := newTestService(repo)

	user, tokens, err := svc.Login(context.Background(), "User@Example.com", "correct-password")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if repo.lastLoginAt == nil {
		t.Fatalf("expected last login stamped")
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login on returned user")
	}
	if tokens.ExpiresIn != 15*time.Minute {
		t.Fatalf("unexpected expires_in: %v", tokens.ExpiresIn)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	repo := newStubUserRepository()
	user := seedUser(t, repo, "user@example.com", "correct-password", true)
	svc := newTestService(repo)

	access, err := jwtpkg.GenerateToken(user.ID, user.Email, jwtpkg.TypeAccess, "test-secret", time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), access); !errors.Is(err, jwtpkg.ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	repo := newStubUserRepository()
	user := seedUser(t, repo, "user@example.com", "correct-password", true)
	svc := newTestService(repo)

	refresh, err := jwtpkg.GenerateToken(user.ID, user.Email, jwtpkg.TypeRefresh, "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	refreshed, tokens, err := svc.Refresh(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if refreshed.ID != user.ID {
		t.Fatalf("unexpected user: %q", refreshed.ID)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected new token pair")
	}
}

func TestAuthorizeRejectsRefreshToken(t *testing.T) {
	repo := newStubUserRepository()
	user := seedUser(t, repo, "user@example.com", "correct-password", true)
	svc := newTestService(repo)

	refresh, err := jwtpkg.GenerateToken(user.ID, user.Email, jwtpkg.TypeRefresh, "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, _, err := svc.Authorize(context.Background(), refresh); !errors.Is(err, jwtpkg.ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

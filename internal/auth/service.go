package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = user.ErrEmailExists
)

type Service struct {
	users   user.Repository
	hasher  *Hasher
	tokens  *Tokens
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(users user.Repository, hasher *Hasher, tokens *Tokens, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		logger:  logger,
		metrics: m,
	}
}

func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Register creates a user account. A duplicate email is rejected with
// ErrEmailExists both by the lookup and by the unique index.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*user.User, error) {
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, user.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, &user.User{
		Email:       req.Email,
		Password:    hashed,
		PhoneNumber: req.PhoneNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserRegistered(ctx)
	s.logger.InfoContext(ctx, "user registered", "user_id", created.ID)
	return created, nil
}

// Authenticate returns ErrInvalidCredentials for an unknown email and for a
// wrong password alike; both paths run one bcrypt comparison.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.hasher.burn(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.VerifyPassword(password, u.Password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	u, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.RecordLoginFailed(ctx)
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.IssueToken(u.ID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return &LoginResponse{
		AccessToken: token,
		Message:     "login successful",
		ExpiresAt:   expiresAt,
	}, nil
}

// Resolve maps a raw token to its user.
func (s *Service) Resolve(ctx context.Context, raw string) (*user.User, error) {
	claims, err := s.tokens.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, claims.UserID)
}

func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.List(ctx)
}

func (s *Service) GrantAdmin(ctx context.Context, email string) error {
	if err := s.users.SetAdmin(ctx, email, true); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "admin granted", "email", email)
	return nil
}

package major

import (
	"context"
	"errors"
	"log/slog"

	"github.com/SeerNT/UniversityAPI/internal/metrics"
)

var (
	ErrMajorNotFound    = errors.New("major not found")
	ErrMajorExists      = errors.New("major already exists")
	ErrMajorHasStudents = errors.New("major still has students")
	ErrInvalidInput     = errors.New("invalid input")
)

type Service interface {
	ListMajors(ctx context.Context) ([]Major, error)
	GetMajor(ctx context.Context, id int) (*Major, error)
	CreateMajor(ctx context.Context, req CreateRequest) (*Major, error)
	UpdateDescription(ctx context.Context, req UpdateDescriptionRequest) (*Major, error)
	DeleteMajor(ctx context.Context, id int) error
}

type service struct {
	repo    Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(repo Repository, logger *slog.Logger, m *metrics.Metrics) Service {
	return &service{
		repo:    repo,
		logger:  logger,
		metrics: m,
	}
}

func (s *service) ListMajors(ctx context.Context) ([]Major, error) {
	return s.repo.List(ctx)
}

func (s *service) GetMajor(ctx context.Context, id int) (*Major, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) CreateMajor(ctx context.Context, req CreateRequest) (*Major, error) {
	m, err := s.repo.Create(ctx, &Major{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMajorAdded(ctx)
	s.logger.InfoContext(ctx, "major created", "major_id", m.ID, "name", m.Name)
	return m, nil
}

func (s *service) UpdateDescription(ctx context.Context, req UpdateDescriptionRequest) (*Major, error) {
	return s.repo.UpdateDescription(ctx, req.Name, req.Description)
}

func (s *service) DeleteMajor(ctx context.Context, id int) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.metrics.RecordMajorDeleted(ctx)
	s.logger.InfoContext(ctx, "major deleted", "major_id", id)
	return nil
}

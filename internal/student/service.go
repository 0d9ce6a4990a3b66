package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/events"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/photo"
	"github.com/SeerNT/UniversityAPI/internal/store"
)

var (
	ErrStudentNotFound  = errors.New("student not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoChanges        = errors.New("no fields to update")
	ErrConcurrentUpdate = errors.New("student was modified concurrently")
)

type Service interface {
	ListStudents(ctx context.Context, filter store.Filter) ([]Details, error)
	FindStudent(ctx context.Context, filter store.Filter) (*Details, error)
	GetStudent(ctx context.Context, id int) (*Details, error)
	CreateStudent(ctx context.Context, req CreateRequest) (*Student, error)
	UpdateStudent(ctx context.Context, id int, req UpdateRequest) (*Student, error)
	DeleteStudent(ctx context.Context, id int) error
	UploadPhoto(ctx context.Context, id int, data []byte) (*Student, error)
}

type service struct {
	repo      Repository
	photos    photo.Store
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(repo Repository, photos photo.Store, publisher events.Publisher, logger *slog.Logger, m *metrics.Metrics) Service {
	return &service{
		repo:      repo,
		photos:    photos,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *service) ListStudents(ctx context.Context, filter store.Filter) ([]Details, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) FindStudent(ctx context.Context, filter store.Filter) (*Details, error) {
	if len(filter) == 0 {
		return nil, fmt.Errorf("%w: at least one filter is required", ErrInvalidInput)
	}
	return s.repo.FindOne(ctx, filter)
}

func (s *service) GetStudent(ctx context.Context, id int) (*Details, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) CreateStudent(ctx context.Context, req CreateRequest) (*Student, error) {
	st, err := req.Student()
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, st)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStudentAdded(ctx)
	s.logger.InfoContext(ctx, "student created", "student_id", created.ID, "major_id", created.MajorID)
	s.publish(ctx, events.Event{
		Type:      events.StudentCreated,
		StudentID: created.ID,
		MajorID:   created.MajorID,
	})
	return created, nil
}

func (s *service) UpdateStudent(ctx context.Context, id int, req UpdateRequest) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}

	changes, err := req.Changes()
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, ErrNoChanges
	}

	updated, transfer, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "student updated", "student_id", id, "fields", changes.Columns())
	if transfer != nil {
		s.metrics.RecordStudentTransferred(ctx)
		s.publish(ctx, events.Event{
			Type:        events.StudentTransferred,
			StudentID:   id,
			MajorID:     transfer.To,
			FromMajorID: transfer.From,
		})
	}
	return updated, nil
}

func (s *service) DeleteStudent(ctx context.Context, id int) error {
	if id <= 0 {
		return ErrInvalidInput
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.metrics.RecordStudentDeleted(ctx)
	s.logger.InfoContext(ctx, "student deleted", "student_id", id, "major_id", deleted.MajorID)
	s.publish(ctx, events.Event{
		Type:      events.StudentDeleted,
		StudentID: id,
		MajorID:   deleted.MajorID,
	})
	return nil
}

// UploadPhoto stores the image through the blob store and records its
// identifier on the student. The new blob is removed again when the row
// cannot be updated; the previous photo is removed once the row points at
// the new one.
func (s *service) UploadPhoto(ctx context.Context, id int, data []byte) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ext, err := photo.Extension(data)
	if err != nil {
		return nil, err
	}

	key := photo.NewKey(fmt.Sprintf("student-%d", id), ext)
	if identifier := s.photos.Identifier(key); len(identifier) > photo.MaxIdentifierLen {
		return nil, fmt.Errorf("%w: %d characters, limit %d", photo.ErrTooLong, len(identifier), photo.MaxIdentifierLen)
	}

	identifier, err := s.photos.Put(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	updated, _, err := s.repo.Update(ctx, id, store.Changes{"photo": identifier})
	if err != nil {
		s.removePhoto(ctx, key)
		return nil, err
	}

	if current.Photo != nil && *current.Photo != identifier {
		if old, ok := s.photos.KeyOf(*current.Photo); ok {
			s.removePhoto(ctx, old)
		}
	}
	return updated, nil
}

func (s *service) removePhoto(ctx context.Context, key string) {
	if err := s.photos.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "failed to remove photo", "key", key, "error", err)
	}
}

func (s *service) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish student event", "type", event.Type, "student_id", event.StudentID, "error", err)
	}
}

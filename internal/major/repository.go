package major

import (
	"context"
	"errors"

	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/store"

	"github.com/uptrace/bun"
)

type Repository interface {
	List(ctx context.Context) ([]Major, error)
	GetByID(ctx context.Context, id int) (*Major, error)
	GetByName(ctx context.Context, name string) (*Major, error)
	Create(ctx context.Context, major *Major) (*Major, error)
	UpdateDescription(ctx context.Context, name string, description *string) (*Major, error)
	Delete(ctx context.Context, id int) error
}

type repository struct {
	db     *bun.DB
	majors *store.Store[Major, *Major]
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:     db,
		majors: NewStore(db, m),
	}
}

// NewStore exposes the majors table to other packages that need to read it
// inside their own transactions.
func NewStore(db bun.IDB, m *metrics.Metrics) *store.Store[Major, *Major] {
	return store.New[Major](db, "majors", m,
		"id", "major_name", "major_description", "count_students")
}

func (r *repository) List(ctx context.Context) ([]Major, error) {
	return r.majors.Find(ctx, nil)
}

func (r *repository) GetByID(ctx context.Context, id int) (*Major, error) {
	m, err := r.majors.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMajorNotFound
	}
	return m, err
}

func (r *repository) GetByName(ctx context.Context, name string) (*Major, error) {
	m, err := r.majors.FindOne(ctx, store.Where(store.Eq("major_name", name)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMajorNotFound
	}
	return m, err
}

func (r *repository) Create(ctx context.Context, major *Major) (*Major, error) {
	major.CountStudents = 0
	if _, err := r.majors.Insert(ctx, major); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrMajorExists
		}
		return nil, err
	}
	return major, nil
}

func (r *repository) UpdateDescription(ctx context.Context, name string, description *string) (*Major, error) {
	var updated *Major
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		majors := r.majors.WithTx(tx)

		n, err := majors.Update(ctx,
			store.Where(store.Eq("major_name", name)),
			store.Changes{"major_description": description},
		)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrMajorNotFound
		}

		updated, err = majors.FindOne(ctx, store.Where(store.Eq("major_name", name)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a major that no student references. The count_students
// guard is re-checked under the row lock, and the foreign key rejects the
// delete should the counter ever disagree with the students table.
func (r *repository) Delete(ctx context.Context, id int) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		majors := r.majors.WithTx(tx)

		n, err := majors.Delete(ctx, store.Where(
			store.Eq("id", id),
			store.Eq("count_students", 0),
		))
		if err != nil {
			if errors.Is(err, store.ErrForeignKey) {
				return ErrMajorHasStudents
			}
			return err
		}
		if n == 1 {
			return nil
		}

		if _, err := majors.FindByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrMajorNotFound
			}
			return err
		}
		return ErrMajorHasStudents
	})
}

package student

import (
	"context"
	"errors"
	"fmt"

	"github.com/SeerNT/UniversityAPI/internal/major"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/store"

	"github.com/uptrace/bun"
)

type Repository interface {
	List(ctx context.Context, filter store.Filter) ([]Details, error)
	FindOne(ctx context.Context, filter store.Filter) (*Details, error)
	GetByID(ctx context.Context, id int) (*Details, error)
	Create(ctx context.Context, student *Student) (*Student, error)
	Update(ctx context.Context, id int, changes store.Changes) (*Student, *Transfer, error)
	Delete(ctx context.Context, id int) (*Student, error)
}

// Transfer records a committed change of a student's major.
type Transfer struct {
	From int
	To   int
}

type repository struct {
	db       *bun.DB
	students *store.Store[Student, *Student]
	majors   *store.Store[major.Major, *major.Major]
	counter  *major.Counter
	metrics  *metrics.Metrics
}

func NewRepository(db *bun.DB, counter *major.Counter, m *metrics.Metrics) Repository {
	return &repository{
		db: db,
		students: store.New[Student](db, "students", m,
			"id", "phone_number", "first_name", "last_name", "date_of_birth", "email",
			"address", "enrollment_year", "course", "special_notes", "major_id", "photo"),
		majors:  major.NewStore(db, m),
		counter: counter,
		metrics: m,
	}
}

func (r *repository) List(ctx context.Context, filter store.Filter) ([]Details, error) {
	students, err := r.students.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	names := make(map[int]string)
	out := make([]Details, 0, len(students))
	for _, s := range students {
		name, ok := names[s.MajorID]
		if !ok {
			name, err = r.majorName(ctx, s)
			if err != nil {
				return nil, err
			}
			names[s.MajorID] = name
		}
		out = append(out, Details{Student: s, Major: name})
	}
	return out, nil
}

func (r *repository) FindOne(ctx context.Context, filter store.Filter) (*Details, error) {
	s, err := r.students.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return r.withMajor(ctx, s)
}

func (r *repository) GetByID(ctx context.Context, id int) (*Details, error) {
	return r.FindOne(ctx, store.Where(store.Eq("id", id)))
}

func (r *repository) withMajor(ctx context.Context, s *Student) (*Details, error) {
	name, err := r.majorName(ctx, *s)
	if err != nil {
		return nil, err
	}
	return &Details{Student: *s, Major: name}, nil
}

// majorName is the second half of a joined read. The foreign key guarantees
// the major exists, so a miss is corruption rather than "not found".
func (r *repository) majorName(ctx context.Context, s Student) (string, error) {
	m, err := r.majors.FindByID(ctx, s.MajorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.metrics.RecordConsistencyError(ctx, "students")
			return "", fmt.Errorf("%w: student %d references missing major %d", store.ErrConsistency, s.ID, s.MajorID)
		}
		return "", err
	}
	return m.Name, nil
}

// Create inserts the student and increments its major's count in one
// transaction. The increment runs first so the major row is locked before the
// student row exists.
func (r *repository) Create(ctx context.Context, student *Student) (*Student, error) {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.counter.Increment(ctx, tx, student.MajorID); err != nil {
			return err
		}
		_, err := r.students.WithTx(tx).Insert(ctx, student)
		return err
	})
	if err != nil {
		r.metrics.Database.RecordRollback(ctx, "student.create")
		return nil, err
	}
	return student, nil
}

// Update applies changes and moves the student between majors' counts when
// major_id changes. The write is guarded by the major read at the start, so
// a concurrent transfer makes this call fail with ErrConcurrentUpdate instead
// of double counting.
func (r *repository) Update(ctx context.Context, id int, changes store.Changes) (*Student, *Transfer, error) {
	var (
		updated  *Student
		transfer *Transfer
	)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		students := r.students.WithTx(tx)

		current, err := students.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrStudentNotFound
			}
			return err
		}

		if v, ok := changes["major_id"]; ok {
			to, ok := v.(int)
			if !ok {
				return fmt.Errorf("%w: major_id", ErrInvalidInput)
			}
			if to != current.MajorID {
				if err := r.counter.Transfer(ctx, tx, current.MajorID, to); err != nil {
					return err
				}
				transfer = &Transfer{From: current.MajorID, To: to}
			}
		}

		n, err := students.Update(ctx,
			store.Where(store.Eq("id", id), store.Eq("major_id", current.MajorID)),
			changes,
		)
		if err != nil {
			return err
		}
		if n == 0 {
			return r.lostRace(ctx, students, id)
		}

		updated, err = students.FindByID(ctx, id)
		return err
	})
	if err != nil {
		r.metrics.Database.RecordRollback(ctx, "student.update")
		return nil, nil, err
	}
	return updated, transfer, nil
}

// Delete removes the student and decrements its major's count in one
// transaction. Deleting a missing student returns ErrStudentNotFound and
// leaves every count untouched.
func (r *repository) Delete(ctx context.Context, id int) (*Student, error) {
	var deleted *Student

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		students := r.students.WithTx(tx)

		current, err := students.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrStudentNotFound
			}
			return err
		}

		n, err := students.Delete(ctx, store.Where(
			store.Eq("id", id),
			store.Eq("major_id", current.MajorID),
		))
		if err != nil {
			return err
		}
		if n == 0 {
			return r.lostRace(ctx, students, id)
		}

		if err := r.counter.Decrement(ctx, tx, current.MajorID); err != nil {
			return err
		}
		deleted = current
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrStudentNotFound) {
			r.metrics.Database.RecordRollback(ctx, "student.delete")
		}
		return nil, err
	}
	return deleted, nil
}

func (r *repository) lostRace(ctx context.Context, students *store.Store[Student, *Student], id int) error {
	if _, err := students.FindByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	return ErrConcurrentUpdate
}

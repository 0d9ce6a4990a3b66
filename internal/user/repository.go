package user

import (
	"context"
	"errors"

	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/store"

	"github.com/uptrace/bun"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("user with this email already exists")
)

type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	SetAdmin(ctx context.Context, email string, admin bool) error
}

type repository struct {
	users *store.Store[User, *User]
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		users: store.New[User](db, "users", m,
			"id", "email", "phone_number", "first_name", "last_name", "is_admin"),
	}
}

// Create relies on the unique index on email, so two concurrent
// registrations of one address cannot both succeed.
func (r *repository) Create(ctx context.Context, user *User) (*User, error) {
	if _, err := r.users.Insert(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return user, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*User, error) {
	return r.findOne(ctx, store.Where(store.Eq("id", id)))
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, store.Where(store.Eq("email", email)))
}

func (r *repository) findOne(ctx context.Context, f store.Filter) (*User, error) {
	u, err := r.users.FindOne(ctx, f)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *repository) List(ctx context.Context) ([]User, error) {
	return r.users.Find(ctx, nil)
}

func (r *repository) SetAdmin(ctx context.Context, email string, admin bool) error {
	n, err := r.users.Update(ctx,
		store.Where(store.Eq("email", email)),
		store.Changes{"is_admin": admin},
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

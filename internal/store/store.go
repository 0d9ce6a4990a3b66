package store

import (
	"context"
	"fmt"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/metrics"

	"github.com/uptrace/bun"
)

// Entity is a persisted record with an integer primary key.
type Entity interface {
	PK() int
}

// Store provides exact-match CRUD over one table. It runs on either the
// connection pool or a transaction, see WithTx.
type Store[T any, P interface {
	*T
	Entity
}] struct {
	db      bun.IDB
	table   string
	columns columnSet
	metrics *metrics.Metrics
}

// New creates a store for table. Only the listed columns may appear in
// filters and changes.
func New[T any, P interface {
	*T
	Entity
}](db bun.IDB, table string, m *metrics.Metrics, columns ...string) *Store[T, P] {
	return &Store[T, P]{
		db:      db,
		table:   table,
		columns: newColumnSet(columns),
		metrics: m,
	}
}

// WithTx returns a copy of the store bound to tx.
func (s *Store[T, P]) WithTx(tx bun.IDB) *Store[T, P] {
	cp := *s
	cp.db = tx
	return &cp
}

func (s *Store[T, P]) DB() bun.IDB {
	return s.db
}

func (s *Store[T, P]) Table() string {
	return s.table
}

func (s *Store[T, P]) checkFilter(f Filter) error {
	for _, c := range f {
		if err := s.columns.check(c.Field); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store[T, P]) record(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Database.RecordQuery(ctx, op, s.table, time.Since(start), err)
	}
}

func (s *Store[T, P]) Find(ctx context.Context, f Filter) ([]T, error) {
	start := time.Now()
	var out []T

	if err := s.checkFilter(f); err != nil {
		return nil, err
	}
	q := s.db.NewSelect().Model(&out)
	for _, c := range f {
		q = q.Where("? = ?", bun.Ident(c.Field), c.Value)
	}
	err := q.OrderExpr("? ASC", bun.Ident("id")).Scan(ctx)

	s.record(ctx, "select", start, err)

	if err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

func (s *Store[T, P]) FindOne(ctx context.Context, f Filter) (*T, error) {
	start := time.Now()
	entity := new(T)

	if err := s.checkFilter(f); err != nil {
		return nil, err
	}
	q := s.db.NewSelect().Model(entity)
	for _, c := range f {
		q = q.Where("? = ?", bun.Ident(c.Field), c.Value)
	}
	err := q.OrderExpr("? ASC", bun.Ident("id")).Limit(1).Scan(ctx)

	s.record(ctx, "select", start, err)

	if err != nil {
		return nil, MapError(err)
	}
	return entity, nil
}

func (s *Store[T, P]) FindByID(ctx context.Context, id int) (*T, error) {
	return s.FindOne(ctx, Where(Eq("id", id)))
}

// Insert stores entity and returns the generated id. The entity is
// refreshed with the stored row.
func (s *Store[T, P]) Insert(ctx context.Context, entity *T) (int, error) {
	start := time.Now()
	_, err := s.db.NewInsert().Model(entity).Returning("*").Exec(ctx)

	s.record(ctx, "insert", start, err)

	if err != nil {
		return 0, MapError(err)
	}
	return P(entity).PK(), nil
}

// Update applies changes to every row matching f and returns the number of
// rows affected.
func (s *Store[T, P]) Update(ctx context.Context, f Filter, changes Changes) (int64, error) {
	if len(f) == 0 {
		return 0, ErrEmptyFilter
	}
	if len(changes) == 0 {
		return 0, nil
	}

	if err := s.checkFilter(f); err != nil {
		return 0, err
	}

	q := s.db.NewUpdate().Model((*T)(nil))
	for _, col := range changes.Columns() {
		if err := s.columns.check(col); err != nil {
			return 0, err
		}
		q = q.Set("? = ?", bun.Ident(col), changes[col])
	}
	for _, c := range f {
		q = q.Where("? = ?", bun.Ident(c.Field), c.Value)
	}

	start := time.Now()
	res, err := q.Exec(ctx)

	s.record(ctx, "update", start, err)

	if err != nil {
		return 0, MapError(err)
	}
	return res.RowsAffected()
}

// Delete removes every row matching f and returns the number of rows affected.
func (s *Store[T, P]) Delete(ctx context.Context, f Filter) (int64, error) {
	if len(f) == 0 {
		return 0, ErrEmptyFilter
	}

	if err := s.checkFilter(f); err != nil {
		return 0, err
	}
	q := s.db.NewDelete().Model((*T)(nil))
	for _, c := range f {
		q = q.Where("? = ?", bun.Ident(c.Field), c.Value)
	}

	start := time.Now()
	res, err := q.Exec(ctx)

	s.record(ctx, "delete", start, err)

	if err != nil {
		return 0, MapError(err)
	}
	return res.RowsAffected()
}

func (s *Store[T, P]) Count(ctx context.Context, f Filter) (int, error) {
	start := time.Now()

	if err := s.checkFilter(f); err != nil {
		return 0, err
	}
	q := s.db.NewSelect().Model((*T)(nil))
	for _, c := range f {
		q = q.Where("? = ?", bun.Ident(c.Field), c.Value)
	}
	n, err := q.Count(ctx)

	s.record(ctx, "count", start, err)

	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, MapError(err))
	}
	return n, nil
}

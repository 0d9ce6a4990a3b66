package major

import (
	"context"
	"fmt"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/store"

	"github.com/uptrace/bun"
)

// Counter maintains majors.count_students. Every method runs on the
// transaction of the student write that triggered it, so the counter and the
// student rows commit or roll back together. The UPDATE takes the major's row
// lock, which serializes concurrent writers of the same major.
type Counter struct {
	metrics *metrics.Metrics
}

func NewCounter(m *metrics.Metrics) *Counter {
	return &Counter{metrics: m}
}

// Increment adds one student to majorID. It returns ErrMajorNotFound when
// the major does not exist.
func (c *Counter) Increment(ctx context.Context, tx bun.IDB, majorID int) error {
	n, err := c.adjust(ctx, tx, majorID, 1)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMajorNotFound
	}
	return nil
}

// Decrement removes one student from majorID. The count never goes below
// zero; a missing major or an empty count means the counter drifted and is
// reported as store.ErrConsistency.
func (c *Counter) Decrement(ctx context.Context, tx bun.IDB, majorID int) error {
	n, err := c.adjust(ctx, tx, majorID, -1)
	if err != nil {
		return err
	}
	if n == 0 {
		c.metrics.RecordConsistencyError(ctx, "majors")
		return fmt.Errorf("%w: cannot decrement count_students of major %d", store.ErrConsistency, majorID)
	}
	return nil
}

// Transfer moves one student from one major to another. Rows are locked in
// ascending id order so two opposite transfers cannot deadlock.
func (c *Counter) Transfer(ctx context.Context, tx bun.IDB, from, to int) error {
	if from == to {
		return nil
	}
	if from < to {
		if err := c.Decrement(ctx, tx, from); err != nil {
			return err
		}
		return c.Increment(ctx, tx, to)
	}
	if err := c.Increment(ctx, tx, to); err != nil {
		return err
	}
	return c.Decrement(ctx, tx, from)
}

func (c *Counter) adjust(ctx context.Context, tx bun.IDB, majorID, delta int) (int64, error) {
	start := time.Now()

	q := tx.NewUpdate().
		Model((*Major)(nil)).
		Set("count_students = count_students + ?", delta).
		Where("id = ?", majorID)
	if delta < 0 {
		q = q.Where("count_students >= ?", -delta)
	}
	res, err := q.Exec(ctx)

	c.metrics.Database.RecordQuery(ctx, "update", "majors", time.Since(start), err)

	if err != nil {
		return 0, fmt.Errorf("adjust count_students of major %d: %w", majorID, err)
	}
	return res.RowsAffected()
}

// Recount rebuilds every major's count from the students table.
func (c *Counter) Recount(ctx context.Context, db bun.IDB) (int64, error) {
	res, err := db.NewUpdate().
		Table("majors").
		Set("count_students = (SELECT COUNT(*) FROM students WHERE students.major_id = majors.id)").
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("recount majors: %w", err)
	}
	return res.RowsAffected()
}

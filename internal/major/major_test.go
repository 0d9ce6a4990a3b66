package major_test

import (
	"context"
	"testing"

	"github.com/SeerNT/UniversityAPI/internal/major"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/store"
	"github.com/SeerNT/UniversityAPI/internal/student"
	"github.com/SeerNT/UniversityAPI/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupDB(t *testing.T) *bun.DB {
	return testdb.NewSQLite(t, (*major.Major)(nil), (*student.Student)(nil))
}

func createMajor(t *testing.T, repo major.Repository, name string) *major.Major {
	t.Helper()
	m, err := repo.Create(context.Background(), &major.Major{Name: name})
	require.NoError(t, err)
	return m
}

func countOf(t *testing.T, repo major.Repository, id int) int {
	t.Helper()
	m, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return m.CountStudents
}

// insertStudentRow writes a student row without touching the counter.
func insertStudentRow(t *testing.T, database *bun.DB, majorID int, email string) {
	t.Helper()
	_, err := database.NewInsert().Model(&student.Student{
		PhoneNumber:    "+1234567890",
		FirstName:      "Row",
		LastName:       "Only",
		DateOfBirth:    student.NewDate(2000, 1, 1),
		Email:          email,
		Address:        "1 Infinite Loop, Cupertino",
		EnrollmentYear: 2020,
		Course:         1,
		MajorID:        majorID,
	}).Exec(context.Background())
	require.NoError(t, err)
}

func TestCounter(t *testing.T) {
	database := setupDB(t)
	repo := major.NewRepository(database, metrics.NewMock())
	counter := major.NewCounter(metrics.NewMock())
	ctx := context.Background()

	t.Run("IncrementAndDecrement", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		m := createMajor(t, repo, "Physics")

		require.NoError(t, counter.Increment(ctx, database, m.ID))
		require.NoError(t, counter.Increment(ctx, database, m.ID))
		assert.Equal(t, 2, countOf(t, repo, m.ID))

		require.NoError(t, counter.Decrement(ctx, database, m.ID))
		assert.Equal(t, 1, countOf(t, repo, m.ID))
	})

	t.Run("IncrementMissingMajor", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		assert.ErrorIs(t, counter.Increment(ctx, database, 42), major.ErrMajorNotFound)
	})

	t.Run("DecrementNeverGoesNegative", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		m := createMajor(t, repo, "Chemistry")

		err := counter.Decrement(ctx, database, m.ID)
		assert.ErrorIs(t, err, store.ErrConsistency)
		assert.Equal(t, 0, countOf(t, repo, m.ID))

		assert.ErrorIs(t, counter.Decrement(ctx, database, 999), store.ErrConsistency)
	})

	t.Run("TransferBothDirections", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		a := createMajor(t, repo, "Art")
		b := createMajor(t, repo, "Biology")
		require.NoError(t, counter.Increment(ctx, database, a.ID))

		require.NoError(t, counter.Transfer(ctx, database, a.ID, b.ID))
		assert.Equal(t, 0, countOf(t, repo, a.ID))
		assert.Equal(t, 1, countOf(t, repo, b.ID))

		require.NoError(t, counter.Transfer(ctx, database, b.ID, a.ID))
		assert.Equal(t, 1, countOf(t, repo, a.ID))
		assert.Equal(t, 0, countOf(t, repo, b.ID))

		require.NoError(t, counter.Transfer(ctx, database, a.ID, a.ID))
		assert.Equal(t, 1, countOf(t, repo, a.ID))
	})

	t.Run("TransferToMissingMajorRollsBack", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		a := createMajor(t, repo, "Art")
		require.NoError(t, counter.Increment(ctx, database, a.ID))

		err := database.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return counter.Transfer(ctx, tx, a.ID, 999)
		})
		assert.ErrorIs(t, err, major.ErrMajorNotFound)
		assert.Equal(t, 1, countOf(t, repo, a.ID))
	})

	t.Run("Recount", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		a := createMajor(t, repo, "Art")
		b := createMajor(t, repo, "Biology")
		insertStudentRow(t, database, a.ID, "one@example.com")
		insertStudentRow(t, database, a.ID, "two@example.com")

		n, err := counter.Recount(ctx, database)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		assert.Equal(t, 2, countOf(t, repo, a.ID))
		assert.Equal(t, 0, countOf(t, repo, b.ID))
	})
}

func TestRepository(t *testing.T) {
	database := setupDB(t)
	repo := major.NewRepository(database, metrics.NewMock())
	ctx := context.Background()

	t.Run("CreateStartsAtZero", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		m, err := repo.Create(ctx, &major.Major{Name: "Math", CountStudents: 7})
		require.NoError(t, err)
		assert.Equal(t, 0, m.CountStudents)
		assert.Equal(t, 0, countOf(t, repo, m.ID))
	})

	t.Run("DuplicateName", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		createMajor(t, repo, "Math")
		_, err := repo.Create(ctx, &major.Major{Name: "Math"})
		assert.ErrorIs(t, err, major.ErrMajorExists)
	})

	t.Run("UpdateDescription", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		createMajor(t, repo, "Math")

		desc := "numbers and proofs"
		m, err := repo.UpdateDescription(ctx, "Math", &desc)
		require.NoError(t, err)
		require.NotNil(t, m.Description)
		assert.Equal(t, desc, *m.Description)

		_, err = repo.UpdateDescription(ctx, "History", &desc)
		assert.ErrorIs(t, err, major.ErrMajorNotFound)
	})

	t.Run("DeleteEmptyMajor", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		m := createMajor(t, repo, "Math")

		require.NoError(t, repo.Delete(ctx, m.ID))
		_, err := repo.GetByID(ctx, m.ID)
		assert.ErrorIs(t, err, major.ErrMajorNotFound)

		assert.ErrorIs(t, repo.Delete(ctx, m.ID), major.ErrMajorNotFound)
	})

	t.Run("DeleteMajorWithStudents", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		m := createMajor(t, repo, "Math")
		insertStudentRow(t, database, m.ID, "s@example.com")
		require.NoError(t, major.NewCounter(metrics.NewMock()).Increment(ctx, database, m.ID))

		assert.ErrorIs(t, repo.Delete(ctx, m.ID), major.ErrMajorHasStudents)
		assert.Equal(t, 1, countOf(t, repo, m.ID))
	})

	t.Run("ForeignKeyBacksUpDriftedCounter", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		m := createMajor(t, repo, "Math")
		insertStudentRow(t, database, m.ID, "s@example.com")

		// count_students is still 0 although a student references the major
		assert.ErrorIs(t, repo.Delete(ctx, m.ID), major.ErrMajorHasStudents)
		_, err := repo.GetByID(ctx, m.ID)
		assert.NoError(t, err)
	})
}

package testdb

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/SeerNT/UniversityAPI/internal/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// NewSQLite opens a private in-memory SQLite database and creates the tables
// for models, parents first. The database is closed when the test ends.
//
// Usage:
//
//	func TestMyService(t *testing.T) {
//	    database := testdb.NewSQLite(t, (*major.Major)(nil), (*student.Student)(nil))
//
//	    t.Run("Case", func(t *testing.T) {
//	        testdb.CleanupTables(t, database, "students", "majors")
//	        // ... test
//	    })
//	}
func NewSQLite(t *testing.T, models ...interface{}) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", uuid.NewString())
	database, err := db.NewSQLite(dsn)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close(database) })

	require.NoError(t, db.RunMigrations(context.Background(), database, models...), "failed to create tables")
	return database
}

// NewSQLiteFile opens a SQLite database file in a temporary directory with a
// pool of conns connections, so concurrent transactions really run side by
// side. WAL mode and busy_timeout let writers queue on the database lock.
// A transaction that reads before it writes fails with SQLITE_BUSY when
// another writer committed in between.
func NewSQLiteFile(t *testing.T, conns int, models ...interface{}) *bun.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path)
	database, err := db.NewSQLite(dsn)
	require.NoError(t, err)

	database.SetMaxOpenConns(conns)
	database.SetMaxIdleConns(conns)

	t.Cleanup(func() { db.Close(database) })

	require.NoError(t, db.RunMigrations(context.Background(), database, models...), "failed to create tables")
	return database
}

// CleanupTables empties tables in the given order (children before parents)
// and resets their id sequences.
func CleanupTables(t *testing.T, database *bun.DB, tables ...string) {
	t.Helper()

	ctx := context.Background()

	for _, table := range tables {
		_, err := database.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err, "failed to clean table: %s", table)

		// sqlite_sequence only exists once an AUTOINCREMENT table was written.
		_, _ = database.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", table)
	}
}

package major_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/SeerNT/UniversityAPI/internal/major"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	database := setupDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mockMetrics := metrics.NewMock()

	repo := major.NewRepository(database, mockMetrics)
	handler := major.NewHandler(major.NewService(repo, logger, mockMetrics), logger)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Create", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")

		w := do(http.MethodPost, "/majors/add", `{"major_name":"Computer Science","major_description":"bits"}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp major.MajorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "major added", resp.Message)
		assert.Equal(t, "Computer Science", resp.Major.Name)
		assert.Equal(t, 0, resp.Major.CountStudents)

		w = do(http.MethodPost, "/majors/add", `{"major_name":"Computer Science"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("CountIsNotWritable", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")

		w := do(http.MethodPost, "/majors/add", `{"major_name":"Physics","count_students":10}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Validation", func(t *testing.T) {
		w := do(http.MethodPost, "/majors/add", `{"major_name":""}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("ListAndGet", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		w := do(http.MethodGet, "/majors", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())

		createMajor(t, repo, "Biology")
		w = do(http.MethodGet, "/majors", "")
		var majors []major.Major
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &majors))
		require.Len(t, majors, 1)

		w = do(http.MethodGet, "/majors/1", "")
		assert.Equal(t, http.StatusOK, w.Code)
		w = do(http.MethodGet, "/majors/2", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("UpdateDescription", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		createMajor(t, repo, "Biology")

		w := do(http.MethodPut, "/majors/update_description", `{"major_name":"Biology","major_description":"cells"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `description of major \"Biology\" updated`)

		w = do(http.MethodPut, "/majors/update_description", `{"major_name":"Geology","major_description":"rocks"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		testdb.CleanupTables(t, database, "students", "majors")
		m := createMajor(t, repo, "Biology")
		insertStudentRow(t, database, m.ID, "x@example.com")

		w := do(http.MethodDelete, "/majors/major/1", "")
		assert.Equal(t, http.StatusConflict, w.Code)

		testdb.CleanupTables(t, database, "students")
		w = do(http.MethodDelete, "/majors/major/1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "major with id 1 deleted")

		w = do(http.MethodDelete, "/majors/major/1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = do(http.MethodDelete, "/majors/major/zero", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/app"
	"github.com/SeerNT/UniversityAPI/internal/auth"
	"github.com/SeerNT/UniversityAPI/internal/config"
	"github.com/SeerNT/UniversityAPI/internal/major"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env: "test",
		Server: config.ServerConfig{
			Port:     "0",
			GRPCPort: "0",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", uuid.NewString()),
		},
		Auth: config.AuthConfig{
			Secret:          "test-secret-key-for-testing",
			Algorithm:       "HS256",
			TokenTTLMinutes: 30,
			BcryptCost:      4,
		},
		RateLimit: config.RateLimitConfig{AuthPerMinute: 600, AuthBurst: 100},
		Events:    config.EventsConfig{Driver: "none"},
		Photos: config.PhotosConfig{
			Dir:       t.TempDir(),
			URLPrefix: "/static/photos",
			MaxBytes:  1 << 20,
		},
	}
}

func setupApp(t *testing.T, opts ...func(*config.Config)) *app.App {
	t.Helper()

	cfg := testConfig(t)
	for _, opt := range opts {
		opt(cfg)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	a, err := app.New(cfg, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Shutdown(ctx))
	})
	return a
}

func call(t *testing.T, h http.Handler, method, path string, payload interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:1234"
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRootAndHealth(t *testing.T) {
	h := setupApp(t).Router()

	w := call(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"University API"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/ready", nil).Code)

	w = call(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAddStudentUpdatesMajorCount(t *testing.T) {
	h := setupApp(t).Router()

	w := call(t, h, http.MethodPost, "/majors/add", map[string]string{"major_name": "Computer Science"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created major.MajorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.NotNil(t, created.Major)
	majorID := created.Major.ID

	w = call(t, h, http.MethodPost, "/students/add", map[string]interface{}{
		"phone_number":    "+1234567890",
		"first_name":      "Ada",
		"last_name":       "Lovelace",
		"date_of_birth":   "2000-01-15",
		"email":           "ada@example.com",
		"address":         "12 Analytical Engine Road",
		"enrollment_year": 2020,
		"major_id":        majorID,
		"course":          3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// trailing slash is accepted
	w = call(t, h, http.MethodGet, "/majors/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var majors []major.Major
	require.NoError(t, json.NewDecoder(w.Body).Decode(&majors))
	require.Len(t, majors, 1)
	assert.Equal(t, 1, majors[0].CountStudents)

	w = call(t, h, http.MethodGet, "/students/by_filter?email=ada@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var found map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&found))
	assert.Equal(t, "Computer Science", found["major"])
	assert.Equal(t, "2000-01-15", found["date_of_birth"])

	w = call(t, h, http.MethodDelete, fmt.Sprintf("/majors/major/%d", majorID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInvalidStudentIsRejected(t *testing.T) {
	h := setupApp(t).Router()

	w := call(t, h, http.MethodPost, "/students/add", map[string]interface{}{
		"phone_number":    "12345",
		"first_name":      "Bad",
		"last_name":       "Phone",
		"date_of_birth":   time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
		"email":           "bad@example.com",
		"address":         "Somewhere far away",
		"enrollment_year": 2020,
		"major_id":        1,
		"course":          1,
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "phone", body.Fields["phone_number"])
	assert.Equal(t, "past_date", body.Fields["date_of_birth"])

	w = call(t, h, http.MethodGet, "/majors", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLoginFlow(t *testing.T) {
	h := setupApp(t).Router()

	w := call(t, h, http.MethodPost, "/auth/register", map[string]string{"email": "u@example.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, h, http.MethodPost, "/auth/login", map[string]string{"email": "u@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	w = call(t, h, http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u@example.com")

	assert.Equal(t, http.StatusForbidden, call(t, h, http.MethodGet, "/auth/all_users", nil, cookie).Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, h, http.MethodGet, "/auth/me", nil).Code)
}

func loginCodes(t *testing.T, h http.Handler, attempts int) []int {
	t.Helper()

	codes := make([]int, 0, attempts)
	for i := 0; i < attempts; i++ {
		var body bytes.Buffer
		require.NoError(t, json.NewEncoder(&body).Encode(map[string]string{"email": "nobody@example.com", "password": "password123"}))
		req := httptest.NewRequest(http.MethodPost, "/auth/login", &body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	return codes
}

func TestAuthRateLimit(t *testing.T) {
	strict := func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{AuthPerMinute: 1, AuthBurst: 2}
	}

	t.Run("ForwardedForIsIgnoredByDefault", func(t *testing.T) {
		h := setupApp(t, strict).Router()
		assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, loginCodes(t, h, 3))
	})

	t.Run("TrustedProxyKeysOnForwardedFor", func(t *testing.T) {
		h := setupApp(t, strict, func(cfg *config.Config) { cfg.Server.TrustProxy = true }).Router()
		assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusUnauthorized}, loginCodes(t, h, 3))
	})

	t.Run("ZeroBudgetDisablesLimiter", func(t *testing.T) {
		h := setupApp(t, func(cfg *config.Config) {
			cfg.RateLimit = config.RateLimitConfig{AuthPerMinute: 0, AuthBurst: 0}
		}).Router()
		for _, code := range loginCodes(t, h, 5) {
			assert.Equal(t, http.StatusUnauthorized, code)
		}
	})
}

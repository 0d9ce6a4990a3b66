package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimiter(t *testing.T) {
	t.Run("AllowsBurstThenRejects", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute}, logger.Discard())
		defer rl.Stop()
		handler := rl.Middleware(okHandler)

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			codes = append(codes, w.Code)
			if w.Code == http.StatusTooManyRequests {
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
			}
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("ClientsAreIndependent", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute}, logger.Discard())
		defer rl.Stop()
		handler := rl.Middleware(okHandler)

		for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			req.RemoteAddr = addr
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, addr)
		}
		assert.Equal(t, 2, rl.ClientCount())
	})

	t.Run("CleanupEvictsIdleClients", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute}, logger.Discard())
		defer rl.Stop()

		rl.limiter("10.0.0.9")
		require.Equal(t, 1, rl.ClientCount())

		rl.cleanup(time.Now().Add(time.Hour))
		assert.Equal(t, 0, rl.ClientCount())
	})

	t.Run("PerMinute", func(t *testing.T) {
		cfg := PerMinute(30, 10)
		assert.InDelta(t, 0.5, float64(cfg.Rate), 1e-9)
		assert.Equal(t, 10, cfg.Burst)
		assert.True(t, cfg.Enabled())

		assert.Equal(t, 1, PerMinute(30, 0).Burst)
	})

	t.Run("ZeroBudgetDisablesLimiting", func(t *testing.T) {
		for _, requests := range []int{0, -5} {
			cfg := PerMinute(requests, 0)
			assert.False(t, cfg.Enabled())

			rl := NewRateLimiter(cfg, logger.Discard())
			handler := rl.Middleware(okHandler)
			for i := 0; i < 50; i++ {
				req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
				req.RemoteAddr = "10.0.0.1:1234"
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				require.Equal(t, http.StatusOK, w.Code, "request %d", i)
			}
			rl.Stop()
		}
	})
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(okHandler)

	t.Run("AllowedOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/majors", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("UnknownOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/majors", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/students/add", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, true)

	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/students/42", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/students/42", entry["path"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

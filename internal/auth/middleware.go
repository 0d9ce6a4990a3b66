package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/httputil"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/user"
)

// CookieName carries the access token.
const CookieName = "users_access_token"

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrForbidden     = errors.New("insufficient permissions")
)

type contextKey string

// UserKey is the context key for the authenticated *user.User
const UserKey contextKey = "user"

// Gate resolves the cookie credential to a user and attaches it to the
// request context. Every failure ends the request with 401 and a message
// naming the cause.
func Gate(svc *Service, logger *slog.Logger, m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				deny(w, r, logger, m, "missing", ErrTokenNotFound)
				return
			}

			u, err := svc.Resolve(ctx, cookie.Value)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					deny(w, r, logger, m, "expired", err)
				case errors.Is(err, ErrTokenMissingSubject):
					deny(w, r, logger, m, "no_subject", err)
				case errors.Is(err, ErrInvalidToken):
					deny(w, r, logger, m, "invalid", ErrInvalidToken)
				case errors.Is(err, user.ErrUserNotFound):
					deny(w, r, logger, m, "unknown_user", err)
				default:
					logger.ErrorContext(ctx, "failed to resolve token", "error", err)
					httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, UserKey, u)))
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, logger *slog.Logger, m *metrics.Metrics, reason string, err error) {
	logger.WarnContext(r.Context(), "access denied", "reason", reason, "path", r.URL.Path)
	m.RecordAccessDenied(r.Context(), reason)

	message := err.Error()
	if errors.Is(err, ErrTokenMissingSubject) {
		message = "user id not found in token"
	}
	httputil.RespondWithError(w, http.StatusUnauthorized, message)
}

// RequireAdmin must run after Gate.
func RequireAdmin(logger *slog.Logger, m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				deny(w, r, logger, m, "missing", ErrTokenNotFound)
				return
			}
			if !u.IsAdmin {
				logger.WarnContext(r.Context(), "admin route refused", "user_id", u.ID, "path", r.URL.Path)
				m.RecordAccessDenied(r.Context(), "forbidden")
				httputil.RespondWithError(w, http.StatusForbidden, ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext extracts the user attached by Gate
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserKey).(*user.User)
	return u, ok && u != nil
}

type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

// CookieOptionsFor relaxes SameSite for local testing and requires HTTPS in
// production environments.
func CookieOptionsFor(env string, ttl time.Duration) CookieOptions {
	sameSite := http.SameSiteStrictMode
	if env == "development" || env == "local" || env == "test" {
		sameSite = http.SameSiteLaxMode
	}

	return CookieOptions{
		Secure:   env == "production" || env == "prod",
		SameSite: sameSite,
		MaxAge:   int(ttl.Seconds()),
	}
}

// SetAuthCookie sets the token in an HttpOnly cookie
func SetAuthCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
		Path:     "/",
		MaxAge:   opts.MaxAge,
	})
}

// ClearAuthCookie removes the auth cookie
func ClearAuthCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
		Path:     "/",
		MaxAge:   -1,
	})
}

package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SeerNT/UniversityAPI/internal/httputil"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/user"
	"github.com/SeerNT/UniversityAPI/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service   *Service
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator *validator.Validate
	cookies   CookieOptions
}

func NewHandler(service *Service, cookies CookieOptions, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		metrics:   m,
		validator: validation.New(),
		cookies:   cookies,
	}
}

type RegisterResponse struct {
	Message string     `json:"message"`
	User    *user.User `json:"user"`
}

// RegisterRoutes mounts /auth. limit, when set, throttles the credential
// endpoints.
func (h *Handler) RegisterRoutes(router chi.Router, limit func(http.Handler) http.Handler) {
	router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limit != nil {
				r.Use(limit)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(Gate(h.service, h.logger, h.metrics))
			r.Get("/me", h.Me)
			r.With(RequireAdmin(h.logger, h.metrics)).Get("/all_users", h.AllUsers)
		})
	})
}

// Register creates a new user account
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.RespondWithValidationError(w, err)
		return
	}

	u, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			httputil.RespondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "registration failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, RegisterResponse{
		Message: "registration successful",
		User:    u,
	})
}

// Login authenticates a user and sets the access token cookie
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.RespondWithValidationError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httputil.RespondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	SetAuthCookie(w, resp.AccessToken, h.cookies)
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

// Logout clears the auth cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearAuthCookie(w, h.cookies)
	httputil.RespondWithMessage(w, http.StatusOK, "logged out")
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, ErrTokenNotFound.Error())
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) AllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list users", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if users == nil {
		users = []user.User{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, users)
}

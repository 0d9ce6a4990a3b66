package major

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SeerNT/UniversityAPI/internal/httputil"
	"github.com/SeerNT/UniversityAPI/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validation.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/majors", func(r chi.Router) {
		r.Get("/", h.ListMajors)
		r.Post("/add", h.CreateMajor)
		r.Put("/update_description", h.UpdateDescription)
		r.Delete("/major/{id}", h.DeleteMajor)
		r.Get("/{id}", h.GetMajor)
	})
}

func (h *Handler) ListMajors(w http.ResponseWriter, r *http.Request) {
	majors, err := h.service.ListMajors(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if majors == nil {
		majors = []Major{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, majors)
}

func (h *Handler) GetMajor(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid major id")
		return
	}

	m, err := h.service.GetMajor(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, m)
}

func (h *Handler) CreateMajor(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithValidationError(w, err)
		return
	}

	m, err := h.service.CreateMajor(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, MajorResponse{
		Message: "major added",
		Major:   m,
	})
}

func (h *Handler) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	var req UpdateDescriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithValidationError(w, err)
		return
	}

	m, err := h.service.UpdateDescription(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, MajorResponse{
		Message: fmt.Sprintf("description of major %q updated", m.Name),
		Major:   m,
	})
}

func (h *Handler) DeleteMajor(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid major id")
		return
	}

	if err := h.service.DeleteMajor(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithMessage(w, http.StatusOK, fmt.Sprintf("major with id %d deleted", id))
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrMajorNotFound):
		httputil.RespondWithMessage(w, http.StatusNotFound, "major not found")
	case errors.Is(err, ErrMajorExists):
		httputil.RespondWithMessage(w, http.StatusConflict, "major with this name already exists")
	case errors.Is(err, ErrMajorHasStudents):
		httputil.RespondWithMessage(w, http.StatusConflict, "major still has students and cannot be deleted")
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "major request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

package student

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/SeerNT/UniversityAPI/internal/httputil"
	"github.com/SeerNT/UniversityAPI/internal/major"
	"github.com/SeerNT/UniversityAPI/internal/photo"
	"github.com/SeerNT/UniversityAPI/internal/store"
	"github.com/SeerNT/UniversityAPI/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const defaultMaxPhotoBytes = 5 << 20

type Handler struct {
	service       Service
	validate      *validator.Validate
	logger        *slog.Logger
	maxPhotoBytes int64
}

func NewHandler(service Service, logger *slog.Logger, maxPhotoBytes int64) *Handler {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = defaultMaxPhotoBytes
	}
	return &Handler{
		service:       service,
		validate:      validation.New(),
		logger:        logger,
		maxPhotoBytes: maxPhotoBytes,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/students", func(r chi.Router) {
		r.Get("/", h.ListStudents)
		r.Get("/by_filter", h.FindStudent)
		r.Post("/add", h.CreateStudent)
		r.Delete("/del/{id}", h.DeleteStudent)
		r.Get("/{id}", h.GetStudent)
		r.Put("/{id}", h.UpdateStudent)
		r.Post("/{id}/photo", h.UploadPhoto)
	})
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	students, err := h.service.ListStudents(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, students)
}

func (h *Handler) FindStudent(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	st, err := h.service.FindStudent(r.Context(), filter)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			httputil.RespondWithMessage(w, http.StatusNotFound, "no student matches the given filter")
			return
		}
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, st)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	st, err := h.service.GetStudent(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			httputil.RespondWithMessage(w, http.StatusNotFound, fmt.Sprintf("student with id %d not found", id))
			return
		}
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, st)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithValidationError(w, err)
		return
	}

	st, err := h.service.CreateStudent(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, StudentResponse{
		Message: "student added",
		Student: st,
	})
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithValidationError(w, err)
		return
	}

	st, err := h.service.UpdateStudent(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, StudentResponse{
		Message: fmt.Sprintf("student with id %d updated", id),
		Student: st,
	})
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithMessage(w, http.StatusOK, fmt.Sprintf("student with id %d deleted", id))
}

// UploadPhoto takes the raw image as the request body.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxPhotoBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondWithError(w, http.StatusRequestEntityTooLarge, "photo is too large")
			return
		}
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.service.UploadPhoto(r.Context(), id, data)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, StudentResponse{
		Message: "photo uploaded",
		Student: st,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrStudentNotFound):
		httputil.RespondWithMessage(w, http.StatusNotFound, "student not found")
	case errors.Is(err, major.ErrMajorNotFound):
		httputil.RespondWithMessage(w, http.StatusNotFound, "major not found")
	case errors.Is(err, ErrConcurrentUpdate):
		httputil.RespondWithMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNoChanges), errors.Is(err, photo.ErrEmpty):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, photo.ErrUnsupportedType):
		httputil.RespondWithError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, store.ErrConsistency):
		h.logger.ErrorContext(r.Context(), "CONSISTENCY VIOLATION", "error", err, "path", r.URL.Path)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	default:
		h.logger.ErrorContext(r.Context(), "student request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

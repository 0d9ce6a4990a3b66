package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/SeerNT/UniversityAPI/internal/validation"

	"github.com/go-chi/chi/v5"
)

// MessageResponse is the body of every write endpoint.
type MessageResponse struct {
	Message string `json:"message"`
}

// ValidationResponse carries field-level validation detail.
type ValidationResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// RespondWithError writes an error response in JSON format
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithMessage writes {"message": ...}
func RespondWithMessage(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, MessageResponse{Message: message})
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// DecodeJSON decodes the request body, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// RespondWithValidationError writes 422 with the failed rule per field.
func RespondWithValidationError(w http.ResponseWriter, err error) {
	RespondWithJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
		Message: "validation failed",
		Fields:  validation.Fields(err),
	})
}

// IDParam parses a positive integer URL parameter.
func IDParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return id, nil
}

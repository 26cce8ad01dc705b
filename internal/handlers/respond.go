package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/petermazzocco/go-doll-studio/internal/dolls"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps the dolls error kinds onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dolls.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, dolls.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dolls.ErrUpstream):
		status = http.StatusBadGateway
	}
	writeError(w, status, dolls.Message(err))
}

// decodeJSON reads a JSON body into dst and runs its validate tags.
// invalidMsg is reported for both malformed JSON and failed validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, invalidMsg string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, invalidMsg)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, invalidMsg)
		return false
	}
	return true
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"image-drop/internal/gallery"
)

type errorResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResp{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, gallery.ErrInvalidInput), errors.Is(err, gallery.ErrTransport):
		return http.StatusBadRequest
	case errors.Is(err, gallery.ErrStorageFailure), errors.Is(err, gallery.ErrStorageUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorReason is the metrics label for a failed upload.
func errorReason(err error) string {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return "too_large"
	case errors.Is(err, gallery.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, gallery.ErrTransport):
		return "transport"
	case errors.Is(err, gallery.ErrStorageFailure):
		return "storage"
	default:
		return "internal"
	}
}

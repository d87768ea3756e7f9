package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"reel-editor/internal/project"
	"reel-editor/internal/service"
	"reel-editor/internal/storage"
	"reel-editor/internal/templates"
	"reel-editor/internal/validation"
)

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrProjectNotFound),
		errors.Is(err, templates.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	case errors.As(err, &maxBytes),
		errors.Is(err, validation.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, project.ErrMalformedProject),
		errors.Is(err, validation.ErrInvalidProject),
		errors.Is(err, validation.ErrInvalidStatus),
		errors.Is(err, validation.ErrTitleTooLong),
		errors.Is(err, validation.ErrInvalidFileType),
		errors.Is(err, validation.ErrFilenameTooLong),
		errors.Is(err, validation.ErrEmptyFile):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotConfigured):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body. Server errors are logged and their
// detail is not sent to the client.
func (h *EditorHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		h.Log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

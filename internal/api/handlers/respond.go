package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/isdelr/pteroctrl-be/internal/services"
	"github.com/rs/zerolog/log"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrServerNotFound),
		errors.Is(err, services.ErrWebhookNotFound),
		errors.Is(err, services.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrPanelNotConfigured):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status statusFor picks. Internal errors are
// logged and prefixed with msg.
func respondError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		http.Error(w, msg+": "+err.Error(), status)
		return
	}
	http.Error(w, err.Error(), status)
}

// queryInt reads a positive integer query parameter, clamped to max.
func queryInt(r *http.Request, name string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

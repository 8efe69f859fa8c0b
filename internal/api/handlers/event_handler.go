package handlers

import (
	"net/http"

	"github.com/isdelr/pteroctrl-be/internal/services"
)

// EventHandler handles HTTP requests related to the audit log.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent activity/events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.GetRecentEvents(queryInt(r, "limit", 20, 500))
	if err != nil {
		respondError(w, err, "Failed to retrieve events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

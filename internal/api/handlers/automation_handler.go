package handlers

import (
	"net/http"

	"github.com/isdelr/pteroctrl-be/internal/services"
)

// AutomationHandler exposes the inactive-server automation.
type AutomationHandler struct {
	service services.AutomationServiceProvider
}

// NewAutomationHandler creates a new AutomationHandler.
func NewAutomationHandler(service services.AutomationServiceProvider) *AutomationHandler {
	return &AutomationHandler{service: service}
}

// Check evaluates the rules and executes the resulting actions.
func (h *AutomationHandler) Check(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunCheck(r.Context())
	if err != nil {
		respondError(w, err, "Failed to run automation check")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Summary aggregates the registry per category.
func (h *AutomationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary()
	if err != nil {
		respondError(w, err, "Failed to build automation summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Rules lists the active rule table.
func (h *AutomationHandler) Rules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Rules())
}

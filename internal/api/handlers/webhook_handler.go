package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/services"
)

// WebhookHandler handles HTTP requests for Discord webhooks.
type WebhookHandler struct {
	service services.WebhookServiceProvider
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(service services.WebhookServiceProvider) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// GetAll lists every webhook.
func (h *WebhookHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.service.GetAllWebhooks()
	if err != nil {
		respondError(w, err, "Failed to retrieve webhooks")
		return
	}
	respondJSON(w, http.StatusOK, webhooks)
}

// Get returns one webhook.
func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.service.GetWebhookByID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err, "Failed to retrieve webhook")
		return
	}
	respondJSON(w, http.StatusOK, webhook)
}

// Create stores a new webhook.
func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var webhook models.Webhook
	if err := json.NewDecoder(r.Body).Decode(&webhook); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateWebhook(webhook)
	if err != nil {
		respondError(w, err, "Failed to create webhook")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// Update replaces a webhook's settings.
func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var webhook models.Webhook
	if err := json.NewDecoder(r.Body).Decode(&webhook); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateWebhook(chi.URLParam(r, "id"), webhook)
	if err != nil {
		respondError(w, err, "Failed to update webhook")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Delete removes a webhook.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteWebhook(chi.URLParam(r, "id")); err != nil {
		respondError(w, err, "Failed to delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test sends a test message through a webhook.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	err := h.service.TestWebhook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			// The remote end failed, not us.
			http.Error(w, "Webhook test failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		respondError(w, err, "Failed to test webhook")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Test notification sent"})
}

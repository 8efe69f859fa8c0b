package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/services"
)

// ServerHandler handles HTTP requests related to servers.
type ServerHandler struct {
	service services.ServerServiceProvider
	events  services.EventServiceProvider
}

// NewServerHandler creates a new ServerHandler.
func NewServerHandler(service services.ServerServiceProvider, events services.EventServiceProvider) *ServerHandler {
	return &ServerHandler{service: service, events: events}
}

// GetAll handles the request to get all servers.
func (h *ServerHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	servers, err := h.service.GetAllServers()
	if err != nil {
		respondError(w, err, "Failed to retrieve servers")
		return
	}
	respondJSON(w, http.StatusOK, servers)
}

// Get handles the request to get a single server by its ID.
func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	server, err := h.service.GetServerByID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err, "Failed to retrieve server")
		return
	}
	respondJSON(w, http.StatusOK, server)
}

type createServerPayload struct {
	ExternalID    string `json:"externalId"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	QueryAddress  string `json:"queryAddress"`
	QueryPassword string `json:"queryPassword"`
}

// Create registers a panel server by hand.
func (h *ServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createServerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	server, err := h.service.CreateServer(models.Server{
		ExternalID:    payload.ExternalID,
		Name:          payload.Name,
		Category:      payload.Category,
		QueryAddress:  payload.QueryAddress,
		QueryPassword: payload.QueryPassword,
	})
	if err != nil {
		respondError(w, err, "Failed to create server")
		return
	}
	respondJSON(w, http.StatusCreated, server)
}

// Update handles the request to update an existing server.
func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var update models.ServerUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	server, err := h.service.UpdateServer(chi.URLParam(r, "id"), update)
	if err != nil {
		respondError(w, err, "Failed to update server")
		return
	}
	respondJSON(w, http.StatusOK, server)
}

// Delete handles the request to delete a server.
func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteServer(chi.URLParam(r, "id")); err != nil {
		respondError(w, err, "Failed to delete server")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PerformAction handles power actions like start, stop, restart and kill.
func (h *ServerHandler) PerformAction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.PerformServerAction(r.Context(), chi.URLParam(r, "id"), payload.Action); err != nil {
		respondError(w, err, "Failed to perform action")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Action '" + payload.Action + "' performed successfully"})
}

// Sync imports the panel's server list into the registry.
func (h *ServerHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SyncFromPanel(r.Context())
	if err != nil {
		respondError(w, err, "Failed to sync servers")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Sync completed: " + strconv.Itoa(result.Synced) + " new servers added, " + strconv.Itoa(result.Updated) + " servers updated",
		"synced":  result.Synced,
		"updated": result.Updated,
		"total":   result.Total,
	})
}

// BulkAction sends one power action to every matching server.
func (h *ServerHandler) BulkAction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Action       string `json:"action"`
		Category     string `json:"category"`
		InactiveOnly bool   `json:"inactiveOnly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	results, err := h.service.BulkAction(r.Context(), payload.Action, payload.Category, payload.InactiveOnly)
	if err != nil {
		respondError(w, err, "Failed to perform bulk action")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// History returns the resource samples of the last ?hours= (default 24, max 168).
func (h *ServerHandler) History(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24, 168)
	history, err := h.service.GetResourceHistory(chi.URLParam(r, "id"), time.Duration(hours)*time.Hour)
	if err != nil {
		respondError(w, err, "Failed to retrieve resource history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Logs pages through the audit entries of one server.
func (h *ServerHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.GetServerByID(id); err != nil {
		respondError(w, err, "Failed to retrieve server")
		return
	}

	limit := queryInt(r, "limit", 50, 500)
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	events, err := h.events.GetServerEvents(id, limit, offset)
	if err != nil {
		respondError(w, err, "Failed to retrieve server logs")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/services"
)

// ScheduleHandler handles HTTP requests related to server power schedules.
type ScheduleHandler struct {
	service services.ScheduleServiceProvider
	servers services.ServerServiceProvider
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(service services.ScheduleServiceProvider, servers services.ServerServiceProvider) *ScheduleHandler {
	return &ScheduleHandler{service: service, servers: servers}
}

// GetAllForServer handles the request to get all schedules for a server.
func (h *ScheduleHandler) GetAllForServer(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.GetSchedulesForServer(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err, "Failed to retrieve schedules")
		return
	}
	respondJSON(w, http.StatusOK, schedules)
}

// Create handles the request to create a new schedule.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "id")
	if _, err := h.servers.GetServerByID(serverID); err != nil {
		respondError(w, err, "Failed to retrieve server")
		return
	}

	var schedule models.Schedule
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	schedule.ServerID = serverID

	created, err := h.service.CreateSchedule(schedule)
	if err != nil {
		respondError(w, err, "Failed to create schedule")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// Update handles the request to update an existing schedule.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var schedule models.Schedule
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateSchedule(chi.URLParam(r, "scheduleId"), schedule)
	if err != nil {
		respondError(w, err, "Failed to update schedule")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Delete handles the request to delete a schedule.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSchedule(chi.URLParam(r, "scheduleId")); err != nil {
		respondError(w, err, "Failed to delete schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

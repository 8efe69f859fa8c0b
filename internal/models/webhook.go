package models

import (
	"encoding/json"
	"time"
)

// Webhook is a Discord webhook subscribed to a set of event types.
type Webhook struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	URL            string    `json:"webhookUrl"`
	EventTypes     []string  `json:"eventTypes"`
	EventTypesJSON string    `json:"-"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PrepareForDB marshals the event type list for storage.
func (w *Webhook) PrepareForDB() {
	b, _ := json.Marshal(w.EventTypes)
	w.EventTypesJSON = string(b)
}

// PrepareForAPI unmarshals the stored event type list.
func (w *Webhook) PrepareForAPI() {
	if w.EventTypesJSON != "" {
		json.Unmarshal([]byte(w.EventTypesJSON), &w.EventTypes)
	}
}

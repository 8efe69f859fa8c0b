package models

import "time"

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event represents an audit log entry or alert.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "automation", "server.stop", "system.alert.cpu"
	Level     string    `json:"level"` // "info", "warn", "error"
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"` // JSON blob, optional
	ServerID  *string   `json:"serverId,omitempty"` // Nullable for system-wide events
	CreatedAt time.Time `json:"createdAt"`
}

package models

import "time"

// Server statuses as tracked in the local registry.
const (
	StatusOnline    = "online"
	StatusOffline   = "offline"
	StatusStarting  = "starting"
	StatusStopping  = "stopping"
	StatusSuspended = "suspended"
)

// Server categories. The set is fixed; automation rules are keyed by it.
const (
	CategoryMinecraft  = "minecraft"
	CategoryGTA        = "gta"
	CategoryWebsite    = "website"
	CategoryDiscordBot = "discord-bot"
	CategoryDatabase   = "database"
	CategoryOther      = "other"
)

// Categories lists every known category in display order.
var Categories = []string{
	CategoryMinecraft,
	CategoryGTA,
	CategoryDiscordBot,
	CategoryWebsite,
	CategoryDatabase,
	CategoryOther,
}

// IsValidCategory reports whether c is one of the known categories.
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// IsPlayerAware reports whether servers of the category expose a meaningful player count.
func IsPlayerAware(category string) bool {
	return category == CategoryMinecraft || category == CategoryGTA
}

// Server represents a panel server known to the local registry.
type Server struct {
	ID             string        `json:"id"`
	ExternalID     string        `json:"externalId"` // Panel identifier, immutable
	Name           string        `json:"name"`
	Category       string        `json:"category"`
	Status         string        `json:"status"`
	Resources      ResourceUsage `json:"resources"`
	PlayerCount    *int          `json:"playerCount,omitempty"`
	QueryAddress   string        `json:"queryAddress,omitempty"` // host:port used for player probes
	QueryPassword  string        `json:"-"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Players returns the known player count, or 0 when none was recorded.
func (s Server) Players() int {
	if s.PlayerCount == nil {
		return 0
	}
	return *s.PlayerCount
}

// ResourceUsage holds the last polled resource figures for a server.
type ResourceUsage struct {
	CPU         float64 `json:"cpu"` // percent, may exceed 100 on multi-core limits
	MemoryBytes int64   `json:"memoryBytes"`
	MemoryLimit int64   `json:"memoryLimit"`
	DiskBytes   int64   `json:"diskBytes"`
	DiskLimit   int64   `json:"diskLimit"`
	NetworkRx   int64   `json:"networkRx"`
	NetworkTx   int64   `json:"networkTx"`
	UptimeMs    int64   `json:"uptimeMs"`
}

// ResourceDataPoint is one row of a server's resource history.
type ResourceDataPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    float64   `json:"cpuUsage"`
	MemoryBytes int64     `json:"memoryBytes"`
	Players     *int      `json:"players,omitempty"`
}

// SyncResult reports the outcome of a registry sync against the panel.
type SyncResult struct {
	Synced  int `json:"synced"`  // newly registered servers
	Updated int `json:"updated"` // existing servers refreshed
	Total   int `json:"total"`
}

// BulkActionResult is the outcome of a power action on one server of a bulk request.
type BulkActionResult struct {
	ServerID string `json:"serverId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// ServerUpdate carries the user editable fields of a server. Nil fields are left unchanged.
type ServerUpdate struct {
	Name          *string `json:"name"`
	Category      *string `json:"category"`
	QueryAddress  *string `json:"queryAddress"`
	QueryPassword *string `json:"queryPassword"`
}

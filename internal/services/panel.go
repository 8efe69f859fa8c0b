package services

import (
	"context"
	"errors"
	"strings"

	"github.com/isdelr/pteroctrl-be/internal/models"
)

var (
	// ErrPanelNotConfigured is returned when no panel credentials are available.
	ErrPanelNotConfigured = errors.New("please configure your Pterodactyl API settings first")
	// ErrServerNotFound is returned for unknown local server ids.
	ErrServerNotFound = errors.New("server not found")
	// ErrInvalidInput wraps validation failures of user supplied data.
	ErrInvalidInput = errors.New("invalid input")
)

// PanelProvider is the upstream the dashboard reads servers from and sends
// power signals to.
type PanelProvider interface {
	Configured() bool
	ListServers(ctx context.Context) ([]models.UpstreamServer, error)
	GetResources(ctx context.Context, externalID string) (models.ResourceSnapshot, error)
	SendPowerSignal(ctx context.Context, externalID string, signal models.PowerSignal) error
}

// DetectCategory guesses a category from a server's name and description.
func DetectCategory(name, description string) string {
	text := strings.ToLower(name + " " + description + " ")
	switch {
	case strings.Contains(text, "minecraft") || strings.Contains(text, "mc "):
		return models.CategoryMinecraft
	case strings.Contains(text, "gta") || strings.Contains(text, "fivem"):
		return models.CategoryGTA
	case strings.Contains(text, "web") || strings.Contains(text, "site"):
		return models.CategoryWebsite
	case strings.Contains(text, "bot") || strings.Contains(text, "discord"):
		return models.CategoryDiscordBot
	case strings.Contains(text, "database") || strings.Contains(text, "db "):
		return models.CategoryDatabase
	default:
		return models.CategoryOther
	}
}

// Package players probes game servers for their online player count.
package players

import (
	"context"
	"errors"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

var (
	// ErrUnsupported is returned for categories without a player probe.
	ErrUnsupported = errors.New("player count not supported for this category")
	// ErrNoQueryAddress is returned when the server has no query address configured.
	ErrNoQueryAddress = errors.New("server has no query address")
)

// Counter reports how many players are connected to a server.
type Counter interface {
	PlayerCount(ctx context.Context, server models.Server) (int, error)
}

// Registry dispatches probes by server category.
type Registry struct {
	counters map[string]Counter
}

// NewRegistry returns a registry with the Minecraft RCON and FiveM probes.
func NewRegistry() *Registry {
	return &Registry{counters: map[string]Counter{
		models.CategoryMinecraft: NewRCONCounter(DefaultTimeout),
		models.CategoryGTA:       NewFiveMCounter(DefaultTimeout),
	}}
}

// Register sets the probe for a category.
func (r *Registry) Register(category string, c Counter) {
	r.counters[category] = c
}

// PlayerCount probes the server with the counter registered for its category.
func (r *Registry) PlayerCount(ctx context.Context, server models.Server) (int, error) {
	c, ok := r.counters[server.Category]
	if !ok {
		return 0, ErrUnsupported
	}
	if server.QueryAddress == "" {
		return 0, ErrNoQueryAddress
	}
	return c.PlayerCount(ctx, server)
}

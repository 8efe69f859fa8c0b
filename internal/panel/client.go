// Package panel talks to the Pterodactyl Application and Client APIs.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned when the panel URL or an API key is missing.
var ErrNotConfigured = errors.New("pterodactyl panel is not configured")

// APIError is a non-2xx answer from the panel.
type APIError struct {
	API        string // "Application" or "Client"
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Pterodactyl %s API error: %d %s", e.API, e.StatusCode, e.Body)
}

// Options configure a Client.
type Options struct {
	URL            string
	ApplicationKey string
	ClientKey      string
	Timeout        time.Duration
	CacheTTL       time.Duration // 0 disables the resource cache
}

// Client is a Pterodactyl panel client.
type Client struct {
	baseURL string
	appKey  string
	userKey string
	http    *http.Client
	cache   *bigcache.BigCache
}

// New creates a Client. A client with missing credentials is valid but every
// call returns ErrNotConfigured.
func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.URL, "/"),
		appKey:  opts.ApplicationKey,
		userKey: opts.ClientKey,
		http:    &http.Client{Timeout: opts.Timeout},
	}

	if opts.CacheTTL > 0 {
		cfg := bigcache.DefaultConfig(opts.CacheTTL)
		cfg.CleanWindow = opts.CacheTTL
		cfg.Shards = 16
		cfg.MaxEntriesInWindow = 1024
		cfg.Verbose = false
		cache, err := bigcache.New(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Configured reports whether the panel URL and client key are set.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.userKey != ""
}

// Close releases the resource cache.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

type pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

type serverListResponse struct {
	Data []struct {
		Attributes struct {
			Identifier  string `json:"identifier"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Suspended   bool   `json:"suspended"`
			IsSuspended bool   `json:"is_suspended"` // Client API spelling
			Limits      struct {
				Memory int64 `json:"memory"` // MiB, 0 = unlimited
				Disk   int64 `json:"disk"`   // MiB
			} `json:"limits"`
		} `json:"attributes"`
	} `json:"data"`
	Meta struct {
		Pagination pagination `json:"pagination"`
	} `json:"meta"`
}

// ListServers pages through every server visible to the application key.
// The client key is used when no application key is configured.
func (c *Client) ListServers(ctx context.Context) ([]models.UpstreamServer, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var servers []models.UpstreamServer
	for page := 1; ; page++ {
		var resp serverListResponse
		path := fmt.Sprintf("/api/application/servers?page=%d&per_page=100", page)
		api, key := "Application", c.appKey
		if key == "" {
			path = fmt.Sprintf("/api/client?page=%d&per_page=100", page)
			api, key = "Client", c.userKey
		}
		if err := c.do(ctx, http.MethodGet, path, api, key, nil, &resp); err != nil {
			return nil, err
		}

		for _, d := range resp.Data {
			a := d.Attributes
			servers = append(servers, models.UpstreamServer{
				ExternalID:  a.Identifier,
				Name:        a.Name,
				Description: a.Description,
				Suspended:   a.Suspended || a.IsSuspended,
				MemoryLimit: a.Limits.Memory * 1024 * 1024,
				DiskLimit:   a.Limits.Disk * 1024 * 1024,
			})
		}

		if page >= resp.Meta.Pagination.TotalPages {
			break
		}
	}
	return servers, nil
}

type resourcesResponse struct {
	Attributes struct {
		CurrentState string `json:"current_state"`
		IsSuspended  bool   `json:"is_suspended"`
		Resources    struct {
			MemoryBytes    int64   `json:"memory_bytes"`
			CPUAbsolute    float64 `json:"cpu_absolute"`
			DiskBytes      int64   `json:"disk_bytes"`
			NetworkRxBytes int64   `json:"network_rx_bytes"`
			NetworkTxBytes int64   `json:"network_tx_bytes"`
			Uptime         int64   `json:"uptime"`
		} `json:"resources"`
	} `json:"attributes"`
}

// GetResources fetches the live state of one server. Results are cached for
// the configured TTL.
func (c *Client) GetResources(ctx context.Context, externalID string) (models.ResourceSnapshot, error) {
	if !c.Configured() {
		return models.ResourceSnapshot{}, ErrNotConfigured
	}

	if c.cache != nil {
		if raw, err := c.cache.Get(externalID); err == nil {
			var snap models.ResourceSnapshot
			if json.Unmarshal(raw, &snap) == nil {
				return snap, nil
			}
		}
	}

	var resp resourcesResponse
	path := "/api/client/servers/" + externalID + "/resources"
	if err := c.do(ctx, http.MethodGet, path, "Client", c.userKey, nil, &resp); err != nil {
		return models.ResourceSnapshot{}, err
	}

	a := resp.Attributes
	snap := models.ResourceSnapshot{
		State:       a.CurrentState,
		Suspended:   a.IsSuspended,
		CPU:         a.Resources.CPUAbsolute,
		MemoryBytes: a.Resources.MemoryBytes,
		DiskBytes:   a.Resources.DiskBytes,
		NetworkRx:   a.Resources.NetworkRxBytes,
		NetworkTx:   a.Resources.NetworkTxBytes,
		UptimeMs:    a.Resources.Uptime,
	}

	if c.cache != nil {
		if raw, err := json.Marshal(snap); err == nil {
			c.cache.Set(externalID, raw)
		}
	}
	return snap, nil
}

// SendPowerSignal sends a power action to one server.
func (c *Client) SendPowerSignal(ctx context.Context, externalID string, signal models.PowerSignal) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body := map[string]string{"signal": string(signal)}
	path := "/api/client/servers/" + externalID + "/power"
	if err := c.do(ctx, http.MethodPost, path, "Client", c.userKey, body, nil); err != nil {
		return err
	}

	if c.cache != nil {
		c.cache.Delete(externalID)
	}
	log.Debug().Str("external_id", externalID).Str("signal", string(signal)).Msg("Power signal sent to panel")
	return nil
}

func (c *Client) do(ctx context.Context, method, path, api, key string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pterodactyl %s API request failed: %w", api, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{API: api, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode pterodactyl %s API response: %w", api, err)
	}
	return nil
}

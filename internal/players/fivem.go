package players

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
)

// FiveMCounter reads /players.json from a FiveM server's HTTP endpoint.
type FiveMCounter struct {
	client *http.Client
}

// NewFiveMCounter creates a FiveMCounter.
func NewFiveMCounter(timeout time.Duration) *FiveMCounter {
	return &FiveMCounter{client: &http.Client{Timeout: timeout}}
}

// PlayerCount returns the length of the server's player list.
func (c *FiveMCounter) PlayerCount(ctx context.Context, server models.Server) (int, error) {
	base := server.QueryAddress
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/players.json", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("players.json returned %d", resp.StatusCode)
	}

	var list []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return 0, fmt.Errorf("failed to decode players.json: %w", err)
	}
	return len(list), nil
}

package players

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/gorcon/rcon"
	"github.com/isdelr/pteroctrl-be/internal/models"
)

// Matches both "There are 3 of a max of 20 players online: ..." and the
// pre-1.13 "There are 3/20 players online:".
var listPattern = regexp.MustCompile(`There are (\d+)(?: of a max of |/)\d+ players online`)

// RCONCounter asks a Minecraft server for its player list over RCON.
type RCONCounter struct {
	timeout time.Duration
}

// NewRCONCounter creates an RCONCounter.
func NewRCONCounter(timeout time.Duration) *RCONCounter {
	return &RCONCounter{timeout: timeout}
}

// PlayerCount runs "list" and parses the reply.
func (c *RCONCounter) PlayerCount(ctx context.Context, server models.Server) (int, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	conn, err := rcon.Dial(server.QueryAddress, server.QueryPassword,
		rcon.SetDialTimeout(timeout),
		rcon.SetDeadline(timeout))
	if err != nil {
		return 0, fmt.Errorf("could not connect via rcon: %w", err)
	}
	defer conn.Close()

	response, err := conn.Execute("list")
	if err != nil {
		return 0, fmt.Errorf("rcon command failed: %w", err)
	}
	return ParseListResponse(response)
}

// ParseListResponse extracts the online count from a Minecraft "list" reply.
func ParseListResponse(response string) (int, error) {
	m := listPattern.FindStringSubmatch(response)
	if m == nil {
		return 0, fmt.Errorf("unexpected list response %q", response)
	}
	return strconv.Atoi(m[1])
}

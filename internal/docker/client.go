// Package docker reads and controls Pterodactyl server containers directly on
// a Wings node, for setups where the panel API is unavailable.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/rs/zerolog/log"
)

// ServiceLabel is set by Wings on every server container.
const ServiceLabel = "Service=Pterodactyl"

// api is the subset of the Docker client used here.
type api interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspectWithRaw(ctx context.Context, containerID string, getSize bool) (container.InspectResponse, []byte, error)
	ContainerStats(ctx context.Context, containerID string, stream bool) (container.StatsResponseReader, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerKill(ctx context.Context, containerID, signal string) error
	Close() error
}

// Client wraps the official Docker client to expose Wings containers as
// panel servers. The container name is the server's external id.
type Client struct {
	cli api
}

// New creates a new Docker client wrapper.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

// Configured reports whether the client can be used.
func (c *Client) Configured() bool {
	return c != nil && c.cli != nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// ListServers lists the server containers managed by Wings.
func (c *Client) ListServers(ctx context.Context) ([]models.UpstreamServer, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ServiceLabel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	servers := make([]models.UpstreamServer, 0, len(containers))
	for _, ctr := range containers {
		if len(ctr.Names) == 0 {
			continue
		}
		id := strings.TrimPrefix(ctr.Names[0], "/")
		name := ctr.Labels["pteroctrl.name"]
		if name == "" {
			name = id
		}
		servers = append(servers, models.UpstreamServer{
			ExternalID:  id,
			Name:        name,
			Description: ctr.Labels["pteroctrl.description"],
		})
	}
	return servers, nil
}

// GetResources inspects a container and, when it is running, samples its stats.
func (c *Client) GetResources(ctx context.Context, externalID string) (models.ResourceSnapshot, error) {
	info, _, err := c.cli.ContainerInspectWithRaw(ctx, externalID, true)
	if err != nil {
		return models.ResourceSnapshot{}, err
	}
	if info.ContainerJSONBase == nil {
		return models.ResourceSnapshot{}, fmt.Errorf("container %s returned no inspect data", externalID)
	}

	snap := models.ResourceSnapshot{State: "offline"}
	if info.State != nil {
		snap.State = stateOf(info.State)
	}
	if info.SizeRw != nil {
		snap.DiskBytes = *info.SizeRw
	}
	if info.HostConfig != nil {
		snap.MemoryLimit = info.HostConfig.Memory
	}
	if snap.State != "running" {
		return snap, nil
	}

	if started, err := time.Parse(time.RFC3339Nano, info.State.StartedAt); err == nil {
		snap.UptimeMs = time.Since(started).Milliseconds()
	}

	stats, err := c.containerStats(ctx, externalID)
	if err != nil {
		// State is still useful without stats.
		log.Warn().Err(err).Str("container", externalID).Msg("Could not read container stats")
		return snap, nil
	}
	snap.CPU = CalculateCPUPercent(stats)
	snap.MemoryBytes = int64(stats.MemoryStats.Usage)
	for _, n := range stats.Networks {
		snap.NetworkRx += int64(n.RxBytes)
		snap.NetworkTx += int64(n.TxBytes)
	}
	return snap, nil
}

// SendPowerSignal maps a panel power signal onto the container lifecycle.
func (c *Client) SendPowerSignal(ctx context.Context, externalID string, signal models.PowerSignal) error {
	switch signal {
	case models.SignalStart:
		return c.cli.ContainerStart(ctx, externalID, container.StartOptions{})
	case models.SignalStop:
		// Give the game server time to save before Docker kills it.
		timeout := 30
		return c.cli.ContainerStop(ctx, externalID, container.StopOptions{Timeout: &timeout})
	case models.SignalRestart:
		timeout := 30
		return c.cli.ContainerRestart(ctx, externalID, container.StopOptions{Timeout: &timeout})
	case models.SignalKill:
		return c.cli.ContainerKill(ctx, externalID, "SIGKILL")
	default:
		return fmt.Errorf("unsupported power signal %q", signal)
	}
}

func (c *Client) containerStats(ctx context.Context, id string) (*container.StatsResponse, error) {
	stats, err := c.cli.ContainerStats(ctx, id, false) // false for not streaming
	if err != nil {
		return nil, err
	}
	defer stats.Body.Close()

	var statsJSON container.StatsResponse
	if err := json.NewDecoder(stats.Body).Decode(&statsJSON); err != nil {
		return nil, err
	}
	return &statsJSON, nil
}

func stateOf(s *container.State) string {
	switch {
	case s.Running && !s.Restarting:
		return "running"
	case s.Restarting:
		return "starting"
	default:
		return "offline"
	}
}

// CalculateCPUPercent calculates the CPU usage percentage from Docker stats.
func CalculateCPUPercent(stats *container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	onlineCPUs := float64(stats.CPUStats.OnlineCPUs)
	if onlineCPUs == 0.0 {
		onlineCPUs = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}

	if systemDelta > 0.0 && cpuDelta > 0.0 {
		return (cpuDelta / systemDelta) * onlineCPUs * 100.0
	}
	return 0.0
}

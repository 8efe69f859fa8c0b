package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/players"
	"github.com/isdelr/pteroctrl-be/internal/services"
	"github.com/rs/zerolog/log"
)

const (
	highCPUThreshold   = 90.0
	alertCooldown      = 15 * time.Minute
	maxConcurrentPolls = 8
	pollTimeout        = 20 * time.Second
)

// PlayerCounter probes a server for its connected players.
type PlayerCounter interface {
	PlayerCount(ctx context.Context, server models.Server) (int, error)
}

// PollRecorder receives the outcome of every polling cycle.
type PollRecorder interface {
	ObservePoll(servers []models.Server, failures int, took time.Duration)
}

// StatUpdater is responsible for periodically fetching and updating server stats.
type StatUpdater struct {
	panel     services.PanelProvider
	players   PlayerCounter
	serverSvc services.ServerServiceProvider
	eventSvc  services.EventServiceProvider
	recorder  PollRecorder
	interval  time.Duration
	now       func() time.Time
	done      chan bool

	mu           sync.Mutex
	highCPUAlert map[string]time.Time
}

// NewStatUpdater creates a new StatUpdater. players and recorder may be nil.
func NewStatUpdater(panel services.PanelProvider, counter PlayerCounter, serverSvc services.ServerServiceProvider, eventSvc services.EventServiceProvider, recorder PollRecorder, interval time.Duration) *StatUpdater {
	return &StatUpdater{
		panel:        panel,
		players:      counter,
		serverSvc:    serverSvc,
		eventSvc:     eventSvc,
		recorder:     recorder,
		interval:     interval,
		now:          func() time.Time { return time.Now().UTC() },
		done:         make(chan bool),
		highCPUAlert: make(map[string]time.Time),
	}
}

// Run starts the periodic updates.
func (su *StatUpdater) Run() {
	log.Info().Dur("interval", su.interval).Msg("Starting background stat updater...")
	ticker := time.NewTicker(su.interval)
	defer ticker.Stop()

	// Run once immediately on start
	su.UpdateAll(context.Background())

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-ticker.C:
			su.UpdateAll(context.Background())
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	su.done <- true
}

// UpdateAll polls every registered server once and waits for the results.
func (su *StatUpdater) UpdateAll(ctx context.Context) {
	if su.panel == nil || !su.panel.Configured() {
		log.Debug().Msg("StatUpdater: Panel not configured, skipping poll")
		return
	}

	start := time.Now()
	servers, err := su.serverSvc.GetAllServers()
	if err != nil {
		log.Error().Err(err).Msg("StatUpdater: Failed to query servers")
		return
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
		sem      = make(chan struct{}, maxConcurrentPolls)
		updated  = make([]models.Server, len(servers))
	)
	for i, s := range servers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, server models.Server) {
			defer wg.Done()
			defer func() { <-sem }()

			next, ok := su.updateSingleServer(ctx, server)
			if !ok {
				mu.Lock()
				failures++
				mu.Unlock()
			}
			updated[i] = next
		}(i, s)
	}
	wg.Wait()

	took := time.Since(start)
	log.Debug().Int("servers", len(servers)).Int("failures", failures).Dur("took", took).Msg("StatUpdater: Poll finished")
	if su.recorder != nil {
		su.recorder.ObservePoll(updated, failures, took)
	}
}

// updateSingleServer fetches one snapshot and persists it. It returns the
// server as stored and whether the fetch succeeded.
func (su *StatUpdater) updateSingleServer(ctx context.Context, server models.Server) (models.Server, bool) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	snap, err := su.panel.GetResources(ctx, server.ExternalID)
	if err != nil {
		// Transient panel errors keep the last known state until the next tick.
		log.Warn().Err(err).Str("server_name", server.Name).Str("server_id", server.ID).Msg("StatUpdater: Failed to fetch resources")
		return server, false
	}

	now := su.now()
	status := snap.Status()
	changed := status != server.Status

	server.Status = status
	server.Resources.CPU = snap.CPU
	server.Resources.MemoryBytes = snap.MemoryBytes
	server.Resources.DiskBytes = snap.DiskBytes
	server.Resources.NetworkRx = snap.NetworkRx
	server.Resources.NetworkTx = snap.NetworkTx
	server.Resources.UptimeMs = snap.UptimeMs
	if snap.MemoryLimit > 0 {
		server.Resources.MemoryLimit = snap.MemoryLimit
	}
	server.PlayerCount = su.probePlayers(ctx, server)

	if changed || server.Players() > 0 {
		server.LastActivityAt = now
	}

	if err := su.serverSvc.UpdateServerStats(server); err != nil {
		log.Error().Err(err).Str("server_name", server.Name).Msg("StatUpdater: Failed to update server stats in DB")
		return server, true
	}

	su.checkAndAlertForHighCPU(server, now)
	return server, true
}

// probePlayers returns nil when the count is unknown.
func (su *StatUpdater) probePlayers(ctx context.Context, server models.Server) *int {
	if su.players == nil || server.Status != models.StatusOnline || !models.IsPlayerAware(server.Category) {
		return nil
	}
	n, err := su.players.PlayerCount(ctx, server)
	if err != nil {
		if !errors.Is(err, players.ErrNoQueryAddress) {
			log.Debug().Err(err).Str("server_name", server.Name).Msg("StatUpdater: Player probe failed")
		}
		return nil
	}
	return &n
}

func (su *StatUpdater) checkAndAlertForHighCPU(server models.Server, now time.Time) {
	if server.Resources.CPU <= highCPUThreshold {
		return
	}

	su.mu.Lock()
	if last, ok := su.highCPUAlert[server.ID]; ok && now.Sub(last) < alertCooldown {
		su.mu.Unlock()
		return
	}
	su.highCPUAlert[server.ID] = now
	su.mu.Unlock()

	msg := fmt.Sprintf("High CPU usage (%.1f%%) detected on server '%s', memory at %s.",
		server.Resources.CPU, server.Name, humanize.IBytes(uint64(server.Resources.MemoryBytes)))
	su.eventSvc.CreateEvent("system.alert.cpu", models.LevelWarn, msg, &server.ID)
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// Broadcaster pushes live updates to connected dashboards.
type Broadcaster interface {
	Publish(action string, payload interface{})
	PublishTo(serverID, action string, payload interface{})
}

// ServerServiceProvider defines the interface for server services.
type ServerServiceProvider interface {
	GetAllServers() ([]models.Server, error)
	GetServerByID(id string) (models.Server, error)
	CreateServer(server models.Server) (models.Server, error)
	UpdateServer(id string, update models.ServerUpdate) (models.Server, error)
	DeleteServer(id string) error
	UpdateServerStatus(id, status string) error
	UpdateServerStats(server models.Server) error
	GetResourceHistory(serverID string, window time.Duration) ([]models.ResourceDataPoint, error)
	SyncFromPanel(ctx context.Context) (models.SyncResult, error)
	PerformServerAction(ctx context.Context, id, action string) error
	BulkAction(ctx context.Context, action, category string, inactiveOnly bool) ([]models.BulkActionResult, error)
}

// ServerService provides business logic for the server registry.
type ServerService struct {
	db           *sql.DB
	panel        PanelProvider
	hub          Broadcaster
	eventService EventServiceProvider
	now          func() time.Time
}

// NewServerService creates a new ServerService.
func NewServerService(db *sql.DB, panel PanelProvider, hub Broadcaster, eventService EventServiceProvider) *ServerService {
	return &ServerService{
		db:           db,
		panel:        panel,
		hub:          hub,
		eventService: eventService,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

const serverColumns = `id, external_id, name, category, status,
	cpu_usage, memory_bytes, memory_limit, disk_bytes, disk_limit, network_rx, network_tx, uptime_ms,
	player_count, query_address, query_password, last_activity_at, created_at, updated_at`

// GetAllServers returns every registered server ordered by name.
func (s *ServerService) GetAllServers() ([]models.Server, error) {
	rows, err := s.db.Query("SELECT " + serverColumns + " FROM servers ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// GetServerByID retrieves a single server by its ID.
func (s *ServerService) GetServerByID(id string) (models.Server, error) {
	row := s.db.QueryRow("SELECT "+serverColumns+" FROM servers WHERE id = ?", id)
	srv, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Server{}, ErrServerNotFound
	}
	return srv, err
}

func (s *ServerService) getServerByExternalID(externalID string) (models.Server, error) {
	row := s.db.QueryRow("SELECT "+serverColumns+" FROM servers WHERE external_id = ?", externalID)
	srv, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Server{}, ErrServerNotFound
	}
	return srv, err
}

// CreateServer registers a panel server by hand.
func (s *ServerService) CreateServer(server models.Server) (models.Server, error) {
	server.ExternalID = strings.TrimSpace(server.ExternalID)
	server.Name = strings.TrimSpace(server.Name)
	if server.ExternalID == "" || server.Name == "" {
		return models.Server{}, fmt.Errorf("%w: externalId and name are required", ErrInvalidInput)
	}
	if server.Category == "" {
		server.Category = DetectCategory(server.Name, "")
	}
	if !models.IsValidCategory(server.Category) {
		return models.Server{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, server.Category)
	}
	if _, err := s.getServerByExternalID(server.ExternalID); err == nil {
		return models.Server{}, fmt.Errorf("%w: server %q is already registered", ErrInvalidInput, server.ExternalID)
	}

	now := s.now()
	server.ID = uuid.New().String()
	server.Status = models.StatusOffline
	server.Resources = models.ResourceUsage{}
	server.PlayerCount = nil
	server.LastActivityAt = now
	server.CreatedAt = now
	server.UpdatedAt = now

	if err := s.insertServer(s.db, server); err != nil {
		return models.Server{}, fmt.Errorf("failed to insert server: %w", err)
	}

	log.Info().Str("server_id", server.ID).Str("external_id", server.ExternalID).Msg("Server registered")
	s.eventService.CreateEvent("server.create", models.LevelInfo, fmt.Sprintf("Server '%s' was added.", server.Name), &server.ID)
	s.broadcastServerUpdate(server)
	return server, nil
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (s *ServerService) insertServer(db execer, server models.Server) error {
	_, err := db.Exec(`
	INSERT INTO servers (id, external_id, name, category, status, memory_limit, disk_limit,
		query_address, query_password, last_activity_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		server.ID, server.ExternalID, server.Name, server.Category, server.Status,
		server.Resources.MemoryLimit, server.Resources.DiskLimit,
		server.QueryAddress, server.QueryPassword,
		server.LastActivityAt, server.CreatedAt, server.UpdatedAt)
	return err
}

// UpdateServer changes the user editable fields of a server.
func (s *ServerService) UpdateServer(id string, update models.ServerUpdate) (models.Server, error) {
	server, err := s.GetServerByID(id)
	if err != nil {
		return models.Server{}, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return models.Server{}, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		server.Name = name
	}
	if update.Category != nil {
		if !models.IsValidCategory(*update.Category) {
			return models.Server{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, *update.Category)
		}
		server.Category = *update.Category
	}
	if update.QueryAddress != nil {
		server.QueryAddress = strings.TrimSpace(*update.QueryAddress)
	}
	if update.QueryPassword != nil {
		server.QueryPassword = *update.QueryPassword
	}
	server.UpdatedAt = s.now()

	_, err = s.db.Exec(`
	UPDATE servers SET name = ?, category = ?, query_address = ?, query_password = ?, updated_at = ?
	WHERE id = ?`,
		server.Name, server.Category, server.QueryAddress, server.QueryPassword, server.UpdatedAt, id)
	if err != nil {
		return models.Server{}, err
	}

	s.broadcastServerUpdate(server)
	return server, nil
}

// DeleteServer removes a server and its resource history from the registry.
// The panel server itself is left untouched.
func (s *ServerService) DeleteServer(id string) error {
	server, err := s.GetServerByID(id)
	if err != nil {
		return err
	}

	log.Info().Str("server_id", id).Msg("Deleting server from database")
	if _, err := s.db.Exec("DELETE FROM servers WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete server from DB: %w", err)
	}

	s.eventService.CreateEvent("server.delete", models.LevelWarn, fmt.Sprintf("Server '%s' was removed from the dashboard.", server.Name), nil) // serverId won't exist anymore
	s.hub.Publish(websocket.ActionServerDeleted, map[string]string{"id": id})
	return nil
}

// UpdateServerStatus sets the registry status of a server.
func (s *ServerService) UpdateServerStatus(id, status string) error {
	res, err := s.db.Exec("UPDATE servers SET status = ?, updated_at = ? WHERE id = ?", status, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update server status in DB: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrServerNotFound
	}

	if server, err := s.GetServerByID(id); err == nil {
		s.broadcastServerUpdate(server)
	}
	return nil
}

// UpdateServerStats stores a polled snapshot and appends it to the resource history.
func (s *ServerService) UpdateServerStats(server models.Server) error {
	now := s.now()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r := server.Resources
	res, err := tx.Exec(`
	UPDATE servers
	SET status = ?, cpu_usage = ?, memory_bytes = ?, memory_limit = ?, disk_bytes = ?, disk_limit = ?,
		network_rx = ?, network_tx = ?, uptime_ms = ?, player_count = ?, last_activity_at = ?, updated_at = ?
	WHERE id = ?`,
		server.Status, r.CPU, r.MemoryBytes, r.MemoryLimit, r.DiskBytes, r.DiskLimit,
		r.NetworkRx, r.NetworkTx, r.UptimeMs, server.PlayerCount, server.LastActivityAt, now, server.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrServerNotFound
	}

	_, err = tx.Exec(`
	INSERT INTO resource_history (server_id, timestamp, cpu_usage, memory_bytes, players)
	VALUES (?, ?, ?, ?, ?)`,
		server.ID, now, r.CPU, r.MemoryBytes, server.PlayerCount)
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	server.UpdatedAt = now
	s.broadcastServerUpdate(server)
	return nil
}

// GetResourceHistory gets the resource samples of a server within the window.
func (s *ServerService) GetResourceHistory(serverID string, window time.Duration) ([]models.ResourceDataPoint, error) {
	rows, err := s.db.Query(`
	SELECT timestamp, cpu_usage, memory_bytes, players
	FROM resource_history WHERE server_id = ? AND timestamp >= ?
	ORDER BY timestamp ASC`, serverID, s.now().Add(-window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.ResourceDataPoint{}
	for rows.Next() {
		var dp models.ResourceDataPoint
		var players sql.NullInt64
		if err := rows.Scan(&dp.Timestamp, &dp.CPUUsage, &dp.MemoryBytes, &players); err != nil {
			return nil, err
		}
		if players.Valid {
			n := int(players.Int64)
			dp.Players = &n
		}
		history = append(history, dp)
	}
	return history, rows.Err()
}

// SyncFromPanel registers panel servers missing from the registry and
// refreshes the metadata of known ones.
func (s *ServerService) SyncFromPanel(ctx context.Context) (models.SyncResult, error) {
	if s.panel == nil || !s.panel.Configured() {
		return models.SyncResult{}, ErrPanelNotConfigured
	}

	upstream, err := s.panel.ListServers(ctx)
	if err != nil {
		return models.SyncResult{}, fmt.Errorf("failed to list panel servers: %w", err)
	}

	known, err := s.GetAllServers()
	if err != nil {
		return models.SyncResult{}, err
	}
	byExternalID := make(map[string]models.Server, len(known))
	for _, srv := range known {
		byExternalID[srv.ExternalID] = srv
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.SyncResult{}, err
	}
	defer tx.Rollback()

	result := models.SyncResult{Total: len(upstream)}
	now := s.now()
	for _, u := range upstream {
		existing, found := byExternalID[u.ExternalID]
		if !found {
			status := models.StatusOffline
			if u.Suspended {
				status = models.StatusSuspended
			}
			server := models.Server{
				ID:             uuid.New().String(),
				ExternalID:     u.ExternalID,
				Name:           u.Name,
				Category:       DetectCategory(u.Name, u.Description),
				Status:         status,
				Resources:      models.ResourceUsage{MemoryLimit: u.MemoryLimit, DiskLimit: u.DiskLimit},
				LastActivityAt: now,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.insertServer(tx, server); err != nil {
				return models.SyncResult{}, fmt.Errorf("failed to insert server %s: %w", u.ExternalID, err)
			}
			byExternalID[u.ExternalID] = server
			result.Synced++
		} else {
			status := existing.Status
			if u.Suspended {
				status = models.StatusSuspended
			} else if status == models.StatusSuspended {
				status = models.StatusOffline
			}
			_, err := tx.Exec(`
			UPDATE servers SET name = ?, status = ?, memory_limit = ?, disk_limit = ?, updated_at = ?
			WHERE id = ?`, u.Name, status, u.MemoryLimit, u.DiskLimit, now, existing.ID)
			if err != nil {
				return models.SyncResult{}, fmt.Errorf("failed to update server %s: %w", u.ExternalID, err)
			}
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return models.SyncResult{}, err
	}

	log.Info().Int("synced", result.Synced).Int("updated", result.Updated).Msg("Panel sync complete")
	s.eventService.CreateEvent("server.sync", models.LevelInfo,
		fmt.Sprintf("Sync completed: %d new servers added, %d servers updated", result.Synced, result.Updated), nil)
	s.hub.Publish(websocket.ActionServersSynced, result)
	return result, nil
}

// statusAfter is the registry status recorded right after a power signal was accepted.
func statusAfter(signal models.PowerSignal) string {
	switch signal {
	case models.SignalStart:
		return models.StatusStarting
	case models.SignalKill:
		return models.StatusOffline
	default:
		return models.StatusStopping
	}
}

// PerformServerAction sends a power signal for one server.
func (s *ServerService) PerformServerAction(ctx context.Context, id, action string) error {
	signal, ok := models.ParsePowerSignal(action)
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}
	if s.panel == nil || !s.panel.Configured() {
		return ErrPanelNotConfigured
	}

	server, err := s.GetServerByID(id)
	if err != nil {
		return err
	}
	return s.sendSignal(ctx, server, signal, fmt.Sprintf("Server '%s' %s requested.", server.Name, action))
}

func (s *ServerService) sendSignal(ctx context.Context, server models.Server, signal models.PowerSignal, message string) error {
	log.Info().Str("server_id", server.ID).Str("external_id", server.ExternalID).Str("action", string(signal)).Msg("Sending power signal")
	if err := s.panel.SendPowerSignal(ctx, server.ExternalID, signal); err != nil {
		return err
	}

	if err := s.UpdateServerStatus(server.ID, statusAfter(signal)); err != nil {
		return err
	}

	s.eventService.CreateEvent("server."+string(signal), models.LevelInfo, message, &server.ID)
	return nil
}

// BulkAction sends a power signal to every server matching the filter. One
// failing server does not stop the others.
func (s *ServerService) BulkAction(ctx context.Context, action, category string, inactiveOnly bool) ([]models.BulkActionResult, error) {
	signal, ok := models.ParsePowerSignal(action)
	if !ok || signal == models.SignalKill {
		return nil, fmt.Errorf("%w: invalid bulk action %q", ErrInvalidInput, action)
	}
	if s.panel == nil || !s.panel.Configured() {
		return nil, ErrPanelNotConfigured
	}

	servers, err := s.GetAllServers()
	if err != nil {
		return nil, err
	}

	results := []models.BulkActionResult{}
	for _, server := range servers {
		if category != "" && category != "all" && server.Category != category {
			continue
		}
		if inactiveOnly && server.Status != models.StatusOffline && server.Status != models.StatusSuspended {
			continue
		}

		msg := fmt.Sprintf("Server %s initiated via bulk action", action)
		if err := s.sendSignal(ctx, server, signal, msg); err != nil {
			log.Warn().Err(err).Str("server_id", server.ID).Str("action", action).Msg("Bulk action failed for server")
			results = append(results, models.BulkActionResult{ServerID: server.ID, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, models.BulkActionResult{ServerID: server.ID, Success: true})
	}
	return results, nil
}

// broadcastServerUpdate sends the server's state to all websocket clients.
func (s *ServerService) broadcastServerUpdate(server models.Server) {
	s.hub.Publish(websocket.ActionServerUpdate, server)
	s.hub.PublishTo(server.ID, websocket.ActionServerUpdate, server)
}

func scanServer(scanner interface{ Scan(...interface{}) error }) (models.Server, error) {
	var srv models.Server
	var players sql.NullInt64
	err := scanner.Scan(
		&srv.ID, &srv.ExternalID, &srv.Name, &srv.Category, &srv.Status,
		&srv.Resources.CPU, &srv.Resources.MemoryBytes, &srv.Resources.MemoryLimit,
		&srv.Resources.DiskBytes, &srv.Resources.DiskLimit,
		&srv.Resources.NetworkRx, &srv.Resources.NetworkTx, &srv.Resources.UptimeMs,
		&players, &srv.QueryAddress, &srv.QueryPassword,
		&srv.LastActivityAt, &srv.CreatedAt, &srv.UpdatedAt,
	)
	if err != nil {
		return models.Server{}, err
	}
	if players.Valid {
		n := int(players.Int64)
		srv.PlayerCount = &n
	}
	return srv, nil
}

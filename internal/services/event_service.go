package services

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, serverID *string) error
	CreateEventWithDetails(eventType, level, message, details string, serverID *string) error
	GetRecentEvents(limit int) ([]models.Event, error)
	GetServerEvents(serverID string, limit, offset int) ([]models.Event, error)
}

// EventNotifier is told about every stored event. Implementations must not block.
type EventNotifier interface {
	Notify(event models.Event)
}

// EventService provides business logic for the audit log.
type EventService struct {
	db        *sql.DB
	notifiers []EventNotifier
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, notifiers ...EventNotifier) *EventService {
	return &EventService{db: db, notifiers: notifiers}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(eventType, level, message string, serverID *string) error {
	return s.CreateEventWithDetails(eventType, level, message, "", serverID)
}

// CreateEventWithDetails logs a new event with a JSON details blob.
func (s *EventService) CreateEventWithDetails(eventType, level, message, details string, serverID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		Details:   details,
		ServerID:  serverID,
		CreatedAt: time.Now().UTC(),
	}

	stmt, err := s.db.Prepare("INSERT INTO events (id, type, level, message, details, server_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(event.ID, event.Type, event.Level, event.Message, event.Details, event.ServerID, event.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to store event")
		return err
	}

	for _, n := range s.notifiers {
		n.Notify(event)
	}
	return nil
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query(`
	SELECT id, type, level, message, details, server_id, created_at
	FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetServerEvents pages through the events recorded for one server, newest first.
func (s *EventService) GetServerEvents(serverID string, limit, offset int) ([]models.Event, error) {
	rows, err := s.db.Query(`
	SELECT id, type, level, message, details, server_id, created_at
	FROM events WHERE server_id = ?
	ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, serverID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		var serverID sql.NullString
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.Details, &serverID, &event.CreatedAt); err != nil {
			return nil, err
		}
		if serverID.Valid {
			id := serverID.String
			event.ServerID = &id
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// BroadcastNotifier pushes every stored event to the websocket clients.
type BroadcastNotifier struct {
	hub Broadcaster
}

// NewBroadcastNotifier creates an EventNotifier backed by hub.
func NewBroadcastNotifier(hub Broadcaster) *BroadcastNotifier {
	return &BroadcastNotifier{hub: hub}
}

// Notify implements EventNotifier.
func (n *BroadcastNotifier) Notify(event models.Event) {
	n.hub.Publish(websocket.ActionEvent, event)
	if event.ServerID != nil {
		n.hub.PublishTo(*event.ServerID, websocket.ActionEvent, event)
	}
}

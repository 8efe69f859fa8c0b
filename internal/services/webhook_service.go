package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrWebhookNotFound is returned for unknown webhook ids.
var ErrWebhookNotFound = errors.New("webhook not found")

const webhookTimeout = 5 * time.Second

// WebhookServiceProvider defines the interface for webhook services.
type WebhookServiceProvider interface {
	GetAllWebhooks() ([]models.Webhook, error)
	GetWebhookByID(id string) (models.Webhook, error)
	CreateWebhook(webhook models.Webhook) (models.Webhook, error)
	UpdateWebhook(id string, webhook models.Webhook) (models.Webhook, error)
	DeleteWebhook(id string) error
	TestWebhook(ctx context.Context, id string) error
}

// WebhookService stores Discord webhooks and fans audit events out to them.
type WebhookService struct {
	db       *sql.DB
	client   *http.Client
	username string
	wg       sync.WaitGroup
}

// NewWebhookService creates a new WebhookService. username is shown as the
// sender in Discord.
func NewWebhookService(db *sql.DB, username string) *WebhookService {
	return &WebhookService{
		db:       db,
		client:   &http.Client{Timeout: webhookTimeout},
		username: username,
	}
}

func validateWebhook(w models.Webhook) error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: webhookUrl must be an http(s) URL", ErrInvalidInput)
	}
	if len(w.EventTypes) == 0 {
		return fmt.Errorf("%w: at least one event type is required", ErrInvalidInput)
	}
	return nil
}

// GetAllWebhooks lists the webhooks ordered by name.
func (s *WebhookService) GetAllWebhooks() ([]models.Webhook, error) {
	rows, err := s.db.Query("SELECT id, name, url, event_types_json, is_active, created_at, updated_at FROM webhooks ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	webhooks := []models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// GetWebhookByID retrieves a single webhook.
func (s *WebhookService) GetWebhookByID(id string) (models.Webhook, error) {
	row := s.db.QueryRow("SELECT id, name, url, event_types_json, is_active, created_at, updated_at FROM webhooks WHERE id = ?", id)
	w, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Webhook{}, ErrWebhookNotFound
	}
	return w, err
}

// CreateWebhook validates and stores a webhook.
func (s *WebhookService) CreateWebhook(w models.Webhook) (models.Webhook, error) {
	if err := validateWebhook(w); err != nil {
		return models.Webhook{}, err
	}

	now := time.Now().UTC()
	w.ID = uuid.New().String()
	w.CreatedAt = now
	w.UpdatedAt = now
	w.PrepareForDB()

	_, err := s.db.Exec(`
	INSERT INTO webhooks (id, name, url, event_types_json, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.URL, w.EventTypesJSON, w.IsActive, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return models.Webhook{}, err
	}
	return w, nil
}

// UpdateWebhook replaces a webhook's settings.
func (s *WebhookService) UpdateWebhook(id string, w models.Webhook) (models.Webhook, error) {
	existing, err := s.GetWebhookByID(id)
	if err != nil {
		return models.Webhook{}, err
	}
	if err := validateWebhook(w); err != nil {
		return models.Webhook{}, err
	}

	w.ID = id
	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now().UTC()
	w.PrepareForDB()

	_, err = s.db.Exec(`
	UPDATE webhooks SET name = ?, url = ?, event_types_json = ?, is_active = ?, updated_at = ?
	WHERE id = ?`,
		w.Name, w.URL, w.EventTypesJSON, w.IsActive, w.UpdatedAt, id)
	if err != nil {
		return models.Webhook{}, err
	}
	return w, nil
}

// DeleteWebhook removes a webhook.
func (s *WebhookService) DeleteWebhook(id string) error {
	res, err := s.db.Exec("DELETE FROM webhooks WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// TestWebhook sends a test message synchronously so the caller sees failures.
func (s *WebhookService) TestWebhook(ctx context.Context, id string) error {
	w, err := s.GetWebhookByID(id)
	if err != nil {
		return err
	}
	return s.send(ctx, w.URL, fmt.Sprintf("Test notification for webhook '%s'", w.Name))
}

// Notify delivers an event to every active webhook subscribed to its type.
// Delivery happens in the background; failures are only logged.
func (s *WebhookService) Notify(event models.Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		webhooks, err := s.GetAllWebhooks()
		if err != nil {
			log.Error().Err(err).Msg("Failed to load webhooks for notification")
			return
		}
		for _, w := range webhooks {
			if !w.IsActive || !Subscribed(w.EventTypes, event.Type) {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
			if err := s.send(ctx, w.URL, event.Message); err != nil {
				log.Warn().Err(err).Str("webhook", w.Name).Str("event_type", event.Type).Msg("Failed to send webhook")
			}
			cancel()
		}
	}()
}

// Wait blocks until every pending notification has been delivered.
func (s *WebhookService) Wait() {
	s.wg.Wait()
}

// Subscribed reports whether a webhook listening to eventTypes wants eventType.
// "*" matches everything and "server" matches "server.stop".
func Subscribed(eventTypes []string, eventType string) bool {
	for _, t := range eventTypes {
		if t == "*" || t == eventType || strings.HasPrefix(eventType, t+".") {
			return true
		}
	}
	return false
}

type discordPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

func (s *WebhookService) send(ctx context.Context, target, message string) error {
	body, err := json.Marshal(discordPayload{Content: "[PteroCTRL] " + message, Username: s.username})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func scanWebhook(scanner interface{ Scan(...interface{}) error }) (models.Webhook, error) {
	var w models.Webhook
	if err := scanner.Scan(&w.ID, &w.Name, &w.URL, &w.EventTypesJSON, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return models.Webhook{}, err
	}
	w.PrepareForAPI()
	return w, nil
}

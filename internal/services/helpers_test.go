package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/isdelr/pteroctrl-be/internal/database"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

type fakePanel struct {
	mu         sync.Mutex
	configured bool
	servers    []models.UpstreamServer
	snapshots  map[string]models.ResourceSnapshot
	fail       map[string]error
	signals    []string
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		configured: true,
		snapshots:  map[string]models.ResourceSnapshot{},
		fail:       map[string]error{},
	}
}

func (p *fakePanel) Configured() bool { return p.configured }

func (p *fakePanel) ListServers(context.Context) ([]models.UpstreamServer, error) {
	return p.servers, nil
}

func (p *fakePanel) GetResources(_ context.Context, externalID string) (models.ResourceSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[externalID]; err != nil {
		return models.ResourceSnapshot{}, err
	}
	return p.snapshots[externalID], nil
}

func (p *fakePanel) SendPowerSignal(_ context.Context, externalID string, signal models.PowerSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[externalID]; err != nil {
		return err
	}
	p.signals = append(p.signals, externalID+":"+string(signal))
	return nil
}

type published struct {
	serverID string
	action   string
}

type fakeHub struct {
	mu       sync.Mutex
	messages []published
}

func (h *fakeHub) Publish(action string, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, published{action: action})
}

func (h *fakeHub) PublishTo(serverID, action string, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, published{serverID: serverID, action: action})
}

func (h *fakeHub) actions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.messages))
	for _, m := range h.messages {
		if m.serverID == "" {
			out = append(out, m.action)
		}
	}
	return out
}

type fixture struct {
	db      *sql.DB
	panel   *fakePanel
	hub     *fakeHub
	events  *EventService
	servers *ServerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	panel := newFakePanel()
	hub := &fakeHub{}
	events := NewEventService(db)
	return &fixture{
		db:      db,
		panel:   panel,
		hub:     hub,
		events:  events,
		servers: NewServerService(db, panel, hub, events),
	}
}

func (f *fixture) mustCreate(t *testing.T, externalID, name, category string) models.Server {
	t.Helper()
	srv, err := f.servers.CreateServer(models.Server{ExternalID: externalID, Name: name, Category: category})
	require.NoError(t, err)
	return srv
}

func (f *fixture) eventsOfType(t *testing.T, eventType string) []models.Event {
	t.Helper()
	all, err := f.events.GetRecentEvents(1000)
	require.NoError(t, err)
	var out []models.Event
	for _, e := range all {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

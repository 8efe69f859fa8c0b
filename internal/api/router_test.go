package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/auth"
	"github.com/isdelr/pteroctrl-be/internal/automation"
	"github.com/isdelr/pteroctrl-be/internal/database"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/services"
	"github.com/isdelr/pteroctrl-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPanel struct {
	configured bool
	signals    []string
}

func (p *stubPanel) Configured() bool { return p.configured }

func (p *stubPanel) ListServers(context.Context) ([]models.UpstreamServer, error) {
	return []models.UpstreamServer{{ExternalID: "a1", Name: "Survival Minecraft"}}, nil
}

func (p *stubPanel) GetResources(context.Context, string) (models.ResourceSnapshot, error) {
	return models.ResourceSnapshot{State: "running"}, nil
}

func (p *stubPanel) SendPowerSignal(_ context.Context, externalID string, signal models.PowerSignal) error {
	p.signals = append(p.signals, externalID+":"+string(signal))
	return nil
}

type testAPI struct {
	handler http.Handler
	panel   *stubPanel
	token   string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	auth.SetSecret("router-test")

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	panel := &stubPanel{}
	hub := websocket.NewHub()
	events := services.NewEventService(db)
	servers := services.NewServerService(db, panel, hub, events)
	users := services.NewUserService(db)
	require.NoError(t, users.EnsureAdmin("admin", "admin"))

	router := NewRouter(Dependencies{
		Hub:               hub,
		ServerService:     servers,
		EventService:      events,
		UserService:       users,
		WebhookService:    services.NewWebhookService(db, "PteroCTRL"),
		ScheduleService:   services.NewScheduleService(db, events, time.UTC),
		AutomationService: services.NewAutomationService(servers, panel, events, automation.DefaultRules(), hub, nil, time.Second, nil),
		CORSOrigins:       []string{"http://localhost:3000"},
		DiskPath:          t.TempDir(),
	})

	api := &testAPI{handler: router, panel: panel}
	rec := api.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{"username": "admin", "password": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))
	require.NotEmpty(t, login.Token)
	api.token = login.Token
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthAndAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	token := api.token
	api.token = ""
	rec = api.do(t, http.MethodGet, "/api/v1/servers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	api.token = token
	rec = api.do(t, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"admin"`)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRouter_AutomationEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/automation/check", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "please configure your Pterodactyl API settings first")

	rec = api.do(t, http.MethodPost, "/api/v1/servers/sync", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	api.panel.configured = true
	rec = api.do(t, http.MethodPost, "/api/v1/servers/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sync completed: 1 new servers added, 0 servers updated")

	rec = api.do(t, http.MethodPost, "/api/v1/automation/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.AutomationRunResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "No automation actions needed", result.Message)

	rec = api.do(t, http.MethodGet, "/api/v1/automation/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.AutomationSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Total)
	assert.Len(t, summary.ByCategory, len(models.Categories))
	assert.Equal(t, 1, summary.ByCategory[models.CategoryMinecraft].Offline)

	rec = api.do(t, http.MethodGet, "/api/v1/automation/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rules []models.AutomationRule
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rules))
	assert.Len(t, rules, len(automation.DefaultRules()))
}

func TestRouter_ServerEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.panel.configured = true

	rec := api.do(t, http.MethodPost, "/api/v1/servers", map[string]string{"externalId": "mc-1", "name": "Survival Minecraft"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var srv models.Server
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&srv))
	assert.Equal(t, models.CategoryMinecraft, srv.Category)

	rec = api.do(t, http.MethodPost, "/api/v1/servers", map[string]string{"name": "No external id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/servers/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/servers/"+srv.ID+"/action", map[string]string{"action": "start"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"mc-1:start"}, api.panel.signals)

	rec = api.do(t, http.MethodPost, "/api/v1/servers/"+srv.ID+"/action", map[string]string{"action": "dance"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/servers/bulk-action", map[string]interface{}{"action": "kill"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/servers/bulk-action", map[string]interface{}{"action": "stop", "category": "all"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = api.do(t, http.MethodGet, "/api/v1/servers/"+srv.ID+"/logs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	require.NotEmpty(t, events)
	assert.Equal(t, "server.stop", events[0].Type)

	rec = api.do(t, http.MethodPost, "/api/v1/servers/"+srv.ID+"/schedules", map[string]interface{}{
		"name": "nightly", "cronExpression": "0 4 * * *", "taskType": "restart", "isActive": true,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/servers/"+srv.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_WebhookValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/webhooks", map[string]interface{}{"name": "ops", "webhookUrl": "not a url", "eventTypes": []string{"*"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/webhooks/missing/test", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package monitoring

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/database"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/services"
	"github.com/isdelr/pteroctrl-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePanel struct {
	mu        sync.Mutex
	snapshots map[string]models.ResourceSnapshot
	fail      map[string]error
	signals   []string
}

func (p *fakePanel) Configured() bool { return true }

func (p *fakePanel) ListServers(context.Context) ([]models.UpstreamServer, error) {
	return nil, nil
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

type fixedCounter struct{ n int }

func (c fixedCounter) PlayerCount(context.Context, models.Server) (int, error) { return c.n, nil }

type pollRecord struct {
	servers  []models.Server
	failures int
}

type fakePollRecorder struct{ polls []pollRecord }

func (r *fakePollRecorder) ObservePoll(servers []models.Server, failures int, _ time.Duration) {
	r.polls = append(r.polls, pollRecord{servers: servers, failures: failures})
}

type env struct {
	panel    *fakePanel
	servers  *services.ServerService
	events   *services.EventService
	schedule *services.ScheduleService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvIn(t, time.UTC)
}

func newEnvIn(t *testing.T, loc *time.Location) *env {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	panel := &fakePanel{snapshots: map[string]models.ResourceSnapshot{}, fail: map[string]error{}}
	events := services.NewEventService(db)
	return &env{
		panel:    panel,
		servers:  services.NewServerService(db, panel, websocket.NewHub(), events),
		events:   events,
		schedule: services.NewScheduleService(db, events, loc),
	}
}

func (e *env) eventsOfType(t *testing.T, eventType string) []models.Event {
	t.Helper()
	all, err := e.events.GetRecentEvents(1000)
	require.NoError(t, err)
	var out []models.Event
	for _, ev := range all {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestStatUpdater_UpdateAll(t *testing.T) {
	e := newEnv(t)
	mc, err := e.servers.CreateServer(models.Server{ExternalID: "mc-1", Name: "Survival Minecraft", QueryAddress: "127.0.0.1:25575"})
	require.NoError(t, err)
	web, err := e.servers.CreateServer(models.Server{ExternalID: "web-1", Name: "Landing Website"})
	require.NoError(t, err)
	broken, err := e.servers.CreateServer(models.Server{ExternalID: "bad-1", Name: "Broken Bot"})
	require.NoError(t, err)

	e.panel.snapshots["mc-1"] = models.ResourceSnapshot{State: "running", CPU: 12.5, MemoryBytes: 1 << 30, MemoryLimit: 2 << 30}
	e.panel.snapshots["web-1"] = models.ResourceSnapshot{State: "offline"}
	e.panel.fail["bad-1"] = errors.New("timeout")

	rec := &fakePollRecorder{}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	su := NewStatUpdater(e.panel, fixedCounter{n: 3}, e.servers, e.events, rec, time.Minute)
	su.now = func() time.Time { return now }

	su.UpdateAll(context.Background())

	got, err := e.servers.GetServerByID(mc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, got.Status)
	assert.InDelta(t, 12.5, got.Resources.CPU, 0.001)
	assert.Equal(t, int64(2<<30), got.Resources.MemoryLimit)
	require.NotNil(t, got.PlayerCount)
	assert.Equal(t, 3, *got.PlayerCount)
	assert.True(t, got.LastActivityAt.Equal(now))

	// Status unchanged and no players: activity stays where it was.
	gotWeb, err := e.servers.GetServerByID(web.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, gotWeb.Status)
	assert.Nil(t, gotWeb.PlayerCount)
	assert.False(t, gotWeb.LastActivityAt.Equal(now))

	gotBroken, err := e.servers.GetServerByID(broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, gotBroken.Status)

	require.Len(t, rec.polls, 1)
	assert.Equal(t, 1, rec.polls[0].failures)
	assert.Len(t, rec.polls[0].servers, 3)
}

func TestStatUpdater_HighCPUAlertCooldown(t *testing.T) {
	e := newEnv(t)
	srv, err := e.servers.CreateServer(models.Server{ExternalID: "bot-1", Name: "Music Bot"})
	require.NoError(t, err)
	e.panel.snapshots["bot-1"] = models.ResourceSnapshot{State: "running", CPU: 97, MemoryBytes: 256 << 20}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	su := NewStatUpdater(e.panel, nil, e.servers, e.events, nil, time.Minute)
	su.now = func() time.Time { return now }

	su.UpdateAll(context.Background())
	now = now.Add(5 * time.Minute)
	su.UpdateAll(context.Background())

	alerts := e.eventsOfType(t, "system.alert.cpu")
	require.Len(t, alerts, 1)
	assert.Equal(t, models.LevelWarn, alerts[0].Level)
	assert.Contains(t, alerts[0].Message, "97.0%")
	assert.Contains(t, alerts[0].Message, "256 MiB")
	require.NotNil(t, alerts[0].ServerID)
	assert.Equal(t, srv.ID, *alerts[0].ServerID)

	now = now.Add(alertCooldown)
	su.UpdateAll(context.Background())
	assert.Len(t, e.eventsOfType(t, "system.alert.cpu"), 2)
}

func TestScheduler_RunsDueSchedules(t *testing.T) {
	e := newEnv(t)
	ok, err := e.servers.CreateServer(models.Server{ExternalID: "mc-1", Name: "Survival Minecraft"})
	require.NoError(t, err)
	failing, err := e.servers.CreateServer(models.Server{ExternalID: "mc-2", Name: "Creative Minecraft"})
	require.NoError(t, err)
	e.panel.fail["mc-2"] = errors.New("panel unreachable")

	for _, id := range []string{ok.ID, failing.ID} {
		_, err := e.schedule.CreateSchedule(models.Schedule{ServerID: id, Name: "restart", CronExpression: "0 4 * * *", TaskType: "restart", IsActive: true})
		require.NoError(t, err)
	}

	s, err := NewScheduler("", time.UTC, nil, e.schedule, e.servers, e.events)
	require.NoError(t, err)

	// Nothing is due yet.
	s.checkAndRunSchedules()
	assert.Empty(t, e.panel.signals)

	s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	s.checkAndRunSchedules()

	assert.Equal(t, []string{"mc-1:restart"}, e.panel.signals)
	assert.Len(t, e.eventsOfType(t, "schedule.execute.success"), 1)
	assert.Len(t, e.eventsOfType(t, "schedule.execute.fail"), 1)

	schedules, err := e.schedule.GetSchedulesForServer(ok.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	require.NotNil(t, schedules[0].LastRunAt)
	require.NotNil(t, schedules[0].NextRunAt)
	assert.True(t, schedules[0].NextRunAt.After(*schedules[0].LastRunAt))
}

func TestScheduler_KeepsWallClockHourOutsideUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	e := newEnvIn(t, loc)
	srv, err := e.servers.CreateServer(models.Server{ExternalID: "mc-1", Name: "Survival Minecraft"})
	require.NoError(t, err)

	created, err := e.schedule.CreateSchedule(models.Schedule{ServerID: srv.ID, Name: "nightly", CronExpression: "0 4 * * *", TaskType: "restart", IsActive: true})
	require.NoError(t, err)
	require.NotNil(t, created.NextRunAt)
	first := *created.NextRunAt
	assert.Equal(t, 4, first.In(loc).Hour())
	assert.Equal(t, 9, first.UTC().Hour())

	s, err := NewScheduler("", loc, nil, e.schedule, e.servers, e.events)
	require.NoError(t, err)
	s.now = func() time.Time { return first.Add(time.Minute) }
	s.checkAndRunSchedules()
	assert.Equal(t, []string{"mc-1:restart"}, e.panel.signals)

	got, err := e.schedule.GetScheduleByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextRunAt)
	assert.Equal(t, 4, got.NextRunAt.In(loc).Hour())
	assert.True(t, got.NextRunAt.Equal(first.Add(24*time.Hour)), "next run %s", got.NextRunAt)
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler("not a cron", time.UTC, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveAutomationRun(models.AutomationRunResult{
		ExecutionResult: models.ExecutionResult{
			SuccessCount: 1,
			FailedCount:  1,
			Results: []models.ActionResult{
				{AutomationAction: models.AutomationAction{ActionKind: models.ActionStop}, Success: true},
				{AutomationAction: models.AutomationAction{ActionKind: models.ActionRestart}, Success: false},
			},
		},
	}, time.Second)

	players := 5
	m.ObservePoll([]models.Server{
		{Status: models.StatusOnline, Category: models.CategoryMinecraft, PlayerCount: &players},
		{Status: models.StatusOffline, Category: models.CategoryWebsite},
	}, 2, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "pteroctrl_automation_runs_total 1")
	assert.Contains(t, out, `pteroctrl_automation_actions_total{action="stop",outcome="success"} 1`)
	assert.Contains(t, out, `pteroctrl_automation_actions_total{action="restart",outcome="failed"} 1`)
	assert.Contains(t, out, "pteroctrl_poller_errors_total 2")
	assert.Contains(t, out, `pteroctrl_servers{status="online"} 1`)
	assert.Contains(t, out, `pteroctrl_servers{status="suspended"} 0`)
	assert.Contains(t, out, `pteroctrl_players{category="minecraft"} 5`)
}

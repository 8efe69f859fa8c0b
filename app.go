package main

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/automation"
	"github.com/isdelr/pteroctrl-be/internal/config"
	"github.com/isdelr/pteroctrl-be/internal/database"
	"github.com/isdelr/pteroctrl-be/internal/docker"
	"github.com/isdelr/pteroctrl-be/internal/logger"
	"github.com/isdelr/pteroctrl-be/internal/monitoring"
	"github.com/isdelr/pteroctrl-be/internal/panel"
	"github.com/isdelr/pteroctrl-be/internal/services"
	"github.com/isdelr/pteroctrl-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// app holds the wired services shared by every command.
type app struct {
	cfg   *config.Config
	db    *sql.DB
	panel services.PanelProvider
	hub   *websocket.Hub

	metrics    *monitoring.Metrics
	events     *services.EventService
	webhooks   *services.WebhookService
	servers    *services.ServerService
	users      *services.UserService
	schedules  *services.ScheduleService
	automation *services.AutomationService

	closers []io.Closer
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, cfg.LogFile)

	loc, err := cfg.Automation.Location()
	if err != nil {
		return nil, err
	}
	rules, err := automation.LoadRules(cfg.Automation.RulesFile)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	a := &app{cfg: cfg, db: db, hub: websocket.NewHub(), metrics: monitoring.NewMetrics()}
	a.closers = append(a.closers, db)

	provider, closer, err := newPanel(cfg.Panel)
	if err != nil {
		a.close()
		return nil, err
	}
	a.panel = provider
	a.closers = append(a.closers, closer)
	if !provider.Configured() {
		log.Warn().Str("driver", cfg.Panel.Driver).Msg("Panel credentials missing, sync and power actions are disabled")
	}

	a.webhooks = services.NewWebhookService(db, cfg.WebhookUsername)
	a.events = services.NewEventService(db, a.webhooks, services.NewBroadcastNotifier(a.hub))
	a.servers = services.NewServerService(db, a.panel, a.hub, a.events)
	a.users = services.NewUserService(db)
	a.schedules = services.NewScheduleService(db, a.events, loc)
	a.automation = services.NewAutomationService(a.servers, a.panel, a.events, rules, a.hub, a.metrics,
		cfg.Automation.ActionTimeout, func() time.Time { return time.Now().In(loc) })

	return a, nil
}

// newPanel builds the upstream selected by the driver setting.
func newPanel(cfg config.PanelConfig) (services.PanelProvider, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverDocker:
		c, err := docker.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Docker client: %w", err)
		}
		return c, c, nil
	default:
		c, err := panel.New(panel.Options{
			URL:            cfg.URL,
			ApplicationKey: cfg.ApplicationKey,
			ClientKey:      cfg.ClientKey,
			Timeout:        cfg.Timeout,
			CacheTTL:       cfg.CacheTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
}

// close waits for pending webhook deliveries and releases resources in reverse order.
func (a *app) close() {
	if a.webhooks != nil {
		a.webhooks.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Error during shutdown")
		}
	}
}

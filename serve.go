package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/api"
	"github.com/isdelr/pteroctrl-be/internal/auth"
	"github.com/isdelr/pteroctrl-be/internal/monitoring"
	"github.com/isdelr/pteroctrl-be/internal/players"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultJWTSecret = "change-me"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the background poller and scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	if cfg.JWTSecret == defaultJWTSecret {
		log.Warn().Msg("JWT_SECRET is not set, using the built-in default")
	}
	auth.SetSecret(cfg.JWTSecret)

	if err := a.users.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	go a.hub.Run()
	defer a.hub.Stop()

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(a.panel, players.NewRegistry(), a.servers, a.events, a.metrics, cfg.PollInterval)
	go statUpdater.Run()

	// Set up and run the background scheduler
	automationSpec := ""
	if cfg.Automation.Enabled {
		automationSpec = cfg.Automation.Schedule
	}
	loc, _ := cfg.Automation.Location()
	scheduler, err := monitoring.NewScheduler(automationSpec, loc, a.automation, a.schedules, a.servers, a.events)
	if err != nil {
		statUpdater.Stop()
		return err
	}
	scheduler.Run()

	router := api.NewRouter(api.Dependencies{
		Hub:               a.hub,
		ServerService:     a.servers,
		EventService:      a.events,
		UserService:       a.users,
		WebhookService:    a.webhooks,
		ScheduleService:   a.schedules,
		AutomationService: a.automation,
		Metrics:           a.metrics.Handler(),
		CORSOrigins:       cfg.CORSOrigins,
		SecureCookie:      os.Getenv("APP_ENV") == "production",
		DiskPath:          filepath.Dir(cfg.DatabasePath),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err = <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("HTTP server shutdown")
	}

	statUpdater.Stop()
	scheduler.Stop()
	return err
}

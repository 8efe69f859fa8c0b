package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultActionTimeout bounds a single power call to the panel.
const DefaultActionTimeout = 10 * time.Second

// EventTypeAutomation is the audit event type written for every applied action.
const EventTypeAutomation = "automation"

// PowerController sends power signals to the panel.
type PowerController interface {
	SendPowerSignal(ctx context.Context, externalID string, signal models.PowerSignal) error
}

// StatusUpdater persists a server's registry status.
type StatusUpdater interface {
	UpdateServerStatus(id, status string) error
}

// AuditSink records audit log entries.
type AuditSink interface {
	CreateEventWithDetails(eventType, level, message, details string, serverID *string) error
}

// ServerLookup resolves a server by its local id.
type ServerLookup func(id string) (models.Server, bool)

// LookupFromSnapshot indexes a server snapshot for the executor.
func LookupFromSnapshot(servers []models.Server) ServerLookup {
	index := make(map[string]models.Server, len(servers))
	for _, s := range servers {
		index[s.ID] = s
	}
	return func(id string) (models.Server, bool) {
		s, ok := index[id]
		return s, ok
	}
}

// Executor applies automation actions one by one. A failing action never
// stops the rest of the batch.
type Executor struct {
	controller PowerController
	registry   StatusUpdater
	audit      AuditSink
	timeout    time.Duration
}

// NewExecutor creates an Executor. A non-positive timeout selects DefaultActionTimeout.
func NewExecutor(controller PowerController, registry StatusUpdater, audit AuditSink, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return &Executor{
		controller: controller,
		registry:   registry,
		audit:      audit,
		timeout:    timeout,
	}
}

// Execute applies every action and reports exactly one outcome per action.
func (e *Executor) Execute(ctx context.Context, actions []models.AutomationAction, lookup ServerLookup) models.ExecutionResult {
	result := models.ExecutionResult{Results: make([]models.ActionResult, 0, len(actions))}

	for _, action := range actions {
		err := e.apply(ctx, action, lookup)
		if err != nil {
			log.Warn().Err(err).Str("server_id", action.ServerID).Str("action", action.ActionKind).Msg("Automation action failed")
			result.FailedCount++
			result.Results = append(result.Results, models.ActionResult{AutomationAction: action, Success: false, Error: err.Error()})
			continue
		}
		result.SuccessCount++
		result.Results = append(result.Results, models.ActionResult{AutomationAction: action, Success: true})
	}

	return result
}

var errServerNotFound = errors.New("Server not found")

func (e *Executor) apply(ctx context.Context, action models.AutomationAction, lookup ServerLookup) error {
	server, ok := lookup(action.ServerID)
	if !ok {
		return errServerNotFound
	}

	signal, err := signalFor(action.ActionKind)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.controller.SendPowerSignal(callCtx, server.ExternalID, signal); err != nil {
		return err
	}

	// Both kinds land in "stopping"; the poller resolves the final state.
	if err := e.registry.UpdateServerStatus(server.ID, models.StatusStopping); err != nil {
		return fmt.Errorf("power signal sent but registry update failed: %w", err)
	}

	details, err := json.Marshal(action)
	if err != nil {
		log.Warn().Err(err).Str("server_id", server.ID).Msg("Failed to encode automation audit details")
	}
	msg := fmt.Sprintf("Automated %s: %s", action.ActionKind, action.Reason)
	if err := e.audit.CreateEventWithDetails(EventTypeAutomation, models.LevelInfo, msg, string(details), &server.ID); err != nil {
		log.Error().Err(err).Str("server_id", server.ID).Msg("Failed to write automation audit entry")
	}

	log.Info().Str("server_id", server.ID).Str("server_name", server.Name).Str("action", action.ActionKind).Str("reason", action.Reason).Msg("Automation action applied")
	return nil
}

func signalFor(kind string) (models.PowerSignal, error) {
	switch kind {
	case models.ActionStop:
		return models.SignalStop, nil
	case models.ActionRestart:
		return models.SignalRestart, nil
	default:
		return "", fmt.Errorf("unsupported automation action %q", kind)
	}
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/automation"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// AutomationServiceProvider defines the interface for the automation service.
type AutomationServiceProvider interface {
	RunCheck(ctx context.Context) (models.AutomationRunResult, error)
	Summary() (models.AutomationSummary, error)
	Rules() []models.AutomationRule
}

// AutomationRecorder receives the outcome of every automation run.
type AutomationRecorder interface {
	ObserveAutomationRun(result models.AutomationRunResult, took time.Duration)
}

// AutomationService evaluates the rule table against the registry and applies
// the resulting power actions.
type AutomationService struct {
	servers  ServerServiceProvider
	panel    PanelProvider
	executor *automation.Executor
	rules    automation.Rules
	hub      Broadcaster
	recorder AutomationRecorder
	clock    func() time.Time

	// Overlapping runs would evaluate the same snapshot twice.
	mu sync.Mutex
}

// NewAutomationService creates an AutomationService. clock decides the
// wall-clock time and location used for scheduled rules; nil means time.Now.
func NewAutomationService(
	servers ServerServiceProvider,
	panel PanelProvider,
	events EventServiceProvider,
	rules automation.Rules,
	hub Broadcaster,
	recorder AutomationRecorder,
	actionTimeout time.Duration,
	clock func() time.Time,
) *AutomationService {
	if clock == nil {
		clock = time.Now
	}
	return &AutomationService{
		servers:  servers,
		panel:    panel,
		executor: automation.NewExecutor(panel, servers, events, actionTimeout),
		rules:    rules,
		hub:      hub,
		recorder: recorder,
		clock:    clock,
	}
}

// RunCheck evaluates every registered server and executes the due actions.
func (s *AutomationService) RunCheck(ctx context.Context) (models.AutomationRunResult, error) {
	if s.panel == nil || !s.panel.Configured() {
		return models.AutomationRunResult{}, ErrPanelNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	servers, err := s.servers.GetAllServers()
	if err != nil {
		return models.AutomationRunResult{}, fmt.Errorf("failed to load servers: %w", err)
	}

	actions := automation.Evaluate(servers, s.rules, s.clock())

	var result models.AutomationRunResult
	if len(actions) == 0 {
		result = models.AutomationRunResult{
			Message:         "No automation actions needed",
			Actions:         actions,
			ExecutionResult: models.ExecutionResult{Results: []models.ActionResult{}},
		}
	} else {
		exec := s.executor.Execute(ctx, actions, automation.LookupFromSnapshot(servers))
		result = models.AutomationRunResult{
			Message:         fmt.Sprintf("Automation completed: %d successful, %d failed", exec.SuccessCount, exec.FailedCount),
			Actions:         actions,
			ExecutionResult: exec,
		}
		s.hub.Publish(websocket.ActionAutomationRun, result)
	}

	took := time.Since(start)
	log.Info().Int("servers", len(servers)).Int("actions", len(actions)).
		Int("success", result.SuccessCount).Int("failed", result.FailedCount).
		Dur("took", took).Msg("Automation check finished")
	if s.recorder != nil {
		s.recorder.ObserveAutomationRun(result, took)
	}
	return result, nil
}

// Summary aggregates the registry per category without executing anything.
func (s *AutomationService) Summary() (models.AutomationSummary, error) {
	servers, err := s.servers.GetAllServers()
	if err != nil {
		return models.AutomationSummary{}, err
	}
	return automation.Summarize(servers, s.rules, s.clock()), nil
}

// Rules returns the active rule table in category order.
func (s *AutomationService) Rules() []models.AutomationRule {
	return s.rules.List()
}

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const scheduleCheckSpec = "@every 1m"

// Scheduler drives the periodic automation check and the per-server power schedules.
type Scheduler struct {
	cron          *cron.Cron
	automationSvc services.AutomationServiceProvider
	scheduleSvc   services.ScheduleServiceProvider
	serverSvc     services.ServerServiceProvider
	eventSvc      services.EventServiceProvider
	loc           *time.Location
	now           func() time.Time
}

// NewScheduler creates a new scheduler instance. automationSpec is a standard
// five-field cron expression evaluated in loc; an empty spec disables the
// automation job.
func NewScheduler(
	automationSpec string,
	loc *time.Location,
	automationSvc services.AutomationServiceProvider,
	scheduleSvc services.ScheduleServiceProvider,
	serverSvc services.ServerServiceProvider,
	eventSvc services.EventServiceProvider,
) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:          cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		automationSvc: automationSvc,
		scheduleSvc:   scheduleSvc,
		serverSvc:     serverSvc,
		eventSvc:      eventSvc,
		loc:           loc,
		now:           time.Now,
	}

	if automationSpec != "" {
		if _, err := s.cron.AddFunc(automationSpec, s.runAutomation); err != nil {
			return nil, fmt.Errorf("invalid automation schedule %q: %w", automationSpec, err)
		}
	}
	if _, err := s.cron.AddFunc(scheduleCheckSpec, s.checkAndRunSchedules); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the cron loop in the background.
func (s *Scheduler) Run() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopping background scheduler.")
}

func (s *Scheduler) runAutomation() {
	result, err := s.automationSvc.RunCheck(context.Background())
	if err != nil {
		if errors.Is(err, services.ErrPanelNotConfigured) {
			log.Debug().Msg("Scheduler: Panel not configured, skipping automation check")
			return
		}
		log.Error().Err(err).Msg("Scheduler: Automation check failed")
		return
	}
	log.Debug().Str("result", result.Message).Msg("Scheduler: Automation check done")
}

// checkAndRunSchedules queries for due tasks and executes them.
func (s *Scheduler) checkAndRunSchedules() {
	schedules, err := s.scheduleSvc.GetAllActiveSchedules()
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to retrieve active schedules")
		return
	}

	// Same location as ScheduleService, or the next run drifts by the UTC offset.
	now := s.now().In(s.loc)
	for _, schedule := range schedules {
		cronSchedule, err := cron.ParseStandard(schedule.CronExpression)
		if err != nil {
			log.Warn().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: Invalid cron expression")
			continue
		}

		// If NextRunAt is in the past, it's time to run
		if schedule.NextRunAt != nil && !now.Before(*schedule.NextRunAt) {
			if err := s.scheduleSvc.UpdateScheduleRunTimes(schedule.ID, now.UTC(), cronSchedule.Next(now).UTC()); err != nil {
				log.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: Failed to update run times")
				continue
			}
			s.executeTask(schedule)
		}
	}
}

// executeTask performs the action defined by the schedule.
func (s *Scheduler) executeTask(schedule models.Schedule) {
	log.Info().Str("schedule", schedule.Name).Str("server_id", schedule.ServerID).Str("task", schedule.TaskType).Msg("Scheduler: Executing task")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err := s.serverSvc.PerformServerAction(ctx, schedule.ServerID, schedule.TaskType)

	if err != nil {
		log.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Scheduler: Error executing task")
		msg := fmt.Sprintf("Scheduled task '%s' failed to execute: %v", schedule.Name, err)
		s.eventSvc.CreateEvent("schedule.execute.fail", models.LevelError, msg, &schedule.ServerID)
	} else {
		msg := fmt.Sprintf("Scheduled task '%s' executed successfully.", schedule.Name)
		s.eventSvc.CreateEvent("schedule.execute.success", models.LevelInfo, msg, &schedule.ServerID)
	}
}

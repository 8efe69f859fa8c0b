package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/robfig/cron/v3"
)

// ErrScheduleNotFound is returned for unknown schedule ids.
var ErrScheduleNotFound = errors.New("schedule not found")

// ScheduleServiceProvider defines the interface for schedule services.
type ScheduleServiceProvider interface {
	CreateSchedule(schedule models.Schedule) (models.Schedule, error)
	GetSchedulesForServer(serverID string) ([]models.Schedule, error)
	GetScheduleByID(scheduleID string) (models.Schedule, error)
	GetAllActiveSchedules() ([]models.Schedule, error)
	UpdateSchedule(scheduleID string, schedule models.Schedule) (models.Schedule, error)
	DeleteSchedule(scheduleID string) error
	UpdateScheduleRunTimes(scheduleID string, lastRun time.Time, nextRun time.Time) error
}

// ScheduleService provides business logic for power schedules.
type ScheduleService struct {
	db           *sql.DB
	eventService EventServiceProvider
	loc          *time.Location
}

// NewScheduleService creates a new ScheduleService. Cron expressions are
// evaluated in loc; nil means UTC.
func NewScheduleService(db *sql.DB, eventService EventServiceProvider, loc *time.Location) *ScheduleService {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleService{
		db:           db,
		eventService: eventService,
		loc:          loc,
	}
}

// validate checks the cron expression and task type and returns the parsed schedule.
func (s *ScheduleService) validate(schedule models.Schedule) (cron.Schedule, error) {
	if _, ok := models.ParsePowerSignal(schedule.TaskType); !ok {
		return nil, fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, schedule.TaskType)
	}
	cronSchedule, err := cron.ParseStandard(schedule.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression: %v", ErrInvalidInput, err)
	}
	return cronSchedule, nil
}

// CreateSchedule creates a new schedule and saves it to the database.
func (s *ScheduleService) CreateSchedule(schedule models.Schedule) (models.Schedule, error) {
	cronSchedule, err := s.validate(schedule)
	if err != nil {
		return models.Schedule{}, err
	}

	now := time.Now().UTC()
	schedule.ID = uuid.New().String()
	schedule.CreatedAt = now
	schedule.LastRunAt = nil
	nextRun := cronSchedule.Next(now.In(s.loc)).UTC()
	schedule.NextRunAt = &nextRun

	_, err = s.db.Exec(`
		INSERT INTO schedules (id, server_id, name, cron_expression, task_type, is_active, next_run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID, schedule.ServerID, schedule.Name, schedule.CronExpression, schedule.TaskType, schedule.IsActive, nextRun, now)
	if err != nil {
		return models.Schedule{}, err
	}

	s.eventService.CreateEvent("schedule.create", models.LevelInfo, fmt.Sprintf("Schedule '%s' created for server.", schedule.Name), &schedule.ServerID)
	return s.GetScheduleByID(schedule.ID)
}

const scheduleColumns = "id, server_id, name, cron_expression, task_type, is_active, last_run_at, next_run_at, created_at"

// GetSchedulesForServer retrieves all schedules for a specific server.
func (s *ScheduleService) GetSchedulesForServer(serverID string) ([]models.Schedule, error) {
	rows, err := s.db.Query("SELECT "+scheduleColumns+" FROM schedules WHERE server_id = ? ORDER BY created_at DESC", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanSchedules(rows)
}

// GetScheduleByID retrieves a single schedule by its ID.
func (s *ScheduleService) GetScheduleByID(scheduleID string) (models.Schedule, error) {
	row := s.db.QueryRow("SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", scheduleID)
	return s.scanSchedule(row)
}

// GetAllActiveSchedules retrieves all active schedules from the database.
func (s *ScheduleService) GetAllActiveSchedules() ([]models.Schedule, error) {
	rows, err := s.db.Query("SELECT " + scheduleColumns + " FROM schedules WHERE is_active = TRUE")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanSchedules(rows)
}

// UpdateSchedule updates an existing schedule.
func (s *ScheduleService) UpdateSchedule(scheduleID string, schedule models.Schedule) (models.Schedule, error) {
	cronSchedule, err := s.validate(schedule)
	if err != nil {
		return models.Schedule{}, err
	}

	existing, err := s.GetScheduleByID(scheduleID)
	if err != nil {
		return models.Schedule{}, err
	}

	nextRun := cronSchedule.Next(time.Now().In(s.loc)).UTC()
	_, err = s.db.Exec(`
		UPDATE schedules
		SET name = ?, cron_expression = ?, task_type = ?, is_active = ?, next_run_at = ?
		WHERE id = ?`,
		schedule.Name, schedule.CronExpression, schedule.TaskType, schedule.IsActive, nextRun, scheduleID)
	if err != nil {
		return models.Schedule{}, err
	}

	s.eventService.CreateEvent("schedule.update", models.LevelInfo, fmt.Sprintf("Schedule '%s' updated.", schedule.Name), &existing.ServerID)
	return s.GetScheduleByID(scheduleID)
}

// DeleteSchedule removes a schedule from the database.
func (s *ScheduleService) DeleteSchedule(scheduleID string) error {
	schedule, err := s.GetScheduleByID(scheduleID)
	if err != nil {
		return err
	}

	_, err = s.db.Exec("DELETE FROM schedules WHERE id = ?", scheduleID)
	if err == nil {
		s.eventService.CreateEvent("schedule.delete", models.LevelWarn, fmt.Sprintf("Schedule '%s' was deleted.", schedule.Name), &schedule.ServerID)
	}
	return err
}

// UpdateScheduleRunTimes updates the last and next run times for a schedule after it executes.
func (s *ScheduleService) UpdateScheduleRunTimes(scheduleID string, lastRun time.Time, nextRun time.Time) error {
	_, err := s.db.Exec("UPDATE schedules SET last_run_at = ?, next_run_at = ? WHERE id = ?", lastRun.UTC(), nextRun.UTC(), scheduleID)
	return err
}

// scanSchedules is a helper function to scan multiple rows into a slice of Schedules.
func (s *ScheduleService) scanSchedules(rows *sql.Rows) ([]models.Schedule, error) {
	schedules := []models.Schedule{}
	for rows.Next() {
		schedule, err := s.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// scanSchedule is a helper function to scan a single row into a Schedule struct.
func (s *ScheduleService) scanSchedule(scanner interface{ Scan(...interface{}) error }) (models.Schedule, error) {
	var schedule models.Schedule
	var lastRun, nextRun sql.NullTime
	err := scanner.Scan(
		&schedule.ID,
		&schedule.ServerID,
		&schedule.Name,
		&schedule.CronExpression,
		&schedule.TaskType,
		&schedule.IsActive,
		&lastRun,
		&nextRun,
		&schedule.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Schedule{}, ErrScheduleNotFound
		}
		return models.Schedule{}, err
	}
	if lastRun.Valid {
		schedule.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		schedule.NextRunAt = &nextRun.Time
	}
	return schedule, nil
}

package models

import "time"

// Schedule is a cron-driven power task for a single server.
type Schedule struct {
	ID             string     `json:"id"`
	ServerID       string     `json:"serverId"`
	Name           string     `json:"name"`
	CronExpression string     `json:"cronExpression"` // e.g., "0 4 * * *" for 4 AM daily
	TaskType       string     `json:"taskType"`       // "start", "stop", "restart", "kill"
	IsActive       bool       `json:"isActive"`
	LastRunAt      *time.Time `json:"lastRunAt"`
	NextRunAt      *time.Time `json:"nextRunAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

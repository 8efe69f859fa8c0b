package models

// Automation action kinds.
const (
	ActionStop    = "stop"
	ActionRestart = "restart"
)

// AutomationRule describes when servers of one category count as idle or due.
type AutomationRule struct {
	ID                         string  `json:"id" yaml:"id"`
	Name                       string  `json:"name" yaml:"name"`
	Category                   string  `json:"category" yaml:"category"`
	InactivityThresholdMinutes float64 `json:"inactivityThresholdMinutes" yaml:"inactivity_threshold_minutes"`
	CPUThresholdPercent        float64 `json:"cpuThresholdPercent" yaml:"cpu_threshold_percent"`
	PlayerThreshold            int     `json:"playerThreshold" yaml:"player_threshold"`
	ScheduledTimeOfDay         string  `json:"scheduledTimeOfDay,omitempty" yaml:"scheduled_time_of_day"` // HH:MM
	Shutdown                   bool    `json:"shutdown" yaml:"shutdown"`
	Restart                    bool    `json:"restart" yaml:"restart"`
	Notify                     bool    `json:"notify" yaml:"notify"`
	Enabled                    bool    `json:"enabled" yaml:"enabled"`
}

// ActionKind resolves the rule's action flags. Restart wins when both are set;
// an empty string means the rule requests nothing.
func (r AutomationRule) ActionKind() string {
	switch {
	case r.Restart:
		return ActionRestart
	case r.Shutdown:
		return ActionStop
	default:
		return ""
	}
}

// AutomationAction is a single stop/restart decision produced by the engine.
type AutomationAction struct {
	ServerID   string `json:"serverId"`
	ActionKind string `json:"action"`
	Reason     string `json:"reason"`
}

// ActionResult is the outcome of executing one AutomationAction.
type ActionResult struct {
	AutomationAction
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExecutionResult aggregates the outcome of one executor batch.
type ExecutionResult struct {
	SuccessCount int            `json:"success"`
	FailedCount  int            `json:"failed"`
	Results      []ActionResult `json:"results"`
}

// AutomationRunResult is returned by a full evaluate+execute cycle.
type AutomationRunResult struct {
	Message string             `json:"message"`
	Actions []AutomationAction `json:"actions"`
	ExecutionResult
}

// CategorySummary aggregates the servers of one category.
type CategorySummary struct {
	Total        int `json:"total"`
	Online       int `json:"online"`
	Offline      int `json:"offline"`
	TotalPlayers int `json:"totalPlayers"`
	AvgCPU       int `json:"avgCpu"`
}

// AutomationSummary is the dashboard view over the server registry.
type AutomationSummary struct {
	Total            int                        `json:"total"`
	ByCategory       map[string]CategorySummary `json:"byCategory"`
	PotentialActions int                        `json:"potentialActions"`
}

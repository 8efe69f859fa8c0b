// Package automation decides which idle or due servers should be stopped or
// restarted, and applies those decisions through the panel.
package automation

import (
	"fmt"
	"math"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
)

// Evaluate returns the actions the rule table calls for at time now.
//
// It is a pure function of its arguments: no I/O, no clock reads, and the
// inputs are never modified. Actions come back in input order, and only for
// servers that are currently online.
func Evaluate(servers []models.Server, rules Rules, now time.Time) []models.AutomationAction {
	actions := []models.AutomationAction{}

	for _, server := range servers {
		rule, ok := rules[server.Category]
		if !ok || !rule.Enabled {
			continue
		}

		reason, due := evaluateServer(server, rule, now)
		if !due || server.Status != models.StatusOnline {
			continue
		}

		kind := rule.ActionKind()
		if kind == "" {
			continue
		}

		actions = append(actions, models.AutomationAction{
			ServerID:   server.ID,
			ActionKind: kind,
			Reason:     reason,
		})
	}

	return actions
}

// evaluateServer applies the inactivity and schedule checks of one rule.
func evaluateServer(server models.Server, rule models.AutomationRule, now time.Time) (string, bool) {
	var reason string
	due := false

	minutes := now.Sub(server.LastActivityAt).Minutes()
	if minutes >= rule.InactivityThresholdMinutes && server.Resources.CPU <= rule.CPUThresholdPercent {
		if models.IsPlayerAware(server.Category) {
			if players := server.Players(); players <= rule.PlayerThreshold {
				due = true
				reason = inactivityReason(minutes)
				if players > 0 {
					reason += fmt.Sprintf(" with %d players", players)
				}
			}
		} else {
			due = true
			reason = inactivityReason(minutes)
		}
	}

	if rule.ScheduledTimeOfDay != "" && now.Format("15:04") == rule.ScheduledTimeOfDay {
		due = true
		verb := "shutdown"
		if rule.ActionKind() == models.ActionRestart {
			verb = "restart"
		}
		reason = fmt.Sprintf("Scheduled %s at %s", verb, rule.ScheduledTimeOfDay)
	}

	return reason, due
}

func inactivityReason(minutes float64) string {
	return fmt.Sprintf("Inactive for %d minutes", int64(math.Round(minutes)))
}

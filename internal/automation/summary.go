package automation

import (
	"math"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
)

// Summarize aggregates the snapshot per category. Every known category is
// present in the result, empty ones with zero values.
func Summarize(servers []models.Server, rules Rules, now time.Time) models.AutomationSummary {
	summary := models.AutomationSummary{
		Total:      len(servers),
		ByCategory: make(map[string]models.CategorySummary, len(models.Categories)),
	}

	cpuTotals := make(map[string]float64, len(models.Categories))
	for _, category := range models.Categories {
		summary.ByCategory[category] = models.CategorySummary{}
	}

	for _, s := range servers {
		cs, ok := summary.ByCategory[s.Category]
		if !ok {
			continue
		}
		cs.Total++
		switch s.Status {
		case models.StatusOnline:
			cs.Online++
		case models.StatusOffline:
			cs.Offline++
		}
		cs.TotalPlayers += s.Players()
		cpuTotals[s.Category] += s.Resources.CPU
		summary.ByCategory[s.Category] = cs
	}

	for category, cs := range summary.ByCategory {
		if cs.Total > 0 {
			cs.AvgCPU = int(math.Round(cpuTotals[category] / float64(cs.Total)))
			summary.ByCategory[category] = cs
		}
	}

	summary.PotentialActions = len(Evaluate(servers, rules, now))
	return summary
}

package automation

import (
	"fmt"
	"os"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
	"gopkg.in/yaml.v3"
)

// Rules is the rule table keyed by server category.
type Rules map[string]models.AutomationRule

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	return Rules{
		models.CategoryMinecraft: {
			ID:                         "minecraft-auto",
			Name:                       "Minecraft Auto Shutdown",
			Category:                   models.CategoryMinecraft,
			InactivityThresholdMinutes: 30,
			CPUThresholdPercent:        5,
			PlayerThreshold:            0,
			Shutdown:                   true,
			Notify:                     true,
			Enabled:                    true,
		},
		models.CategoryGTA: {
			ID:                         "gta-auto",
			Name:                       "GTA Auto Shutdown",
			Category:                   models.CategoryGTA,
			InactivityThresholdMinutes: 60,
			CPUThresholdPercent:        10,
			PlayerThreshold:            0,
			Shutdown:                   true,
			Notify:                     true,
			Enabled:                    true,
		},
		models.CategoryDiscordBot: {
			ID:                         "bot-restart",
			Name:                       "Discord Bot Daily Restart",
			Category:                   models.CategoryDiscordBot,
			InactivityThresholdMinutes: 1440,
			CPUThresholdPercent:        50,
			ScheduledTimeOfDay:         "06:00",
			Restart:                    true,
			Notify:                     true,
			Enabled:                    true,
		},
		models.CategoryWebsite: {
			ID:                         "website-monitor",
			Name:                       "Website Monitor",
			Category:                   models.CategoryWebsite,
			InactivityThresholdMinutes: 5,
			CPUThresholdPercent:        1,
			Restart:                    true,
			Notify:                     true,
			Enabled:                    true,
		},
		models.CategoryDatabase: {
			ID:                         "database-monitor",
			Name:                       "Database Monitor",
			Category:                   models.CategoryDatabase,
			InactivityThresholdMinutes: 10,
			CPUThresholdPercent:        2,
			Restart:                    true,
			// Databases are critical, keep this one opt-in.
			Enabled: false,
		},
	}
}

type rulesFile struct {
	Rules []models.AutomationRule `yaml:"rules"`
}

// LoadRules reads a YAML rule table from path. An empty path yields DefaultRules.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule table.
func ParseRules(data []byte) (Rules, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rules := make(Rules, len(file.Rules))
	for _, rule := range file.Rules {
		if _, dup := rules[rule.Category]; dup {
			return nil, fmt.Errorf("duplicate rule for category %q", rule.Category)
		}
		rules[rule.Category] = rule
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Validate rejects rule tables the engine is not expected to cope with.
func (r Rules) Validate() error {
	for category, rule := range r {
		if !models.IsValidCategory(category) {
			return fmt.Errorf("unknown category %q", category)
		}
		if rule.Category != category {
			return fmt.Errorf("rule %q is filed under %q but targets %q", rule.ID, category, rule.Category)
		}
		if rule.InactivityThresholdMinutes < 0 || rule.CPUThresholdPercent < 0 || rule.PlayerThreshold < 0 {
			return fmt.Errorf("rule %q has a negative threshold", rule.ID)
		}
		if rule.ScheduledTimeOfDay != "" {
			if _, err := time.Parse("15:04", rule.ScheduledTimeOfDay); err != nil {
				return fmt.Errorf("rule %q has invalid time of day %q: want HH:MM", rule.ID, rule.ScheduledTimeOfDay)
			}
		}
	}
	return nil
}

// List returns the rules in category display order.
func (r Rules) List() []models.AutomationRule {
	list := make([]models.AutomationRule, 0, len(r))
	for _, category := range models.Categories {
		if rule, ok := r[category]; ok {
			list = append(list, rule)
		}
	}
	return list
}

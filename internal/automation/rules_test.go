package automation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	require.NoError(t, rules.Validate())
	assert.Len(t, rules, 5)
	assert.Equal(t, models.ActionStop, rules[models.CategoryMinecraft].ActionKind())
	assert.Equal(t, models.ActionRestart, rules[models.CategoryDiscordBot].ActionKind())
	assert.Equal(t, "06:00", rules[models.CategoryDiscordBot].ScheduledTimeOfDay)
	assert.False(t, rules[models.CategoryDatabase].Enabled)
	_, hasOther := rules[models.CategoryOther]
	assert.False(t, hasOther)
}

func TestLoadRules_EmptyPathUsesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestLoadRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
rules:
  - id: mc-night
    name: Minecraft nightly stop
    category: minecraft
    inactivity_threshold_minutes: 15
    cpu_threshold_percent: 3
    player_threshold: 1
    scheduled_time_of_day: "23:30"
    shutdown: true
    enabled: true
  - id: other-restart
    category: other
    inactivity_threshold_minutes: 120
    cpu_threshold_percent: 1
    restart: true
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	require.Len(t, rules, 2)
	mc := rules[models.CategoryMinecraft]
	assert.Equal(t, "mc-night", mc.ID)
	assert.Equal(t, 15.0, mc.InactivityThresholdMinutes)
	assert.Equal(t, 1, mc.PlayerThreshold)
	assert.Equal(t, "23:30", mc.ScheduledTimeOfDay)
	assert.Equal(t, []models.AutomationRule{mc, rules[models.CategoryOther]}, rules.List())
}

func TestParseRules_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown category": "rules:\n  - id: x\n    category: ark\n",
		"bad time":         "rules:\n  - id: x\n    category: gta\n    scheduled_time_of_day: \"25:99\"\n",
		"negative":         "rules:\n  - id: x\n    category: gta\n    cpu_threshold_percent: -1\n",
		"duplicate":        "rules:\n  - id: x\n    category: gta\n  - id: y\n    category: gta\n",
		"not yaml":         "rules: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

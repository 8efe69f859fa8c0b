package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Panel drivers.
const (
	DriverPterodactyl = "pterodactyl"
	DriverDocker      = "docker"
)

// Config holds the application configuration.
type Config struct {
	ServerPort      int           `mapstructure:"port"`
	DatabasePath    string        `mapstructure:"database_path"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFile         string        `mapstructure:"log_file"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AdminUsername   string        `mapstructure:"admin_username"`
	AdminPassword   string        `mapstructure:"admin_password"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	WebhookUsername string        `mapstructure:"webhook_username"`

	Panel      PanelConfig      `mapstructure:"panel"`
	Automation AutomationConfig `mapstructure:"automation"`
}

// PanelConfig selects and configures the upstream the dashboard controls.
type PanelConfig struct {
	Driver         string        `mapstructure:"driver"`
	URL            string        `mapstructure:"url"`
	ApplicationKey string        `mapstructure:"application_key"`
	ClientKey      string        `mapstructure:"client_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// AutomationConfig configures the periodic automation check.
type AutomationConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Schedule      string        `mapstructure:"schedule"`
	RulesFile     string        `mapstructure:"rules_file"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	Timezone      string        `mapstructure:"timezone"`
}

// Location resolves the configured timezone, defaulting to local time.
func (a AutomationConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables use the upper-cased key with dots replaced by
// underscores, e.g. PANEL_URL or AUTOMATION_SCHEDULE.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// AutomaticEnv yields a single string for list keys.
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database_path", "./pteroctrl.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("jwt_secret", "change-me")
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "admin")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("poll_interval", "30s")
	v.SetDefault("webhook_username", "PteroCTRL")

	v.SetDefault("panel.driver", DriverPterodactyl)
	v.SetDefault("panel.url", "")
	v.SetDefault("panel.application_key", "")
	v.SetDefault("panel.client_key", "")
	v.SetDefault("panel.timeout", "15s")
	v.SetDefault("panel.cache_ttl", "10s")

	v.SetDefault("automation.enabled", true)
	v.SetDefault("automation.schedule", "* * * * *")
	v.SetDefault("automation.rules_file", "")
	v.SetDefault("automation.action_timeout", "10s")
	v.SetDefault("automation.timezone", "")
}

// Validate checks the values that would otherwise fail much later at runtime.
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid port %d", c.ServerPort)
	}
	if c.DatabasePath == "" {
		return errors.New("database_path must not be empty")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	switch c.Panel.Driver {
	case DriverPterodactyl, DriverDocker:
	default:
		return fmt.Errorf("unknown panel driver %q", c.Panel.Driver)
	}
	if _, err := cron.ParseStandard(c.Automation.Schedule); err != nil {
		return fmt.Errorf("invalid automation schedule %q: %w", c.Automation.Schedule, err)
	}
	if _, err := c.Automation.Location(); err != nil {
		return fmt.Errorf("invalid automation timezone: %w", err)
	}
	return nil
}

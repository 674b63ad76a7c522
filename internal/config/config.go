// Package config provides YAML-based configuration loading for Beacon.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Beacon configuration, loaded from beacon.yaml.
type Config struct {
	Device    string          `yaml:"device"`
	Keywords  []string        `yaml:"keywords"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	Location  LocationConfig  `yaml:"location"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// TriggerConfig holds confirmation-window timings.
type TriggerConfig struct {
	ConfirmTimeoutSec int     `yaml:"confirm_timeout_sec"`
	MinConfidence     float64 `yaml:"min_confidence"`
}

// LocationConfig controls the lookup provider chain and cache.
type LocationConfig struct {
	Providers          []string `yaml:"providers"`
	ProviderTimeoutSec int      `yaml:"provider_timeout_sec"`
	CacheTTLSec        int      `yaml:"cache_ttl_sec"`
	GeoIPPath          string   `yaml:"geoip_path"`
	GeoIPAddr          string   `yaml:"geoip_addr"`
}

// ChannelsConfig configures outbound delivery channels. A channel with empty
// credentials is treated as unconfigured, which is expected, not an error.
type ChannelsConfig struct {
	Primary string        `yaml:"primary"`
	SMS     SMSConfig     `yaml:"sms"`
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SMSConfig holds credentials for the SMS gateway (Twilio-compatible REST).
type SMSConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	BaseURL    string `yaml:"base_url"`
}

// SlackConfig holds the bot token and target channel for Slack delivery.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds the bot token and target channel for Discord delivery.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DatabaseConfig selects the storage backend. sqlite is the on-device default;
// mysql is available for shared installs.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SchedulerConfig holds cron expressions for maintenance jobs.
type SchedulerConfig struct {
	LocationWarm   string `yaml:"location_warm"`
	RetentionSweep string `yaml:"retention_sweep"`
	RetentionDays  int    `yaml:"retention_days"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with all defaults applied and no file loaded,
// used on first run before a beacon.yaml exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Device == "" {
		c.Device = "beacon"
	}
	if len(c.Keywords) == 0 {
		c.Keywords = []string{"help", "emergency", "sos", "assist", "urgent", "danger"}
	}
	if c.Trigger.ConfirmTimeoutSec == 0 {
		c.Trigger.ConfirmTimeoutSec = 10
	}
	if c.Trigger.MinConfidence == 0 {
		c.Trigger.MinConfidence = 0.5
	}
	if len(c.Location.Providers) == 0 {
		c.Location.Providers = []string{"ipapi", "ipwho"}
	}
	if c.Location.ProviderTimeoutSec == 0 {
		c.Location.ProviderTimeoutSec = 5
	}
	if c.Location.CacheTTLSec == 0 {
		c.Location.CacheTTLSec = 3600
	}
	if c.Channels.Primary == "" {
		c.Channels.Primary = "sms"
	}
	if c.Channels.SMS.BaseURL == "" {
		c.Channels.SMS.BaseURL = "https://api.twilio.com"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "beacon.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "beacon"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8700
	}
	if c.Scheduler.LocationWarm == "" {
		c.Scheduler.LocationWarm = "*/30 * * * *"
	}
	if c.Scheduler.RetentionSweep == "" {
		c.Scheduler.RetentionSweep = "15 3 * * *"
	}
	if c.Scheduler.RetentionDays == 0 {
		c.Scheduler.RetentionDays = 90
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql", c.Database.Driver))
	}
	switch c.Channels.Primary {
	case "sms", "slack", "discord", "record":
	default:
		errs = append(errs, fmt.Sprintf("channels.primary %q is not one of sms, slack, discord, record", c.Channels.Primary))
	}
	for i, p := range c.Location.Providers {
		switch p {
		case "ipapi", "ipwho", "geoip":
		default:
			errs = append(errs, fmt.Sprintf("location.providers[%d] %q is not one of ipapi, ipwho, geoip", i, p))
		}
	}
	if c.Trigger.ConfirmTimeoutSec < 0 {
		errs = append(errs, "trigger.confirm_timeout_sec must not be negative")
	}
	if c.Trigger.MinConfidence < 0 || c.Trigger.MinConfidence > 1 {
		errs = append(errs, "trigger.min_confidence must be within [0,1]")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ConfirmTimeout returns the confirmation window as a duration.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Trigger.ConfirmTimeoutSec) * time.Second
}

// ProviderTimeout returns the per-provider lookup timeout as a duration.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Location.ProviderTimeoutSec) * time.Second
}

// CacheTTL returns the location cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Location.CacheTTLSec) * time.Second
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"calbot/internal/schedule"
	"calbot/internal/storage"
)

type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Parser     ParserConfig     `yaml:"parser"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Reminder   ReminderConfig   `yaml:"reminder"`
}

type TelegramConfig struct {
	Token        string  `yaml:"token"`
	OwnerUserIDs []int64 `yaml:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `yaml:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level"`
	Console bool        `yaml:"console"`
	File    LoggingFile `yaml:"file"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	storage:
//	  driver: sqlite
//	  path: ./calbot.db
//	  busy_timeout: 5s
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	BusyTimeout string `yaml:"busy_timeout"` // Go duration string (sqlite)

	Pending PendingConfig `yaml:"pending"`
}

type PendingConfig struct {
	Backend string `yaml:"backend"` // "store" (default) | "redis"
	TTL     string `yaml:"ttl"`     // Go duration string; default 10m

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// ParserConfig controls the natural-language task parser. With an empty
// APIKey (or Demo set) the bot runs the built-in keyword parser instead of
// calling the API.
type ParserConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"` // Go duration string; default 30s
	Demo    bool   `yaml:"demo"`
}

// SchedulingConfig holds the default work policy applied to users who never
// saved their own. Clock fields are "HH:MM" (24h).
type SchedulingConfig struct {
	WorkStart  string `yaml:"work_start"`
	WorkEnd    string `yaml:"work_end"`
	BreakStart string `yaml:"break_start"`
	BreakEnd   string `yaml:"break_end"`
	Timezone   string `yaml:"timezone"`
}

// ReminderConfig controls the daily agenda push.
type ReminderConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Cron       string `yaml:"cron"` // standard 5-field cron spec
	RatePerSec int    `yaml:"rate_per_sec"`
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Telegram.PollTimeout) == "" {
		c.Telegram.PollTimeout = "10s"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Parser.BaseURL) == "" {
		c.Parser.BaseURL = "https://api.anthropic.com"
	}
	if strings.TrimSpace(c.Parser.Model) == "" {
		c.Parser.Model = "claude-3-5-sonnet-20241022"
	}
	if strings.TrimSpace(c.Parser.Timeout) == "" {
		c.Parser.Timeout = "30s"
	}
	if strings.TrimSpace(c.Scheduling.WorkStart) == "" {
		c.Scheduling.WorkStart = "09:00"
	}
	if strings.TrimSpace(c.Scheduling.WorkEnd) == "" {
		c.Scheduling.WorkEnd = "17:00"
	}
	if strings.TrimSpace(c.Reminder.Cron) == "" {
		c.Reminder.Cron = "0 8 * * *"
	}
	if c.Reminder.RatePerSec <= 0 {
		c.Reminder.RatePerSec = 3
	}
}

// Validate checks everything that can fail before services start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("parser.timeout", c.Parser.Timeout); err != nil {
		return err
	}
	if _, err := c.StorageConfig(); err != nil {
		return err
	}
	if _, err := c.DefaultPolicy(); err != nil {
		return err
	}
	return nil
}

// StorageConfig resolves the yaml section into the storage layer's config.
func (c *Config) StorageConfig() (storage.Config, error) {
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	ttl, err := ParseDurationField("storage.pending.ttl", c.Storage.Pending.TTL)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: busy,
		Pending: storage.PendingConfig{
			Backend:       c.Storage.Pending.Backend,
			TTL:           ttl,
			RedisAddr:     c.Storage.Pending.RedisAddr,
			RedisPassword: c.Storage.Pending.RedisPassword,
			RedisDB:       c.Storage.Pending.RedisDB,
		},
	}, nil
}

// DefaultPolicy resolves the scheduling section into the work policy used
// for users without a saved one.
func (c *Config) DefaultPolicy() (schedule.WorkPolicy, error) {
	p := schedule.WorkPolicy{Timezone: strings.TrimSpace(c.Scheduling.Timezone)}

	var err error
	if p.WorkStart, err = ParseClockField("scheduling.work_start", c.Scheduling.WorkStart); err != nil {
		return schedule.WorkPolicy{}, err
	}
	if p.WorkEnd, err = ParseClockField("scheduling.work_end", c.Scheduling.WorkEnd); err != nil {
		return schedule.WorkPolicy{}, err
	}

	bs, be := strings.TrimSpace(c.Scheduling.BreakStart), strings.TrimSpace(c.Scheduling.BreakEnd)
	if (bs == "") != (be == "") {
		return schedule.WorkPolicy{}, errors.New("scheduling: break_start and break_end must be set together")
	}
	if bs != "" {
		s, err := ParseClockField("scheduling.break_start", bs)
		if err != nil {
			return schedule.WorkPolicy{}, err
		}
		e, err := ParseClockField("scheduling.break_end", be)
		if err != nil {
			return schedule.WorkPolicy{}, err
		}
		p.BreakStart, p.BreakEnd = &s, &e
	}

	if err := p.Validate(); err != nil {
		return schedule.WorkPolicy{}, fmt.Errorf("scheduling: %w", err)
	}
	return p, nil
}

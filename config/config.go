// Package config loads and validates the daemon configuration from TOML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Portal   PortalConfig   `mapstructure:"portal" toml:"portal"`
	Run      RunConfig      `mapstructure:"run" toml:"run"`
	Notify   NotifyConfig   `mapstructure:"notify" toml:"notify"`
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Users    []UserConfig   `mapstructure:"users" toml:"users"`
}

// PortalConfig points at the SPADA instance.
type PortalConfig struct {
	BaseURL               string `mapstructure:"base_url" toml:"base_url"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" toml:"request_timeout_seconds"`
}

// RunConfig tunes the attendance pass.
type RunConfig struct {
	MaxConcurrency         int     `mapstructure:"max_concurrency" toml:"max_concurrency"`                   // parallel user workflows (default: 4)
	MaxAttempts            int     `mapstructure:"max_attempts" toml:"max_attempts"`                         // tries per portal operation (default: 3)
	BaseDelaySeconds       int     `mapstructure:"base_delay_seconds" toml:"base_delay_seconds"`             // first retry backoff (default: 2)
	BackoffMultiplier      float64 `mapstructure:"backoff_multiplier" toml:"backoff_multiplier"`             // backoff growth (default: 2.0)
	WorkflowTimeoutSeconds int     `mapstructure:"workflow_timeout_seconds" toml:"workflow_timeout_seconds"` // per-user deadline (default: 180)
	StaggerSeconds         int     `mapstructure:"stagger_seconds" toml:"stagger_seconds"`                   // delay between user starts (default: 2)
	TickIntervalSeconds    int     `mapstructure:"tick_interval_seconds" toml:"tick_interval_seconds"`       // daemon scheduler tick (default: 300)
	DailyAttemptCap        int     `mapstructure:"daily_attempt_cap" toml:"daily_attempt_cap"`               // failed runs per class per day (default: 2)
	RetentionDays          int     `mapstructure:"retention_days" toml:"retention_days"`                     // prune run state older than this (default: 30)
	NotifyNoClass          bool    `mapstructure:"notify_no_class" toml:"notify_no_class"`                   // also message users when no class matched
}

// NotifyConfig holds notifier credentials. Tokens usually come from env
// vars (ABSEN_NOTIFY_TELEGRAM_TOKEN, ABSEN_NOTIFY_DISCORD_TOKEN) rather
// than the TOML file.
type NotifyConfig struct {
	TelegramToken string `mapstructure:"telegram_token" toml:"telegram_token,omitempty"`
	DiscordToken  string `mapstructure:"discord_token" toml:"discord_token,omitempty"`
}

// DatabaseConfig configures the SQLite run-state database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// UserConfig is one enrolled user.
type UserConfig struct {
	Username      string `mapstructure:"username" toml:"username"`
	Password      string `mapstructure:"password" toml:"password"`
	Schedule      string `mapstructure:"schedule" toml:"schedule"`             // path to the CSV timetable
	NotifyChannel string `mapstructure:"notify_channel" toml:"notify_channel"` // telegram | discord | empty
	NotifyAddress string `mapstructure:"notify_address" toml:"notify_address"` // chat id / user id
}

// Duration accessors so callers never multiply by time.Second themselves.

func (p PortalConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

func (r RunConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds) * time.Second
}

func (r RunConfig) WorkflowTimeout() time.Duration {
	return time.Duration(r.WorkflowTimeoutSeconds) * time.Second
}

func (r RunConfig) Stagger() time.Duration {
	return time.Duration(r.StaggerSeconds) * time.Second
}

func (r RunConfig) TickInterval() time.Duration {
	return time.Duration(r.TickIntervalSeconds) * time.Second
}

// UsersFromEnv reads numbered user entries from the environment:
// ABSEN_USERNAME_1, ABSEN_PASSWORD_1, ABSEN_SCHEDULE_1, and optionally
// ABSEN_TELEGRAM_CHAT_1 or ABSEN_DISCORD_USER_1. Scanning stops at the
// first missing username. These are appended after the TOML users.
func UsersFromEnv() []UserConfig {
	var users []UserConfig
	for i := 1; ; i++ {
		username := os.Getenv(fmt.Sprintf("ABSEN_USERNAME_%d", i))
		if username == "" {
			break
		}
		u := UserConfig{
			Username: username,
			Password: os.Getenv(fmt.Sprintf("ABSEN_PASSWORD_%d", i)),
			Schedule: os.Getenv(fmt.Sprintf("ABSEN_SCHEDULE_%d", i)),
		}
		if chat := os.Getenv(fmt.Sprintf("ABSEN_TELEGRAM_CHAT_%d", i)); chat != "" {
			u.NotifyChannel = "telegram"
			u.NotifyAddress = chat
		} else if user := os.Getenv(fmt.Sprintf("ABSEN_DISCORD_USER_%d", i)); user != "" {
			u.NotifyChannel = "discord"
			u.NotifyAddress = user
		}
		users = append(users, u)
	}
	return users
}

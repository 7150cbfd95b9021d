package config

import (
	"strings"

	"github.com/absenlab/absen/errors"
)

// Validate checks that the configuration is usable before a run starts.
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return errors.NewConfigurationError("portal.base_url is required")
	}
	if !strings.HasPrefix(c.Portal.BaseURL, "http://") && !strings.HasPrefix(c.Portal.BaseURL, "https://") {
		return errors.NewConfigurationError("portal.base_url must start with http:// or https://, got %q", c.Portal.BaseURL)
	}
	if c.Portal.RequestTimeoutSeconds <= 0 {
		return errors.NewConfigurationError("portal.request_timeout_seconds must be > 0, got %d", c.Portal.RequestTimeoutSeconds)
	}

	if c.Run.MaxConcurrency <= 0 {
		return errors.NewConfigurationError("run.max_concurrency must be > 0, got %d", c.Run.MaxConcurrency)
	}
	if c.Run.MaxAttempts <= 0 {
		return errors.NewConfigurationError("run.max_attempts must be > 0, got %d", c.Run.MaxAttempts)
	}
	if c.Run.BaseDelaySeconds < 0 {
		return errors.NewConfigurationError("run.base_delay_seconds must be >= 0, got %d", c.Run.BaseDelaySeconds)
	}
	if c.Run.BackoffMultiplier < 1 {
		return errors.NewConfigurationError("run.backoff_multiplier must be >= 1, got %g", c.Run.BackoffMultiplier)
	}
	if c.Run.WorkflowTimeoutSeconds <= 0 {
		return errors.NewConfigurationError("run.workflow_timeout_seconds must be > 0, got %d", c.Run.WorkflowTimeoutSeconds)
	}
	if c.Run.StaggerSeconds < 0 {
		return errors.NewConfigurationError("run.stagger_seconds must be >= 0, got %d", c.Run.StaggerSeconds)
	}
	if c.Run.TickIntervalSeconds <= 0 {
		return errors.NewConfigurationError("run.tick_interval_seconds must be > 0, got %d", c.Run.TickIntervalSeconds)
	}
	if c.Run.DailyAttemptCap < 0 {
		return errors.NewConfigurationError("run.daily_attempt_cap must be >= 0, got %d", c.Run.DailyAttemptCap)
	}

	seen := make(map[string]struct{}, len(c.Users))
	for i, u := range c.Users {
		if u.Username == "" {
			return errors.NewConfigurationError("users[%d]: username is required", i)
		}
		if u.Password == "" {
			return errors.NewConfigurationError("users[%d] (%s): password is required", i, u.Username)
		}
		if u.Schedule == "" {
			return errors.NewConfigurationError("users[%d] (%s): schedule path is required", i, u.Username)
		}
		if _, dup := seen[u.Username]; dup {
			return errors.NewConfigurationError("duplicate user %q", u.Username)
		}
		seen[u.Username] = struct{}{}

		switch u.NotifyChannel {
		case "", "telegram", "discord":
		default:
			return errors.NewConfigurationError("users[%d] (%s): unknown notify_channel %q", i, u.Username, u.NotifyChannel)
		}
		if u.NotifyChannel != "" && u.NotifyAddress == "" {
			return errors.NewConfigurationError("users[%d] (%s): notify_address is required with notify_channel", i, u.Username)
		}
		if u.NotifyChannel == "telegram" && c.Notify.TelegramToken == "" {
			return errors.NewConfigurationError("user %s uses telegram but notify.telegram_token is not set", u.Username)
		}
		if u.NotifyChannel == "discord" && c.Notify.DiscordToken == "" {
			return errors.NewConfigurationError("user %s uses discord but notify.discord_token is not set", u.Username)
		}
	}
	return nil
}

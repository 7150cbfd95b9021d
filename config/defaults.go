package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Portal defaults
	v.SetDefault("portal.request_timeout_seconds", 30)

	// Run defaults
	v.SetDefault("run.max_concurrency", 4)
	v.SetDefault("run.max_attempts", 3)
	v.SetDefault("run.base_delay_seconds", 2)
	v.SetDefault("run.backoff_multiplier", 2.0)
	v.SetDefault("run.workflow_timeout_seconds", 180) // a full login+submit rarely takes 30s
	v.SetDefault("run.stagger_seconds", 2)            // soften the thundering herd on the portal
	v.SetDefault("run.tick_interval_seconds", 300)
	v.SetDefault("run.daily_attempt_cap", 2)
	v.SetDefault("run.retention_days", 30)
	v.SetDefault("run.notify_no_class", false)

	// Database defaults
	v.SetDefault("database.path", "absen.db")
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/absenlab/absen/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the configuration from defaults, config files, and the
// environment, then appends env-defined users. The result is cached.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the shared Viper instance.
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper unmarshals configuration from a prepared Viper instance
// and appends env users.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.Users = append(cfg.Users, UsersFromEnv()...)
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific TOML file, with
// defaults but without environment binding.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "unmarshal config from %s", path)
	}
	return &cfg, nil
}

// Reset clears the cached configuration. Used by tests and the config
// watcher's reload path.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix("ABSEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Tokens are the values most deployments keep out of the file.
	v.BindEnv("notify.telegram_token", "ABSEN_NOTIFY_TELEGRAM_TOKEN")
	v.BindEnv("notify.discord_token", "ABSEN_NOTIFY_DISCORD_TOKEN")
	v.BindEnv("portal.base_url", "ABSEN_PORTAL_BASE_URL")

	SetDefaults(v)

	// Precedence (lowest to highest): user file < project file < env.
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// FindProjectConfig walks up from the working directory looking for
// absen.toml. Returns "" if none is found.
func FindProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, "absen.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// UserConfigPath is where persisted user entries land (~/.absen/absen.toml).
func UserConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".absen", "absen.toml")
}

func mergeConfigFiles(v *viper.Viper) {
	v.SetConfigType("toml")

	if userPath := UserConfigPath(); userPath != "" {
		if _, err := os.Stat(userPath); err == nil {
			v.SetConfigFile(userPath)
			_ = v.MergeInConfig()
		}
	}

	if projectPath := FindProjectConfig(); projectPath != "" {
		v.SetConfigFile(projectPath)
		_ = v.MergeInConfig()
	}
}

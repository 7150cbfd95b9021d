package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/absenlab/absen/errors"
)

// Save writes the configuration to a TOML file, creating the parent
// directory if needed. The bot's /setup flow uses this to persist users
// it enrolled at runtime. Credentials go into the file, so it is written
// owner-only.
func Save(cfg *Config, path string) error {
	if path == "" {
		return errors.NewConfigurationError("config save path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	// Write-then-rename so a crash mid-write never truncates the file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "write config")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "replace config")
	}
	return nil
}

// AddUser appends (or replaces) a user entry in the config file at path,
// loading the existing file first if present.
func AddUser(path string, user UserConfig) error {
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	replaced := false
	for i := range cfg.Users {
		if cfg.Users[i].Username == user.Username {
			cfg.Users[i] = user
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Users = append(cfg.Users, user)
	}

	return Save(cfg, path)
}

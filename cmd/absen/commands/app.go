package commands

import (
	"database/sql"

	"github.com/absenlab/absen/config"
	"github.com/absenlab/absen/db"
	"github.com/absenlab/absen/driver"
	"github.com/absenlab/absen/driver/spada"
	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/logger"
	"github.com/absenlab/absen/notify"
	"github.com/absenlab/absen/notify/discord"
	"github.com/absenlab/absen/notify/telegram"
	"github.com/absenlab/absen/retry"
	"github.com/absenlab/absen/runner"
	"github.com/absenlab/absen/schedule"
	"github.com/absenlab/absen/state"
	"github.com/absenlab/absen/workflow"
)

// app bundles the wired components shared by run and daemon.
type app struct {
	cfg         *config.Config
	store       *state.Store
	database    *sql.DB
	coordinator *runner.Coordinator
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildApp wires driver, notifiers, store, workflow, and coordinator
// from the configuration.
func buildApp(cfg *config.Config) (*app, error) {
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, err
	}
	store := state.NewStore(database)

	registry := notify.NewRegistry()
	if cfg.Notify.TelegramToken != "" {
		registry.Register(telegram.New(cfg.Notify.TelegramToken))
	}
	if cfg.Notify.DiscordToken != "" {
		registry.Register(discord.New(cfg.Notify.DiscordToken))
	}
	dispatcher := notify.NewDispatcher(registry, logger.Logger)

	drv := spada.New(cfg.Portal.BaseURL, spada.WithTimeout(cfg.Portal.RequestTimeout()))

	wf := workflow.New(drv, dispatcher, logger.Logger,
		workflow.WithStore(store),
		workflow.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.Run.MaxAttempts,
			BaseDelay:   cfg.Run.BaseDelay(),
			Multiplier:  cfg.Run.BackoffMultiplier,
		}),
		workflow.WithAttemptCap(cfg.Run.DailyAttemptCap),
		workflow.WithIdleNotifications(cfg.Run.NotifyNoClass),
	)

	coordinator := runner.NewCoordinator(wf, runner.CoordinatorConfig{
		Concurrency: cfg.Run.MaxConcurrency,
		Stagger:     cfg.Run.Stagger(),
		Timeout:     cfg.Run.WorkflowTimeout(),
	}, logger.Logger)

	return &app{
		cfg:         cfg,
		store:       store,
		database:    database,
		coordinator: coordinator,
	}, nil
}

func (a *app) Close() {
	a.database.Close()
}

// loadUsers resolves configured users into runnable ones, parsing each
// schedule CSV. A user with a broken schedule is skipped with a log line
// instead of sinking the whole pass.
func loadUsers(cfg *config.Config) []workflow.User {
	users := make([]workflow.User, 0, len(cfg.Users))
	for _, uc := range cfg.Users {
		set, err := schedule.LoadFile(uc.Schedule)
		if err != nil {
			logger.Errorw("Skipping user with unreadable schedule",
				"user", uc.Username, "schedule", uc.Schedule, "error", err)
			continue
		}
		users = append(users, workflowUser(uc, set))
	}
	return users
}

func workflowUser(uc config.UserConfig, set schedule.Set) workflow.User {
	u := workflow.User{
		ID:          uc.Username,
		Credentials: driver.Credentials{Username: uc.Username, Password: uc.Password},
		Schedule:    set,
	}
	if uc.NotifyChannel != "" {
		u.Target = notify.Target{
			Channel: notify.Channel(uc.NotifyChannel),
			Address: uc.NotifyAddress,
		}
	}
	return u
}

// findUser returns the configured entry for a username.
func findUser(cfg *config.Config, username string) (config.UserConfig, error) {
	for _, uc := range cfg.Users {
		if uc.Username == username {
			return uc, nil
		}
	}
	return config.UserConfig{}, errors.Newf("no configured user %q", username)
}

// resolveSchedule loads a configured user's schedule on demand, so the
// bot's /pauseonce sees edits made since the daemon started.
func resolveSchedule(cfg *config.Config) func(username string) (schedule.Set, bool) {
	return func(username string) (schedule.Set, bool) {
		uc, err := findUser(cfg, username)
		if err != nil {
			return nil, false
		}
		set, err := schedule.LoadFile(uc.Schedule)
		if err != nil {
			logger.Warnw("Schedule lookup failed", "user", username, "error", err)
			return nil, false
		}
		return set, true
	}
}

// resolveChat maps a Telegram chat id back to the configured username.
func resolveChat(cfg *config.Config) func(chatID string) (string, bool) {
	return func(chatID string) (string, bool) {
		for _, uc := range cfg.Users {
			if uc.NotifyChannel == "telegram" && uc.NotifyAddress == chatID {
				return uc.Username, true
			}
		}
		return "", false
	}
}

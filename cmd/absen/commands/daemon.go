package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/absenlab/absen/bot"
	"github.com/absenlab/absen/config"
	"github.com/absenlab/absen/logger"
	"github.com/absenlab/absen/runner"
	"github.com/absenlab/absen/workflow"
)

// DaemonCmd runs the scheduler loop until interrupted.
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the attendance daemon",
	Long: `Run the scheduler loop: every tick, each user's timetable is checked
and attendance is submitted for classes inside their window. With a
Telegram token configured the command bot runs alongside, and edits to
the config file are picked up without a restart.

Example:
  absen daemon`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Config reloads swap the user list the next tick reads.
		var mu sync.Mutex
		current := cfg
		usersFn := func() []workflow.User {
			mu.Lock()
			defer mu.Unlock()
			return loadUsers(current)
		}

		if watchPath := configFileToWatch(); watchPath != "" {
			watcher, err := config.NewWatcher(watchPath)
			if err != nil {
				logger.Warnw("Config watching disabled", "path", watchPath, "error", err)
			} else {
				watcher.OnReload(func(next *config.Config) error {
					mu.Lock()
					current = next
					mu.Unlock()
					logger.Infow("Configuration reloaded", "users", len(next.Users))
					return nil
				})
				watcher.Start()
				defer watcher.Stop()
			}
		}

		ticker := runner.NewTicker(ctx, app.coordinator, usersFn, cfg.Run.TickInterval(), logger.Logger)
		retention := cfg.Run.RetentionDays
		ticker.OnDailySweep(func(ctx context.Context) {
			cutoff := time.Now().AddDate(0, 0, -retention)
			if err := app.store.Prune(ctx, cutoff); err != nil {
				logger.Warnw("Run-state prune failed", "error", err)
			}
		})
		ticker.Start()

		var botDone chan struct{}
		if cfg.Notify.TelegramToken != "" {
			botDone = make(chan struct{})
			tgBot := bot.New(cfg.Notify.TelegramToken, app.store, resolveChat(cfg),
				resolveSchedule(cfg), config.UserConfigPath(), logger.Logger)
			go func() {
				defer close(botDone)
				if err := tgBot.Run(ctx); err != nil {
					logger.Errorw("Bot stopped with error", "error", err)
				}
			}()
		}

		fmt.Printf("absen daemon started\n")
		fmt.Printf("  Users: %d\n", len(cfg.Users))
		fmt.Printf("  Tick interval: %v\n", cfg.Run.TickInterval())
		fmt.Printf("  Concurrency: %d\n", cfg.Run.MaxConcurrency)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		<-ctx.Done()
		fmt.Println("\nShutting down...")

		ticker.Stop()
		if botDone != nil {
			<-botDone
		}
		fmt.Println("absen daemon stopped")
		return nil
	},
}

// configFileToWatch picks the config file the daemon should watch:
// project file first, then the user file.
func configFileToWatch() string {
	if path := config.FindProjectConfig(); path != "" {
		return path
	}
	if path := config.UserConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

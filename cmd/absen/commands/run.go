package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/absenlab/absen/display"
	"github.com/absenlab/absen/workflow"
)

// RunCmd runs one attendance pass over all users and exits.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single attendance pass now",
	Long: `Run one attendance pass over every configured user and print the
results. Classes outside their attendance window are reported as
no_active_class; nothing is retried later — that is what the daemon is
for.

Examples:
  absen run                  # everyone
  absen run --user student1  # just one user`,
	RunE: func(cmd *cobra.Command, args []string) error {
		onlyUser, _ := cmd.Flags().GetString("user")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		users := loadUsers(cfg)
		if onlyUser != "" {
			filtered := users[:0]
			for _, u := range users {
				if u.ID == onlyUser {
					filtered = append(filtered, u)
				}
			}
			users = filtered
			if len(users) == 0 {
				if _, err := findUser(cfg, onlyUser); err != nil {
					return err
				}
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		results := app.coordinator.RunAll(ctx, users)
		if err := display.RenderResults(results); err != nil {
			return err
		}

		for _, res := range results {
			if res.Outcome == workflow.OutcomePermanentFailure {
				return res.Err
			}
		}
		return nil
	},
}

func init() {
	RunCmd.Flags().String("user", "", "Run the pass for a single user")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/absenlab/absen/cmd/absen/commands"
	"github.com/absenlab/absen/logger"
)

var rootCmd = &cobra.Command{
	Use:   "absen",
	Short: "absen - attendance automation for SPADA",
	Long: `absen submits class attendance on a SPADA (Moodle) portal for every
configured user, on schedule.

Available commands:
  run      - Run a single attendance pass now
  daemon   - Run the scheduler loop (plus the Telegram bot)
  users    - List configured users
  schedule - Show a user's timetable
  pause    - Pause a user's submissions
  resume   - Resume a user's submissions
  version  - Show version information

Examples:
  absen run                   # one pass over everyone
  absen daemon                # keep running on a server
  absen pause student1 --once # skip the next class`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Root().PersistentFlags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.DaemonCmd)
	rootCmd.AddCommand(commands.UsersCmd)
	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.PauseCmd)
	rootCmd.AddCommand(commands.ResumeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

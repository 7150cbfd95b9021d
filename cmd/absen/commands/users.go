package commands

import (
	"github.com/spf13/cobra"

	"github.com/absenlab/absen/display"
	"github.com/absenlab/absen/schedule"
)

// UsersCmd lists configured users.
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List configured users",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return display.RenderUsers(cfg.Users)
	},
}

// ScheduleCmd shows one user's timetable.
var ScheduleCmd = &cobra.Command{
	Use:   "schedule <username>",
	Short: "Show a user's timetable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		uc, err := findUser(cfg, args[0])
		if err != nil {
			return err
		}
		set, err := schedule.LoadFile(uc.Schedule)
		if err != nil {
			return err
		}
		return display.RenderSchedule(set)
	},
}

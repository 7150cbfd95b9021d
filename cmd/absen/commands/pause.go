package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/absenlab/absen/db"
	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/logger"
	"github.com/absenlab/absen/schedule"
	"github.com/absenlab/absen/state"
)

// PauseCmd sets a pause flag from the CLI, mirroring the bot's /pause.
var PauseCmd = &cobra.Command{
	Use:   "pause <username>",
	Short: "Pause attendance submission for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")

		store, closeDB, err := openStore()
		if err != nil {
			return err
		}
		defer closeDB()

		ctx := context.Background()
		if once {
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
			entry, ok := schedule.NextEntry(set, time.Now())
			if !ok {
				return errors.Newf("no upcoming class today for %s", args[0])
			}
			if err := store.PauseNext(ctx, args[0], entry.Course); err != nil {
				return err
			}
			fmt.Printf("%s will skip %s\n", args[0], entry.Course)
			return nil
		}

		if err := store.Pause(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("%s paused until resumed\n", args[0])
		return nil
	},
}

// ResumeCmd clears a pause flag.
var ResumeCmd = &cobra.Command{
	Use:   "resume <username>",
	Short: "Resume attendance submission for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := openStore()
		if err != nil {
			return err
		}
		defer closeDB()

		if err := store.Resume(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s resumed\n", args[0])
		return nil
	},
}

func openStore() (*state.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, nil, err
	}
	return state.NewStore(database), func() { database.Close() }, nil
}

func init() {
	PauseCmd.Flags().Bool("once", false, "Skip only the next class")
}

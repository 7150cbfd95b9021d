// Package db owns the SQLite connection and schema for the daemon's
// run state. The core attendance pass works without it; the store built
// on top is what remembers submissions and pause flags across restarts.
package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/absenlab/absen/errors"
)

// Open opens the SQLite database at path with WAL mode, foreign keys,
// and a busy timeout. Pass a nil logger to open silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := database.Exec(pragma); err != nil {
			database.Close()
			return nil, errors.Wrapf(err, "exec %q", pragma)
		}
	}

	if logger != nil {
		logger.Debugw("Database opened", "path", path)
	}
	return database, nil
}

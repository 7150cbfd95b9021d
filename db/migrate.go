package db

import (
	"database/sql"
	"embed"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/absenlab/absen/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

// Migrate applies all pending migrations in filename order. Applied
// versions are tracked in schema_migrations, which migration 000 creates.
func Migrate(database *sql.DB, logger *zap.SugaredLogger) error {
	entries, err := migrations.ReadDir("sqlite/migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		version := strings.Split(filename, "_")[0]

		var applied bool
		err := database.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version,
		).Scan(&applied)
		if err != nil {
			// schema_migrations does not exist until 000 runs.
			if version != "000" {
				return errors.Newf("schema_migrations missing before migration %s", filename)
			}
		} else if applied {
			continue
		}

		sqlBytes, err := migrations.ReadFile(filepath.Join("sqlite/migrations", filename))
		if err != nil {
			return errors.Wrapf(err, "read migration %s", filename)
		}
		if _, err := database.Exec(string(sqlBytes)); err != nil {
			return errors.Wrapf(err, "apply migration %s", filename)
		}
		if _, err := database.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version,
		); err != nil {
			return errors.Wrapf(err, "record migration %s", filename)
		}

		if logger != nil {
			logger.Infow("Applied migration", "migration", filename)
		}
	}
	return nil
}

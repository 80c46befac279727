package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/rs/zerolog"
)

//go:embed migrations
var migrations embed.FS

// MigrationSource returns the embedded migrations for driver.
func MigrationSource(driver string) migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       "migrations/" + driver,
	}
}

// Migrate applies every pending up migration for the connection's driver.
func Migrate(ctx context.Context, db *sqlx.DB, log zerolog.Logger) (int, error) {
	return run(ctx, db, migrate.Up, 0, log)
}

// Rollback reverts the last steps migrations; steps <= 0 reverts all.
func Rollback(ctx context.Context, db *sqlx.DB, steps int, log zerolog.Logger) (int, error) {
	return run(ctx, db, migrate.Down, steps, log)
}

func run(ctx context.Context, db *sqlx.DB, dir migrate.MigrationDirection, max int, log zerolog.Logger) (int, error) {
	driver := db.DriverName()
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := migrate.ExecMax(db.DB, driver, MigrationSource(driver), dir, max)
		done <- result{n: n, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("migration timeout: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return res.n, fmt.Errorf("db migrations have failed: %w", res.err)
		}
		log.Info().Int("count", res.n).Str("driver", driver).Msg("applied migrations")
		return res.n, nil
	}
}

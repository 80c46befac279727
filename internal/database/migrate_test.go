package database

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchayre/logsti/internal/config"
)

func TestMigrationSourcePerDriver(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverMySQL, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			found, err := MigrationSource(driver).FindMigrations()
			require.NoError(t, err)
			require.Len(t, found, 2)
			assert.Equal(t, "0001_init.sql", found[0].Id)
			assert.Equal(t, "0002_unique_active_names.sql", found[1].Id)
		})
	}
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	n, err := Migrate(ctx, db, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// second run is a no-op
	n, err = Migrate(ctx, db, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, table := range []string{"tickets", "technicians", "sectors", "categories", "users"} {
		var count int
		require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table))
		assert.Zero(t, count, table)
	}
	require.NoError(t, Ping(ctx, db))

	n, err = Rollback(ctx, db, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteRejectsDuplicateActiveName(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	_, err = Migrate(ctx, db, zerolog.Nop())
	require.NoError(t, err)

	insert := `INSERT INTO sectors (id, name, active, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	_, err = db.ExecContext(ctx, insert, "s-1", "TI", true)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "s-2", "ti", true)
	assert.True(t, IsUniqueViolation(err), "got %v", err)

	// inactive rows are outside the constraint
	_, err = db.ExecContext(ctx, insert, "s-3", "TI", false)
	assert.NoError(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported")
}

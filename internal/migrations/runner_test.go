package migrations

import (
	"context"
	"errors"
	"testing"

	"github.com/huangang/setupd/internal/config"
	"github.com/huangang/setupd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func names(ms []Migration) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return out
}

func TestRunner_AppliesAllOnFreshDatabase(t *testing.T) {
	db := newTestDB(t)
	runner := NewRunner(db, All())
	ctx := context.Background()

	pending, err := runner.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, names(All()), names(pending))

	require.NoError(t, runner.Run(ctx, pending))

	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasTable(&models.Settings{}))
	assert.True(t, db.Migrator().HasTable(&models.SystemLog{}))
	assert.True(t, db.Migrator().HasIndex(&models.User{}, "idx_users_role"))

	pending, err = runner.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunner_RunIsIdempotentPerUnit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	calls := 0
	list := []Migration{{
		Name: "0001_counter",
		Up: func(tx *gorm.DB) error {
			calls++
			return nil
		},
	}}
	runner := NewRunner(db, list)

	require.NoError(t, runner.Run(ctx, list))
	require.NoError(t, runner.Run(ctx, list))
	assert.Equal(t, 1, calls)

	var applied []models.SchemaMigration
	require.NoError(t, db.Find(&applied).Error)
	require.Len(t, applied, 1)
	assert.Equal(t, "0001_counter", applied[0].Name)
}

func TestRunner_FailureKeepsEarlierUnits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	list := []Migration{
		All()[0],
		{Name: "0002_broken", Up: func(tx *gorm.DB) error { return boom }},
		All()[1],
	}
	runner := NewRunner(db, list)

	pending, err := runner.ListPending(ctx)
	require.NoError(t, err)

	err = runner.Run(ctx, pending)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "0002_broken")

	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.False(t, db.Migrator().HasTable(&models.Settings{}))

	pending, err = runner.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_broken", "0002_create_settings"}, names(pending))
}

package app

import (
	"context"
	"testing"

	"github.com/huangang/setupd/internal/config"
	"github.com/huangang/setupd/internal/models"
	"github.com/huangang/setupd/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, locked bool) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.DSN = ":memory:"
	cfg.Setup.Locked = locked

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_UnsupportedDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Driver = "oracle"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestMigrateIfInstalled_LeavesFreshInstanceAlone(t *testing.T) {
	a := newTestApp(t, false)
	ctx := context.Background()

	require.NoError(t, a.MigrateIfInstalled(ctx))
	assert.False(t, a.DB.Migrator().HasTable(&models.Settings{}))

	status, err := a.Setup.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, services.AvailabilityAvailable, status)
}

func TestMigrateIfInstalled_AppliesOutstandingUnits(t *testing.T) {
	a := newTestApp(t, false)
	ctx := context.Background()

	_, err := a.Setup.Setup(ctx, services.SetupInput{
		Settings: services.SettingsInput{
			OrganizationName:         "Acme",
			OrganizationContactEmail: "ops@acme.test",
		},
		User: services.SetupUserInput{
			Email:    "admin@acme.test",
			Username: "firstadmin",
			Password: "s3cure-passw0rd",
		},
	})
	require.NoError(t, err)

	// Simulate a release that shipped a new index after this instance was set up.
	require.NoError(t, a.DB.Exec("DROP INDEX idx_users_role").Error)
	require.NoError(t, a.DB.Where("name = ?", "0004_users_role_index").Delete(&models.SchemaMigration{}).Error)

	require.NoError(t, a.MigrateIfInstalled(ctx))
	assert.True(t, a.DB.Migrator().HasIndex(&models.User{}, "idx_users_role"))

	pending, err := a.Migrations.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestNew_InjectsInstallLock(t *testing.T) {
	a := newTestApp(t, true)

	assert.ErrorIs(t, a.Setup.IsAvailable(context.Background()), services.ErrLocked)
}

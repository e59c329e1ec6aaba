// Package app wires the database and services shared by the HTTP server and
// the setup CLI.
package app

import (
	"context"
	"fmt"

	"github.com/huangang/setupd/internal/config"
	"github.com/huangang/setupd/internal/migrations"
	"github.com/huangang/setupd/internal/models"
	"github.com/huangang/setupd/internal/services"
	"github.com/huangang/setupd/internal/utils"
	"github.com/huangang/setupd/pkg/logger"
	"gorm.io/gorm"
)

// App holds the initialized services.
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Migrations *migrations.Runner
	Settings   *services.SettingsService
	Users      *services.UserService
	Auth       *services.AuthService
	SystemLogs *services.SystemLogService
	Setup      *services.SetupService
}

// New connects to the database and builds the services. The schema is not
// touched; see MigrateIfInstalled.
func New(cfg *config.Config) (*App, error) {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		return nil, err
	}
	db := models.GetDB()

	runner := migrations.NewRunner(db, migrations.All())
	settings := services.NewSettingsService(db)
	users := services.NewUserService(db)
	systemLogs := services.NewSystemLogService(db)

	return &App{
		Config:     cfg,
		DB:         db,
		Migrations: runner,
		Settings:   settings,
		Users:      users,
		Auth:       services.NewAuthService(db, &cfg.JWT),
		SystemLogs: systemLogs,
		Setup:      services.NewSetupService(cfg.Setup.Locked, runner, settings, users).WithAuditLog(systemLogs),
	}, nil
}

// MigrateIfInstalled applies pending migrations on an instance that has
// already been set up. A fresh instance is left alone: setup migrates it.
func (a *App) MigrateIfInstalled(ctx context.Context) error {
	installed, err := a.Settings.InstallationStatus(ctx)
	if err != nil {
		return fmt.Errorf("read installation status: %w", err)
	}
	if !installed {
		logger.Info().Msg("instance not initialized, waiting for setup")
		return nil
	}

	pending, err := a.Migrations.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	logger.Info().Int("pending", len(pending)).Msg("applying schema migrations")
	return a.Migrations.Run(ctx, pending)
}

// Close releases the database connection pool.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

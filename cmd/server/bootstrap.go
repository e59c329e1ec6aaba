package main

import (
	"context"
	"time"

	"github.com/huangang/setupd/internal/app"
	"github.com/huangang/setupd/internal/config"
	"github.com/huangang/setupd/internal/middleware"
	"github.com/huangang/setupd/pkg/logger"
)

// appServices holds the application and the long-lived middleware state.
type appServices struct {
	*app.App
	setupLimiter *middleware.RateLimiter
	loginLimiter *middleware.RateLimiter
}

// bootstrap connects to the database, builds the services and brings an
// already installed schema up to date.
func bootstrap(cfg *config.Config) *appServices {
	a, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := a.MigrateIfInstalled(ctx); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if cfg.Setup.Locked {
		logger.Info().Msg("Installation lock is set, setup endpoint disabled")
	}

	return &appServices{
		App:          a,
		setupLimiter: middleware.NewRateLimiter(1, 5),
		loginLimiter: middleware.NewRateLimiter(2, 10),
	}
}

// shutdown releases background workers and the database pool.
func (s *appServices) shutdown() {
	s.setupLimiter.Stop()
	s.loginLimiter.Stop()
	if err := s.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close database")
	}
	logger.Info().Msg("All services stopped")
}

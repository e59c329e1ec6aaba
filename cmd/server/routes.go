package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/setupd/internal/handlers"
	"github.com/huangang/setupd/internal/middleware"
	"github.com/huangang/setupd/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.Config.Server.AllowOrigins))
	r.Use(middleware.RequestInfo())

	healthHandler := handlers.NewHealthHandler(svc.DB, svc.Setup)
	r.GET("/health", healthHandler.CheckHealth)

	setupHandler := handlers.NewSetupHandler(svc.Setup)
	authHandler := handlers.NewAuthHandler(svc.Auth)

	api := r.Group("/api")
	{
		// Setup (public, available until the instance is initialized)
		setup := api.Group("/setup")
		{
			setup.GET("", setupHandler.GetStatus)
			setup.POST("", svc.setupLimiter.Middleware(), setupHandler.Setup)
		}

		// Auth routes (public)
		api.POST("/auth/login", svc.loginLimiter.Middleware(), authHandler.Login)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)
		}

		// Admin routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			settingsHandler := handlers.NewSettingsHandler(svc.Settings)
			admin.GET("/settings", settingsHandler.Get)
			admin.PUT("/settings", settingsHandler.Update)

			systemLogHandler := handlers.NewSystemLogHandler(svc.SystemLogs)
			admin.GET("/system-logs", systemLogHandler.List)
		}
	}
}

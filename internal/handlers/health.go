package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/setupd/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports database reachability and installation state.
type HealthHandler struct {
	db           *gorm.DB
	setupService *services.SetupService
}

func NewHealthHandler(db *gorm.DB, setupService *services.SetupService) *HealthHandler {
	return &HealthHandler{db: db, setupService: setupService}
}

func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	installation := "unknown"
	if status, err := h.setupService.Status(c.Request.Context()); err == nil {
		installation = status.String()
	}

	code := 200
	if overall != "healthy" {
		code = 503
	}
	c.JSON(code, gin.H{
		"status":  overall,
		"service": "setupd",
		"components": gin.H{
			"database":     dbStatus,
			"installation": installation,
		},
	})
}

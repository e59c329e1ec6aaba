package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/huangang/setupd/internal/services"
	"github.com/huangang/setupd/pkg/response"
)

type SettingsHandler struct {
	settingsService *services.SettingsService
}

func NewSettingsHandler(settingsService *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// Get returns the instance settings
// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrNotInitialized) {
			response.NotFound(c, err.Error())
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, settings)
}

// Update changes the instance settings after setup
// PUT /api/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var req services.SettingsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	settings, err := h.settingsService.Update(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotInitialized):
			response.NotFound(c, err.Error())
		case errors.Is(err, services.ErrInvalidSettings):
			response.BadRequest(c, err.Error())
		default:
			response.Error(c, err)
		}
		return
	}

	response.Success(c, settings)
}

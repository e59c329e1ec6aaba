package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/setupd/internal/services"
	"github.com/huangang/setupd/pkg/response"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(systemLogService *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: systemLogService}
}

// List returns recent installation audit records
// GET /api/system-logs?limit=20
func (h *SystemLogHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	logs, err := h.systemLogService.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, logs)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/setupd/internal/services"
	"github.com/huangang/setupd/pkg/response"
)

type SetupHandler struct {
	setupService *services.SetupService
}

func NewSetupHandler(setupService *services.SetupService) *SetupHandler {
	return &SetupHandler{setupService: setupService}
}

// GetStatus reports whether setup can run
// GET /api/setup
func (h *SetupHandler) GetStatus(c *gin.Context) {
	status, err := h.setupService.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"status":    status.String(),
		"available": status == services.AvailabilityAvailable,
	})
}

// Setup bootstraps the instance. A locked or initialized instance is
// reported before the body is read.
// POST /api/setup
func (h *SetupHandler) Setup(c *gin.Context) {
	if err := h.setupService.IsAvailable(c.Request.Context()); err != nil {
		response.Error(c, setupError(err))
		return
	}

	var req services.SetupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.setupService.Setup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, setupError(err))
		return
	}

	response.Created(c, result)
}

// setupError attaches an HTTP status to the setup sentinels. Anything else,
// including a partially applied setup, is reported as a 500 with its
// original message.
func setupError(err error) error {
	var partial *services.PartialSetupError
	switch {
	case errors.As(err, &partial):
		return err
	case errors.Is(err, services.ErrLocked):
		return response.Wrap(http.StatusForbidden, err)
	case errors.Is(err, services.ErrAlreadyInitialized):
		return response.Wrap(http.StatusConflict, err)
	case errors.Is(err, services.ErrMissingEmail),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, services.ErrInvalidPassword),
		errors.Is(err, services.ErrInvalidSettings):
		return response.Wrap(http.StatusBadRequest, err)
	default:
		return err
	}
}

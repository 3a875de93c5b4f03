package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/certifyhq/certify-api/internal/service"
	"github.com/certifyhq/certify-api/pkg/response"
)

// OpsHandler exposes administrative maintenance endpoints for the artifact
// directory.
type OpsHandler struct {
	cleanup *service.CleanupService
}

// NewOpsHandler constructs OpsHandler.
func NewOpsHandler(cleanup *service.CleanupService) *OpsHandler {
	return &OpsHandler{cleanup: cleanup}
}

// ArtifactStats godoc
// @Summary Summarise the generated artifact directory
// @Tags Operations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/artifacts [get]
func (h *OpsHandler) ArtifactStats(c *gin.Context) {
	stats, err := h.cleanup.Stats()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Sweep godoc
// @Summary Delete stale PDF and ZIP artifacts immediately
// @Tags Operations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/artifacts/sweep [post]
func (h *OpsHandler) Sweep(c *gin.Context) {
	deleted := h.cleanup.Sweep()
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

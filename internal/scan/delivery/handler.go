package delivery

import (
	"net/http"

	"labeler-backend/internal/scan/usecase"

	"github.com/gin-gonic/gin"
)

type ScanHandler struct {
	orchestrator *usecase.Orchestrator
}

func NewScanHandler(orchestrator *usecase.Orchestrator) *ScanHandler {
	return &ScanHandler{orchestrator: orchestrator}
}

// POST /api/scan/run
// Fires an immediate cycle. If one is already in flight the trigger is
// dropped and only shows up in the log feed.
func (h *ScanHandler) RunNow(c *gin.Context) {
	h.orchestrator.RunNow()
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

// GET /api/scan/status
func (h *ScanHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.Status())
}

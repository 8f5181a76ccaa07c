package delivery

import (
	"net/http"
	"strconv"

	logrepo "labeler-backend/internal/logfeed/repository"

	"github.com/gin-gonic/gin"
)

type LogHandler struct {
	logRepo logrepo.LogRepository
}

func NewLogHandler(logRepo logrepo.LogRepository) *LogHandler {
	return &LogHandler{logRepo: logRepo}
}

// GET /api/logs?limit=N
func (h *LogHandler) Recent(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	logs, err := h.logRepo.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	logdomain "labeler-backend/internal/logfeed/domain"
	logrepo "labeler-backend/internal/logfeed/repository"
	settingsdomain "labeler-backend/internal/settings/domain"
	settingsrepo "labeler-backend/internal/settings/repository"
	"labeler-backend/pkg/ollama"

	"github.com/gin-gonic/gin"
)

// RuntimeConfig holds runtime-configurable settings
type RuntimeConfig struct {
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

var (
	runtimeConfig     RuntimeConfig
	runtimeConfigLock sync.RWMutex
)

// InitRuntimeConfig initializes runtime config from static config
func InitRuntimeConfig(ollamaBaseURL, ollamaModel string) {
	runtimeConfigLock.Lock()
	defer runtimeConfigLock.Unlock()
	runtimeConfig = RuntimeConfig{
		OllamaBaseURL: ollamaBaseURL,
		OllamaModel:   ollamaModel,
	}
}

// GetRuntimeOllamaBaseURL returns the current runtime Ollama base URL
func GetRuntimeOllamaBaseURL() string {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig.OllamaBaseURL
}

// GetRuntimeOllamaModel returns the current runtime Ollama model
func GetRuntimeOllamaModel() string {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig.OllamaModel
}

// SettingsHandler serves operator-tunable settings. Values persist in the
// settings table; the Ollama pair is also mirrored into the runtime config so
// the classifier picks changes up without a restart.
type SettingsHandler struct {
	settingsRepo settingsrepo.SettingsRepository
	logRepo      logrepo.LogRepository
	ollamaClient *ollama.Client
}

func NewSettingsHandler(settingsRepo settingsrepo.SettingsRepository, logRepo logrepo.LogRepository, ollamaClient *ollama.Client) *SettingsHandler {
	return &SettingsHandler{settingsRepo: settingsRepo, logRepo: logRepo, ollamaClient: ollamaClient}
}

// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	interval, err := h.settingsRepo.Get(settingsdomain.KeyPollInterval, "300")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll_interval": interval})
}

type updateSettingsRequest struct {
	PollInterval int `json:"poll_interval" binding:"required"`
}

// PUT /api/settings
// The scheduler re-reads the interval each cycle, so the change takes effect
// on the next tick.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PollInterval <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "poll_interval must be a positive number of seconds"})
		return
	}

	if err := h.settingsRepo.Set(settingsdomain.KeyPollInterval, strconv.Itoa(req.PollInterval)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logRepo.Add(logdomain.LevelInfo, fmt.Sprintf("Poll interval changed to %d second(s).", req.PollInterval))
	c.JSON(http.StatusOK, gin.H{"poll_interval": req.PollInterval})
}

// UpdateOllamaSettingsRequest represents the request body for updating Ollama settings
type UpdateOllamaSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GET /api/settings/ollama
func (h *SettingsHandler) GetOllama(c *gin.Context) {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"ollama_base_url": runtimeConfig.OllamaBaseURL,
		"ollama_model":    runtimeConfig.OllamaModel,
	})
}

// PUT /api/settings/ollama
func (h *SettingsHandler) UpdateOllama(c *gin.Context) {
	var req UpdateOllamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runtimeConfigLock.Lock()
	runtimeConfig.OllamaBaseURL = req.OllamaBaseURL
	if req.OllamaModel != "" {
		runtimeConfig.OllamaModel = req.OllamaModel
	}
	runtimeConfigLock.Unlock()

	if err := h.settingsRepo.Set(settingsdomain.KeyOllamaBaseURL, req.OllamaBaseURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.OllamaModel != "" {
		if err := h.settingsRepo.Set(settingsdomain.KeyOllamaModel, req.OllamaModel); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Ollama settings updated successfully",
		"ollama_base_url": req.OllamaBaseURL,
		"ollama_model":    GetRuntimeOllamaModel(),
	})
}

// POST /api/settings/ollama/test
// Probes the posted base URL, or the current runtime one when the body is
// empty, with a short deadline so a hung backend cannot wedge the handler.
func (h *SettingsHandler) TestOllama(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = GetRuntimeOllamaBaseURL()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.ollamaClient.Ping(ctx, req.OllamaBaseURL); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": req.OllamaBaseURL,
	})
}

package api

import (
	"net/http"

	authDelivery "labeler-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(h *Handler) {
	api := h.engine.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.POST("/auth/login", h.authHandler.Login)

		protected := api.Group("")
		protected.Use(authDelivery.AuthMiddleware(h.authUsecase))
		{
			oauth := protected.Group("/oauth")
			{
				oauth.POST("/start", h.accountHandler.StartOAuth)
				oauth.POST("/exchange", h.accountHandler.ExchangeOAuth)
			}

			accounts := protected.Group("/accounts")
			{
				accounts.GET("", h.accountHandler.List)
				accounts.DELETE("/:id", h.accountHandler.Delete)
				accounts.POST("/:id/toggle", h.accountHandler.Toggle)
			}

			rules := protected.Group("/rules")
			{
				rules.GET("", h.ruleHandler.List)
				rules.GET("/export", h.ruleHandler.Export)
				rules.POST("", h.ruleHandler.Create)
				rules.PUT("/reorder", h.ruleHandler.Reorder)
				rules.PUT("/:id", h.ruleHandler.Update)
				rules.DELETE("/:id", h.ruleHandler.Delete)
			}

			scan := protected.Group("/scan")
			{
				scan.POST("/run", h.scanHandler.RunNow)
				scan.GET("/status", h.scanHandler.Status)
			}

			protected.GET("/logs", h.logHandler.Recent)

			settings := protected.Group("/settings")
			{
				settings.GET("", h.settingsHandler.Get)
				settings.PUT("", h.settingsHandler.Update)
				settings.GET("/ollama", h.settingsHandler.GetOllama)
				settings.PUT("/ollama", h.settingsHandler.UpdateOllama)
				settings.POST("/ollama/test", h.settingsHandler.TestOllama)
			}
		}
	}
}

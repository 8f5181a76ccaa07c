package main

import (
	"context"
	"log"

	api "labeler-backend/cmd/api"
	accountRepo "labeler-backend/internal/account/repository"
	logRepo "labeler-backend/internal/logfeed/repository"
	"labeler-backend/internal/notification"
	ruleRepo "labeler-backend/internal/rule/repository"
	scanRepo "labeler-backend/internal/scan/repository"
	settingsRepo "labeler-backend/internal/settings/repository"
	"labeler-backend/pkg/config"
	"labeler-backend/pkg/database"
	"labeler-backend/pkg/gmail"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	accountRepository := accountRepo.NewAccountRepository(db)
	ruleRepository := ruleRepo.NewRuleRepository(db)
	processedRepository := scanRepo.NewProcessedEmailRepository(db)
	settingsRepository := settingsRepo.NewSettingsRepository(db)
	logRepository := logRepo.NewLogRepository(db)

	// Initialize Gmail service
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)

	// Initialize HTTP handler (wires the orchestrator and classifier)
	handler := api.NewHandler(cfg, accountRepository, ruleRepository, processedRepository, settingsRepository, logRepository, gmailService)

	// Make sure the classification model is available before the first scan.
	// A cold pull can take minutes, so failure only warns.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.OllamaTimeout)
		defer cancel()
		if err := handler.OllamaClient().EnsureModel(ctx); err != nil {
			log.Printf("[WARN] Could not check/pull Ollama model: %v", err)
		}
	}()

	// Start the scan scheduler
	orchestrator := handler.Orchestrator()
	orchestrator.Start()
	defer orchestrator.Stop()

	// Optional Gmail push trigger via Pub/Sub
	if cfg.GoogleProjectID != "" {
		notifService, err := notification.NewService(cfg.GoogleProjectID, cfg.GooglePubSubTopic, cfg.GoogleCredentials, accountRepository, orchestrator)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize push notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GOOGLE_PROJECT_ID not configured, push trigger disabled")
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

package api

import (
	"context"

	accountDelivery "labeler-backend/internal/account/delivery"
	accountrepo "labeler-backend/internal/account/repository"
	authDelivery "labeler-backend/internal/auth/delivery"
	authUsecase "labeler-backend/internal/auth/usecase"
	logDelivery "labeler-backend/internal/logfeed/delivery"
	logrepo "labeler-backend/internal/logfeed/repository"
	ruleDelivery "labeler-backend/internal/rule/delivery"
	rulerepo "labeler-backend/internal/rule/repository"
	scanDelivery "labeler-backend/internal/scan/delivery"
	scandomain "labeler-backend/internal/scan/domain"
	scanrepo "labeler-backend/internal/scan/repository"
	scanUsecase "labeler-backend/internal/scan/usecase"
	settingsrepo "labeler-backend/internal/settings/repository"
	"labeler-backend/pkg/config"
	"labeler-backend/pkg/gmail"
	"labeler-backend/pkg/ollama"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	engine          *gin.Engine
	orchestrator    *scanUsecase.Orchestrator
	ollamaClient    *ollama.Client
	authUsecase     authUsecase.AuthUsecase
	authHandler     *authDelivery.AuthHandler
	accountHandler  *accountDelivery.AccountHandler
	ruleHandler     *ruleDelivery.RuleHandler
	scanHandler     *scanDelivery.ScanHandler
	logHandler      *logDelivery.LogHandler
	settingsHandler *SettingsHandler
}

// mailProviderAdapter narrows the concrete Gmail service to the scan
// usecase's MailProvider interface.
type mailProviderAdapter struct {
	svc *gmail.Service
}

func (a *mailProviderAdapter) Open(ctx context.Context, credentialsJSON string, onTokenRefresh scandomain.TokenUpdateFunc) (scanUsecase.Mailbox, error) {
	return a.svc.Open(ctx, credentialsJSON, onTokenRefresh)
}

func NewHandler(
	cfg *config.Config,
	accountRepo accountrepo.AccountRepository,
	ruleRepo rulerepo.RuleRepository,
	processedRepo scanrepo.ProcessedEmailRepository,
	settingsRepo settingsrepo.SettingsRepository,
	logRepo logrepo.LogRepository,
	gmailService *gmail.Service,
) *Handler {
	// Runtime Ollama settings win over the env defaults once the operator
	// saves them; both land in the settings table.
	baseURL, err := settingsRepo.Get("ollama_base_url", cfg.OllamaBaseURL)
	if err != nil {
		baseURL = cfg.OllamaBaseURL
	}
	model, err := settingsRepo.Get("ollama_model", cfg.OllamaModel)
	if err != nil {
		model = cfg.OllamaModel
	}
	InitRuntimeConfig(baseURL, model)

	ollamaClient := ollama.NewClientWithGetters(
		GetRuntimeOllamaBaseURL,
		GetRuntimeOllamaModel,
		ollama.Options{
			Timeout:    cfg.OllamaTimeout,
			NumCtx:     cfg.OllamaNumCtx,
			NumPredict: cfg.OllamaNumPredict,
		},
	)

	orchestrator := scanUsecase.NewOrchestrator(
		accountRepo,
		ruleRepo,
		processedRepo,
		settingsRepo,
		logRepo,
		&mailProviderAdapter{svc: gmailService},
		ollamaClient,
		scanUsecase.Options{
			Lookback:        cfg.GmailLookback,
			MaxResults:      cfg.GmailMaxResults,
			DefaultInterval: cfg.PollInterval,
			LogRetention:    cfg.LogRetention,
		},
	)

	authUc := authUsecase.NewAuthUsecase(cfg)

	h := &Handler{
		engine:          gin.Default(),
		orchestrator:    orchestrator,
		ollamaClient:    ollamaClient,
		authUsecase:     authUc,
		authHandler:     authDelivery.NewAuthHandler(authUc),
		accountHandler:  accountDelivery.NewAccountHandler(accountRepo, logRepo, gmailService),
		ruleHandler:     ruleDelivery.NewRuleHandler(ruleRepo, accountRepo, logRepo),
		scanHandler:     scanDelivery.NewScanHandler(orchestrator),
		logHandler:      logDelivery.NewLogHandler(logRepo),
		settingsHandler: NewSettingsHandler(settingsRepo, logRepo, ollamaClient),
	}
	SetupRoutes(h)
	return h
}

// Orchestrator exposes the scan orchestrator for lifecycle wiring in main.
func (h *Handler) Orchestrator() *scanUsecase.Orchestrator {
	return h.orchestrator
}

// OllamaClient exposes the classifier client for the startup model check.
func (h *Handler) OllamaClient() *ollama.Client {
	return h.ollamaClient
}

func (h *Handler) Start(addr string) error {
	return h.engine.Run(addr)
}

package delivery

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	accountrepo "labeler-backend/internal/account/repository"
	logdomain "labeler-backend/internal/logfeed/domain"
	logrepo "labeler-backend/internal/logfeed/repository"
	"labeler-backend/pkg/gmail"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccountHandler serves account CRUD and the copy-paste OAuth flow: the
// operator opens the consent URL, authorizes, and pastes the redirect URL
// back (the redirect target is localhost and never actually served).
type AccountHandler struct {
	accountRepo  accountrepo.AccountRepository
	logRepo      logrepo.LogRepository
	gmailService *gmail.Service

	stateMu       sync.Mutex
	pendingStates map[string]time.Time
}

const stateTTL = 15 * time.Minute

func NewAccountHandler(
	accountRepo accountrepo.AccountRepository,
	logRepo logrepo.LogRepository,
	gmailService *gmail.Service,
) *AccountHandler {
	return &AccountHandler{
		accountRepo:   accountRepo,
		logRepo:       logRepo,
		gmailService:  gmailService,
		pendingStates: make(map[string]time.Time),
	}
}

// POST /api/oauth/start
func (h *AccountHandler) StartOAuth(c *gin.Context) {
	state := uuid.New().String()

	h.stateMu.Lock()
	for s, issued := range h.pendingStates {
		if time.Since(issued) > stateTTL {
			delete(h.pendingStates, s)
		}
	}
	h.pendingStates[state] = time.Now()
	h.stateMu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"auth_url": h.gmailService.AuthURL(state),
		"state":    state,
	})
}

type exchangeRequest struct {
	URL string `json:"url" binding:"required"`
}

// POST /api/oauth/exchange
func (h *AccountHandler) ExchangeOAuth(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No URL provided."})
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not parse the URL."})
		return
	}
	code := parsed.Query().Get("code")
	state := parsed.Query().Get("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No authorization code found in the URL."})
		return
	}

	h.stateMu.Lock()
	issued, known := h.pendingStates[state]
	delete(h.pendingStates, state)
	h.stateMu.Unlock()
	if !known || time.Since(issued) > stateTTL {
		c.JSON(http.StatusBadRequest, gin.H{"error": "State mismatch. Please start the authorization process again."})
		return
	}

	email, credentialsJSON, err := h.gmailService.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logRepo.Add(logdomain.LevelError, fmt.Sprintf("OAuth exchange failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.accountRepo.Upsert(email, credentialsJSON); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logRepo.Add(logdomain.LevelInfo, fmt.Sprintf("Account connected: %s", email))
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": email})
}

// GET /api/accounts
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accountRepo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Credential blobs never leave the server; the JSON tag already hides
	// them, the slice just passes through.
	c.JSON(http.StatusOK, accounts)
}

// DELETE /api/accounts/:id
// The repository removes the account and its processed markers atomically.
func (h *AccountHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	if err := h.accountRepo.Delete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logRepo.Add(logdomain.LevelInfo, fmt.Sprintf("Account %d removed.", id))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /api/accounts/:id/toggle
func (h *AccountHandler) Toggle(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	account, err := h.accountRepo.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	newState := !account.Active
	if err := h.accountRepo.SetActive(uint(id), newState); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": newState})
}

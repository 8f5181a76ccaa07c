package delivery

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	accountrepo "labeler-backend/internal/account/repository"
	logdomain "labeler-backend/internal/logfeed/domain"
	logrepo "labeler-backend/internal/logfeed/repository"
	ruledomain "labeler-backend/internal/rule/domain"
	rulerepo "labeler-backend/internal/rule/repository"

	"github.com/gin-gonic/gin"
)

type RuleHandler struct {
	ruleRepo    rulerepo.RuleRepository
	accountRepo accountrepo.AccountRepository
	logRepo     logrepo.LogRepository
}

func NewRuleHandler(ruleRepo rulerepo.RuleRepository, accountRepo accountrepo.AccountRepository, logRepo logrepo.LogRepository) *RuleHandler {
	return &RuleHandler{ruleRepo: ruleRepo, accountRepo: accountRepo, logRepo: logRepo}
}

// GET /api/rules?account_id=N
// With account_id: rules for that account plus global ones. Without: all
// rules, for the management UI.
func (h *RuleHandler) List(c *gin.Context) {
	if raw := c.Query("account_id"); raw != "" {
		accountID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
			return
		}
		rules, err := h.ruleRepo.ListForAccount(uint(accountID))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rules)
		return
	}

	rules, err := h.ruleRepo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

type ruleRequest struct {
	Name           string `json:"name" binding:"required"`
	Instructions   string `json:"instructions" binding:"required"`
	LabelName      string `json:"label_name" binding:"required"`
	Active         *bool  `json:"active"`
	ActionArchive  bool   `json:"action_archive"`
	ActionSpam     bool   `json:"action_spam"`
	ActionTrash    bool   `json:"action_trash"`
	StopProcessing bool   `json:"stop_processing"`
	AccountID      *uint  `json:"account_id"`
}

// POST /api/rules
func (h *RuleHandler) Create(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, instructions, and label_name are required"})
		return
	}

	rule := ruledomain.Rule{
		Name:           req.Name,
		Instructions:   req.Instructions,
		LabelName:      req.LabelName,
		Active:         true,
		ActionArchive:  req.ActionArchive,
		ActionSpam:     req.ActionSpam,
		ActionTrash:    req.ActionTrash,
		StopProcessing: req.StopProcessing,
		AccountID:      req.AccountID,
	}
	if err := h.ruleRepo.Create(&rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	scope := "all accounts"
	if req.AccountID != nil {
		scope = fmt.Sprintf("account %d", *req.AccountID)
	}
	h.logRepo.Add(logdomain.LevelInfo, fmt.Sprintf("Rule created: %s → label '%s' (%s)", rule.Name, rule.LabelName, scope))
	c.JSON(http.StatusCreated, rule)
}

// PUT /api/rules/:id
func (h *RuleHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	rule, err := h.ruleRepo.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule.Name = req.Name
	rule.Instructions = req.Instructions
	rule.LabelName = req.LabelName
	if req.Active != nil {
		rule.Active = *req.Active
	}
	rule.ActionArchive = req.ActionArchive
	rule.ActionSpam = req.ActionSpam
	rule.ActionTrash = req.ActionTrash
	rule.StopProcessing = req.StopProcessing
	rule.AccountID = req.AccountID

	if err := h.ruleRepo.Update(rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

type reorderRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// PUT /api/rules/reorder
func (h *RuleHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ruleRepo.Reorder(req.IDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// exportedRule is the shareable shape of a rule: internal fields (id,
// sort_order, timestamps) are stripped and the account scope is resolved to
// the address for readability.
type exportedRule struct {
	Name           string `json:"name"`
	Instructions   string `json:"instructions"`
	LabelName      string `json:"label_name"`
	Active         bool   `json:"active"`
	ActionArchive  bool   `json:"action_archive"`
	ActionSpam     bool   `json:"action_spam"`
	ActionTrash    bool   `json:"action_trash"`
	StopProcessing bool   `json:"stop_processing"`
	Account        string `json:"account"`
}

// GET /api/rules/export?account_id=N&name=email@example.com
// Serves the rule set as a JSON file download. With account_id only that
// account's rules plus globals are included; name just makes the filename
// readable.
func (h *RuleHandler) Export(c *gin.Context) {
	var rules []ruledomain.Rule
	var err error
	if raw := c.Query("account_id"); raw != "" {
		accountID, parseErr := strconv.ParseUint(raw, 10, 64)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
			return
		}
		rules, err = h.ruleRepo.ListForAccount(uint(accountID))
	} else {
		rules, err = h.ruleRepo.List()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	accounts, err := h.accountRepo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	emails := make(map[uint]string, len(accounts))
	for _, a := range accounts {
		emails[a.ID] = a.Email
	}

	exported := make([]exportedRule, 0, len(rules))
	for _, rule := range rules {
		scope := "all accounts"
		if rule.AccountID != nil {
			if email, ok := emails[*rule.AccountID]; ok {
				scope = email
			}
		}
		exported = append(exported, exportedRule{
			Name:           rule.Name,
			Instructions:   rule.Instructions,
			LabelName:      rule.LabelName,
			Active:         rule.Active,
			ActionArchive:  rule.ActionArchive,
			ActionSpam:     rule.ActionSpam,
			ActionTrash:    rule.ActionTrash,
			StopProcessing: rule.StopProcessing,
			Account:        scope,
		})
	}

	name := c.DefaultQuery("name", "all")
	name = strings.NewReplacer("@", "_", ".", "_").Replace(name)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=rules-%s.json", name))
	c.JSON(http.StatusOK, exported)
}

// DELETE /api/rules/:id
func (h *RuleHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}
	if err := h.ruleRepo.Delete(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logRepo.Add(logdomain.LevelInfo, fmt.Sprintf("Rule %d deleted.", id))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

package delivery

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	accountdomain "labeler-backend/internal/account/domain"
	logdomain "labeler-backend/internal/logfeed/domain"
	ruledomain "labeler-backend/internal/rule/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRuleRepo struct {
	rules []ruledomain.Rule
}

func (s *stubRuleRepo) List() ([]ruledomain.Rule, error) { return s.rules, nil }

func (s *stubRuleRepo) ListForAccount(accountID uint) ([]ruledomain.Rule, error) {
	var scoped []ruledomain.Rule
	for _, r := range s.rules {
		if r.AccountID == nil || *r.AccountID == accountID {
			scoped = append(scoped, r)
		}
	}
	return scoped, nil
}

func (s *stubRuleRepo) ListActiveForAccount(accountID uint) ([]ruledomain.Rule, error) {
	return s.ListForAccount(accountID)
}

func (s *stubRuleRepo) FindByID(id uint) (*ruledomain.Rule, error) {
	return nil, errors.New("not found")
}

func (s *stubRuleRepo) Create(rule *ruledomain.Rule) error { return nil }
func (s *stubRuleRepo) Update(rule *ruledomain.Rule) error { return nil }
func (s *stubRuleRepo) Reorder(orderedIDs []uint) error    { return nil }
func (s *stubRuleRepo) Delete(id uint) error               { return nil }

type stubAccountRepo struct {
	accounts []accountdomain.Account
}

func (s *stubAccountRepo) List() ([]accountdomain.Account, error)       { return s.accounts, nil }
func (s *stubAccountRepo) ListActive() ([]accountdomain.Account, error) { return s.accounts, nil }

func (s *stubAccountRepo) FindByID(id uint) (*accountdomain.Account, error) {
	return nil, errors.New("not found")
}

func (s *stubAccountRepo) FindByEmail(email string) (*accountdomain.Account, error) {
	return nil, errors.New("not found")
}

func (s *stubAccountRepo) Upsert(email, credentialsJSON string) (*accountdomain.Account, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAccountRepo) UpdateCredentials(id uint, credentialsJSON string) error { return nil }
func (s *stubAccountRepo) UpdateLastScan(id uint, at time.Time) error              { return nil }
func (s *stubAccountRepo) SetActive(id uint, active bool) error                    { return nil }
func (s *stubAccountRepo) Delete(id uint) error                                    { return nil }

type stubLogRepo struct{}

func (s *stubLogRepo) Add(level, message string) error           { return nil }
func (s *stubLogRepo) Recent(limit int) ([]logdomain.Log, error) { return nil, nil }
func (s *stubLogRepo) Trim(keep int) error                       { return nil }

func exportTestRouter(rules []ruledomain.Rule, accounts []accountdomain.Account) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewRuleHandler(&stubRuleRepo{rules: rules}, &stubAccountRepo{accounts: accounts}, &stubLogRepo{})
	r := gin.New()
	r.GET("/api/rules/export", h.Export)
	return r
}

func TestExportStripsInternalFields(t *testing.T) {
	accountID := uint(3)
	rules := []ruledomain.Rule{
		{ID: 1, Name: "Newsletters", Instructions: "catch newsletters", LabelName: "Newsletter", Active: true, SortOrder: 5},
		{ID: 2, Name: "Receipts", Instructions: "purchase confirmations", LabelName: "Receipts", Active: true, ActionArchive: true, AccountID: &accountID},
	}
	accounts := []accountdomain.Account{{ID: 3, Email: "user@example.com"}}
	router := exportTestRouter(rules, accounts)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/rules/export", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=rules-all.json")

	var exported []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
	require.Len(t, exported, 2)

	// Internal bookkeeping fields never leave the server.
	for _, e := range exported {
		assert.NotContains(t, e, "id")
		assert.NotContains(t, e, "sort_order")
		assert.NotContains(t, e, "created_at")
	}

	assert.Equal(t, "all accounts", exported[0]["account"])
	assert.Equal(t, "user@example.com", exported[1]["account"])
	assert.Equal(t, true, exported[1]["action_archive"])
}

func TestExportScopedToAccount(t *testing.T) {
	mine := uint(3)
	other := uint(4)
	rules := []ruledomain.Rule{
		{ID: 1, Name: "Global", LabelName: "G", Active: true},
		{ID: 2, Name: "Mine", LabelName: "M", Active: true, AccountID: &mine},
		{ID: 3, Name: "Other", LabelName: "O", Active: true, AccountID: &other},
	}
	router := exportTestRouter(rules, []accountdomain.Account{{ID: 3, Email: "user@example.com"}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/rules/export?account_id=3&name=user@example.com", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "rules-user_example_com.json")

	var exported []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
	require.Len(t, exported, 2)
	assert.Equal(t, "Global", exported[0]["name"])
	assert.Equal(t, "Mine", exported[1]["name"])
}

func TestExportRejectsBadAccountID(t *testing.T) {
	router := exportTestRouter(nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/rules/export?account_id=abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

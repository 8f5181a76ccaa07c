package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	accountdomain "labeler-backend/internal/account/domain"
	logdomain "labeler-backend/internal/logfeed/domain"
	ruledomain "labeler-backend/internal/rule/domain"
	scandomain "labeler-backend/internal/scan/domain"

	"golang.org/x/oauth2"
)

type fakeAccountRepo struct {
	mu          sync.Mutex
	accounts    []accountdomain.Account
	lastScans   map[uint]time.Time
	credentials map[uint]string
}

func newFakeAccountRepo(accounts ...accountdomain.Account) *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts:    accounts,
		lastScans:   make(map[uint]time.Time),
		credentials: make(map[uint]string),
	}
}

func (f *fakeAccountRepo) List() ([]accountdomain.Account, error) { return f.accounts, nil }

func (f *fakeAccountRepo) ListActive() ([]accountdomain.Account, error) {
	var active []accountdomain.Account
	for _, a := range f.accounts {
		if a.Active {
			active = append(active, a)
		}
	}
	return active, nil
}

func (f *fakeAccountRepo) FindByID(id uint) (*accountdomain.Account, error) {
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			return &f.accounts[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAccountRepo) FindByEmail(email string) (*accountdomain.Account, error) {
	for i := range f.accounts {
		if f.accounts[i].Email == email {
			return &f.accounts[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAccountRepo) Upsert(email, credentialsJSON string) (*accountdomain.Account, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAccountRepo) UpdateCredentials(id uint, credentialsJSON string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials[id] = credentialsJSON
	return nil
}

func (f *fakeAccountRepo) UpdateLastScan(id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastScans[id] = at
	return nil
}

func (f *fakeAccountRepo) SetActive(id uint, active bool) error { return nil }
func (f *fakeAccountRepo) Delete(id uint) error                 { return nil }

func (f *fakeAccountRepo) lastScanUpdated(id uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.lastScans[id]
	return ok
}

type fakeRuleRepo struct {
	rules []ruledomain.Rule
}

func (f *fakeRuleRepo) List() ([]ruledomain.Rule, error) { return f.rules, nil }
func (f *fakeRuleRepo) ListForAccount(accountID uint) ([]ruledomain.Rule, error) {
	return f.rules, nil
}
func (f *fakeRuleRepo) ListActiveForAccount(accountID uint) ([]ruledomain.Rule, error) {
	var active []ruledomain.Rule
	for _, r := range f.rules {
		if r.Active && (r.AccountID == nil || *r.AccountID == accountID) {
			active = append(active, r)
		}
	}
	return active, nil
}
func (f *fakeRuleRepo) FindByID(id uint) (*ruledomain.Rule, error) { return nil, errors.New("not found") }
func (f *fakeRuleRepo) Create(rule *ruledomain.Rule) error         { return nil }
func (f *fakeRuleRepo) Update(rule *ruledomain.Rule) error         { return nil }
func (f *fakeRuleRepo) Reorder(orderedIDs []uint) error            { return nil }
func (f *fakeRuleRepo) Delete(id uint) error                       { return nil }

type fakeProcessedRepo struct {
	mu     sync.Mutex
	marked map[string]bool
}

func newFakeProcessedRepo() *fakeProcessedRepo {
	return &fakeProcessedRepo{marked: make(map[string]bool)}
}

func processedKey(accountID uint, messageID string) string {
	return fmt.Sprintf("%d/%s", accountID, messageID)
}

func (f *fakeProcessedRepo) IsProcessed(accountID uint, messageID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marked[processedKey(accountID, messageID)], nil
}

func (f *fakeProcessedRepo) MarkProcessed(accountID uint, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked[processedKey(accountID, messageID)] = true
	return nil
}

type fakeSettingsRepo struct {
	values map[string]string
}

func (f *fakeSettingsRepo) Get(key, defaultValue string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return defaultValue, nil
}

func (f *fakeSettingsRepo) Set(key, value string) error {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[key] = value
	return nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []logdomain.Log
}

func (f *fakeLogRepo) Add(level, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, logdomain.Log{Level: level, Message: message})
	return nil
}

func (f *fakeLogRepo) Recent(limit int) ([]logdomain.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logdomain.Log(nil), f.entries...), nil
}

func (f *fakeLogRepo) Trim(keep int) error { return nil }

func (f *fakeLogRepo) count(level, substring string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if (level == "" || e.Level == level) && strings.Contains(e.Message, substring) {
			n++
		}
	}
	return n
}

// fakeMailbox records every provider call in order.
type fakeMailbox struct {
	mu          sync.Mutex
	emails      []scandomain.Email
	fetchErr    error
	labelCalls  int
	calls       []string // e.g. "label:msg1:LabelA", "spam:msg1"
	applyErrFor string   // message id whose ApplyLabel fails
}

func (f *fakeMailbox) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeMailbox) FetchRecent(ctx context.Context, lookback time.Duration, max int64) ([]scandomain.Email, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.emails, nil
}

func (f *fakeMailbox) BuildLabelCache(ctx context.Context, names []string) (map[string]string, error) {
	f.mu.Lock()
	f.labelCalls++
	f.mu.Unlock()
	cache := make(map[string]string, len(names))
	for _, name := range names {
		cache[name] = "id-" + name
	}
	return cache, nil
}

func (f *fakeMailbox) ApplyLabel(ctx context.Context, messageID, labelID string) error {
	if f.applyErrFor == messageID {
		return errors.New("label apply failed")
	}
	f.record("label:" + messageID + ":" + labelID)
	return nil
}

func (f *fakeMailbox) Archive(ctx context.Context, messageID string) error {
	f.record("archive:" + messageID)
	return nil
}

func (f *fakeMailbox) MarkSpam(ctx context.Context, messageID string) error {
	f.record("spam:" + messageID)
	return nil
}

func (f *fakeMailbox) Trash(ctx context.Context, messageID string) error {
	f.record("trash:" + messageID)
	return nil
}

func (f *fakeMailbox) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeProvider struct {
	mailbox *fakeMailbox
	openErr error
	// triggerRefresh pushes a token through onTokenRefresh on Open to
	// simulate Google rotating the access token.
	triggerRefresh bool
	opens          int
}

func (f *fakeProvider) Open(ctx context.Context, credentialsJSON string, onTokenRefresh scandomain.TokenUpdateFunc) (Mailbox, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.triggerRefresh && onTokenRefresh != nil {
		if err := onTokenRefresh(&oauth2.Token{AccessToken: "rotated"}); err != nil {
			return nil, err
		}
	}
	return f.mailbox, nil
}

type fakeClassifier struct {
	mu        sync.Mutex
	calls     int
	lastRules []ruledomain.Rule
	decide    func(email scandomain.Email, rules []ruledomain.Rule) (map[uint]bool, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, email scandomain.Email, rules []ruledomain.Rule) (map[uint]bool, error) {
	f.mu.Lock()
	f.calls++
	f.lastRules = rules
	f.mu.Unlock()
	if f.decide == nil {
		return map[uint]bool{}, nil
	}
	return f.decide(email, rules)
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

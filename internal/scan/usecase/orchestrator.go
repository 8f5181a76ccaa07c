package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	accountdomain "labeler-backend/internal/account/domain"
	accountrepo "labeler-backend/internal/account/repository"
	logdomain "labeler-backend/internal/logfeed/domain"
	logrepo "labeler-backend/internal/logfeed/repository"
	ruledomain "labeler-backend/internal/rule/domain"
	rulerepo "labeler-backend/internal/rule/repository"
	scandomain "labeler-backend/internal/scan/domain"
	scanrepo "labeler-backend/internal/scan/repository"
	settingsdomain "labeler-backend/internal/settings/domain"
	settingsrepo "labeler-backend/internal/settings/repository"

	"golang.org/x/oauth2"
)

// Options bound the per-cycle provider work.
type Options struct {
	Lookback        time.Duration // how far back the inbox query reaches
	MaxResults      int64         // per-account message cap per cycle
	DefaultInterval time.Duration // used when the setting is absent or invalid
	LogRetention    int           // newest feed entries kept
}

// Orchestrator drives the scan-classify-act cycle. One background scheduler
// goroutine and any number of RunNow triggers funnel through scanGate, so at
// most one scan body executes process-wide; late arrivals are dropped with an
// informational log, never queued.
type Orchestrator struct {
	accountRepo   accountrepo.AccountRepository
	ruleRepo      rulerepo.RuleRepository
	processedRepo scanrepo.ProcessedEmailRepository
	settingsRepo  settingsrepo.SettingsRepository
	logRepo       logrepo.LogRepository
	provider      MailProvider
	classifier    Classifier
	opts          Options

	scanGate sync.Mutex

	statusMu sync.RWMutex
	status   scandomain.ScanStatus

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewOrchestrator(
	accountRepo accountrepo.AccountRepository,
	ruleRepo rulerepo.RuleRepository,
	processedRepo scanrepo.ProcessedEmailRepository,
	settingsRepo settingsrepo.SettingsRepository,
	logRepo logrepo.LogRepository,
	provider MailProvider,
	classifier Classifier,
	opts Options,
) *Orchestrator {
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 50
	}
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = 5 * time.Minute
	}
	if opts.LogRetention <= 0 {
		opts.LogRetention = 500
	}
	return &Orchestrator{
		accountRepo:   accountRepo,
		ruleRepo:      ruleRepo,
		processedRepo: processedRepo,
		settingsRepo:  settingsRepo,
		logRepo:       logRepo,
		provider:      provider,
		classifier:    classifier,
		opts:          opts,
		stopChan:      make(chan struct{}),
	}
}

// Start launches the scheduler loop. The poll interval is re-read from
// settings every cycle, so an operator change takes effect on the next tick
// without a restart.
func (o *Orchestrator) Start() {
	log.Printf("[Scan] Starting scheduler (default interval: %s)", o.opts.DefaultInterval)

	go func() {
		o.setRunning(true)
		defer o.setRunning(false)

		for {
			select {
			case <-o.stopChan:
				log.Println("[Scan] Scheduler stopped")
				return
			default:
			}

			o.ScanAll(context.Background())

			interval := o.pollInterval()
			o.setNextRun(time.Now().Add(interval))

			select {
			case <-o.stopChan:
				log.Println("[Scan] Scheduler stopped")
				return
			case <-time.After(interval):
			}
		}
	}()
}

// Stop signals shutdown. An in-flight cycle finishes its current unit of
// work; nothing is interrupted mid-email.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopChan) })
}

// RunNow fires an out-of-band cycle without waiting for the next tick. The
// scan gate still applies.
func (o *Orchestrator) RunNow() {
	go o.ScanAll(context.Background())
}

func (o *Orchestrator) Status() scandomain.ScanStatus {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

func (o *Orchestrator) setRunning(running bool) {
	o.statusMu.Lock()
	o.status.Running = running
	o.statusMu.Unlock()
}

func (o *Orchestrator) setNextRun(at time.Time) {
	o.statusMu.Lock()
	o.status.NextRun = &at
	o.statusMu.Unlock()
}

func (o *Orchestrator) pollInterval() time.Duration {
	value, err := o.settingsRepo.Get(settingsdomain.KeyPollInterval, "")
	if err != nil || value == "" {
		return o.opts.DefaultInterval
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return o.opts.DefaultInterval
	}
	return time.Duration(seconds) * time.Second
}

// ScanAll runs one full cycle over all active accounts. Concurrent callers
// are dropped, not queued.
func (o *Orchestrator) ScanAll(ctx context.Context) {
	if !o.scanGate.TryLock() {
		o.feed(logdomain.LevelInfo, "Scan already in progress, skipping.")
		return
	}
	defer o.scanGate.Unlock()

	now := time.Now()
	o.statusMu.Lock()
	o.status.LastRun = &now
	o.statusMu.Unlock()

	if err := o.logRepo.Trim(o.opts.LogRetention); err != nil {
		log.Printf("[Scan] Failed to trim log feed: %v", err)
	}

	o.runScan(ctx)
}

func (o *Orchestrator) runScan(ctx context.Context) {
	accounts, err := o.accountRepo.ListActive()
	if err != nil {
		o.feed(logdomain.LevelError, fmt.Sprintf("Failed to list accounts: %v", err))
		return
	}
	if len(accounts) == 0 {
		o.feed(logdomain.LevelInfo, "Scan ran: no active accounts configured.")
		return
	}

	// Accounts run strictly sequentially. The Ollama backend caps concurrent
	// requests, and overlapping token refreshes for one account are worse
	// than a slower cycle.
	for _, account := range accounts {
		rules, err := o.ruleRepo.ListActiveForAccount(account.ID)
		if err != nil {
			o.feed(logdomain.LevelError, fmt.Sprintf("[%s] Failed to load rules: %v", account.Email, err))
			continue
		}
		if len(rules) == 0 {
			o.feed(logdomain.LevelInfo, fmt.Sprintf("[%s] No active rules for this account.", account.Email))
			continue
		}

		o.feed(logdomain.LevelInfo, fmt.Sprintf("Starting scan: [%s] with %d rule(s).", account.Email, len(rules)))
		if err := o.scanAccount(ctx, account, rules); err != nil {
			o.feed(logdomain.LevelError, fmt.Sprintf("[%s] Scan failed: %v", account.Email, err))
		}
	}
}

func (o *Orchestrator) scanAccount(ctx context.Context, account accountdomain.Account, rules []ruledomain.Rule) error {
	// Refreshed tokens are persisted the moment the provider issues them, so
	// a crash mid-scan never strands a stale blob.
	onRefresh := func(token *oauth2.Token) error {
		blob, err := json.Marshal(token)
		if err != nil {
			return err
		}
		return o.accountRepo.UpdateCredentials(account.ID, string(blob))
	}

	mailbox, err := o.provider.Open(ctx, account.CredentialsJSON, onRefresh)
	if err != nil {
		return fmt.Errorf("open mailbox: %w", err)
	}

	emails, err := mailbox.FetchRecent(ctx, o.opts.Lookback, o.opts.MaxResults)
	if err != nil {
		return fmt.Errorf("fetch emails: %w", err)
	}

	newEmails := make([]scandomain.Email, 0, len(emails))
	for _, email := range emails {
		processed, err := o.processedRepo.IsProcessed(account.ID, email.ID)
		if err != nil {
			return fmt.Errorf("check processed state: %w", err)
		}
		if !processed {
			newEmails = append(newEmails, email)
		}
	}

	if len(newEmails) == 0 {
		o.feed(logdomain.LevelInfo, fmt.Sprintf("[%s] No new emails to process.", account.Email))
		return o.accountRepo.UpdateLastScan(account.ID, time.Now())
	}

	o.feed(logdomain.LevelInfo, fmt.Sprintf("[%s] Processing %d new email(s) against %d rule(s).", account.Email, len(newEmails), len(rules)))

	// One fetch-or-create pass for every label the rule set references.
	labelCache, err := mailbox.BuildLabelCache(ctx, distinctLabels(rules))
	if err != nil {
		return fmt.Errorf("build label cache: %w", err)
	}

	for _, email := range newEmails {
		o.processEmail(ctx, account, mailbox, email, rules, labelCache)
	}

	return o.accountRepo.UpdateLastScan(account.ID, time.Now())
}

// processEmail classifies one email and applies every matching rule in sort
// order. Failures are contained here: whatever happens, the email ends up
// marked processed so a poison message cannot wedge future cycles.
func (o *Orchestrator) processEmail(ctx context.Context, account accountdomain.Account, mailbox Mailbox, email scandomain.Email, rules []ruledomain.Rule, labelCache map[string]string) {
	decisions, err := o.classifier.Classify(ctx, email, rules)
	if err != nil {
		// Degrade to "no rule matches"; the next cycle is the retry path.
		o.feed(logdomain.LevelError, fmt.Sprintf("[%s] Classifier failed for '%s': %v", account.Email, truncate(email.Subject, 60), err))
		decisions = nil
	}

	for _, rule := range rules {
		if !decisions[rule.ID] {
			o.feed(logdomain.LevelDebug, fmt.Sprintf("[%s] Skipped '%s' for rule: %s", account.Email, truncate(email.Subject, 60), rule.Name))
			continue
		}

		actions, err := applyRule(ctx, mailbox, email.ID, rule, labelCache[rule.LabelName])
		if err != nil {
			o.feed(logdomain.LevelError, fmt.Sprintf("[%s] Error processing email: %v", account.Email, err))
			break
		}

		if rule.StopProcessing {
			actions = append(actions, "stopped further rules")
		}
		o.feed(logdomain.LevelInfo, fmt.Sprintf("[%s] '%s': %s (rule: %s)", account.Email, truncate(email.Subject, 60), strings.Join(actions, ", "), rule.Name))

		if rule.StopProcessing {
			break
		}
	}

	if err := o.processedRepo.MarkProcessed(account.ID, email.ID); err != nil {
		o.feed(logdomain.LevelError, fmt.Sprintf("[%s] Failed to mark email processed: %v", account.Email, err))
	}
}

func distinctLabels(rules []ruledomain.Rule) []string {
	seen := make(map[string]bool, len(rules))
	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		if !seen[rule.LabelName] {
			seen[rule.LabelName] = true
			names = append(names, rule.LabelName)
		}
	}
	return names
}

// truncate caps a string at max runes, never splitting a multi-byte sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// feed writes to the operator log feed and mirrors to stdout.
func (o *Orchestrator) feed(level, message string) {
	log.Printf("[Scan] %s %s", level, message)
	if err := o.logRepo.Add(level, message); err != nil {
		log.Printf("[Scan] Failed to record log entry: %v", err)
	}
}

package usecase

import (
	"context"
	"time"

	ruledomain "labeler-backend/internal/rule/domain"
	scandomain "labeler-backend/internal/scan/domain"
)

// Mailbox is the per-account mail surface the orchestrator drives. All calls
// hit the provider network and carry the request context.
type Mailbox interface {
	FetchRecent(ctx context.Context, lookback time.Duration, max int64) ([]scandomain.Email, error)
	BuildLabelCache(ctx context.Context, names []string) (map[string]string, error)
	ApplyLabel(ctx context.Context, messageID, labelID string) error
	Archive(ctx context.Context, messageID string) error
	MarkSpam(ctx context.Context, messageID string) error
	Trash(ctx context.Context, messageID string) error
}

// MailProvider opens a Mailbox from a stored credential blob. onTokenRefresh
// must persist the updated blob before any message is processed.
type MailProvider interface {
	Open(ctx context.Context, credentialsJSON string, onTokenRefresh scandomain.TokenUpdateFunc) (Mailbox, error)
}

// Classifier decides, for one email and the full rule set, which rules match.
// Implementations make exactly one backend call per email. Ids missing from
// the result mean "no match"; an error means the whole email could not be
// classified.
type Classifier interface {
	Classify(ctx context.Context, email scandomain.Email, rules []ruledomain.Rule) (map[uint]bool, error)
}

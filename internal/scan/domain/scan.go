package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// ProcessedEmail marks a Gmail message as handled for one account. Rows are
// append-only: once a message is marked it is never classified again for
// that account, even if the rule set changes later.
type ProcessedEmail struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccountID uint      `json:"account_id" gorm:"uniqueIndex:idx_account_message;not null"`
	MessageID string    `json:"message_id" gorm:"uniqueIndex:idx_account_message;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProcessedEmail) TableName() string {
	return "processed_emails"
}

// Email is the classifier's view of a Gmail message. Body is already
// truncated by the provider; Snippet stands in when the body is empty.
type Email struct {
	ID      string
	Sender  string
	Subject string
	Snippet string
	Body    string
}

// TokenUpdateFunc is invoked when the OAuth token source refreshes the
// access token, so the new blob can be persisted before any mail is touched.
type TokenUpdateFunc func(token *oauth2.Token) error

// ScanStatus is process-wide ephemeral scheduler state.
type ScanStatus struct {
	Running bool       `json:"running"`
	LastRun *time.Time `json:"last_run"`
	NextRun *time.Time `json:"next_run"`
}

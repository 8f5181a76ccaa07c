package domain

import "time"

// Account is a connected Gmail account. CredentialsJSON holds the opaque
// OAuth token blob issued by Google; it is rewritten in place whenever the
// token source refreshes the access token.
type Account struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Email           string     `json:"email" gorm:"uniqueIndex;not null"`
	CredentialsJSON string     `json:"-" gorm:"type:text;not null"`
	Active          bool       `json:"active" gorm:"default:true"`
	LastScanAt      *time.Time `json:"last_scan_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

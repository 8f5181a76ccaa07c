package domain

import "time"

// Rule is a natural-language classification instruction bound to a Gmail
// label. At most one of ActionSpam/ActionTrash/ActionArchive is executed for
// a matching email, in that priority order. AccountID nil means the rule
// applies to every connected account.
type Rule struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"not null"`
	Instructions   string    `json:"instructions" gorm:"type:text;not null"`
	LabelName      string    `json:"label_name" gorm:"not null"`
	Active         bool      `json:"active" gorm:"default:true"`
	ActionArchive  bool      `json:"action_archive" gorm:"default:false"`
	ActionSpam     bool      `json:"action_spam" gorm:"default:false"`
	ActionTrash    bool      `json:"action_trash" gorm:"default:false"`
	StopProcessing bool      `json:"stop_processing" gorm:"default:false"`
	SortOrder      int       `json:"sort_order" gorm:"default:0;index"`
	AccountID      *uint     `json:"account_id" gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Rule) TableName() string {
	return "rules"
}

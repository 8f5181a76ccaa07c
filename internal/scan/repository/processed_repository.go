package repository

import (
	scandomain "labeler-backend/internal/scan/domain"

	"gorm.io/gorm"
)

type ProcessedEmailRepository interface {
	IsProcessed(accountID uint, messageID string) (bool, error)
	// MarkProcessed records the message atomically (insert-if-absent).
	// Marking an already-marked message is a no-op, not an error.
	MarkProcessed(accountID uint, messageID string) error
}

type processedEmailRepository struct {
	db *gorm.DB
}

func NewProcessedEmailRepository(db *gorm.DB) ProcessedEmailRepository {
	return &processedEmailRepository{db: db}
}

func (r *processedEmailRepository) IsProcessed(accountID uint, messageID string) (bool, error) {
	var record scandomain.ProcessedEmail
	err := r.db.Where("account_id = ? AND message_id = ?", accountID, messageID).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *processedEmailRepository) MarkProcessed(accountID uint, messageID string) error {
	record := scandomain.ProcessedEmail{
		AccountID: accountID,
		MessageID: messageID,
	}
	// FirstOrCreate rides on the unique composite index; a concurrent insert
	// of the same pair leaves exactly one row either way.
	return r.db.Where("account_id = ? AND message_id = ?", accountID, messageID).
		FirstOrCreate(&record).Error
}

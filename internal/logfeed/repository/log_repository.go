package repository

import (
	"strings"

	logdomain "labeler-backend/internal/logfeed/domain"

	"gorm.io/gorm"
)

type LogRepository interface {
	Add(level, message string) error
	Recent(limit int) ([]logdomain.Log, error)
	// Trim deletes everything but the newest keep entries.
	Trim(keep int) error
}

type logRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Add(level, message string) error {
	entry := logdomain.Log{
		Level:   strings.ToUpper(level),
		Message: message,
	}
	return r.db.Create(&entry).Error
}

func (r *logRepository) Recent(limit int) ([]logdomain.Log, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []logdomain.Log
	err := r.db.Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (r *logRepository) Trim(keep int) error {
	if keep <= 0 {
		return nil
	}
	return r.db.Exec(
		"DELETE FROM logs WHERE id NOT IN (SELECT id FROM logs ORDER BY id DESC LIMIT ?)",
		keep,
	).Error
}

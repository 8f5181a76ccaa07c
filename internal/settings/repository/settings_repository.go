package repository

import (
	settingsdomain "labeler-backend/internal/settings/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	Get(key, defaultValue string) (string, error)
	Set(key, value string) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(key, defaultValue string) (string, error) {
	var setting settingsdomain.Setting
	err := r.db.Where("key = ?", key).First(&setting).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	return setting.Value, nil
}

func (r *settingsRepository) Set(key, value string) error {
	setting := settingsdomain.Setting{Key: key, Value: value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&setting).Error
}
